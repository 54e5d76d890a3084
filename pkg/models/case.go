package models

import "time"

type Case struct {
	ID          int64      `json:"id"`
	OrgID       int64      `json:"org"`
	ContactUUID string     `json:"contact"`
	AssigneeID  int64      `json:"assignee"`
	LabelIDs    []int64    `json:"labels"`
	MessageID   int64      `json:"message_id"`
	MessageOn   time.Time  `json:"message_on"`
	Summary     string     `json:"summary"`
	OpenedOn    time.Time  `json:"opened_on"`
	ClosedOn    *time.Time `json:"closed_on,omitempty"`
}

func (c *Case) IsOpen() bool {
	return c.ClosedOn == nil
}

func (c *Case) HasLabel(id int64) bool {
	for _, l := range c.LabelIDs {
		if l == id {
			return true
		}
	}
	return false
}

// OpenAt reports whether the case covered the instant t.
func (c *Case) OpenAt(t time.Time) bool {
	if c.OpenedOn.After(t) {
		return false
	}
	return c.ClosedOn == nil || c.ClosedOn.After(t)
}

type ActionKind string

const (
	ActionOpen     ActionKind = "O"
	ActionAddNote  ActionKind = "N"
	ActionReassign ActionKind = "A"
	ActionClose    ActionKind = "C"
	ActionReopen   ActionKind = "R"
	ActionLabel    ActionKind = "L"
	ActionUnlabel  ActionKind = "U"
)

// CaseAction is an append-only record of one lifecycle transition. ID is a
// store-wide sequence so it also orders actions sharing a timestamp.
type CaseAction struct {
	ID         int64      `json:"id"`
	OrgID      int64      `json:"org"`
	CaseID     int64      `json:"case"`
	Action     ActionKind `json:"action"`
	CreatedBy  int64      `json:"created_by"`
	CreatedOn  time.Time  `json:"created_on"`
	AssigneeID int64      `json:"assignee,omitempty"`
	LabelID    int64      `json:"label,omitempty"`
	Note       string     `json:"note,omitempty"`
}

type EventKind string

const EventReply EventKind = "R"

// CaseEvent records contact activity on an open case, stamped with the
// gateway's message time.
type CaseEvent struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org"`
	CaseID    int64     `json:"case"`
	Event     EventKind `json:"event"`
	CreatedOn time.Time `json:"created_on"`
}
