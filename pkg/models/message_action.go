package models

import "time"

type MessageActionKind string

const (
	MessageFlag    MessageActionKind = "F"
	MessageUnflag  MessageActionKind = "N"
	MessageLabel   MessageActionKind = "L"
	MessageUnlabel MessageActionKind = "U"
	MessageArchive MessageActionKind = "A"
	MessageRestore MessageActionKind = "R"
)

// MessageAction audits a bulk operation a user performed on gateway messages.
type MessageAction struct {
	ID         int64             `json:"id"`
	OrgID      int64             `json:"org"`
	Action     MessageActionKind `json:"action"`
	MessageIDs []int64           `json:"messages"`
	LabelID    int64             `json:"label,omitempty"`
	CreatedBy  int64             `json:"created_by"`
	CreatedOn  time.Time         `json:"created_on"`
}

func (a *MessageAction) Mentions(messageID int64) bool {
	for _, id := range a.MessageIDs {
		if id == messageID {
			return true
		}
	}
	return false
}
