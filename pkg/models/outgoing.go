package models

import "time"

type Activity string

const (
	ActivityBulkReply Activity = "B"
	ActivityCaseReply Activity = "C"
)

type Outgoing struct {
	ID             int64     `json:"id"`
	OrgID          int64     `json:"org"`
	Activity       Activity  `json:"activity"`
	BroadcastID    int64     `json:"broadcast_id"`
	RecipientCount int       `json:"recipient_count"`
	CaseID         int64     `json:"case,omitempty"`
	CreatedBy      int64     `json:"created_by"`
	CreatedOn      time.Time `json:"created_on"`
}
