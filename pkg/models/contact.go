package models

// Contact is the local record of a gateway contact.
type Contact struct {
	ID    int64  `json:"id"`
	OrgID int64  `json:"org"`
	UUID  string `json:"uuid"`
	// SuspendedGroups holds the group uuids the contact was removed from when
	// its current case was opened
	SuspendedGroups []string       `json:"suspended_groups"`
	Fields          map[string]any `json:"fields,omitempty"`
}
