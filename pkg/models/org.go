package models

// Org is a tenant. The config fields are managed by administrators and read by
// the case engine and the labelling task.
type Org struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	BannerText    string   `json:"banner_text,omitempty"`
	ContactFields []string `json:"contact_fields,omitempty"`
	// SuspendGroups lists gateway group uuids a contact leaves while a case is open
	SuspendGroups []string `json:"suspend_groups,omitempty"`
}
