package models

type Label struct {
	ID          int64    `json:"id"`
	OrgID       int64    `json:"org"`
	UUID        string   `json:"uuid"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
	PartnerIDs  []int64  `json:"partners,omitempty"`
	Active      bool     `json:"is_active"`
}

// GrantsPartner reports whether users of the partner may see messages and
// cases under this label.
func (l *Label) GrantsPartner(partnerID int64) bool {
	if partnerID == 0 {
		return false
	}
	for _, id := range l.PartnerIDs {
		if id == partnerID {
			return true
		}
	}
	return false
}
