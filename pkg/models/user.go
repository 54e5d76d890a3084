package models

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleAnalyst Role = "analyst"
)

type User struct {
	ID    int64  `json:"id"`
	OrgID int64  `json:"org"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  Role   `json:"role"`
	// PartnerID is zero for users not attached to a partner (org administrators
	// and users detached by a partner release)
	PartnerID int64 `json:"partner,omitempty"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

func (u *User) HasPartner() bool {
	return u != nil && u.PartnerID != 0
}
