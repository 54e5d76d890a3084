package models

type Partner struct {
	ID     int64  `json:"id"`
	OrgID  int64  `json:"org"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}
