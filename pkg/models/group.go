package models

type Group struct {
	ID     int64  `json:"id"`
	OrgID  int64  `json:"org"`
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Active bool   `json:"is_active"`
}
