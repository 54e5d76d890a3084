package store

import "github.com/praekelt/helpdesk/pkg/models"

func (s *Store) SaveUser(u *models.User) error {
	if u.ID == 0 {
		id, err := s.nextID("user")
		if err != nil {
			return err
		}
		u.ID = id
	}
	return s.putJSON(genUserKey(u.ID), u)
}

func (s *Store) GetUser(id int64) (*models.User, error) {
	var u models.User
	if err := s.getJSON(genUserKey(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns the users of an org in id order.
func (s *Store) ListUsers(orgID int64) ([]*models.User, error) {
	all, err := scanJSON[models.User](s, "u:")
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, u := range all {
		if u.OrgID == orgID {
			out = append(out, u)
		}
	}
	return out, nil
}
