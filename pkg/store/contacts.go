package store

import (
	"errors"

	"github.com/praekelt/helpdesk/pkg/models"
)

func (s *Store) SaveContact(c *models.Contact) error {
	if c.ID == 0 {
		id, err := s.nextID("contact")
		if err != nil {
			return err
		}
		c.ID = id
	}
	if c.SuspendedGroups == nil {
		c.SuspendedGroups = []string{}
	}
	return s.putJSON(genContactKey(c.OrgID, c.UUID), c)
}

func (s *Store) GetContact(orgID int64, uuid string) (*models.Contact, error) {
	var c models.Contact
	if err := s.getJSON(genContactKey(orgID, uuid), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetOrCreateContact returns the local contact, creating an empty record on
// first reference.
func (s *Store) GetOrCreateContact(orgID int64, uuid string) (*models.Contact, error) {
	c, err := s.GetContact(orgID, uuid)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	c = &models.Contact{OrgID: orgID, UUID: uuid, SuspendedGroups: []string{}}
	if err := s.SaveContact(c); err != nil {
		return nil, err
	}
	return c, nil
}
