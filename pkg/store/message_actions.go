package store

import "github.com/praekelt/helpdesk/pkg/models"

func (s *Store) AddMessageAction(a *models.MessageAction) error {
	id, err := s.nextID("message_action")
	if err != nil {
		return err
	}
	a.ID = id
	return s.putJSON(genMessageActionKey(a.OrgID, a.ID), a)
}

// ListMessageActions returns the org's message actions, oldest first.
func (s *Store) ListMessageActions(orgID int64) ([]*models.MessageAction, error) {
	return scanJSON[models.MessageAction](s, orgScope(orgID, "ma"))
}
