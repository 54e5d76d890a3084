package store

import "github.com/praekelt/helpdesk/pkg/models"

func (s *Store) SaveLabel(l *models.Label) error {
	if l.ID == 0 {
		id, err := s.nextID("label")
		if err != nil {
			return err
		}
		l.ID = id
	}
	return s.putJSON(genLabelKey(l.OrgID, l.ID), l)
}

func (s *Store) GetLabel(orgID, id int64) (*models.Label, error) {
	var l models.Label
	if err := s.getJSON(genLabelKey(orgID, id), &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLabels returns every label of the org, including released ones.
func (s *Store) ListLabels(orgID int64) ([]*models.Label, error) {
	return scanJSON[models.Label](s, orgScope(orgID, "l"))
}
