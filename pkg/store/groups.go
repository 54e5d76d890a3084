package store

import "github.com/praekelt/helpdesk/pkg/models"

func (s *Store) SaveGroup(g *models.Group) error {
	if g.ID == 0 {
		id, err := s.nextID("group")
		if err != nil {
			return err
		}
		g.ID = id
	}
	return s.putJSON(genGroupKey(g.OrgID, g.UUID), g)
}

func (s *Store) GetGroup(orgID int64, uuid string) (*models.Group, error) {
	var g models.Group
	if err := s.getJSON(genGroupKey(orgID, uuid), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGroups returns every group of the org ordered by uuid.
func (s *Store) ListGroups(orgID int64) ([]*models.Group, error) {
	return scanJSON[models.Group](s, orgScope(orgID, "g"))
}
