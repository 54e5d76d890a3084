package store

import "github.com/praekelt/helpdesk/pkg/models"

// SaveOrg upserts an org. Orgs carry externally assigned ids.
func (s *Store) SaveOrg(o *models.Org) error {
	return s.putJSON(genOrgKey(o.ID), o)
}

func (s *Store) GetOrg(id int64) (*models.Org, error) {
	var o models.Org
	if err := s.getJSON(genOrgKey(id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOrgs() ([]*models.Org, error) {
	return scanJSON[models.Org](s, "org:")
}
