package store

import "github.com/praekelt/helpdesk/pkg/models"

func (s *Store) SavePartner(p *models.Partner) error {
	if p.ID == 0 {
		id, err := s.nextID("partner")
		if err != nil {
			return err
		}
		p.ID = id
	}
	return s.putJSON(genPartnerKey(p.OrgID, p.ID), p)
}

func (s *Store) GetPartner(orgID, id int64) (*models.Partner, error) {
	var p models.Partner
	if err := s.getJSON(genPartnerKey(orgID, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPartners returns active and inactive partners of the org.
func (s *Store) ListPartners(orgID int64) ([]*models.Partner, error) {
	return scanJSON[models.Partner](s, orgScope(orgID, "p"))
}
