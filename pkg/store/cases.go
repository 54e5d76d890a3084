package store

import (
	"errors"
	"strings"

	"github.com/praekelt/helpdesk/pkg/models"
)

// SaveCase upserts a case together with its contact index entry.
func (s *Store) SaveCase(c *models.Case) error {
	if s.db == nil {
		return ErrClosed
	}
	if c.ID == 0 {
		id, err := s.nextID("case")
		if err != nil {
			return err
		}
		c.ID = id
	}
	b := s.newBatch()
	b.putJSON(genCaseKey(c.OrgID, c.ID), c)
	b.putRaw(genContactCaseIndex(c.OrgID, c.ContactUUID, c.ID), []byte(padID(c.ID)))
	return b.commit()
}

func (s *Store) GetCase(orgID, id int64) (*models.Case, error) {
	var c models.Case
	if err := s.getJSON(genCaseKey(orgID, id), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCases returns all cases of the org in id order.
func (s *Store) ListCases(orgID int64) ([]*models.Case, error) {
	return scanJSON[models.Case](s, orgScope(orgID, "c"))
}

// CasesForContact returns the contact's cases in id order using the contact
// index.
func (s *Store) CasesForContact(orgID int64, contactUUID string) ([]*models.Case, error) {
	var ids []int64
	err := s.scan(contactCasePrefix(orgID, contactUUID), func(key string, value []byte) error {
		id, err := parsePaddedID(strings.TrimSpace(string(value)))
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*models.Case, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCase(orgID, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// AddCaseActions appends actions atomically, assigning ids in slice order.
func (s *Store) AddCaseActions(actions ...*models.CaseAction) error {
	if s.db == nil {
		return ErrClosed
	}
	b := s.newBatch()
	for _, a := range actions {
		id, err := s.nextID("case_action")
		if err != nil {
			b.b.Close()
			return err
		}
		a.ID = id
		b.putJSON(genCaseActionKey(a.OrgID, a.CaseID, a.ID), a)
	}
	return b.commit()
}

// ListCaseActions returns a case's actions in insertion order.
func (s *Store) ListCaseActions(orgID, caseID int64) ([]*models.CaseAction, error) {
	return scanJSON[models.CaseAction](s, caseActionPrefix(orgID, caseID))
}

func (s *Store) AddCaseEvent(e *models.CaseEvent) error {
	id, err := s.nextID("case_event")
	if err != nil {
		return err
	}
	e.ID = id
	return s.putJSON(genCaseEventKey(e.OrgID, e.CaseID, e.ID), e)
}

// ListCaseEvents returns a case's events in insertion order.
func (s *Store) ListCaseEvents(orgID, caseID int64) ([]*models.CaseEvent, error) {
	return scanJSON[models.CaseEvent](s, caseEventPrefix(orgID, caseID))
}
