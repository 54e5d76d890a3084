package store

import (
	"strings"

	"github.com/praekelt/helpdesk/pkg/models"
)

// SaveOutgoing stores a new broadcast record and indexes it by broadcast id.
func (s *Store) SaveOutgoing(o *models.Outgoing) error {
	if s.db == nil {
		return ErrClosed
	}
	if o.ID == 0 {
		id, err := s.nextID("outgoing")
		if err != nil {
			return err
		}
		o.ID = id
	}
	b := s.newBatch()
	b.putJSON(genOutgoingKey(o.OrgID, o.ID), o)
	b.putRaw(genBroadcastIndex(o.OrgID, o.BroadcastID), []byte(padID(o.ID)))
	return b.commit()
}

func (s *Store) ListOutgoing(orgID int64) ([]*models.Outgoing, error) {
	return scanJSON[models.Outgoing](s, orgScope(orgID, "out"))
}

// OutgoingForCase returns the replies sent on a case, oldest first.
func (s *Store) OutgoingForCase(orgID, caseID int64) ([]*models.Outgoing, error) {
	all, err := s.ListOutgoing(orgID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, o := range all {
		if o.CaseID == caseID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) OutgoingByBroadcast(orgID, broadcastID int64) (*models.Outgoing, error) {
	raw, err := s.getRaw(genBroadcastIndex(orgID, broadcastID))
	if err != nil {
		return nil, err
	}
	id, err := parsePaddedID(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, err
	}
	var o models.Outgoing
	if err := s.getJSON(genOutgoingKey(orgID, id), &o); err != nil {
		return nil, err
	}
	return &o, nil
}
