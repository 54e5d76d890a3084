// Package outgoing sends broadcasts through the gateway on behalf of users
// and keeps a local record of each one.
package outgoing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/praekelt/helpdesk/pkg/events"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
)

var ErrNothingToSend = errors.New("nothing to send")

type Store interface {
	SaveOutgoing(o *models.Outgoing) error
	ListOutgoing(orgID int64) ([]*models.Outgoing, error)
}

type Service struct {
	store    Store
	gateways gateway.Provider
	tracker  *orgs.Tracker
	events   events.Publisher
}

func NewService(s Store, gateways gateway.Provider, tracker *orgs.Tracker, pub events.Publisher) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{store: s, gateways: gateways, tracker: tracker, events: pub}
}

// Create broadcasts text to the urns and contacts. The broadcast advances the
// org's labelled watermark so timelines and the inbox look for the new
// message. c is nil for bulk replies.
func (s *Service) Create(ctx context.Context, org *models.Org, user *models.User, activity models.Activity, text string, urns, contacts []string, c *models.Case) (*models.Outgoing, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty message text", ErrNothingToSend)
	}
	if len(urns)+len(contacts) == 0 {
		return nil, fmt.Errorf("%w: no recipients", ErrNothingToSend)
	}
	gw, err := s.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}
	b, err := gw.CreateBroadcast(ctx, text, urns, contacts)
	if err != nil {
		return nil, fmt.Errorf("create broadcast: %w", err)
	}

	o := &models.Outgoing{
		OrgID:          org.ID,
		Activity:       activity,
		BroadcastID:    b.ID,
		RecipientCount: len(urns) + len(contacts),
		CreatedOn:      b.CreatedOn.UTC(),
	}
	if user != nil {
		o.CreatedBy = user.ID
	}
	if c != nil {
		o.CaseID = c.ID
	}
	if err := s.store.SaveOutgoing(o); err != nil {
		return nil, err
	}
	if err := s.tracker.RecordMessageTime(ctx, org.ID, o.CreatedOn, true); err != nil {
		logger.Warn("watermark_update_failed", "org", org.ID, "error", err)
	}
	logger.Info("outgoing_sent", "org", org.ID, "broadcast", b.ID, "recipients", o.RecipientCount, "case", o.CaseID)

	events.Emit(ctx, s.events, events.Event{
		Type:    events.OutgoingSent,
		OrgID:   org.ID,
		CaseID:  o.CaseID,
		UserID:  o.CreatedBy,
		Payload: map[string]any{"broadcast": b.ID, "activity": string(activity), "recipients": o.RecipientCount},
	})
	return o, nil
}

// SenderIndex maps broadcast ids to the user who sent them.
func (s *Service) SenderIndex(orgID int64) (map[int64]int64, error) {
	all, err := s.store.ListOutgoing(orgID)
	if err != nil {
		return nil, err
	}
	idx := make(map[int64]int64, len(all))
	for _, o := range all {
		idx[o.BroadcastID] = o.CreatedBy
	}
	return idx, nil
}
