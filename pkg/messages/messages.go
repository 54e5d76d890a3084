// Package messages performs user actions on gateway messages (flagging,
// labelling, archiving), keeps their audit history and serves the inbox
// search.
package messages

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
)

type Store interface {
	AddMessageAction(a *models.MessageAction) error
	ListMessageActions(orgID int64) ([]*models.MessageAction, error)
	ListOutgoing(orgID int64) ([]*models.Outgoing, error)
}

// LabelLister returns the labels visible to a user.
type LabelLister interface {
	GetAll(orgID int64, user *models.User) ([]*models.Label, error)
}

type Service struct {
	store    Store
	gateways gateway.Provider
	labels   LabelLister
	tracker  *orgs.Tracker
	now      func() time.Time
}

func NewService(s Store, gateways gateway.Provider, labels LabelLister, tracker *orgs.Tracker, now func() time.Time) *Service {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{store: s, gateways: gateways, labels: labels, tracker: tracker, now: now}
}

// Item is a gateway message annotated with the user who sent it, if it was
// sent from here.
type Item struct {
	gateway.Message
	SenderID int64 `json:"sender,omitempty"`
}

// Apply performs a bulk action through the gateway and records it. label is
// required for MessageLabel and MessageUnlabel only.
func (s *Service) Apply(ctx context.Context, org *models.Org, user *models.User, kind models.MessageActionKind, ids []int64, label *models.Label) (*models.MessageAction, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s action: no messages", kind)
	}
	gw, err := s.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}

	switch kind {
	case models.MessageFlag:
		err = gw.LabelMessages(ctx, ids, gateway.LabelRef{Name: gateway.FlaggedLabel})
	case models.MessageUnflag:
		err = gw.UnlabelMessages(ctx, ids, gateway.LabelRef{Name: gateway.FlaggedLabel})
	case models.MessageLabel, models.MessageUnlabel:
		if label == nil {
			return nil, fmt.Errorf("%s action: label required", kind)
		}
		ref := gateway.LabelRef{UUID: label.UUID}
		if kind == models.MessageLabel {
			err = gw.LabelMessages(ctx, ids, ref)
		} else {
			err = gw.UnlabelMessages(ctx, ids, ref)
		}
	case models.MessageArchive:
		err = gw.ArchiveMessages(ctx, ids)
	case models.MessageRestore:
		err = gw.UnarchiveMessages(ctx, ids)
	default:
		return nil, fmt.Errorf("unknown message action %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%s messages: %w", kind, err)
	}

	action := &models.MessageAction{
		OrgID:      org.ID,
		Action:     kind,
		MessageIDs: ids,
		CreatedOn:  s.now(),
	}
	if user != nil {
		action.CreatedBy = user.ID
	}
	if label != nil {
		action.LabelID = label.ID
	}
	if err := s.store.AddMessageAction(action); err != nil {
		return nil, err
	}
	logger.Info("message_action", "org", org.ID, "action", string(kind), "messages", len(ids), "user", action.CreatedBy)
	return action, nil
}

func (s *Service) BulkFlag(ctx context.Context, org *models.Org, user *models.User, ids []int64) error {
	_, err := s.Apply(ctx, org, user, models.MessageFlag, ids, nil)
	return err
}

func (s *Service) BulkUnflag(ctx context.Context, org *models.Org, user *models.User, ids []int64) error {
	_, err := s.Apply(ctx, org, user, models.MessageUnflag, ids, nil)
	return err
}

func (s *Service) BulkLabel(ctx context.Context, org *models.Org, user *models.User, ids []int64, label *models.Label) error {
	_, err := s.Apply(ctx, org, user, models.MessageLabel, ids, label)
	return err
}

func (s *Service) BulkUnlabel(ctx context.Context, org *models.Org, user *models.User, ids []int64, label *models.Label) error {
	_, err := s.Apply(ctx, org, user, models.MessageUnlabel, ids, label)
	return err
}

func (s *Service) BulkArchive(ctx context.Context, org *models.Org, user *models.User, ids []int64) error {
	_, err := s.Apply(ctx, org, user, models.MessageArchive, ids, nil)
	return err
}

func (s *Service) BulkRestore(ctx context.Context, org *models.Org, user *models.User, ids []int64) error {
	_, err := s.Apply(ctx, org, user, models.MessageRestore, ids, nil)
	return err
}

// History returns the actions that touched a message, most recent first.
func (s *Service) History(orgID, messageID int64) ([]*models.MessageAction, error) {
	all, err := s.store.ListMessageActions(orgID)
	if err != nil {
		return nil, err
	}
	var out []*models.MessageAction
	for _, a := range all {
		if a.Mentions(messageID) {
			out = append(out, a)
		}
	}
	sortByIDDesc(out)
	return out, nil
}

// Relabel makes selected the message's labels among those visible to the
// user. Labels the user cannot see are left alone.
func (s *Service) Relabel(ctx context.Context, org *models.Org, user *models.User, msg *gateway.Message, selected []*models.Label) error {
	visible, err := s.labels.GetAll(org.ID, user)
	if err != nil {
		return err
	}
	want := make(map[int64]bool, len(selected))
	for _, l := range selected {
		want[l.ID] = true
	}
	ids := []int64{msg.ID}
	for _, l := range visible {
		has := msg.HasLabel(l.Name)
		switch {
		case want[l.ID] && !has:
			if err := s.BulkLabel(ctx, org, user, ids, l); err != nil {
				return err
			}
		case !want[l.ID] && has:
			if err := s.BulkUnlabel(ctx, org, user, ids, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// AnnotateWithSender wraps messages, setting the sender of those broadcast
// from here.
func (s *Service) AnnotateWithSender(orgID int64, msgs []gateway.Message) ([]Item, error) {
	outs, err := s.store.ListOutgoing(orgID)
	if err != nil {
		return nil, err
	}
	senders := make(map[int64]int64, len(outs))
	for _, o := range outs {
		senders[o.BroadcastID] = o.CreatedBy
	}
	items := make([]Item, len(msgs))
	for i, m := range msgs {
		items[i] = Item{Message: m}
		if m.BroadcastID != 0 {
			items[i].SenderID = senders[m.BroadcastID]
		}
	}
	return items, nil
}

func sortByIDDesc(actions []*models.MessageAction) {
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].ID > actions[j].ID })
}
