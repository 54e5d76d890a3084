package messages

import (
	"context"
	"fmt"
	"time"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
)

type View string

const (
	ViewInbox    View = "inbox"
	ViewFlagged  View = "flagged"
	ViewArchived View = "archived"
)

func ParseView(s string) (View, error) {
	switch View(s) {
	case "", ViewInbox:
		return ViewInbox, nil
	case ViewFlagged, ViewArchived:
		return View(s), nil
	}
	return "", fmt.Errorf("unknown message view %q", s)
}

// SearchQuery selects inbox messages. A zero After asks for one page of
// existing messages; otherwise the search polls for messages newer than
// After.
type SearchQuery struct {
	View     View
	Text     string
	LabelID  int64
	Contacts []string
	Groups   []string
	After    time.Time
	Before   time.Time
	Page     int
}

type SearchPage struct {
	Results []Item `json:"results"`
	HasMore bool   `json:"has_more"`
}

// Search queries the gateway for messages under the labels visible to the
// user. A poll skips the gateway unless the labelling task or a send recorded
// a labelled message inside (After, Before].
func (s *Service) Search(ctx context.Context, org *models.Org, user *models.User, q SearchQuery) (*SearchPage, error) {
	empty := &SearchPage{Results: []Item{}}
	if q.Before.IsZero() {
		q.Before = s.now()
	}

	visible, err := s.labels.GetAll(org.ID, user)
	if err != nil {
		return nil, err
	}
	var labels []string
	for _, l := range visible {
		if q.LabelID == 0 || l.ID == q.LabelID {
			labels = append(labels, l.Name)
		}
	}
	if len(labels) == 0 {
		return empty, nil
	}

	if !q.After.IsZero() {
		wm, err := s.tracker.LastMessageTime(ctx, org.ID, true)
		if err != nil {
			return nil, err
		}
		if wm.IsZero() || !wm.After(q.After) || wm.After(q.Before) {
			logger.Debug("message_search_skipped", "org", org.ID, "after", q.After)
			return empty, nil
		}
	}

	query := gateway.MessageQuery{
		Contacts:  q.Contacts,
		Groups:    q.Groups,
		Labels:    labels,
		Text:      q.Text,
		Direction: gateway.DirectionIncoming,
		Archived:  gateway.Bool(q.View == ViewArchived),
		After:     q.After,
		Before:    q.Before,
	}
	var pager *gateway.Pager
	if q.After.IsZero() {
		pager = &gateway.Pager{Page: q.Page}
		query.Pager = pager
	}

	gw, err := s.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}
	msgs, err := gw.GetMessages(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	if q.View == ViewFlagged {
		kept := msgs[:0]
		for _, m := range msgs {
			if m.HasLabel(gateway.FlaggedLabel) {
				kept = append(kept, m)
			}
		}
		msgs = kept
	}

	items, err := s.AnnotateWithSender(org.ID, msgs)
	if err != nil {
		return nil, err
	}
	page := &SearchPage{Results: items}
	if pager != nil {
		page.HasMore = pager.HasMore
	}
	return page, nil
}
