// Package timeline merges a case's local action log with the contact's
// gateway messages into one feed, newest first, paged by a microsecond cursor.
package timeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/metrics"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
	"github.com/praekelt/helpdesk/pkg/utils"
)

const (
	TypeMessage = "M"
	TypeAction  = "A"
)

type Entry struct {
	Time time.Time `json:"time"`
	Type string    `json:"type"`
	Item any       `json:"item"`
}

// Page is one timeline response. MaxTime, in microseconds, is the after
// cursor for the next request.
type Page struct {
	Results []Entry `json:"results"`
	MaxTime int64   `json:"max_time"`
}

type Store interface {
	ListCaseActions(orgID, caseID int64) ([]*models.CaseAction, error)
	ListCaseEvents(orgID, caseID int64) ([]*models.CaseEvent, error)
	OutgoingForCase(orgID, caseID int64) ([]*models.Outgoing, error)
}

type Assembler struct {
	store    Store
	gateways gateway.Provider
	tracker  *orgs.Tracker
	now      func() time.Time
}

func NewAssembler(s Store, gateways gateway.Provider, tracker *orgs.Tracker, now func() time.Time) *Assembler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Assembler{store: s, gateways: gateways, tracker: tracker, now: now}
}

func inWindow(t, after, before time.Time) bool {
	return t.After(after) && !t.After(before)
}

// newActivity reports whether anything in (after, before] suggests the
// gateway holds messages for the case that the previous page did not.
func (a *Assembler) newActivity(ctx context.Context, c *models.Case, after, before time.Time) (bool, error) {
	evs, err := a.store.ListCaseEvents(c.OrgID, c.ID)
	if err != nil {
		return false, err
	}
	for _, ev := range evs {
		if inWindow(ev.CreatedOn, after, before) {
			return true, nil
		}
	}
	outs, err := a.store.OutgoingForCase(c.OrgID, c.ID)
	if err != nil {
		return false, err
	}
	for _, o := range outs {
		if inWindow(o.CreatedOn, after, before) {
			return true, nil
		}
	}
	wm, err := a.tracker.LastMessageTime(ctx, c.OrgID, true)
	if err != nil {
		return false, err
	}
	return !wm.IsZero() && inWindow(wm, after, before), nil
}

// Assemble returns the timeline entries between after and before. A zero after
// requests the whole timeline starting at the case's originating message, a
// zero before means now.
func (a *Assembler) Assemble(ctx context.Context, c *models.Case, after, before time.Time) (*Page, error) {
	if before.IsZero() {
		before = a.now()
	}
	before = before.UTC().Truncate(time.Microsecond)
	initial := after.IsZero()
	if initial {
		after = c.MessageOn
	}

	fetch := initial
	if !fetch {
		var err error
		if fetch, err = a.newActivity(ctx, c, after, before); err != nil {
			return nil, err
		}
	}

	var msgs []gateway.Message
	if fetch {
		gw, err := a.gateways.ForOrg(c.OrgID)
		if err != nil {
			return nil, err
		}
		msgs, err = gw.GetMessages(ctx, gateway.MessageQuery{
			Contacts: []string{c.ContactUUID},
			After:    after,
			Before:   before,
		})
		if err != nil {
			return nil, fmt.Errorf("timeline messages for case %d: %w", c.ID, err)
		}
		metrics.TimelineRequests.WithLabelValues("gateway").Inc()
	} else {
		metrics.TimelineRequests.WithLabelValues("local").Inc()
	}

	actions, err := a.store.ListCaseActions(c.OrgID, c.ID)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(msgs)+len(actions))
	for _, m := range msgs {
		entries = append(entries, Entry{Time: m.CreatedOn, Type: TypeMessage, Item: m})
	}
	for i := len(actions) - 1; i >= 0; i-- {
		act := actions[i]
		if act.CreatedOn.After(before) {
			continue
		}
		if act.CreatedOn.Before(after) || (!initial && act.CreatedOn.Equal(after)) {
			continue
		}
		entries = append(entries, Entry{Time: act.CreatedOn, Type: TypeAction, Item: act})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Time.After(entries[j].Time) })

	logger.Debug("timeline_assembled", "case", c.ID, "messages", len(msgs), "entries", len(entries), "fetched", fetch)
	return &Page{Results: entries, MaxTime: utils.DatetimeToMicroseconds(before)}, nil
}
