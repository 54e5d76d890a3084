// Package labeller runs the unsolicited message task: new inbox messages are
// either attached to the contact's open case or labelled by keyword.
package labeller

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/praekelt/helpdesk/pkg/cases"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/metrics"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
	"github.com/praekelt/helpdesk/pkg/utils"
)

const DefaultLookback = time.Hour

type Store interface {
	ListOrgs() ([]*models.Org, error)
	ListLabels(orgID int64) ([]*models.Label, error)
}

// CaseFinder is the part of the case engine the task needs.
type CaseFinder interface {
	GetOpenForContactOn(orgID int64, contactUUID string, t time.Time) (*models.Case, error)
	ReplyEvent(ctx context.Context, c *models.Case, msg gateway.Message) error
}

var _ CaseFinder = (*cases.Engine)(nil)

type Runner struct {
	store    Store
	gateways gateway.Provider
	cases    CaseFinder
	tracker  *orgs.Tracker
	lookback time.Duration
	now      func() time.Time
}

func NewRunner(s Store, gateways gateway.Provider, finder CaseFinder, tracker *orgs.Tracker, lookback time.Duration, now func() time.Time) *Runner {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Runner{store: s, gateways: gateways, cases: finder, tracker: tracker, lookback: lookback, now: now}
}

// Counts is stored as the org's task result.
type Counts struct {
	Messages int `json:"messages"`
	Labelled int `json:"labelled"`
}

type Result struct {
	Counts Counts    `json:"counts"`
	Time   time.Time `json:"time"`
}

// RunAll processes every org. One org failing does not stop the others; the
// first error is returned.
func (r *Runner) RunAll(ctx context.Context) (map[int64]*Result, error) {
	all, err := r.store.ListOrgs()
	if err != nil {
		return nil, err
	}
	results := make(map[int64]*Result, len(all))
	var firstErr error
	for _, org := range all {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.Run(ctx, org)
		if err != nil {
			logger.Error("labeller_org_failed", "org", org.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results[org.ID] = res
	}
	return results, firstErr
}

// Run processes the org's unsolicited messages received since the last run.
func (r *Runner) Run(ctx context.Context, org *models.Org) (*Result, error) {
	started := time.Now()
	res, err := r.run(ctx, org)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.LabellerRuns.WithLabelValues(outcome).Inc()
	if err == nil {
		logger.Info("labeller_run_complete", "org", org.ID, "messages", res.Counts.Messages, "labelled", res.Counts.Labelled, "took", time.Since(started))
	}
	return res, err
}

func (r *Runner) run(ctx context.Context, org *models.Org) (*Result, error) {
	gw, err := r.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}
	labels, err := r.activeLabels(org.ID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	after, err := r.tracker.LastMessageTime(ctx, org.ID, false)
	if err != nil {
		return nil, err
	}
	if after.IsZero() {
		after = now.Add(-r.lookback)
	} else {
		// the gateway treats after as inclusive
		after = after.Add(time.Microsecond)
	}

	msgs, err := gw.GetMessages(ctx, gateway.MessageQuery{
		Direction: gateway.DirectionIncoming,
		Archived:  gateway.Bool(false),
		After:     after,
		Before:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch unsolicited messages: %w", err)
	}

	var (
		toArchive    []int64
		replies      []caseReply
		byLabel      = map[int64][]int64{}
		newest       time.Time
		newestLabels time.Time
		labelled     int
	)
	for _, msg := range msgs {
		newest = utils.SafeMaxTime(newest, msg.CreatedOn)

		c, err := r.cases.GetOpenForContactOn(org.ID, msg.Contact, msg.CreatedOn)
		if err != nil {
			return nil, err
		}
		if c != nil {
			toArchive = append(toArchive, msg.ID)
			replies = append(replies, caseReply{c, msg})
			newestLabels = utils.SafeMaxTime(newestLabels, msg.CreatedOn)
			metrics.LabellerMessages.WithLabelValues("case_reply").Inc()
			continue
		}

		matched := false
		for _, l := range labels {
			if utils.MatchKeywords(msg.Text, l.Keywords) {
				byLabel[l.ID] = append(byLabel[l.ID], msg.ID)
				matched = true
			}
		}
		if matched {
			labelled++
			newestLabels = utils.SafeMaxTime(newestLabels, msg.CreatedOn)
			metrics.LabellerMessages.WithLabelValues("labelled").Inc()
		} else {
			metrics.LabellerMessages.WithLabelValues("unmatched").Inc()
		}
	}

	for _, l := range labels {
		ids := byLabel[l.ID]
		if len(ids) == 0 {
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		if err := gw.LabelMessages(ctx, ids, gateway.LabelRef{UUID: l.UUID}); err != nil {
			return nil, fmt.Errorf("label messages with %s: %w", l.Name, err)
		}
	}
	if len(toArchive) > 0 {
		if err := gw.ArchiveMessages(ctx, toArchive); err != nil {
			return nil, fmt.Errorf("archive case replies: %w", err)
		}
	}
	// reply events are written once the gateway calls succeed, otherwise a
	// retried run would record the same reply twice
	for _, rp := range replies {
		if err := r.cases.ReplyEvent(ctx, rp.c, rp.msg); err != nil {
			return nil, err
		}
	}

	if !newest.IsZero() {
		if err := r.tracker.RecordMessageTime(ctx, org.ID, newest, false); err != nil {
			return nil, err
		}
	}
	if !newestLabels.IsZero() {
		if err := r.tracker.RecordMessageTime(ctx, org.ID, newestLabels, true); err != nil {
			return nil, err
		}
	}

	res := &Result{Counts: Counts{Messages: len(msgs), Labelled: labelled}, Time: now}
	if err := r.tracker.SetTaskResult(ctx, org.ID, orgs.TaskLabelMessages, res); err != nil {
		return nil, err
	}
	return res, nil
}

type caseReply struct {
	c   *models.Case
	msg gateway.Message
}

func (r *Runner) activeLabels(orgID int64) ([]*models.Label, error) {
	all, err := r.store.ListLabels(orgID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, l := range all {
		if l.Active && len(l.Keywords) > 0 {
			out = append(out, l)
		}
	}
	return out, nil
}
