// Package events publishes case lifecycle notifications to a message broker.
// Publishing is best effort: a failed publish is logged and counted but never
// fails the operation that produced it.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/metrics"
)

const (
	CaseOpened     = "case.opened"
	CaseClosed     = "case.closed"
	CaseReopened   = "case.reopened"
	CaseReassigned = "case.reassigned"
	CaseLabelled   = "case.labelled"
	CaseNoteAdded  = "case.note_added"
	CaseReplied    = "case.replied"
	OutgoingSent   = "outgoing.sent"
)

type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	OrgID   int64          `json:"org"`
	CaseID  int64          `json:"case,omitempty"`
	UserID  int64          `json:"user,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Time    time.Time      `json:"time"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Emit stamps the event id and time when unset and publishes it.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	if err := p.Publish(ctx, ev); err != nil {
		metrics.EventsPublished.WithLabelValues(ev.Type, "error").Inc()
		logger.Warn("event_publish_failed", "type", ev.Type, "org", ev.OrgID, "case", ev.CaseID, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types lists the recorded event types in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
