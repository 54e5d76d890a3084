package labeller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praekelt/helpdesk/internal/testfixture"
	"github.com/praekelt/helpdesk/pkg/cache"
	"github.com/praekelt/helpdesk/pkg/cases"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
)

func at(hour int) time.Time {
	return time.Date(2014, 1, 1, hour, 0, 0, 0, time.UTC)
}

func newRunner(t *testing.T) (*testfixture.Fixture, *Runner, *orgs.Tracker) {
	f := testfixture.New(t)
	tracker := orgs.NewTracker(cache.NewMemory())
	engine := cases.NewEngine(f.Store, f.Gateway, cases.Options{Now: f.Clock.Now})
	return f, NewRunner(f.Store, f.Gateway, engine, tracker, 24*time.Hour, f.Clock.Now), tracker
}

func TestRunLabelsAndArchivesCaseReplies(t *testing.T) {
	f, r, tracker := newRunner(t)
	ctx := context.Background()

	f.Gateway.AddMessage(gateway.Message{ID: 101, Contact: "C-001", Direction: "I", Text: "What is aids?", CreatedOn: at(7)})
	f.Gateway.AddMessage(gateway.Message{ID: 102, Contact: "C-002", Direction: "I", Text: "Can I catch Hiv?", CreatedOn: at(8)})
	f.Gateway.AddMessage(gateway.Message{ID: 103, Contact: "C-003", Direction: "I", Text: "I think I'm pregnant", CreatedOn: at(9)})
	f.Gateway.AddMessage(gateway.Message{ID: 104, Contact: "C-004", Direction: "I", Text: "Php is amaze", CreatedOn: at(10)})
	f.Gateway.AddMessage(gateway.Message{ID: 105, Contact: "C-005", Direction: "I", Text: "Thanks for the pregnancy/HIV info", CreatedOn: at(11)})

	// contact 5 has a case open that day
	c := &models.Case{OrgID: f.Unicef.ID, ContactUUID: "C-005", AssigneeID: f.MOH.ID, MessageID: 99, MessageOn: at(5), OpenedOn: at(5)}
	require.NoError(t, f.Store.SaveCase(c))

	f.Clock.Set(at(12))
	res, err := r.Run(ctx, f.Unicef)
	require.NoError(t, err)
	assert.Equal(t, Counts{Messages: 5, Labelled: 3}, res.Counts)

	labelCalls := f.Gateway.Calls("label_messages")
	require.Len(t, labelCalls, 2)
	assert.Equal(t, "L-001", labelCalls[0].Label.UUID)
	assert.Equal(t, []int64{101, 102}, labelCalls[0].Messages)
	assert.Equal(t, "L-002", labelCalls[1].Label.UUID)
	assert.Equal(t, []int64{103}, labelCalls[1].Messages)

	archiveCalls := f.Gateway.Calls("archive_messages")
	require.Len(t, archiveCalls, 1)
	assert.Equal(t, []int64{105}, archiveCalls[0].Messages)

	evs, err := f.Store.ListCaseEvents(f.Unicef.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventReply, evs[0].Event)
	assert.True(t, evs[0].CreatedOn.Equal(at(11)))

	var stored Result
	ok, err := tracker.TaskResult(ctx, f.Unicef.ID, orgs.TaskLabelMessages, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, stored.Counts.Messages)
	assert.Equal(t, 3, stored.Counts.Labelled)

	unlabelled, err := tracker.LastMessageTime(ctx, f.Unicef.ID, false)
	require.NoError(t, err)
	assert.True(t, unlabelled.Equal(at(11)))
	labelled, err := tracker.LastMessageTime(ctx, f.Unicef.ID, true)
	require.NoError(t, err)
	assert.True(t, labelled.Equal(at(11)))
}

func TestRunResumesFromWatermark(t *testing.T) {
	f, r, _ := newRunner(t)
	ctx := context.Background()
	f.Gateway.AddMessage(gateway.Message{ID: 101, Contact: "C-001", Direction: "I", Text: "aids", CreatedOn: at(7)})

	f.Clock.Set(at(8))
	_, err := r.Run(ctx, f.Unicef)
	require.NoError(t, err)
	f.Gateway.Reset()

	f.Clock.Set(at(9))
	res, err := r.Run(ctx, f.Unicef)
	require.NoError(t, err)
	assert.Zero(t, res.Counts.Messages)
	assert.Empty(t, f.Gateway.Calls("label_messages"))

	q := f.Gateway.Calls("get_messages")[0].Query
	assert.True(t, q.After.After(at(7)))
	assert.True(t, q.Before.Equal(at(9)))
	require.NotNil(t, q.Archived)
	assert.False(t, *q.Archived)
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	f, r, _ := newRunner(t)
	f.Gateway.Fail = map[string]error{"get_messages": errors.New("gateway down")}

	results, err := r.RunAll(context.Background())
	require.Error(t, err)
	assert.Empty(t, results)
	assert.Len(t, f.Gateway.Calls("get_messages"), 2)
}

func TestFileLease(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLease(dir)

	ok, err := l.Acquire("a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Renew("a", time.Minute))
	assert.ErrorIs(t, l.Renew("b", time.Minute), ErrNotOwner)
	assert.ErrorIs(t, l.Release("b"), ErrNotOwner)
	require.NoError(t, l.Release("a"))

	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRunRetryRecordsReplyOnce(t *testing.T) {
	f, r, _ := newRunner(t)
	ctx := context.Background()

	f.Gateway.AddMessage(gateway.Message{ID: 105, Contact: "C-005", Direction: "I", Text: "Thanks", CreatedOn: at(11)})
	c := &models.Case{OrgID: f.Unicef.ID, ContactUUID: "C-005", AssigneeID: f.MOH.ID, MessageID: 99, MessageOn: at(5), OpenedOn: at(5)}
	require.NoError(t, f.Store.SaveCase(c))
	f.Clock.Set(at(12))

	f.Gateway.Fail["archive_messages"] = errors.New("gateway down")
	_, err := r.Run(ctx, f.Unicef)
	require.Error(t, err)

	evs, err := f.Store.ListCaseEvents(f.Unicef.ID, c.ID)
	require.NoError(t, err)
	assert.Empty(t, evs)

	delete(f.Gateway.Fail, "archive_messages")
	_, err = r.Run(ctx, f.Unicef)
	require.NoError(t, err)

	evs, err = f.Store.ListCaseEvents(f.Unicef.ID, c.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, models.EventReply, evs[0].Event)
	assert.Len(t, f.Gateway.Calls("archive_messages"), 2)
}

func TestFileLeaseTakesOverExpired(t *testing.T) {
	l := NewFileLease(t.TempDir())
	now := time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, err := l.Acquire("a", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = l.Acquire("b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, l.Release("a"), ErrNotOwner)
}

func TestRunLeasedSkipsWhenHeld(t *testing.T) {
	f, r, _ := newRunner(t)
	lease := NewFileLease(t.TempDir())
	ok, err := lease.Acquire("other", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, RunLeased(context.Background(), r, lease, time.Minute))
	assert.Empty(t, f.Gateway.Calls())

	require.NoError(t, lease.Release("other"))
	require.NoError(t, RunLeased(context.Background(), r, lease, time.Minute))
	assert.Len(t, f.Gateway.Calls("get_messages"), 2)
}

func TestStartRejectsBadCron(t *testing.T) {
	_, r, _ := newRunner(t)
	_, err := Start(context.Background(), r, SchedulerOptions{Cron: "not a cron", LockDir: t.TempDir()})
	assert.Error(t, err)
}
