package orgs

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praekelt/helpdesk/pkg/cache"
	"github.com/praekelt/helpdesk/pkg/models"
)

func TestConfigAccessorsNeverNil(t *testing.T) {
	o := &models.Org{ID: 1}
	assert.Equal(t, []string{}, ContactFields(o))
	assert.Equal(t, []string{}, SuspendGroups(o))
	assert.Equal(t, "", BannerText(nil))

	o.SuspendGroups = []string{"G-021", "G-022"}
	o.ContactFields = []string{"age", "gender"}
	o.BannerText = "Howdy"
	assert.Equal(t, []string{"G-021", "G-022"}, SuspendGroups(o))
	assert.Equal(t, []string{"age", "gender"}, ContactFields(o))
	assert.Equal(t, "Howdy", BannerText(o))
}

func TestRecordMessageTimeIsMonotonic(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory()
	tr := NewTracker(c)

	d1 := time.Date(2014, 1, 2, 6, 0, 0, 0, time.UTC)
	d2 := d1.Add(time.Hour)

	last, err := tr.LastMessageTime(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, last.IsZero())

	require.NoError(t, tr.RecordMessageTime(ctx, 1, d2, true))
	require.NoError(t, tr.RecordMessageTime(ctx, 1, d1, true)) // older, ignored

	last, err = tr.LastMessageTime(ctx, 1, true)
	require.NoError(t, err)
	assert.True(t, last.Equal(d2))

	// the unlabelled watermark and other orgs are independent
	last, _ = tr.LastMessageTime(ctx, 1, false)
	assert.True(t, last.IsZero())
	last, _ = tr.LastMessageTime(ctx, 2, true)
	assert.True(t, last.IsZero())

	raw, ok, _ := c.Get(ctx, "org:1:last_labelled_time")
	require.True(t, ok)
	assert.Equal(t, "2014-01-02T07:00:00.000000Z", raw)
}

func TestRecordMessageTimeAcrossProcesses(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	// the server and helpdeskctl each hold their own client
	newTracker := func() *Tracker {
		c, err := cache.NewRedis(ctx, cache.RedisOptions{Addr: mr.Addr()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return NewTracker(c)
	}
	server, ctl := newTracker(), newTracker()

	d1 := time.Date(2014, 1, 2, 6, 0, 0, 0, time.UTC)
	d2 := d1.Add(time.Hour)

	require.NoError(t, server.RecordMessageTime(ctx, 1, d2, false))
	require.NoError(t, ctl.RecordMessageTime(ctx, 1, d1, false))

	last, err := server.LastMessageTime(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, last.Equal(d2))
	assert.Equal(t, CacheTTL, mr.TTL("org:1:last_unlabelled_time"))

	require.NoError(t, ctl.RecordMessageTime(ctx, 1, d2.Add(time.Minute), false))
	last, err = server.LastMessageTime(ctx, 1, false)
	require.NoError(t, err)
	assert.True(t, last.Equal(d2.Add(time.Minute)))
}

func TestTaskResult(t *testing.T) {
	ctx := context.Background()
	tr := NewTracker(cache.NewMemory())

	var out struct {
		Counts map[string]int `json:"counts"`
	}
	found, err := tr.TaskResult(ctx, 1, TaskLabelMessages, &out)
	require.NoError(t, err)
	assert.False(t, found)

	in := map[string]any{"counts": map[string]int{"messages": 5, "labelled": 3}}
	require.NoError(t, tr.SetTaskResult(ctx, 1, TaskLabelMessages, in))

	found, err = tr.TaskResult(ctx, 1, TaskLabelMessages, &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 5, out.Counts["messages"])
	assert.Equal(t, 3, out.Counts["labelled"])
}
