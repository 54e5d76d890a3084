package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praekelt/helpdesk/internal/testfixture"
	"github.com/praekelt/helpdesk/pkg/cache"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
	"github.com/praekelt/helpdesk/pkg/registry"
)

func newService(t *testing.T) (*testfixture.Fixture, *Service, *orgs.Tracker) {
	f := testfixture.New(t)
	tracker := orgs.NewTracker(cache.NewMemory())
	labels := registry.NewLabels(f.Store, f.Gateway)
	return f, NewService(f.Store, f.Gateway, labels, tracker, f.Clock.Now), tracker
}

func TestApplyRecordsAction(t *testing.T) {
	f, svc, _ := newService(t)
	ctx := context.Background()
	f.Gateway.AddMessage(gateway.Message{ID: 101, Direction: "I"})
	f.Gateway.AddMessage(gateway.Message{ID: 102, Direction: "I"})

	action, err := svc.Apply(ctx, f.Unicef, f.User1, models.MessageLabel, []int64{101, 102}, f.AIDS)
	require.NoError(t, err)
	assert.Equal(t, f.AIDS.ID, action.LabelID)
	assert.Equal(t, f.User1.ID, action.CreatedBy)

	calls := f.Gateway.Calls("label_messages")
	require.Len(t, calls, 1)
	assert.Equal(t, []int64{101, 102}, calls[0].Messages)
	assert.Equal(t, "L-001", calls[0].Label.UUID)

	m, _ := f.Gateway.Message(101)
	assert.Equal(t, []string{"AIDS"}, m.Labels)

	_, err = svc.Apply(ctx, f.Unicef, f.User1, models.MessageLabel, []int64{101}, nil)
	assert.Error(t, err)
	_, err = svc.Apply(ctx, f.Unicef, f.User1, models.MessageArchive, nil, nil)
	assert.Error(t, err)
}

func TestBulkActions(t *testing.T) {
	f, svc, _ := newService(t)
	ctx := context.Background()
	f.Gateway.AddMessage(gateway.Message{ID: 101, Direction: "I"})
	f.Gateway.AddMessage(gateway.Message{ID: 102, Direction: "I"})
	ids := []int64{101, 102}

	require.NoError(t, svc.BulkFlag(ctx, f.Unicef, f.User1, ids))
	m, _ := f.Gateway.Message(102)
	assert.True(t, m.HasLabel(gateway.FlaggedLabel))
	assert.Equal(t, gateway.FlaggedLabel, f.Gateway.Calls("label_messages")[0].Label.Name)

	require.NoError(t, svc.BulkUnflag(ctx, f.Unicef, f.User1, ids))
	m, _ = f.Gateway.Message(102)
	assert.False(t, m.HasLabel(gateway.FlaggedLabel))

	require.NoError(t, svc.BulkArchive(ctx, f.Unicef, f.User1, ids))
	m, _ = f.Gateway.Message(101)
	assert.True(t, m.Archived)

	require.NoError(t, svc.BulkRestore(ctx, f.Unicef, f.User1, ids))
	m, _ = f.Gateway.Message(101)
	assert.False(t, m.Archived)

	require.NoError(t, svc.BulkUnlabel(ctx, f.Unicef, f.User1, []int64{101}, f.Pregnancy))

	actions, err := f.Store.ListMessageActions(f.Unicef.ID)
	require.NoError(t, err)
	require.Len(t, actions, 5)
	kinds := []models.MessageActionKind{}
	for _, a := range actions {
		kinds = append(kinds, a.Action)
	}
	assert.Equal(t, []models.MessageActionKind{
		models.MessageFlag, models.MessageUnflag, models.MessageArchive, models.MessageRestore, models.MessageUnlabel,
	}, kinds)
}

func TestGatewayFailureRecordsNothing(t *testing.T) {
	f, svc, _ := newService(t)
	f.Gateway.Fail = map[string]error{"archive_messages": errors.New("boom")}

	err := svc.BulkArchive(context.Background(), f.Unicef, f.User1, []int64{101})
	require.Error(t, err)

	actions, err := f.Store.ListMessageActions(f.Unicef.ID)
	require.NoError(t, err)
	assert.Empty(t, actions)
}

func TestHistory(t *testing.T) {
	f, svc, _ := newService(t)
	ctx := context.Background()

	f.Clock.Set(testfixture.Date(1, 10))
	require.NoError(t, svc.BulkFlag(ctx, f.Unicef, f.User1, []int64{101, 102}))
	f.Clock.Set(testfixture.Date(1, 11))
	require.NoError(t, svc.BulkArchive(ctx, f.Unicef, f.User1, []int64{102}))
	f.Clock.Set(testfixture.Date(1, 12))
	require.NoError(t, svc.BulkLabel(ctx, f.Unicef, f.User2, []int64{101}, f.AIDS))

	history, err := svc.History(f.Unicef.ID, 101)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MessageLabel, history[0].Action)
	assert.Equal(t, models.MessageFlag, history[1].Action)

	history, err = svc.History(f.Unicef.ID, 102)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.MessageArchive, history[0].Action)

	history, err = svc.History(f.Nyaruka.ID, 101)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRelabel(t *testing.T) {
	f, svc, _ := newService(t)
	ctx := context.Background()
	f.Gateway.AddMessage(gateway.Message{ID: 101, Direction: "I", Labels: []string{"AIDS"}})
	msg, _ := f.Gateway.Message(101)

	// WHO can only see AIDS, so Pregnancy is not applied
	require.NoError(t, svc.Relabel(ctx, f.Unicef, f.User3, &msg, []*models.Label{f.Pregnancy}))
	msg, _ = f.Gateway.Message(101)
	assert.Empty(t, msg.Labels)
	assert.Empty(t, f.Gateway.Calls("label_messages"))
	require.Len(t, f.Gateway.Calls("unlabel_messages"), 1)
	f.Gateway.Reset()

	require.NoError(t, svc.Relabel(ctx, f.Unicef, f.User1, &msg, []*models.Label{f.AIDS, f.Pregnancy}))
	msg, _ = f.Gateway.Message(101)
	assert.ElementsMatch(t, []string{"AIDS", "Pregnancy"}, msg.Labels)
	assert.Len(t, f.Gateway.Calls("label_messages"), 2)
	f.Gateway.Reset()

	// already labelled, nothing to do
	require.NoError(t, svc.Relabel(ctx, f.Unicef, f.User1, &msg, []*models.Label{f.AIDS, f.Pregnancy}))
	assert.Empty(t, f.Gateway.Calls())
}

func TestAnnotateWithSender(t *testing.T) {
	f, svc, _ := newService(t)
	require.NoError(t, f.Store.SaveOutgoing(&models.Outgoing{
		OrgID: f.Unicef.ID, Activity: models.ActivityBulkReply, BroadcastID: 201, CreatedBy: f.User1.ID,
	}))

	items, err := svc.AnnotateWithSender(f.Unicef.ID, []gateway.Message{
		{ID: 101, BroadcastID: 201, Direction: "O"},
		{ID: 102, BroadcastID: 202, Direction: "O"},
		{ID: 103, Direction: "I"},
	})
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, f.User1.ID, items[0].SenderID)
	assert.Zero(t, items[1].SenderID)
	assert.Zero(t, items[2].SenderID)
	assert.Equal(t, int64(103), items[2].ID)
}

func TestSearch(t *testing.T) {
	f, svc, tracker := newService(t)
	ctx := context.Background()
	f.Gateway.AddMessage(gateway.Message{ID: 101, Direction: "I", Text: "Hi", Labels: []string{"AIDS"}, CreatedOn: testfixture.Date(1, 10)})
	f.Gateway.AddMessage(gateway.Message{ID: 102, Direction: "I", Text: "Pregnant?", Labels: []string{"Pregnancy", "Flagged"}, CreatedOn: testfixture.Date(1, 11)})
	f.Gateway.AddMessage(gateway.Message{ID: 103, Direction: "I", Text: "Old", Labels: []string{"AIDS"}, Archived: true, CreatedOn: testfixture.Date(1, 12)})
	f.Clock.Set(testfixture.Date(2, 0))

	page, err := svc.Search(ctx, f.Unicef, f.User1, SearchQuery{View: ViewInbox, Page: 1})
	require.NoError(t, err)
	require.Len(t, page.Results, 2)
	assert.Equal(t, int64(102), page.Results[0].ID)
	assert.False(t, page.HasMore)

	call := f.Gateway.Calls("get_messages")[0]
	assert.Equal(t, []string{"AIDS", "Pregnancy"}, call.Query.Labels)
	assert.Equal(t, gateway.DirectionIncoming, call.Query.Direction)
	require.NotNil(t, call.Query.Archived)
	assert.False(t, *call.Query.Archived)
	require.NotNil(t, call.Query.Pager)
	assert.Equal(t, 1, call.Query.Pager.Page)
	f.Gateway.Reset()

	// WHO sees only AIDS
	page, err = svc.Search(ctx, f.Unicef, f.User3, SearchQuery{View: ViewInbox})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(101), page.Results[0].ID)

	page, err = svc.Search(ctx, f.Unicef, f.User1, SearchQuery{View: ViewFlagged})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(102), page.Results[0].ID)

	page, err = svc.Search(ctx, f.Unicef, f.User1, SearchQuery{View: ViewArchived})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(103), page.Results[0].ID)

	page, err = svc.Search(ctx, f.Unicef, f.User1, SearchQuery{View: ViewInbox, LabelID: f.Pregnancy.ID})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(102), page.Results[0].ID)
	f.Gateway.Reset()

	// polling with no newly labelled messages skips the gateway
	after := testfixture.Date(1, 12)
	page, err = svc.Search(ctx, f.Unicef, f.User1, SearchQuery{View: ViewInbox, After: after})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Empty(t, f.Gateway.Calls("get_messages"))

	require.NoError(t, tracker.RecordMessageTime(ctx, f.Unicef.ID, testfixture.Date(1, 13), true))
	f.Gateway.AddMessage(gateway.Message{ID: 104, Direction: "I", Text: "New", Labels: []string{"AIDS"}, CreatedOn: testfixture.Date(1, 13)})
	page, err = svc.Search(ctx, f.Unicef, f.User1, SearchQuery{View: ViewInbox, After: after})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, int64(104), page.Results[0].ID)
	calls := f.Gateway.Calls("get_messages")
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].Query.Pager)
	assert.True(t, calls[0].Query.After.Equal(after))
}

func TestSearchWithoutVisibleLabels(t *testing.T) {
	f, svc, _ := newService(t)
	nobody := &models.User{OrgID: f.Unicef.ID, Name: "Nobody", Role: models.RoleAnalyst, PartnerID: 999}
	require.NoError(t, f.Store.SaveUser(nobody))

	page, err := svc.Search(context.Background(), f.Unicef, nobody, SearchQuery{View: ViewInbox, Before: time.Now()})
	require.NoError(t, err)
	assert.Empty(t, page.Results)
	assert.Empty(t, f.Gateway.Calls())
}

func TestParseView(t *testing.T) {
	v, err := ParseView("")
	require.NoError(t, err)
	assert.Equal(t, ViewInbox, v)
	_, err = ParseView("spam")
	assert.Error(t, err)
}
