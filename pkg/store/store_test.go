package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praekelt/helpdesk/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCaseRoundTripAndContactIndex(t *testing.T) {
	s := openTestStore(t)
	d1 := time.Date(2014, 1, 2, 7, 0, 0, 0, time.UTC)

	c1 := &models.Case{OrgID: 1, ContactUUID: "C-001", AssigneeID: 3, LabelIDs: []int64{1}, MessageID: 234, MessageOn: d1, OpenedOn: d1}
	c2 := &models.Case{OrgID: 1, ContactUUID: "C-002", AssigneeID: 3, OpenedOn: d1}
	c3 := &models.Case{OrgID: 2, ContactUUID: "C-001", AssigneeID: 9, OpenedOn: d1}
	for _, c := range []*models.Case{c1, c2, c3} {
		require.NoError(t, s.SaveCase(c))
	}
	require.NotZero(t, c1.ID)
	require.Less(t, c1.ID, c2.ID)

	got, err := s.GetCase(1, c1.ID)
	require.NoError(t, err)
	require.Equal(t, int64(234), got.MessageID)
	require.True(t, got.MessageOn.Equal(d1))
	require.Nil(t, got.ClosedOn)

	all, err := s.ListCases(1)
	require.NoError(t, err)
	require.Len(t, all, 2)

	forContact, err := s.CasesForContact(1, "C-001")
	require.NoError(t, err)
	require.Len(t, forContact, 1)
	require.Equal(t, c1.ID, forContact[0].ID)

	_, err = s.GetCase(2, c1.ID)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestCaseActionsKeepInsertionOrder(t *testing.T) {
	s := openTestStore(t)
	c := &models.Case{OrgID: 1, ContactUUID: "C-001"}
	require.NoError(t, s.SaveCase(c))

	now := time.Now().UTC()
	require.NoError(t, s.AddCaseActions(&models.CaseAction{OrgID: 1, CaseID: c.ID, Action: models.ActionOpen, CreatedOn: now}))
	require.NoError(t, s.AddCaseActions(
		&models.CaseAction{OrgID: 1, CaseID: c.ID, Action: models.ActionLabel, LabelID: 2, CreatedOn: now},
		&models.CaseAction{OrgID: 1, CaseID: c.ID, Action: models.ActionUnlabel, LabelID: 1, CreatedOn: now},
	))
	require.NoError(t, s.AddCaseEvent(&models.CaseEvent{OrgID: 1, CaseID: c.ID, Event: models.EventReply, CreatedOn: now}))

	actions, err := s.ListCaseActions(1, c.ID)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	require.Equal(t, models.ActionOpen, actions[0].Action)
	require.Equal(t, models.ActionLabel, actions[1].Action)
	require.Equal(t, models.ActionUnlabel, actions[2].Action)

	events, err := s.ListCaseEvents(1, c.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// case listing must not pick up action or event records
	cases, err := s.ListCases(1)
	require.NoError(t, err)
	require.Len(t, cases, 1)
}

func TestOutgoingBroadcastIndex(t *testing.T) {
	s := openTestStore(t)
	o := &models.Outgoing{OrgID: 1, Activity: models.ActivityCaseReply, BroadcastID: 201, RecipientCount: 1, CaseID: 5, CreatedBy: 2}
	require.NoError(t, s.SaveOutgoing(o))
	require.NoError(t, s.SaveOutgoing(&models.Outgoing{OrgID: 1, Activity: models.ActivityBulkReply, BroadcastID: 202}))

	got, err := s.OutgoingByBroadcast(1, 201)
	require.NoError(t, err)
	require.Equal(t, int64(2), got.CreatedBy)

	_, err = s.OutgoingByBroadcast(1, 999)
	require.ErrorIs(t, err, ErrNotFound)

	forCase, err := s.OutgoingForCase(1, 5)
	require.NoError(t, err)
	require.Len(t, forCase, 1)
}

func TestSequencesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)
	u := &models.User{OrgID: 1, Name: "Evan"}
	require.NoError(t, s.SaveUser(u))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	u2 := &models.User{OrgID: 1, Name: "Rick"}
	require.NoError(t, s.SaveUser(u2))
	require.Greater(t, u2.ID, u.ID)

	users, err := s.ListUsers(1)
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestRegistriesScopedByOrg(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveGroup(&models.Group{OrgID: 1, UUID: "G-001", Name: "Males", Active: true}))
	require.NoError(t, s.SaveGroup(&models.Group{OrgID: 2, UUID: "G-003", Name: "Coders", Active: true}))
	require.NoError(t, s.SaveLabel(&models.Label{OrgID: 1, UUID: "L-001", Name: "AIDS", Active: true}))
	require.NoError(t, s.SavePartner(&models.Partner{OrgID: 1, Name: "MOH", Active: true}))
	require.NoError(t, s.SaveContact(&models.Contact{OrgID: 1, UUID: "C-001"}))

	groups, err := s.ListGroups(1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "Males", groups[0].Name)

	labels, err := s.ListLabels(2)
	require.NoError(t, err)
	require.Empty(t, labels)

	contact, err := s.GetContact(1, "C-001")
	require.NoError(t, err)
	require.NotNil(t, contact.SuspendedGroups)
	require.Empty(t, contact.SuspendedGroups)

	partners, err := s.ListPartners(1)
	require.NoError(t, err)
	require.Len(t, partners, 1)
}

func TestPrefixUpperBound(t *testing.T) {
	require.Equal(t, []byte("o:1:d"), prefixUpperBound([]byte("o:1:c")))
	require.Equal(t, []byte{0x01}, prefixUpperBound([]byte{0x00, 0xff}))
	require.Nil(t, prefixUpperBound([]byte{0xff}))
}
