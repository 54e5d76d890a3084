// Package cases owns the case lifecycle: opening cases against inbound
// messages, the append-only action and event logs, access control, and the
// gateway side effects (message archiving and contact group suspension).
package cases

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/praekelt/helpdesk/pkg/events"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/metrics"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
)

// Store is the persistence the engine needs; *store.Store satisfies it.
type Store interface {
	GetCase(orgID, id int64) (*models.Case, error)
	SaveCase(c *models.Case) error
	ListCases(orgID int64) ([]*models.Case, error)
	CasesForContact(orgID int64, contactUUID string) ([]*models.Case, error)
	AddCaseActions(actions ...*models.CaseAction) error
	ListCaseActions(orgID, caseID int64) ([]*models.CaseAction, error)
	AddCaseEvent(e *models.CaseEvent) error
	ListCaseEvents(orgID, caseID int64) ([]*models.CaseEvent, error)
	GetContact(orgID int64, uuid string) (*models.Contact, error)
	GetOrCreateContact(orgID int64, uuid string) (*models.Contact, error)
	SaveContact(c *models.Contact) error
	ListLabels(orgID int64) ([]*models.Label, error)
}

type Options struct {
	Events events.Publisher
	// Now is the engine clock, time.Now in UTC when nil.
	Now func() time.Time
}

type Engine struct {
	store    Store
	gateways gateway.Provider
	events   events.Publisher
	now      func() time.Time
}

func NewEngine(s Store, gateways gateway.Provider, opts Options) *Engine {
	e := &Engine{store: s, gateways: gateways, events: opts.Events, now: opts.Now}
	if e.events == nil {
		e.events = events.Noop{}
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// OpenParams describes a case to open for an inbound message.
type OpenParams struct {
	User     *models.User
	Labels   []*models.Label
	Message  gateway.Message
	Summary  string
	Assignee *models.Partner
	// UpdateContact suspends the contact from the org's suspend groups.
	UpdateContact bool
}

func (e *Engine) labelMap(orgID int64) (map[int64]*models.Label, error) {
	labels, err := e.store.ListLabels(orgID)
	if err != nil {
		return nil, err
	}
	m := make(map[int64]*models.Label, len(labels))
	for _, l := range labels {
		m[l.ID] = l
	}
	return m, nil
}

func (e *Engine) record(ctx context.Context, c *models.Case, user *models.User, eventType string, actions ...*models.CaseAction) error {
	for _, a := range actions {
		a.OrgID = c.OrgID
		a.CaseID = c.ID
		if user != nil {
			a.CreatedBy = user.ID
		}
	}
	if err := e.store.AddCaseActions(actions...); err != nil {
		return fmt.Errorf("record case %d actions: %w", c.ID, err)
	}
	for _, a := range actions {
		metrics.CaseTransitions.WithLabelValues(string(a.Action)).Inc()
	}
	ev := events.Event{Type: eventType, OrgID: c.OrgID, CaseID: c.ID, UserID: userID(user), Time: actions[0].CreatedOn}
	if len(actions) == 1 {
		ev.Payload = actionPayload(actions[0])
	}
	events.Emit(ctx, e.events, ev)
	return nil
}

func userID(u *models.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}

func actionPayload(a *models.CaseAction) map[string]any {
	p := map[string]any{"action": string(a.Action)}
	if a.AssigneeID != 0 {
		p["assignee"] = a.AssigneeID
	}
	if a.LabelID != 0 {
		p["label"] = a.LabelID
	}
	if a.Note != "" {
		p["note"] = a.Note
	}
	return p
}

// GetOrOpen returns the case already tracking the message or the contact's
// open case. Otherwise it opens a new one, archives the contact's inbox
// messages and, when asked, suspends the contact from the org's suspend
// groups. There is no lock between the lookup and the create: two concurrent
// callers for the same contact can both open a case.
func (e *Engine) GetOrOpen(ctx context.Context, org *models.Org, p OpenParams) (*models.Case, bool, error) {
	contactUUID := p.Message.Contact

	existing, err := e.store.CasesForContact(org.ID, contactUUID)
	if err != nil {
		return nil, false, err
	}
	for _, c := range existing {
		if c.MessageID == p.Message.ID {
			return c, false, nil
		}
	}
	for _, c := range existing {
		if c.IsOpen() {
			return c, false, nil
		}
	}

	gw, err := e.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, false, err
	}
	contact, err := e.store.GetOrCreateContact(org.ID, contactUUID)
	if err != nil {
		return nil, false, err
	}

	now := e.now()
	c := &models.Case{
		OrgID:       org.ID,
		ContactUUID: contactUUID,
		LabelIDs:    []int64{},
		MessageID:   p.Message.ID,
		MessageOn:   p.Message.CreatedOn,
		Summary:     p.Summary,
		OpenedOn:    now,
	}
	if p.Assignee != nil {
		c.AssigneeID = p.Assignee.ID
	}
	for _, l := range p.Labels {
		c.LabelIDs = append(c.LabelIDs, l.ID)
	}
	if err := e.store.SaveCase(c); err != nil {
		return nil, false, fmt.Errorf("save case: %w", err)
	}
	open := &models.CaseAction{Action: models.ActionOpen, CreatedOn: now, AssigneeID: c.AssigneeID}
	if err := e.record(ctx, c, p.User, events.CaseOpened, open); err != nil {
		return nil, false, err
	}
	logger.Info("case_opened", "org", org.ID, "case", c.ID, "contact", contactUUID, "assignee", c.AssigneeID)

	if err := e.archiveContactMessages(ctx, gw, contactUUID, time.Time{}, now); err != nil {
		return c, true, err
	}
	if p.UpdateContact {
		if err := e.suspendGroups(ctx, gw, org, contact); err != nil {
			return c, true, err
		}
	}
	return c, true, nil
}

// archiveContactMessages archives the contact's unarchived incoming messages
// in [after, before].
func (e *Engine) archiveContactMessages(ctx context.Context, gw gateway.Gateway, contactUUID string, after, before time.Time) error {
	msgs, err := gw.GetMessages(ctx, gateway.MessageQuery{
		Contacts:  []string{contactUUID},
		Direction: gateway.DirectionIncoming,
		Archived:  gateway.Bool(false),
		After:     after,
		Before:    before,
	})
	if err != nil {
		return fmt.Errorf("fetch messages for %s: %w", contactUUID, err)
	}
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if err := gw.ArchiveMessages(ctx, ids); err != nil {
		return fmt.Errorf("archive messages for %s: %w", contactUUID, err)
	}
	logger.Debug("contact_messages_archived", "contact", contactUUID, "count", len(ids))
	return nil
}

func (e *Engine) suspendGroups(ctx context.Context, gw gateway.Gateway, org *models.Org, contact *models.Contact) error {
	remote, err := gw.GetContact(ctx, contact.UUID)
	if err != nil {
		return fmt.Errorf("fetch contact %s: %w", contact.UUID, err)
	}
	member := make(map[string]bool, len(remote.Groups))
	for _, g := range remote.Groups {
		member[g] = true
	}
	removed := []string{}
	for _, g := range orgs.SuspendGroups(org) {
		if !member[g] {
			continue
		}
		if err := gw.RemoveContacts(ctx, []string{contact.UUID}, g); err != nil {
			return fmt.Errorf("remove %s from %s: %w", contact.UUID, g, err)
		}
		removed = append(removed, g)
	}
	contact.SuspendedGroups = removed
	contact.Fields = remote.Fields
	if err := e.store.SaveContact(contact); err != nil {
		return err
	}
	if err := gw.ExpireContacts(ctx, []string{contact.UUID}); err != nil {
		return fmt.Errorf("expire %s: %w", contact.UUID, err)
	}
	logger.Debug("contact_groups_suspended", "contact", contact.UUID, "groups", removed)
	return nil
}

func (e *Engine) restoreGroups(ctx context.Context, gw gateway.Gateway, contact *models.Contact) error {
	if len(contact.SuspendedGroups) == 0 {
		return nil
	}
	for _, g := range contact.SuspendedGroups {
		if err := gw.AddContacts(ctx, []string{contact.UUID}, g); err != nil {
			return fmt.Errorf("restore %s to %s: %w", contact.UUID, g, err)
		}
	}
	logger.Debug("contact_groups_restored", "contact", contact.UUID, "groups", contact.SuspendedGroups)
	contact.SuspendedGroups = []string{}
	return e.store.SaveContact(contact)
}

// AccessLevel reports what the user may do with the case.
func (e *Engine) AccessLevel(c *models.Case, user *models.User) (AccessLevel, error) {
	labels, err := e.labelMap(c.OrgID)
	if err != nil {
		return AccessNone, err
	}
	return accessLevel(c, user, labels), nil
}

func (e *Engine) require(c *models.Case, user *models.User, min AccessLevel) error {
	level, err := e.AccessLevel(c, user)
	if err != nil {
		return err
	}
	if level < min {
		return fmt.Errorf("case %d requires %s access: %w", c.ID, min, ErrPermissionDenied)
	}
	return nil
}

// Close stamps closed_on, even on an already closed case, and puts the
// contact back into the groups it was suspended from.
func (e *Engine) Close(ctx context.Context, c *models.Case, user *models.User) error {
	if err := e.require(c, user, AccessUpdate); err != nil {
		return err
	}
	gw, err := e.gateways.ForOrg(c.OrgID)
	if err != nil {
		return err
	}

	now := e.now()
	c.ClosedOn = &now
	if err := e.store.SaveCase(c); err != nil {
		return err
	}
	if err := e.record(ctx, c, user, events.CaseClosed, &models.CaseAction{Action: models.ActionClose, CreatedOn: now}); err != nil {
		return err
	}
	logger.Info("case_closed", "org", c.OrgID, "case", c.ID, "user", userID(user))

	contact, err := e.store.GetOrCreateContact(c.OrgID, c.ContactUUID)
	if err != nil {
		return err
	}
	return e.restoreGroups(ctx, gw, contact)
}

// Reopen clears closed_on and archives messages the contact sent since the
// case was closed.
func (e *Engine) Reopen(ctx context.Context, c *models.Case, user *models.User) error {
	gw, err := e.gateways.ForOrg(c.OrgID)
	if err != nil {
		return err
	}

	var since time.Time
	if c.ClosedOn != nil {
		since = *c.ClosedOn
	}
	now := e.now()
	c.ClosedOn = nil
	if err := e.store.SaveCase(c); err != nil {
		return err
	}
	if err := e.record(ctx, c, user, events.CaseReopened, &models.CaseAction{Action: models.ActionReopen, CreatedOn: now}); err != nil {
		return err
	}
	logger.Info("case_reopened", "org", c.OrgID, "case", c.ID, "user", userID(user))
	return e.archiveContactMessages(ctx, gw, c.ContactUUID, since, now)
}

func (e *Engine) Reassign(ctx context.Context, c *models.Case, user *models.User, partner *models.Partner) error {
	if err := e.require(c, user, AccessUpdate); err != nil {
		return err
	}
	now := e.now()
	c.AssigneeID = partner.ID
	if err := e.store.SaveCase(c); err != nil {
		return err
	}
	action := &models.CaseAction{Action: models.ActionReassign, CreatedOn: now, AssigneeID: partner.ID}
	if err := e.record(ctx, c, user, events.CaseReassigned, action); err != nil {
		return err
	}
	logger.Info("case_reassigned", "org", c.OrgID, "case", c.ID, "assignee", partner.ID)
	return nil
}

func (e *Engine) AddNote(ctx context.Context, c *models.Case, user *models.User, note string) error {
	if err := e.require(c, user, AccessRead); err != nil {
		return err
	}
	action := &models.CaseAction{Action: models.ActionAddNote, CreatedOn: e.now(), Note: note}
	return e.record(ctx, c, user, events.CaseNoteAdded, action)
}

// UpdateLabels replaces the case labels, logging one LABEL action per added
// label followed by one UNLABEL action per removed label.
func (e *Engine) UpdateLabels(ctx context.Context, c *models.Case, user *models.User, labels []*models.Label) error {
	if err := e.require(c, user, AccessRead); err != nil {
		return err
	}
	now := e.now()

	selected := make(map[int64]bool, len(labels))
	ids := make([]int64, 0, len(labels))
	var actions []*models.CaseAction
	for _, l := range labels {
		if selected[l.ID] {
			continue
		}
		selected[l.ID] = true
		ids = append(ids, l.ID)
		if !c.HasLabel(l.ID) {
			actions = append(actions, &models.CaseAction{Action: models.ActionLabel, CreatedOn: now, LabelID: l.ID})
		}
	}
	for _, id := range c.LabelIDs {
		if !selected[id] {
			actions = append(actions, &models.CaseAction{Action: models.ActionUnlabel, CreatedOn: now, LabelID: id})
		}
	}
	if len(actions) == 0 {
		return nil
	}

	c.LabelIDs = ids
	if err := e.store.SaveCase(c); err != nil {
		return err
	}
	return e.record(ctx, c, user, events.CaseLabelled, actions...)
}

// ReplyEvent logs a contact reply on the case, stamped with the message time.
func (e *Engine) ReplyEvent(ctx context.Context, c *models.Case, msg gateway.Message) error {
	ev := &models.CaseEvent{OrgID: c.OrgID, CaseID: c.ID, Event: models.EventReply, CreatedOn: msg.CreatedOn}
	if err := e.store.AddCaseEvent(ev); err != nil {
		return err
	}
	events.Emit(ctx, e.events, events.Event{
		Type:    events.CaseReplied,
		OrgID:   c.OrgID,
		CaseID:  c.ID,
		Payload: map[string]any{"message": msg.ID},
	})
	return nil
}

func (e *Engine) Get(orgID, id int64) (*models.Case, error) {
	return e.store.GetCase(orgID, id)
}

func (e *Engine) Actions(c *models.Case) ([]*models.CaseAction, error) {
	return e.store.ListCaseActions(c.OrgID, c.ID)
}

func (e *Engine) Events(c *models.Case) ([]*models.CaseEvent, error) {
	return e.store.ListCaseEvents(c.OrgID, c.ID)
}
