// Package gatewaytest provides an in-memory gateway that records every call.
package gatewaytest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/praekelt/helpdesk/pkg/gateway"
)

// Call is one recorded gateway invocation.
type Call struct {
	Method   string
	Messages []int64
	Contacts []string
	Group    string
	Label    gateway.LabelRef
	Query    gateway.MessageQuery
	Text     string
}

var (
	_ gateway.Gateway  = (*Fake)(nil)
	_ gateway.Provider = (*Fake)(nil)
)

// Fake implements gateway.Gateway and gateway.Provider (every org shares it).
type Fake struct {
	mu sync.Mutex

	Messages []gateway.Message
	Contacts map[string]*gateway.Contact
	Groups   []gateway.Group
	Labels   []gateway.Label

	// Fail makes the named method return the error.
	Fail map[string]error
	// Now stamps created broadcasts; time.Now when nil.
	Now func() time.Time

	calls       []Call
	nextLabel   int
	nextBcastID int64
}

func New() *Fake {
	return &Fake{
		Contacts:    make(map[string]*gateway.Contact),
		Fail:        make(map[string]error),
		nextBcastID: 200,
	}
}

func (f *Fake) ForOrg(int64) (gateway.Gateway, error) { return f, nil }

func (f *Fake) AddMessage(m gateway.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.Labels == nil {
		m.Labels = []string{}
	}
	f.Messages = append(f.Messages, m)
}

func (f *Fake) AddContact(c gateway.Contact) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Contacts[c.UUID] = &c
}

// Calls returns recorded calls, restricted to one method when given.
func (f *Fake) Calls(method ...string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(method) == 0 {
		return append([]Call(nil), f.calls...)
	}
	var out []Call
	for _, c := range f.calls {
		if c.Method == method[0] {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *Fake) record(c Call) error {
	f.calls = append(f.calls, c)
	return f.Fail[c.Method]
}

func (f *Fake) Message(id int64) (gateway.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.Messages {
		if m.ID == id {
			return m, true
		}
	}
	return gateway.Message{}, false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func (f *Fake) matches(m *gateway.Message, q gateway.MessageQuery) bool {
	if len(q.Contacts) > 0 && !contains(q.Contacts, m.Contact) {
		return false
	}
	if len(q.Groups) > 0 {
		c, ok := f.Contacts[m.Contact]
		if !ok {
			return false
		}
		found := false
		for _, g := range q.Groups {
			if contains(c.Groups, g) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(q.Labels) > 0 {
		found := false
		for _, l := range q.Labels {
			if m.HasLabel(l) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Text != "" && !strings.Contains(strings.ToLower(m.Text), strings.ToLower(q.Text)) {
		return false
	}
	if q.Direction != "" && m.Direction != q.Direction {
		return false
	}
	if q.Archived != nil && m.Archived != *q.Archived {
		return false
	}
	if !q.After.IsZero() && m.CreatedOn.Before(q.After) {
		return false
	}
	if !q.Before.IsZero() && m.CreatedOn.After(q.Before) {
		return false
	}
	return true
}

func (f *Fake) GetMessage(_ context.Context, id int64) (*gateway.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "get_message", Messages: []int64{id}}); err != nil {
		return nil, err
	}
	for _, m := range f.Messages {
		if m.ID == id {
			m.Labels = append([]string{}, m.Labels...)
			return &m, nil
		}
	}
	return nil, fmt.Errorf("message %d: %w", id, gateway.ErrNotFound)
}

// GetMessages filters on every query field except Types and returns matches
// newest first as a single page. Like the real API, After and Before are both
// inclusive.
func (f *Fake) GetMessages(_ context.Context, q gateway.MessageQuery) ([]gateway.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "get_messages", Query: q, Contacts: q.Contacts}); err != nil {
		return nil, err
	}
	out := []gateway.Message{}
	for i := range f.Messages {
		if f.matches(&f.Messages[i], q) {
			m := f.Messages[i]
			m.Labels = append([]string{}, m.Labels...)
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedOn.After(out[j].CreatedOn) })
	if q.Pager != nil {
		q.Pager.HasMore = false
	}
	return out, nil
}

func (f *Fake) each(ids []int64, fn func(m *gateway.Message)) {
	for i := range f.Messages {
		for _, id := range ids {
			if f.Messages[i].ID == id {
				fn(&f.Messages[i])
			}
		}
	}
}

func (f *Fake) ArchiveMessages(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "archive_messages", Messages: ids}); err != nil {
		return err
	}
	f.each(ids, func(m *gateway.Message) { m.Archived = true })
	return nil
}

func (f *Fake) UnarchiveMessages(_ context.Context, ids []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "unarchive_messages", Messages: ids}); err != nil {
		return err
	}
	f.each(ids, func(m *gateway.Message) { m.Archived = false })
	return nil
}

func (f *Fake) labelName(ref gateway.LabelRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	for _, l := range f.Labels {
		if l.UUID == ref.UUID {
			return l.Name
		}
	}
	return ref.UUID
}

func (f *Fake) LabelMessages(_ context.Context, ids []int64, label gateway.LabelRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "label_messages", Messages: ids, Label: label}); err != nil {
		return err
	}
	name := f.labelName(label)
	f.each(ids, func(m *gateway.Message) {
		if !m.HasLabel(name) {
			m.Labels = append(m.Labels, name)
		}
	})
	return nil
}

func (f *Fake) UnlabelMessages(_ context.Context, ids []int64, label gateway.LabelRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "unlabel_messages", Messages: ids, Label: label}); err != nil {
		return err
	}
	name := f.labelName(label)
	f.each(ids, func(m *gateway.Message) {
		kept := m.Labels[:0]
		for _, l := range m.Labels {
			if !strings.EqualFold(l, name) {
				kept = append(kept, l)
			}
		}
		m.Labels = kept
	})
	return nil
}

func (f *Fake) GetContact(_ context.Context, uuid string) (*gateway.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "get_contact", Contacts: []string{uuid}}); err != nil {
		return nil, err
	}
	c, ok := f.Contacts[uuid]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", uuid, gateway.ErrNotFound)
	}
	cp := *c
	cp.Groups = append([]string{}, c.Groups...)
	return &cp, nil
}

func (f *Fake) RemoveContacts(_ context.Context, uuids []string, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "remove_contacts", Contacts: uuids, Group: group}); err != nil {
		return err
	}
	for _, u := range uuids {
		if c, ok := f.Contacts[u]; ok {
			kept := c.Groups[:0]
			for _, g := range c.Groups {
				if g != group {
					kept = append(kept, g)
				}
			}
			c.Groups = kept
		}
	}
	return nil
}

func (f *Fake) AddContacts(_ context.Context, uuids []string, group string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "add_contacts", Contacts: uuids, Group: group}); err != nil {
		return err
	}
	for _, u := range uuids {
		if c, ok := f.Contacts[u]; ok && !contains(c.Groups, group) {
			c.Groups = append(c.Groups, group)
		}
	}
	return nil
}

func (f *Fake) ExpireContacts(_ context.Context, uuids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(Call{Method: "expire_contacts", Contacts: uuids})
}

func (f *Fake) GetGroups(_ context.Context, uuids []string) ([]gateway.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "get_groups", Contacts: uuids}); err != nil {
		return nil, err
	}
	out := []gateway.Group{}
	for _, g := range f.Groups {
		if len(uuids) == 0 || contains(uuids, g.UUID) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *Fake) GetLabels(context.Context) ([]gateway.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "get_labels"}); err != nil {
		return nil, err
	}
	return append([]gateway.Label{}, f.Labels...), nil
}

func (f *Fake) CreateLabel(_ context.Context, name string) (*gateway.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "create_label", Text: name}); err != nil {
		return nil, err
	}
	f.nextLabel++
	l := gateway.Label{UUID: fmt.Sprintf("L-NEW-%03d", f.nextLabel), Name: name}
	f.Labels = append(f.Labels, l)
	return &l, nil
}

func (f *Fake) UpdateLabel(_ context.Context, uuid, name string) (*gateway.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "update_label", Label: gateway.LabelRef{UUID: uuid}, Text: name}); err != nil {
		return nil, err
	}
	for i := range f.Labels {
		if f.Labels[i].UUID == uuid {
			f.Labels[i].Name = name
			l := f.Labels[i]
			return &l, nil
		}
	}
	return nil, fmt.Errorf("label %s: %w", uuid, gateway.ErrNotFound)
}

func (f *Fake) CreateBroadcast(_ context.Context, text string, urns, contacts []string) (*gateway.Broadcast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(Call{Method: "create_broadcast", Text: text, Contacts: contacts}); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if f.Now != nil {
		now = f.Now()
	}
	f.nextBcastID++
	return &gateway.Broadcast{ID: f.nextBcastID, Text: text, URNs: urns, Contacts: contacts, CreatedOn: now}, nil
}
