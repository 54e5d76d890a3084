// Package gateway is the client side of the external messaging platform. The
// case engine, timeline and labelling task only see the Gateway interface so
// they can run against the in-memory fake in gatewaytest.
package gateway

import (
	"context"
	"errors"
	"strings"
	"time"
)

const (
	DirectionIncoming = "I"
	DirectionOutgoing = "O"

	// FlaggedLabel is the gateway label backing message flags.
	FlaggedLabel = "Flagged"
)

var ErrNotFound = errors.New("gateway: not found")

type Message struct {
	ID          int64     `json:"id"`
	BroadcastID int64     `json:"broadcast,omitempty"`
	Contact     string    `json:"contact"`
	URN         string    `json:"urn,omitempty"`
	Direction   string    `json:"direction"`
	Type        string    `json:"type,omitempty"`
	Labels      []string  `json:"labels"`
	Archived    bool      `json:"archived"`
	Text        string    `json:"text"`
	CreatedOn   time.Time `json:"created_on"`
}

// HasLabel compares label names case-insensitively the way the gateway does.
func (m *Message) HasLabel(name string) bool {
	for _, l := range m.Labels {
		if strings.EqualFold(l, name) {
			return true
		}
	}
	return false
}

type Contact struct {
	UUID   string         `json:"uuid"`
	Name   string         `json:"name,omitempty"`
	URNs   []string       `json:"urns,omitempty"`
	Groups []string       `json:"group_uuids"`
	Fields map[string]any `json:"fields"`
}

type Group struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Size int    `json:"size"`
}

type Label struct {
	UUID  string `json:"uuid"`
	Name  string `json:"name"`
	Count int    `json:"count,omitempty"`
}

type Broadcast struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	URNs      []string  `json:"urns"`
	Contacts  []string  `json:"contacts"`
	CreatedOn time.Time `json:"created_on"`
}

// Pager requests a single page of results. After the call HasMore reports
// whether a further page exists.
type Pager struct {
	Page    int
	HasMore bool
}

// MessageQuery filters get_messages. Zero values mean "no filter"; Archived
// is a pointer so "either" can be told apart from "unarchived". Without a
// Pager every page is fetched.
type MessageQuery struct {
	Contacts  []string
	Groups    []string
	Labels    []string
	Text      string
	Direction string
	Archived  *bool
	After     time.Time
	Before    time.Time
	Types     []string
	Pager     *Pager
}

// LabelRef names a label by uuid or, for labels the helpdesk does not track
// such as the flag label, by name.
type LabelRef struct {
	UUID string
	Name string
}

type Gateway interface {
	GetMessage(ctx context.Context, id int64) (*Message, error)
	GetMessages(ctx context.Context, q MessageQuery) ([]Message, error)
	ArchiveMessages(ctx context.Context, ids []int64) error
	UnarchiveMessages(ctx context.Context, ids []int64) error
	LabelMessages(ctx context.Context, ids []int64, label LabelRef) error
	UnlabelMessages(ctx context.Context, ids []int64, label LabelRef) error

	GetContact(ctx context.Context, uuid string) (*Contact, error)
	RemoveContacts(ctx context.Context, uuids []string, groupUUID string) error
	AddContacts(ctx context.Context, uuids []string, groupUUID string) error
	ExpireContacts(ctx context.Context, uuids []string) error

	GetGroups(ctx context.Context, uuids []string) ([]Group, error)

	GetLabels(ctx context.Context) ([]Label, error)
	CreateLabel(ctx context.Context, name string) (*Label, error)
	UpdateLabel(ctx context.Context, uuid, name string) (*Label, error)

	CreateBroadcast(ctx context.Context, text string, urns, contacts []string) (*Broadcast, error)
}

// Provider hands out the gateway client authenticated for an org.
type Provider interface {
	ForOrg(orgID int64) (Gateway, error)
}

func Bool(b bool) *bool { return &b }
