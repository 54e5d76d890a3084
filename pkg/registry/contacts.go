package registry

import (
	"context"
	"fmt"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
)

type ContactStore interface {
	GetOrCreateContact(orgID int64, uuid string) (*models.Contact, error)
	SaveContact(c *models.Contact) error
}

type Contacts struct {
	store    ContactStore
	gateways gateway.Provider
}

func NewContacts(s ContactStore, gateways gateway.Provider) *Contacts {
	return &Contacts{store: s, gateways: gateways}
}

type ContactJSON struct {
	UUID   string         `json:"uuid"`
	Fields map[string]any `json:"fields"`
}

func (c *Contacts) GetOrCreate(orgID int64, uuid string) (*models.Contact, error) {
	return c.store.GetOrCreateContact(orgID, uuid)
}

// AsJSON renders the contact. With fetchFields the gateway is asked for the
// current field values, which are cached locally and filtered down to the
// org's configured contact fields.
func (c *Contacts) AsJSON(ctx context.Context, org *models.Org, contact *models.Contact, fetchFields bool) (*ContactJSON, error) {
	out := &ContactJSON{UUID: contact.UUID, Fields: map[string]any{}}
	if !fetchFields {
		return out, nil
	}
	gw, err := c.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}
	remote, err := gw.GetContact(ctx, contact.UUID)
	if err != nil {
		return nil, fmt.Errorf("fetch contact %s: %w", contact.UUID, err)
	}
	contact.Fields = remote.Fields
	if err := c.store.SaveContact(contact); err != nil {
		return nil, err
	}
	for _, key := range orgs.ContactFields(org) {
		if v, ok := remote.Fields[key]; ok {
			out.Fields[key] = v
		}
	}
	return out, nil
}
