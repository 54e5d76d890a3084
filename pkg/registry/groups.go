package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
)

type GroupStore interface {
	SaveGroup(g *models.Group) error
	GetGroup(orgID int64, uuid string) (*models.Group, error)
	ListGroups(orgID int64) ([]*models.Group, error)
}

type Groups struct {
	store    GroupStore
	gateways gateway.Provider
}

func NewGroups(s GroupStore, gateways gateway.Provider) *Groups {
	return &Groups{store: s, gateways: gateways}
}

func (g *Groups) Create(org *models.Org, name, uuid string) (*models.Group, error) {
	group := &models.Group{OrgID: org.ID, UUID: uuid, Name: name, Active: true}
	if err := g.store.SaveGroup(group); err != nil {
		return nil, err
	}
	return group, nil
}

// GetAll returns the org's active groups sorted by name.
func (g *Groups) GetAll(orgID int64) ([]*models.Group, error) {
	all, err := g.store.ListGroups(orgID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, group := range all {
		if group.Active {
			out = append(out, group)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// FetchSizes returns each group's gateway membership count keyed by uuid,
// zero for groups the gateway does not know. No call is made for an empty
// list.
func (g *Groups) FetchSizes(ctx context.Context, org *models.Org, groups []*models.Group) (map[string]int, error) {
	sizes := make(map[string]int, len(groups))
	if len(groups) == 0 {
		return sizes, nil
	}
	uuids := make([]string, len(groups))
	for i, group := range groups {
		uuids[i] = group.UUID
		sizes[group.UUID] = 0
	}
	gw, err := g.gateways.ForOrg(org.ID)
	if err != nil {
		return nil, err
	}
	remote, err := gw.GetGroups(ctx, uuids)
	if err != nil {
		return nil, fmt.Errorf("fetch group sizes: %w", err)
	}
	for _, r := range remote {
		if _, ok := sizes[r.UUID]; ok {
			sizes[r.UUID] = r.Size
		}
	}
	return sizes, nil
}

// UpdateGroups makes uuids the org's set of active groups. Known groups
// outside the set are deactivated, known ones inside it are reactivated and
// unknown ones are created with their gateway names.
func (g *Groups) UpdateGroups(ctx context.Context, org *models.Org, uuids []string) error {
	wanted := make(map[string]bool, len(uuids))
	for _, u := range uuids {
		wanted[u] = true
	}
	existing, err := g.store.ListGroups(org.ID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(existing))
	for _, group := range existing {
		known[group.UUID] = true
		if group.Active == wanted[group.UUID] {
			continue
		}
		group.Active = wanted[group.UUID]
		if err := g.store.SaveGroup(group); err != nil {
			return err
		}
	}

	var missing []string
	for _, u := range uuids {
		if !known[u] {
			missing = append(missing, u)
		}
	}
	created := 0
	if len(missing) > 0 {
		gw, err := g.gateways.ForOrg(org.ID)
		if err != nil {
			return err
		}
		remote, err := gw.GetGroups(ctx, missing)
		if err != nil {
			return fmt.Errorf("fetch new groups: %w", err)
		}
		for _, r := range remote {
			if _, err := g.Create(org, r.Name, r.UUID); err != nil {
				return err
			}
			created++
		}
	}
	logger.Info("groups_updated", "org", org.ID, "active", len(uuids), "created", created)
	return nil
}
