package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
)

type PartnerStore interface {
	SavePartner(p *models.Partner) error
	GetPartner(orgID, id int64) (*models.Partner, error)
	ListPartners(orgID int64) ([]*models.Partner, error)
	ListUsers(orgID int64) ([]*models.User, error)
	SaveUser(u *models.User) error
	ListLabels(orgID int64) ([]*models.Label, error)
}

type Partners struct {
	store PartnerStore
}

func NewPartners(s PartnerStore) *Partners {
	return &Partners{store: s}
}

func validatePartnerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Fields: map[string][]string{"name": {"This field is required."}}}
	}
	return nil
}

func (p *Partners) Create(org *models.Org, name string) (*models.Partner, error) {
	if err := validatePartnerName(name); err != nil {
		return nil, err
	}
	partner := &models.Partner{OrgID: org.ID, Name: strings.TrimSpace(name), Active: true}
	if err := p.store.SavePartner(partner); err != nil {
		return nil, err
	}
	logger.Info("partner_created", "org", org.ID, "partner", partner.ID)
	return partner, nil
}

func (p *Partners) Update(partner *models.Partner, name string) error {
	if err := validatePartnerName(name); err != nil {
		return err
	}
	partner.Name = strings.TrimSpace(name)
	return p.store.SavePartner(partner)
}

// Release deactivates the partner and detaches its users.
func (p *Partners) Release(partner *models.Partner) error {
	users, err := p.Users(partner)
	if err != nil {
		return err
	}
	partner.Active = false
	if err := p.store.SavePartner(partner); err != nil {
		return err
	}
	for _, u := range users {
		u.PartnerID = 0
		if err := p.store.SaveUser(u); err != nil {
			return fmt.Errorf("detach user %d: %w", u.ID, err)
		}
	}
	logger.Info("partner_released", "org", partner.OrgID, "partner", partner.ID, "detached_users", len(users))
	return nil
}

func (p *Partners) Get(orgID, id int64) (*models.Partner, error) {
	partner, err := p.store.GetPartner(orgID, id)
	if err != nil {
		return nil, err
	}
	if !partner.Active {
		return nil, fmt.Errorf("partner %d released: %w", id, ErrNotFound)
	}
	return partner, nil
}

// GetAll returns the org's active partners sorted by name.
func (p *Partners) GetAll(orgID int64) ([]*models.Partner, error) {
	all, err := p.store.ListPartners(orgID)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, partner := range all {
		if partner.Active {
			out = append(out, partner)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

func (p *Partners) usersWithRole(partner *models.Partner, role models.Role) ([]*models.User, error) {
	all, err := p.store.ListUsers(partner.OrgID)
	if err != nil {
		return nil, err
	}
	var out []*models.User
	for _, u := range all {
		if u.PartnerID == partner.ID && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (p *Partners) Users(partner *models.Partner) ([]*models.User, error) {
	return p.usersWithRole(partner, "")
}

func (p *Partners) Managers(partner *models.Partner) ([]*models.User, error) {
	return p.usersWithRole(partner, models.RoleManager)
}

func (p *Partners) Analysts(partner *models.Partner) ([]*models.User, error) {
	return p.usersWithRole(partner, models.RoleAnalyst)
}

// Labels returns the active labels granting the partner access.
func (p *Partners) Labels(partner *models.Partner) ([]*models.Label, error) {
	all, err := p.store.ListLabels(partner.OrgID)
	if err != nil {
		return nil, err
	}
	var out []*models.Label
	for _, l := range all {
		if l.Active && l.GrantsPartner(partner.ID) {
			out = append(out, l)
		}
	}
	return out, nil
}
