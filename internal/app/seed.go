package app

import (
	"errors"
	"strings"

	"github.com/praekelt/helpdesk/pkg/config"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/store"
)

// seed creates or updates the configured orgs and adds configured users that
// do not exist yet. Users are matched on email within their org.
func (a *App) seed(cfg *config.Config) error {
	for _, o := range cfg.Orgs {
		org, err := a.store.GetOrg(o.ID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			org = &models.Org{ID: o.ID}
		case err != nil:
			return err
		}
		org.Name = o.Name
		if o.BannerText != "" {
			org.BannerText = o.BannerText
		}
		if o.ContactFields != nil {
			org.ContactFields = o.ContactFields
		}
		if o.SuspendGroups != nil {
			org.SuspendGroups = o.SuspendGroups
		}
		if err := a.store.SaveOrg(org); err != nil {
			return err
		}
		logger.Debug("org_seeded", "org", org.ID, "name", org.Name)
	}

	for _, u := range cfg.Users {
		if err := a.seedUser(u); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) seedUser(u config.UserSeed) error {
	existing, err := a.store.ListUsers(u.Org)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if u.Email != "" && strings.EqualFold(e.Email, u.Email) {
			return nil
		}
	}

	user := &models.User{OrgID: u.Org, Name: u.Name, Email: u.Email, Role: models.Role(u.Role)}
	if u.Partner != "" {
		partner, err := a.partnerNamed(u.Org, u.Partner)
		if err != nil {
			return err
		}
		user.PartnerID = partner.ID
	}
	if err := a.store.SaveUser(user); err != nil {
		return err
	}
	logger.Info("user_seeded", "org", u.Org, "user", user.ID, "role", user.Role, "partner", user.PartnerID)
	return nil
}

func (a *App) partnerNamed(orgID int64, name string) (*models.Partner, error) {
	partners, err := a.deps.Partners.GetAll(orgID)
	if err != nil {
		return nil, err
	}
	for _, p := range partners {
		if strings.EqualFold(p.Name, name) {
			return p, nil
		}
	}
	org, err := a.store.GetOrg(orgID)
	if err != nil {
		return nil, err
	}
	return a.deps.Partners.Create(org, name)
}
