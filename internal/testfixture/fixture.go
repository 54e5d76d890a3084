// Package testfixture builds the two-org world shared by the package tests: a
// pebble store in a temp dir, a recording gateway fake and a movable clock.
package testfixture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/gateway/gatewaytest"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/store"
)

type Fixture struct {
	Store   *store.Store
	Gateway *gatewaytest.Fake
	Clock   *Clock

	Unicef, Nyaruka *models.Org

	MOH, WHO, KLab *models.Partner

	AIDS, Pregnancy, Code *models.Label

	// Admin administers Unicef. User1 and User2 belong to MOH, User3 to WHO
	// and User4 to KLab in Nyaruka.
	Admin, User1, User2, User3, User4 *models.User
}

// Clock is a settable time source.
type Clock struct {
	t time.Time
}

func (c *Clock) Now() time.Time { return c.t }

func (c *Clock) Set(t time.Time) { c.t = t.UTC() }

func New(t *testing.T) *Fixture {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &Fixture{
		Store:   s,
		Gateway: gatewaytest.New(),
		Clock:   &Clock{t: time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	f.Unicef = &models.Org{ID: 1, Name: "UNICEF"}
	f.Nyaruka = &models.Org{ID: 2, Name: "Nyaruka"}
	require.NoError(t, s.SaveOrg(f.Unicef))
	require.NoError(t, s.SaveOrg(f.Nyaruka))

	f.MOH = f.partner(t, f.Unicef, "MOH")
	f.WHO = f.partner(t, f.Unicef, "WHO")
	f.KLab = f.partner(t, f.Nyaruka, "kLab")

	f.AIDS = f.label(t, f.Unicef, "L-001", "AIDS", []string{"aids", "hiv"}, f.MOH, f.WHO)
	f.Pregnancy = f.label(t, f.Unicef, "L-002", "Pregnancy", []string{"pregnant", "pregnancy"}, f.MOH)
	f.Code = f.label(t, f.Nyaruka, "L-101", "Code", []string{"java", "python", "go"}, f.KLab)

	f.Gateway.Labels = []gateway.Label{
		{UUID: "L-001", Name: "AIDS"},
		{UUID: "L-002", Name: "Pregnancy"},
		{UUID: "L-101", Name: "Code"},
	}

	f.Admin = f.user(t, f.Unicef, "Kidus", models.RoleAdmin, nil)
	f.User1 = f.user(t, f.Unicef, "Evan", models.RoleManager, f.MOH)
	f.User2 = f.user(t, f.Unicef, "Rick", models.RoleAnalyst, f.MOH)
	f.User3 = f.user(t, f.Unicef, "Carol", models.RoleManager, f.WHO)
	f.User4 = f.user(t, f.Nyaruka, "Sam", models.RoleManager, f.KLab)
	return f
}

func (f *Fixture) partner(t *testing.T, org *models.Org, name string) *models.Partner {
	p := &models.Partner{OrgID: org.ID, Name: name, Active: true}
	require.NoError(t, f.Store.SavePartner(p))
	return p
}

func (f *Fixture) label(t *testing.T, org *models.Org, uuid, name string, keywords []string, partners ...*models.Partner) *models.Label {
	l := &models.Label{OrgID: org.ID, UUID: uuid, Name: name, Description: name, Keywords: keywords, Active: true}
	for _, p := range partners {
		l.PartnerIDs = append(l.PartnerIDs, p.ID)
	}
	require.NoError(t, f.Store.SaveLabel(l))
	return l
}

func (f *Fixture) user(t *testing.T, org *models.Org, name string, role models.Role, partner *models.Partner) *models.User {
	u := &models.User{OrgID: org.ID, Name: name, Role: role}
	if partner != nil {
		u.PartnerID = partner.ID
	}
	require.NoError(t, f.Store.SaveUser(u))
	return u
}

func Date(day, hour int) time.Time {
	return time.Date(2014, 1, day, hour, 0, 0, 0, time.UTC)
}
