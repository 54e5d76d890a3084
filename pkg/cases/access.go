package cases

import (
	"errors"

	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/store"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = store.ErrNotFound
)

type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessRead
	AccessUpdate
)

func (a AccessLevel) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessUpdate:
		return "update"
	default:
		return "none"
	}
}

// accessLevel evaluates the access rules against already loaded labels,
// keyed by id.
func accessLevel(c *models.Case, user *models.User, labels map[int64]*models.Label) AccessLevel {
	if user == nil || user.OrgID != c.OrgID {
		return AccessNone
	}
	if user.IsAdmin() || (user.HasPartner() && user.PartnerID == c.AssigneeID) {
		return AccessUpdate
	}
	for _, id := range c.LabelIDs {
		if l, ok := labels[id]; ok && l.GrantsPartner(user.PartnerID) {
			return AccessRead
		}
	}
	return AccessNone
}

// visibleTo reports whether the case shows up in the user's case lists.
// Admins see every case of their org; anyone else only sees cases they have
// access to, so a user with no partner sees none.
func visibleTo(c *models.Case, user *models.User, labels map[int64]*models.Label) bool {
	if user == nil {
		return true
	}
	if user.OrgID != c.OrgID {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	return accessLevel(c, user, labels) != AccessNone
}
