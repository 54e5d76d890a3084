package cases

import (
	"sort"
	"time"

	"github.com/praekelt/helpdesk/pkg/models"
)

type View int

const (
	ViewAll View = iota
	ViewOpen
	ViewClosed
)

// Filter narrows case listings. A nil User lists every case of the org; a
// zero LabelID applies no label restriction.
type Filter struct {
	User    *models.User
	LabelID int64
	View    View
}

// List returns the org's cases matching the filter, most recently opened
// first.
func (e *Engine) List(orgID int64, f Filter) ([]*models.Case, error) {
	all, err := e.store.ListCases(orgID)
	if err != nil {
		return nil, err
	}
	labels, err := e.labelMap(orgID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Case, 0, len(all))
	for _, c := range all {
		switch {
		case f.View == ViewOpen && !c.IsOpen():
			continue
		case f.View == ViewClosed && c.IsOpen():
			continue
		case f.LabelID != 0 && !c.HasLabel(f.LabelID):
			continue
		case !visibleTo(c, f.User, labels):
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenedOn.After(out[j].OpenedOn) })
	return out, nil
}

func (e *Engine) GetAll(orgID int64, user *models.User, labelID int64) ([]*models.Case, error) {
	return e.List(orgID, Filter{User: user, LabelID: labelID})
}

func (e *Engine) GetOpen(orgID int64, user *models.User, labelID int64) ([]*models.Case, error) {
	return e.List(orgID, Filter{User: user, LabelID: labelID, View: ViewOpen})
}

func (e *Engine) GetClosed(orgID int64, user *models.User, labelID int64) ([]*models.Case, error) {
	return e.List(orgID, Filter{User: user, LabelID: labelID, View: ViewClosed})
}

// GetOpenForContactOn returns the case covering the contact at instant t, or
// nil. This is a historical query: the case may have been closed since.
func (e *Engine) GetOpenForContactOn(orgID int64, contactUUID string, t time.Time) (*models.Case, error) {
	cases, err := e.store.CasesForContact(orgID, contactUUID)
	if err != nil {
		return nil, err
	}
	var found *models.Case
	for _, c := range cases {
		if c.OpenAt(t) && (found == nil || c.OpenedOn.After(found.OpenedOn)) {
			found = c
		}
	}
	return found, nil
}
