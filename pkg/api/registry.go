package api

import (
	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/pkg/api/router"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
	"github.com/praekelt/helpdesk/pkg/registry"
	"github.com/praekelt/helpdesk/pkg/utils"
)

// labelRequest carries keywords as a comma separated list, as typed by users.
type labelRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Keywords    string  `json:"keywords"`
	Partners    []int64 `json:"partners"`
}

func (r labelRequest) input() registry.LabelInput {
	return registry.LabelInput{
		Name:        r.Name,
		Description: r.Description,
		Keywords:    utils.SplitList(r.Keywords),
		PartnerIDs:  r.Partners,
	}
}

func (a *API) listLabels(ctx *fasthttp.RequestCtx) {
	labels, err := a.Labels.GetAll(currentOrg(ctx).ID, currentUser(ctx))
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{"results": labels})
}

func (a *API) createLabel(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	var req labelRequest
	if !router.DecodeBody(ctx, &req) {
		return
	}
	label, err := a.Labels.Create(a.ctx(), currentOrg(ctx), req.input())
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONStatus(ctx, fasthttp.StatusCreated, label)
}

func (a *API) updateLabel(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	id, ok := router.PathInt64(ctx, "id")
	if !ok {
		return
	}
	var req labelRequest
	if !router.DecodeBody(ctx, &req) {
		return
	}
	label, err := a.Labels.Get(currentOrg(ctx).ID, id)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	if err := a.Labels.Update(a.ctx(), label, req.input()); err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, label)
}

func (a *API) deleteLabel(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	id, ok := router.PathInt64(ctx, "id")
	if !ok {
		return
	}
	label, err := a.Labels.Get(currentOrg(ctx).ID, id)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	if err := a.Labels.Release(label); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

type partnerRequest struct {
	Name string `json:"name"`
}

func (a *API) listPartners(ctx *fasthttp.RequestCtx) {
	partners, err := a.Partners.GetAll(currentOrg(ctx).ID)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{"results": partners})
}

func (a *API) createPartner(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	var req partnerRequest
	if !router.DecodeBody(ctx, &req) {
		return
	}
	partner, err := a.Partners.Create(currentOrg(ctx), req.Name)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONStatus(ctx, fasthttp.StatusCreated, partner)
}

func (a *API) loadPartner(ctx *fasthttp.RequestCtx) (*models.Partner, bool) {
	id, ok := router.PathInt64(ctx, "id")
	if !ok {
		return nil, false
	}
	partner, err := a.Partners.Get(currentOrg(ctx).ID, id)
	if err != nil {
		a.writeError(ctx, err)
		return nil, false
	}
	return partner, true
}

func (a *API) getPartner(ctx *fasthttp.RequestCtx) {
	partner, ok := a.loadPartner(ctx)
	if !ok {
		return
	}
	managers, err := a.Partners.Managers(partner)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	analysts, err := a.Partners.Analysts(partner)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	labels, err := a.Partners.Labels(partner)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{
		"partner":  partner,
		"managers": nonNil(managers),
		"analysts": nonNil(analysts),
		"labels":   nonNil(labels),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (a *API) updatePartner(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	partner, ok := a.loadPartner(ctx)
	if !ok {
		return
	}
	var req partnerRequest
	if !router.DecodeBody(ctx, &req) {
		return
	}
	if err := a.Partners.Update(partner, req.Name); err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, partner)
}

func (a *API) deletePartner(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	partner, ok := a.loadPartner(ctx)
	if !ok {
		return
	}
	if err := a.Partners.Release(partner); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

type groupJSON struct {
	*models.Group
	Count *int `json:"count,omitempty"`
}

// listGroups returns the org's active groups, with gateway member counts
// when sizes=1.
func (a *API) listGroups(ctx *fasthttp.RequestCtx) {
	org := currentOrg(ctx)
	groups, err := a.Groups.GetAll(org.ID)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	var sizes map[string]int
	if utils.StrToBool(router.Query(ctx, "sizes")) {
		if sizes, err = a.Groups.FetchSizes(a.ctx(), org, groups); err != nil {
			a.writeError(ctx, err)
			return
		}
	}
	results := make([]groupJSON, len(groups))
	for i, g := range groups {
		results[i] = groupJSON{Group: g}
		if sizes != nil {
			n := sizes[g.UUID]
			results[i].Count = &n
		}
	}
	_ = router.WriteJSON(ctx, map[string]any{"results": results})
}

func (a *API) syncGroups(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	var req struct {
		Groups []string `json:"groups"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	if err := a.Groups.UpdateGroups(a.ctx(), currentOrg(ctx), req.Groups); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

func (a *API) getContact(ctx *fasthttp.RequestCtx) {
	org := currentOrg(ctx)
	uuid := router.PathParam(ctx, "uuid")
	contact, err := a.Contacts.GetOrCreate(org.ID, uuid)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	out, err := a.Contacts.AsJSON(a.ctx(), org, contact, utils.StrToBool(router.Query(ctx, "fields")))
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, out)
}

func (a *API) getOrg(ctx *fasthttp.RequestCtx) {
	org := currentOrg(ctx)
	var result map[string]any
	if _, err := a.Tracker.TaskResult(a.ctx(), org.ID, orgs.TaskLabelMessages, &result); err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{
		"id":             org.ID,
		"name":           org.Name,
		"banner_text":    orgs.BannerText(org),
		"contact_fields": orgs.ContactFields(org),
		"suspend_groups": orgs.SuspendGroups(org),
		"task_result":    result,
	})
}

func (a *API) updateOrg(ctx *fasthttp.RequestCtx) {
	if !requireAdmin(ctx) {
		return
	}
	var req struct {
		BannerText    *string  `json:"banner_text"`
		ContactFields []string `json:"contact_fields"`
		SuspendGroups []string `json:"suspend_groups"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	org := currentOrg(ctx)
	if req.BannerText != nil {
		org.BannerText = *req.BannerText
	}
	if req.ContactFields != nil {
		org.ContactFields = req.ContactFields
	}
	if req.SuspendGroups != nil {
		org.SuspendGroups = req.SuspendGroups
	}
	if err := a.Store.SaveOrg(org); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}
