package api

import (
	"strings"

	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/pkg/api/router"
	"github.com/praekelt/helpdesk/pkg/cases"
	"github.com/praekelt/helpdesk/pkg/models"
)

type caseJSON struct {
	*models.Case
	IsOpen bool   `json:"is_open"`
	Access string `json:"access,omitempty"`
}

func (a *API) caseOut(c *models.Case, user *models.User) (caseJSON, error) {
	level, err := a.Cases.AccessLevel(c, user)
	if err != nil {
		return caseJSON{}, err
	}
	return caseJSON{Case: c, IsOpen: c.IsOpen(), Access: level.String()}, nil
}

// loadCase fetches the {id} case of the caller's org and checks the caller
// has at least min access.
func (a *API) loadCase(ctx *fasthttp.RequestCtx, min cases.AccessLevel) (*models.Case, bool) {
	id, ok := router.PathInt64(ctx, "id")
	if !ok {
		return nil, false
	}
	c, err := a.Cases.Get(currentOrg(ctx).ID, id)
	if err != nil {
		a.writeError(ctx, err)
		return nil, false
	}
	level, err := a.Cases.AccessLevel(c, currentUser(ctx))
	if err != nil {
		a.writeError(ctx, err)
		return nil, false
	}
	if level < min {
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, "permission denied")
		return nil, false
	}
	return c, true
}

type openCaseRequest struct {
	Message  int64  `json:"message"`
	Summary  string `json:"summary"`
	Assignee int64  `json:"assignee"`
}

// openCase opens a case from an inbox message. Users attached to a partner
// always assign to their own partner.
func (a *API) openCase(ctx *fasthttp.RequestCtx) {
	var req openCaseRequest
	if !router.DecodeBody(ctx, &req) {
		return
	}
	org, user := currentOrg(ctx), currentUser(ctx)
	if req.Message <= 0 {
		badRequest(ctx, "message is required")
		return
	}
	if strings.TrimSpace(req.Summary) == "" {
		badRequest(ctx, "summary is required")
		return
	}

	assigneeID := req.Assignee
	if user.HasPartner() {
		assigneeID = user.PartnerID
	}
	if assigneeID == 0 {
		badRequest(ctx, "assignee is required")
		return
	}
	assignee, err := a.Partners.Get(org.ID, assigneeID)
	if err != nil {
		a.writeError(ctx, err)
		return
	}

	gw, err := a.Gateways.ForOrg(org.ID)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	msg, err := gw.GetMessage(a.ctx(), req.Message)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	orgLabels, err := a.Labels.GetAll(org.ID, nil)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	var labels []*models.Label
	for _, l := range orgLabels {
		if msg.HasLabel(l.Name) {
			labels = append(labels, l)
		}
	}

	c, created, err := a.Cases.GetOrOpen(a.ctx(), org, cases.OpenParams{
		User:          user,
		Labels:        labels,
		Message:       *msg,
		Summary:       strings.TrimSpace(req.Summary),
		Assignee:      assignee,
		UpdateContact: true,
	})
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	out, err := a.caseOut(c, user)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	status := fasthttp.StatusOK
	if created {
		status = fasthttp.StatusCreated
	}
	router.WriteJSONStatus(ctx, status, map[string]any{"case": out, "is_new": created})
}

func (a *API) listCases(ctx *fasthttp.RequestCtx) {
	org, user := currentOrg(ctx), currentUser(ctx)
	var view cases.View
	switch router.Query(ctx, "view") {
	case "", "open":
		view = cases.ViewOpen
	case "closed":
		view = cases.ViewClosed
	case "all":
		view = cases.ViewAll
	default:
		badRequest(ctx, "view must be open, closed or all")
		return
	}
	labelID, err := router.QueryInt64(ctx, "label", 0)
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}
	list, err := a.Cases.List(org.ID, cases.Filter{User: user, LabelID: labelID, View: view})
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	results := make([]caseJSON, 0, len(list))
	for _, c := range list {
		out, err := a.caseOut(c, user)
		if err != nil {
			a.writeError(ctx, err)
			return
		}
		results = append(results, out)
	}
	_ = router.WriteJSON(ctx, map[string]any{"results": results})
}

func (a *API) getCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessRead)
	if !ok {
		return
	}
	out, err := a.caseOut(c, currentUser(ctx))
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	contact, err := a.Contacts.GetOrCreate(c.OrgID, c.ContactUUID)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	contactOut, err := a.Contacts.AsJSON(a.ctx(), currentOrg(ctx), contact, false)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{"case": out, "contact": contactOut})
}

func (a *API) closeCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessRead)
	if !ok {
		return
	}
	if err := a.Cases.Close(a.ctx(), c, currentUser(ctx)); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

func (a *API) reopenCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessUpdate)
	if !ok {
		return
	}
	if err := a.Cases.Reopen(a.ctx(), c, currentUser(ctx)); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

func (a *API) reassignCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessRead)
	if !ok {
		return
	}
	var req struct {
		Assignee int64 `json:"assignee"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	partner, err := a.Partners.Get(c.OrgID, req.Assignee)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	if err := a.Cases.Reassign(a.ctx(), c, currentUser(ctx), partner); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

func (a *API) noteCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessRead)
	if !ok {
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		badRequest(ctx, "note is required")
		return
	}
	if err := a.Cases.AddNote(a.ctx(), c, currentUser(ctx), req.Note); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

func (a *API) labelCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessRead)
	if !ok {
		return
	}
	var req struct {
		Labels []int64 `json:"labels"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	labels := make([]*models.Label, 0, len(req.Labels))
	for _, id := range req.Labels {
		l, err := a.Labels.Get(c.OrgID, id)
		if err != nil {
			a.writeError(ctx, err)
			return
		}
		labels = append(labels, l)
	}
	if err := a.Cases.UpdateLabels(a.ctx(), c, currentUser(ctx), labels); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

// replyCase sends a message to the case contact.
func (a *API) replyCase(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessUpdate)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	out, err := a.Outgoing.Create(a.ctx(), currentOrg(ctx), currentUser(ctx), models.ActivityCaseReply, req.Text, nil, []string{c.ContactUUID}, c)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONStatus(ctx, fasthttp.StatusCreated, out)
}

func (a *API) caseTimeline(ctx *fasthttp.RequestCtx) {
	c, ok := a.loadCase(ctx, cases.AccessRead)
	if !ok {
		return
	}
	after, err := router.QueryMicros(ctx, "after")
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}
	before, err := router.QueryMicros(ctx, "before")
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}
	if !before.IsZero() && !before.After(after) {
		badRequest(ctx, "before must be later than after")
		return
	}
	page, err := a.Timeline.Assemble(a.ctx(), c, after, before)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, page)
}
