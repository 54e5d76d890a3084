package api

import (
	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/pkg/api/router"
	"github.com/praekelt/helpdesk/pkg/messages"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/utils"
)

var messageActions = map[string]models.MessageActionKind{
	"flag":    models.MessageFlag,
	"unflag":  models.MessageUnflag,
	"label":   models.MessageLabel,
	"unlabel": models.MessageUnlabel,
	"archive": models.MessageArchive,
	"restore": models.MessageRestore,
}

// searchMessages serves the inbox. after and before are microsecond epochs;
// a request with after set is a poll for new messages.
func (a *API) searchMessages(ctx *fasthttp.RequestCtx) {
	view, err := messages.ParseView(router.Query(ctx, "view"))
	if err != nil {
		badRequest(ctx, err.Error())
		return
	}
	q := messages.SearchQuery{
		View:     view,
		Text:     router.Query(ctx, "text"),
		Contacts: utils.SplitList(router.Query(ctx, "contacts")),
		Groups:   utils.SplitList(router.Query(ctx, "groups")),
	}
	if q.LabelID, err = router.QueryInt64(ctx, "label", 0); err != nil {
		badRequest(ctx, err.Error())
		return
	}
	page, err := router.QueryInt64(ctx, "page", 1)
	if err != nil || page < 1 {
		badRequest(ctx, "invalid page")
		return
	}
	q.Page = int(page)
	if q.After, err = router.QueryMicros(ctx, "after"); err != nil {
		badRequest(ctx, err.Error())
		return
	}
	if q.Before, err = router.QueryMicros(ctx, "before"); err != nil {
		badRequest(ctx, err.Error())
		return
	}

	result, err := a.Messages.Search(a.ctx(), currentOrg(ctx), currentUser(ctx), q)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, result)
}

func (a *API) messageAction(ctx *fasthttp.RequestCtx) {
	kind, ok := messageActions[router.PathParam(ctx, "action")]
	if !ok {
		badRequest(ctx, "unknown message action")
		return
	}
	var req struct {
		Messages []int64 `json:"messages"`
		Label    int64   `json:"label"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	if len(req.Messages) == 0 {
		badRequest(ctx, "no messages given")
		return
	}

	org, user := currentOrg(ctx), currentUser(ctx)
	var label *models.Label
	if kind == models.MessageLabel || kind == models.MessageUnlabel {
		var err error
		if label, err = a.visibleLabel(org, user, req.Label); err != nil {
			a.writeError(ctx, err)
			return
		}
		if label == nil {
			badRequest(ctx, "unknown label")
			return
		}
	}
	action, err := a.Messages.Apply(a.ctx(), org, user, kind, req.Messages, label)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, action)
}

func (a *API) visibleLabel(org *models.Org, user *models.User, id int64) (*models.Label, error) {
	labels, err := a.Labels.GetAll(org.ID, user)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, nil
}

func (a *API) sendMessage(ctx *fasthttp.RequestCtx) {
	var req struct {
		Text     string   `json:"text"`
		URNs     []string `json:"urns"`
		Contacts []string `json:"contacts"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}
	out, err := a.Outgoing.Create(a.ctx(), currentOrg(ctx), currentUser(ctx), models.ActivityBulkReply, req.Text, req.URNs, req.Contacts, nil)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONStatus(ctx, fasthttp.StatusCreated, out)
}

// relabelMessage replaces the labels of one message with the given set,
// limited to labels the user can see.
func (a *API) relabelMessage(ctx *fasthttp.RequestCtx) {
	id, ok := router.PathInt64(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Labels []int64 `json:"labels"`
	}
	if !router.DecodeBody(ctx, &req) {
		return
	}

	org, user := currentOrg(ctx), currentUser(ctx)
	selected := make([]*models.Label, 0, len(req.Labels))
	for _, lid := range req.Labels {
		label, err := a.visibleLabel(org, user, lid)
		if err != nil {
			a.writeError(ctx, err)
			return
		}
		if label == nil {
			badRequest(ctx, "unknown label")
			return
		}
		selected = append(selected, label)
	}

	gw, err := a.Gateways.ForOrg(org.ID)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	msg, err := gw.GetMessage(a.ctx(), id)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	if err := a.Messages.Relabel(a.ctx(), org, user, msg, selected); err != nil {
		a.writeError(ctx, err)
		return
	}
	router.WriteJSONOk(ctx)
}

func (a *API) messageHistory(ctx *fasthttp.RequestCtx) {
	id, ok := router.PathInt64(ctx, "id")
	if !ok {
		return
	}
	actions, err := a.Messages.History(currentOrg(ctx).ID, id)
	if err != nil {
		a.writeError(ctx, err)
		return
	}
	_ = router.WriteJSON(ctx, map[string]any{"actions": nonNil(actions)})
}
