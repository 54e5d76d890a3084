// Package api serves the helpdesk JSON API over fasthttp. Every /api/v1
// request acts as the user named by the X-User-ID header.
package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/pkg/api/router"
	"github.com/praekelt/helpdesk/pkg/cases"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/messages"
	"github.com/praekelt/helpdesk/pkg/metrics"
	"github.com/praekelt/helpdesk/pkg/models"
	"github.com/praekelt/helpdesk/pkg/orgs"
	"github.com/praekelt/helpdesk/pkg/outgoing"
	"github.com/praekelt/helpdesk/pkg/registry"
	"github.com/praekelt/helpdesk/pkg/store"
	"github.com/praekelt/helpdesk/pkg/timeline"
)

const (
	Prefix     = "/api/v1"
	UserHeader = "X-User-ID"

	userKey = "helpdesk.user"
	orgKey  = "helpdesk.org"
)

type Deps struct {
	Store    *store.Store
	Gateways gateway.Provider
	Cases    *cases.Engine
	Timeline *timeline.Assembler
	Messages *messages.Service
	Outgoing *outgoing.Service
	Labels   *registry.Labels
	Partners *registry.Partners
	Groups   *registry.Groups
	Contacts *registry.Contacts
	Tracker  *orgs.Tracker
}

type API struct {
	Deps
	base context.Context
}

func New(d Deps) *API {
	return &API{Deps: d, base: context.Background()}
}

// WithContext sets the context gateway and cache calls run under, normally
// the process context cancelled at shutdown.
func (a *API) WithContext(ctx context.Context) *API {
	a.base = ctx
	return a
}

func (a *API) ctx() context.Context { return a.base }

// Register wires every /api/v1 route onto r.
func (a *API) Register(r *router.Router) {
	v1 := r.Group(Prefix)

	v1.GET("/org", a.getOrg)
	v1.PUT("/org", a.updateOrg)

	v1.POST("/cases", a.openCase)
	v1.GET("/cases", a.listCases)
	v1.GET("/cases/{id}", a.getCase)
	v1.POST("/cases/{id}/close", a.closeCase)
	v1.POST("/cases/{id}/reopen", a.reopenCase)
	v1.POST("/cases/{id}/reassign", a.reassignCase)
	v1.POST("/cases/{id}/note", a.noteCase)
	v1.POST("/cases/{id}/labels", a.labelCase)
	v1.POST("/cases/{id}/reply", a.replyCase)
	v1.GET("/cases/{id}/timeline", a.caseTimeline)

	v1.GET("/labels", a.listLabels)
	v1.POST("/labels", a.createLabel)
	v1.PUT("/labels/{id}", a.updateLabel)
	v1.DELETE("/labels/{id}", a.deleteLabel)

	v1.GET("/partners", a.listPartners)
	v1.POST("/partners", a.createPartner)
	v1.GET("/partners/{id}", a.getPartner)
	v1.PUT("/partners/{id}", a.updatePartner)
	v1.DELETE("/partners/{id}", a.deletePartner)

	v1.GET("/groups", a.listGroups)
	v1.POST("/groups/sync", a.syncGroups)
	v1.GET("/contacts/{uuid}", a.getContact)

	v1.GET("/messages", a.searchMessages)
	v1.POST("/messages/action/{action}", a.messageAction)
	v1.POST("/messages/send", a.sendMessage)
	v1.POST("/messages/{id}/label", a.relabelMessage)
	v1.GET("/messages/{id}/history", a.messageHistory)
}

// Authenticate resolves the acting user and org of /api/v1 requests from the
// X-User-ID header. Other paths pass through untouched.
func (a *API) Authenticate(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	prefix := []byte(Prefix + "/")
	return func(ctx *fasthttp.RequestCtx) {
		if !hasPrefix(ctx.Path(), prefix) {
			next(ctx)
			return
		}
		raw := string(ctx.Request.Header.Peek(UserHeader))
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "missing or invalid "+UserHeader)
			return
		}
		user, err := a.Store.GetUser(id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				router.WriteJSONError(ctx, fasthttp.StatusUnauthorized, "unknown user")
				return
			}
			a.writeError(ctx, err)
			return
		}
		org, err := a.Store.GetOrg(user.OrgID)
		if err != nil {
			a.writeError(ctx, err)
			return
		}
		ctx.SetUserValue(userKey, user)
		ctx.SetUserValue(orgKey, org)
		next(ctx)
	}
}

func hasPrefix(path, prefix []byte) bool {
	return len(path) >= len(prefix) && string(path[:len(prefix)]) == string(prefix)
}

// Instrument counts and logs every request.
func Instrument(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		logger.LogRequestFast(ctx)
		next(ctx)
		status := ctx.Response.StatusCode()
		metrics.HTTPRequests.WithLabelValues(string(ctx.Method()), strconv.Itoa(status)).Inc()
		if status >= fasthttp.StatusInternalServerError {
			logger.Warn("request_failed", "method", string(ctx.Method()), "path", string(ctx.Path()), "status", status, "took", time.Since(start))
		}
	}
}

func currentUser(ctx *fasthttp.RequestCtx) *models.User {
	u, _ := ctx.UserValue(userKey).(*models.User)
	return u
}

func currentOrg(ctx *fasthttp.RequestCtx) *models.Org {
	o, _ := ctx.UserValue(orgKey).(*models.Org)
	return o
}

func requireAdmin(ctx *fasthttp.RequestCtx) bool {
	if !currentUser(ctx).IsAdmin() {
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, "administrator access required")
		return false
	}
	return true
}

// writeError maps domain errors onto status codes.
func (a *API) writeError(ctx *fasthttp.RequestCtx, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		router.WriteFieldErrors(ctx, verr.Error(), verr.Fields)
	case errors.Is(err, registry.ErrInvalid), errors.Is(err, outgoing.ErrNothingToSend):
		router.WriteJSONError(ctx, fasthttp.StatusBadRequest, err.Error())
	case errors.Is(err, cases.ErrPermissionDenied):
		router.WriteJSONError(ctx, fasthttp.StatusForbidden, err.Error())
	case errors.Is(err, store.ErrNotFound), errors.Is(err, gateway.ErrNotFound):
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	default:
		logger.Error("request_error", "method", string(ctx.Method()), "path", string(ctx.Path()), "error", err)
		router.WriteJSONError(ctx, fasthttp.StatusInternalServerError, "internal error")
	}
}

func badRequest(ctx *fasthttp.RequestCtx, msg string) {
	router.WriteJSONError(ctx, fasthttp.StatusBadRequest, msg)
}
