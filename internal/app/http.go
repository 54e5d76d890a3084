package app

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/pkg/api"
	"github.com/praekelt/helpdesk/pkg/api/router"
	"github.com/praekelt/helpdesk/pkg/metrics"
)

// readyzHandlerFast reports whether the store is open.
func (a *App) readyzHandlerFast(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	if !a.store.Ready() || a.state == "shutting_down" {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		_, _ = ctx.WriteString("{\"status\":\"not ready\"}")
		return
	}
	ctx.SetStatusCode(fasthttp.StatusOK)
	ver := a.version
	if ver == "" {
		ver = "dev"
	}
	_, _ = ctx.WriteString("{\"status\":\"ok\",\"version\":\"" + ver + "\"}")
}

func (a *App) healthzHandlerFast(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(fasthttp.StatusOK)
	_, _ = ctx.WriteString("{\"status\":\"ok\"}")
}

// Handler builds the full request handler: routes plus instrumentation, rate
// limiting and user resolution.
func (a *App) Handler(ctx context.Context) fasthttp.RequestHandler {
	r := router.New()
	r.GET("/healthz", a.healthzHandlerFast)
	r.GET("/readyz", a.readyzHandlerFast)
	r.GET("/metrics", metrics.Handler())

	handlers := api.New(a.deps).WithContext(ctx)
	handlers.Register(r)

	r.NotFound(func(ctx *fasthttp.RequestCtx) {
		router.WriteJSONError(ctx, fasthttp.StatusNotFound, "not found")
	})

	h := handlers.Authenticate(r.Handler)
	rl := a.eff.Config.Server.RateLimit
	h = api.RateLimit(rl.RPS, rl.Burst)(h)
	return api.Instrument(h)
}

// startHTTP builds and starts the fasthttp server, returning a channel that delivers errors.
func (a *App) startHTTP(ctx context.Context) <-chan error {
	const (
		readBufferSize       = 64 * 1024
		readTimeout          = 10 * time.Second
		writeTimeout         = 30 * time.Second // gateway calls happen inside requests
		idleTimeout          = 30 * time.Second
		maxKeepaliveDuration = 2 * time.Minute
	)
	a.srvFast = &fasthttp.Server{
		Handler:              a.Handler(ctx),
		Name:                 "helpdesk",
		ReadBufferSize:       readBufferSize,
		MaxRequestBodySize:   int(a.eff.Config.Server.MaxBodySize.Int64()),
		ReduceMemoryUsage:    true,
		ReadTimeout:          readTimeout,
		WriteTimeout:         writeTimeout,
		IdleTimeout:          idleTimeout,
		MaxKeepaliveDuration: maxKeepaliveDuration,
	}

	errCh := make(chan error, 1)
	go func() {
		// plain TCP; TLS terminates at the proxy
		errCh <- a.srvFast.ListenAndServe(a.eff.Addr)
	}()
	return errCh
}
