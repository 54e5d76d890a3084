// Package app wires the store, gateway, cache, events and services into a
// running helpdesk server.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/praekelt/helpdesk/internal/labeller"
	"github.com/praekelt/helpdesk/pkg/api"
	"github.com/praekelt/helpdesk/pkg/banner"
	"github.com/praekelt/helpdesk/pkg/cache"
	"github.com/praekelt/helpdesk/pkg/cases"
	"github.com/praekelt/helpdesk/pkg/config"
	"github.com/praekelt/helpdesk/pkg/events"
	"github.com/praekelt/helpdesk/pkg/gateway"
	"github.com/praekelt/helpdesk/pkg/logger"
	"github.com/praekelt/helpdesk/pkg/messages"
	"github.com/praekelt/helpdesk/pkg/metrics"
	"github.com/praekelt/helpdesk/pkg/orgs"
	"github.com/praekelt/helpdesk/pkg/outgoing"
	"github.com/praekelt/helpdesk/pkg/registry"
	"github.com/praekelt/helpdesk/pkg/store"
	"github.com/praekelt/helpdesk/pkg/timeline"
)

// App groups server state and components.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	store    *store.Store
	cache    cache.Cache
	events   events.Publisher
	gateways gateway.Provider
	deps     api.Deps
	runner   *labeller.Runner

	labellerCancel context.CancelFunc
	srvFast        *fasthttp.Server
	state          string
}

// New opens the store and builds every component that does not need a
// running context. Call Run to start the labeller and the http server.
func New(ctx context.Context, eff config.EffectiveConfigResult, version string) (*App, error) {
	if eff.Config == nil {
		return nil, fmt.Errorf("effective config is empty")
	}
	cfg := eff.Config

	if err := os.MkdirAll(eff.DBPath, 0o700); err != nil {
		return nil, fmt.Errorf("create db dir %s: %w", eff.DBPath, err)
	}
	s, err := store.Open(filepath.Join(eff.DBPath, "store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}
	a := &App{eff: eff, version: version, store: s, state: "starting"}

	if a.cache, err = newCache(ctx, cfg.Cache); err != nil {
		_ = s.Close()
		return nil, err
	}
	if a.events, err = newPublisher(cfg.Events); err != nil {
		_ = a.cache.Close()
		_ = s.Close()
		return nil, err
	}
	a.gateways = gateway.NewPool(gateway.ClientOptions{
		BaseURL: cfg.Gateway.BaseURL,
		Token:   cfg.Gateway.Token,
		Timeout: cfg.Gateway.Timeout.Duration(),
		RPS:     cfg.Gateway.RPS,
		Burst:   cfg.Gateway.Burst,
	}, cfg.OrgTokens())

	a.wire(cfg)

	if err := a.seed(cfg); err != nil {
		a.close()
		return nil, fmt.Errorf("seed orgs: %w", err)
	}
	metrics.RegisterStoreUsage(s.DiskUsage)
	return a, nil
}

func (a *App) wire(cfg *config.Config) {
	tracker := orgs.NewTracker(a.cache).WithTTL(cfg.Cache.TTL.Duration())
	labels := registry.NewLabels(a.store, a.gateways)
	engine := cases.NewEngine(a.store, a.gateways, cases.Options{Events: a.events})

	a.deps = api.Deps{
		Store:    a.store,
		Gateways: a.gateways,
		Cases:    engine,
		Timeline: timeline.NewAssembler(a.store, a.gateways, tracker, nil),
		Messages: messages.NewService(a.store, a.gateways, labels, tracker, nil),
		Outgoing: outgoing.NewService(a.store, a.gateways, tracker, a.events),
		Labels:   labels,
		Partners: registry.NewPartners(a.store),
		Groups:   registry.NewGroups(a.store, a.gateways),
		Contacts: registry.NewContacts(a.store, a.gateways),
		Tracker:  tracker,
	}
	a.runner = labeller.NewRunner(a.store, a.gateways, engine, tracker, cfg.Labeller.Lookback.Duration(), nil)
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Cache, error) {
	if cfg.Driver != config.CacheRedis {
		return cache.NewMemory(), nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return cache.NewRedis(pingCtx, cache.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Driver {
	case config.EventsAMQP:
		return events.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
	case config.EventsKafka:
		return events.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	return events.Noop{}, nil
}

// Run starts the labeller (if enabled) and the http server, and blocks until
// ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	banner.Print(os.Stdout, a.eff, a.version)
	logger.LogConfigSummary("config_summary", banner.Lines(a.eff, a.version))

	if a.eff.Config.Labeller.Enabled {
		cancel, err := labeller.Start(ctx, a.runner, labeller.SchedulerOptions{
			Cron:    a.eff.Config.Labeller.Cron,
			LockTTL: a.eff.Config.Labeller.LockTTL.Duration(),
			LockDir: filepath.Join(a.eff.DBPath, "state", "labeller"),
		})
		if err != nil {
			return err
		}
		a.labellerCancel = cancel
	} else {
		logger.Info("labeller_disabled")
	}

	errCh := a.startHTTP(ctx)
	a.state = "running"

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Runner exposes the labelling task for one-off runs from the cli.
func (a *App) Runner() *labeller.Runner { return a.runner }

func (a *App) Deps() api.Deps { return a.deps }

func (a *App) State() string { return a.state }
