package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"

	EventsNone  = "none"
	EventsAMQP  = "amqp"
	EventsKafka = "kafka"

	defaultCron     = "* * * * *"
	defaultLockTTL  = 5 * time.Minute
	defaultLookback = time.Hour
	defaultCacheTTL = 7 * 24 * time.Hour
	defaultMaxBody  = 4 << 20
	defaultExchange = "helpdesk"
	defaultTopic    = "helpdesk.events"
)

// ValidateConfig fills defaults into the effective config and fails fast on
// settings the service cannot start with.
func ValidateConfig(eff *EffectiveConfigResult) error {
	if eff.Config == nil {
		eff.Config = &Config{}
	}
	cfg := eff.Config

	if strings.TrimSpace(eff.DBPath) == "" {
		return fmt.Errorf("database path is empty: set --db flag, %sDB_PATH env, or server.db_path in config", EnvPrefix)
	}
	cfg.Server.DBPath = eff.DBPath
	if cfg.Server.MaxBodySize <= 0 {
		cfg.Server.MaxBodySize = defaultMaxBody
	}

	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))

	switch cfg.Cache.Driver {
	case "":
		cfg.Cache.Driver = CacheMemory
	case CacheMemory:
	case CacheRedis:
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache driver")
		}
	default:
		return fmt.Errorf("unknown cache driver %q (want memory or redis)", cfg.Cache.Driver)
	}
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = Duration(defaultCacheTTL)
	}

	if cfg.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if cfg.Gateway.Token == "" {
		for _, o := range cfg.Orgs {
			if o.APIToken == "" {
				return fmt.Errorf("org %d has no api_token and gateway.token is empty", o.ID)
			}
		}
	}

	if cfg.Labeller.Cron == "" {
		cfg.Labeller.Cron = defaultCron
	}
	if !gronx.IsValid(cfg.Labeller.Cron) {
		return fmt.Errorf("invalid labeller cron expression: %s", cfg.Labeller.Cron)
	}
	if cfg.Labeller.LockTTL <= 0 {
		cfg.Labeller.LockTTL = Duration(defaultLockTTL)
	}
	if cfg.Labeller.Lookback <= 0 {
		cfg.Labeller.Lookback = Duration(defaultLookback)
	}

	switch cfg.Events.Driver {
	case "":
		cfg.Events.Driver = EventsNone
	case EventsNone:
	case EventsAMQP:
		if cfg.Events.AMQP.URL == "" {
			return fmt.Errorf("events.amqp.url is required for the amqp events driver")
		}
		if cfg.Events.AMQP.Exchange == "" {
			cfg.Events.AMQP.Exchange = defaultExchange
		}
	case EventsKafka:
		if len(cfg.Events.Kafka.Brokers) == 0 {
			return fmt.Errorf("events.kafka.brokers is required for the kafka events driver")
		}
		if cfg.Events.Kafka.Topic == "" {
			cfg.Events.Kafka.Topic = defaultTopic
		}
	default:
		return fmt.Errorf("unknown events driver %q (want none, amqp or kafka)", cfg.Events.Driver)
	}

	seen := map[int64]bool{}
	for _, o := range cfg.Orgs {
		if o.ID <= 0 {
			return fmt.Errorf("org %q: id must be positive", o.Name)
		}
		if seen[o.ID] {
			return fmt.Errorf("org %d declared twice", o.ID)
		}
		seen[o.ID] = true
	}
	for _, u := range cfg.Users {
		if !seen[u.Org] {
			return fmt.Errorf("user %q: unknown org %d", u.Name, u.Org)
		}
		switch u.Role {
		case "admin", "manager", "analyst":
		default:
			return fmt.Errorf("user %q: unknown role %q", u.Name, u.Role)
		}
		if u.Role != "admin" && u.Partner == "" {
			return fmt.Errorf("user %q: %s users need a partner", u.Name, u.Role)
		}
	}
	return nil
}
