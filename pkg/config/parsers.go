package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/praekelt/helpdesk/pkg/utils"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// BindFlags registers the config flags on fs. Call Resolve after parsing.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{Set: map[string]bool{}}
	fs.StringVar(&f.Addr, "addr", fmt.Sprintf(":%d", DefaultPort), "HTTP listen address")
	fs.StringVar(&f.DB, "db", DefaultDBPath, "Pebble DB path")
	fs.StringVar(&f.Config, "config", DefaultConfig, "Path to config file")
	return f
}

// Resolve records which of the bound flags were given explicitly.
func (f *Flags) Resolve(fs *pflag.FlagSet) {
	for _, name := range []string{"addr", "db", "config"} {
		f.Set[name] = fs.Changed(name)
	}
}

// EffectiveConfigResult is the single config source chosen at startup.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "config", or "env"
}

func env(name string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + name))
}

// ParseConfigEnvs reads HELPDESK_* variables into a fresh Config and reports
// whether any were set.
func ParseConfigEnvs() (*Config, bool, error) {
	cfg := &Config{}
	used := false
	var errs []string
	set := func(name string, apply func(v string) error) {
		v := env(name)
		if v == "" {
			return
		}
		used = true
		if err := apply(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s%s: %v", EnvPrefix, name, err))
		}
	}
	str := func(dst *string) func(string) error {
		return func(v string) error { *dst = v; return nil }
	}
	integer := func(dst *int) func(string) error {
		return func(v string) error {
			n, err := strconv.Atoi(v)
			*dst = n
			return err
		}
	}
	float := func(dst *float64) func(string) error {
		return func(v string) error {
			f, err := strconv.ParseFloat(v, 64)
			*dst = f
			return err
		}
	}
	duration := func(dst *Duration) func(string) error {
		return func(v string) error { return dst.parse(v) }
	}
	boolean := func(dst *bool) func(string) error {
		return func(v string) error { *dst = utils.StrToBool(v); return nil }
	}

	set("ADDR", func(v string) error {
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			pi, err := strconv.Atoi(p)
			cfg.Server.Port = pi
			return err
		}
		cfg.Server.Address = v
		return nil
	})
	set("PORT", integer(&cfg.Server.Port))
	set("DB_PATH", str(&cfg.Server.DBPath))
	set("MAX_BODY_SIZE", func(v string) error { return cfg.Server.MaxBodySize.parse(v) })
	set("RATE_RPS", float(&cfg.Server.RateLimit.RPS))
	set("RATE_BURST", integer(&cfg.Server.RateLimit.Burst))

	set("LOG_LEVEL", str(&cfg.Logging.Level))

	set("CACHE_DRIVER", str(&cfg.Cache.Driver))
	set("CACHE_TTL", duration(&cfg.Cache.TTL))
	set("REDIS_ADDR", str(&cfg.Cache.Redis.Addr))
	set("REDIS_PASSWORD", str(&cfg.Cache.Redis.Password))
	set("REDIS_DB", integer(&cfg.Cache.Redis.DB))

	set("GATEWAY_URL", str(&cfg.Gateway.BaseURL))
	set("GATEWAY_TOKEN", str(&cfg.Gateway.Token))
	set("GATEWAY_TIMEOUT", duration(&cfg.Gateway.Timeout))
	set("GATEWAY_RPS", float(&cfg.Gateway.RPS))
	set("GATEWAY_BURST", integer(&cfg.Gateway.Burst))

	set("LABELLER_ENABLED", boolean(&cfg.Labeller.Enabled))
	set("LABELLER_CRON", str(&cfg.Labeller.Cron))
	set("LABELLER_LOCK_TTL", duration(&cfg.Labeller.LockTTL))
	set("LABELLER_LOOKBACK", duration(&cfg.Labeller.Lookback))

	set("EVENTS_DRIVER", str(&cfg.Events.Driver))
	set("AMQP_URL", str(&cfg.Events.AMQP.URL))
	set("AMQP_EXCHANGE", str(&cfg.Events.AMQP.Exchange))
	set("KAFKA_BROKERS", func(v string) error { cfg.Events.Kafka.Brokers = utils.SplitList(v); return nil })
	set("KAFKA_TOPIC", str(&cfg.Events.Kafka.Topic))

	if len(errs) > 0 {
		return nil, used, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}
	return cfg, used, nil
}

// LoadEffectiveConfig decides which single source to use. An explicit
// --config uses that file only; otherwise explicit --addr/--db flags win;
// else an existing config file; else the environment.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult
	if fileCfg == nil {
		fileCfg = &Config{}
	}
	if envCfg == nil {
		envCfg = &Config{}
	}

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = firstNonEmpty(fileCfg.Server.DBPath, flags.DB)
		res.Source = "config"
		return res, nil
	}

	if flags.Set["addr"] || flags.Set["db"] {
		base := envCfg
		if fileExists {
			base = fileCfg
		}
		out := *base
		addr := flags.Addr
		if !flags.Set["addr"] {
			addr = base.Addr()
		}
		dbPath := flags.DB
		if !flags.Set["db"] && strings.TrimSpace(base.Server.DBPath) != "" {
			dbPath = base.Server.DBPath
		}
		host, port := splitAddr(addr)
		out.Server.Address = host
		out.Server.Port = port
		out.Server.DBPath = dbPath
		res.Config = &out
		res.Addr = addr
		res.DBPath = dbPath
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		res.Config = fileCfg
		res.Addr = fileCfg.Addr()
		res.DBPath = firstNonEmpty(fileCfg.Server.DBPath, flags.DB)
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.Addr = envCfg.Addr()
	res.DBPath = firstNonEmpty(envCfg.Server.DBPath, flags.DB)
	res.Source = "env"
	return res, nil
}

// firstNonEmpty falls back to the --db default for sources without a db path.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitAddr(a string) (string, int) {
	h, p, err := net.SplitHostPort(a)
	if err != nil {
		return a, 0
	}
	pi, _ := strconv.Atoi(p)
	return h, pi
}
