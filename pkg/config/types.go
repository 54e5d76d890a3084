package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
	Cache    CacheConfig    `yaml:"cache"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Labeller LabellerConfig `yaml:"labeller"`
	Events   EventsConfig   `yaml:"events"`
	Orgs     []OrgSeed      `yaml:"orgs"`
	Users    []UserSeed     `yaml:"users"`
}

// ServerConfig holds http listener and storage settings.
type ServerConfig struct {
	Address     string    `yaml:"address"`
	Port        int       `yaml:"port"`
	DBPath      string    `yaml:"db_path"`
	MaxBodySize SizeBytes `yaml:"max_body_size"`
	RateLimit   struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CacheConfig selects where org watermarks and task results live.
type CacheConfig struct {
	Driver string   `yaml:"driver"` // memory | redis
	TTL    Duration `yaml:"ttl"`
	Redis  struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// GatewayConfig configures the messaging gateway client. Orgs without their
// own api_token use Token.
type GatewayConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"token"`
	Timeout Duration `yaml:"timeout"`
	RPS     float64  `yaml:"rps"`
	Burst   int      `yaml:"burst"`
}

// LabellerConfig holds configuration for the unsolicited message task.
type LabellerConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Cron     string   `yaml:"cron"`
	LockTTL  Duration `yaml:"lock_ttl"`
	Lookback Duration `yaml:"lookback"`
}

type EventsConfig struct {
	Driver string `yaml:"driver"` // none | amqp | kafka
	AMQP   struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

// OrgSeed is an org created or updated at startup.
type OrgSeed struct {
	ID            int64    `yaml:"id"`
	Name          string   `yaml:"name"`
	APIToken      string   `yaml:"api_token"`
	BannerText    string   `yaml:"banner_text"`
	ContactFields []string `yaml:"contact_fields"`
	SuspendGroups []string `yaml:"suspend_groups"`
}

// UserSeed is a user created at startup if no user with the same email
// exists in the org. Partner names a partner of the org, created if missing.
type UserSeed struct {
	Org     int64  `yaml:"org"`
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Role    string `yaml:"role"`
	Partner string `yaml:"partner"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "4MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	return s.parse(node.Value)
}

func (s *SizeBytes) parse(value string) error {
	raw := strings.TrimSpace(value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) String() string { return humanize.IBytes(uint64(s)) }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(value string) error {
	raw := strings.TrimSpace(value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
