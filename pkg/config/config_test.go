package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
server:
  address: 127.0.0.1
  port: 9090
  db_path: /var/lib/helpdesk
  max_body_size: 2MB
  rate_limit:
    rps: 20
    burst: 40
logging:
  level: DEBUG
cache:
  driver: redis
  ttl: 48h
  redis:
    addr: localhost:6379
gateway:
  base_url: https://gateway.example.org
  token: default-token
  timeout: 15
labeller:
  enabled: true
  cron: "*/5 * * * *"
  lock_ttl: 2m
events:
  driver: kafka
  kafka:
    brokers: [localhost:9092]
orgs:
  - id: 1
    name: UNICEF
    api_token: unicef-token
    contact_fields: [age, gender]
  - id: 2
    name: Nyaruka
users:
  - org: 1
    name: Kidus
    role: admin
  - org: 1
    name: Evan
    role: manager
    partner: MOH
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, int64(2_000_000), cfg.Server.MaxBodySize.Int64())
	assert.Equal(t, 48*time.Hour, cfg.Cache.TTL.Duration())
	assert.Equal(t, 15*time.Second, cfg.Gateway.Timeout.Duration())
	assert.Equal(t, 2*time.Minute, cfg.Labeller.LockTTL.Duration())
	assert.Equal(t, map[int64]string{1: "unicef-token"}, cfg.OrgTokens())
	assert.Equal(t, []string{"age", "gender"}, cfg.Orgs[0].ContactFields)
	assert.Equal(t, "MOH", cfg.Users[1].Partner)
}

func TestLoadRejectsBadValues(t *testing.T) {
	_, err := Load(writeConfig(t, "gateway:\n  timeout: soon\n"))
	assert.Error(t, err)
	_, err = Load(writeConfig(t, "server:\n  max_body_size: lots\n"))
	assert.Error(t, err)
}

func TestParseConfigEnvs(t *testing.T) {
	t.Setenv("HELPDESK_ADDR", "localhost:7000")
	t.Setenv("HELPDESK_DB_PATH", "/tmp/db")
	t.Setenv("HELPDESK_GATEWAY_URL", "https://gw")
	t.Setenv("HELPDESK_GATEWAY_TIMEOUT", "3s")
	t.Setenv("HELPDESK_LABELLER_ENABLED", "yes")
	t.Setenv("HELPDESK_KAFKA_BROKERS", "a:9092, b:9092")

	cfg, used, err := ParseConfigEnvs()
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, "localhost:7000", cfg.Addr())
	assert.Equal(t, "/tmp/db", cfg.Server.DBPath)
	assert.Equal(t, 3*time.Second, cfg.Gateway.Timeout.Duration())
	assert.True(t, cfg.Labeller.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Kafka.Brokers)

	t.Setenv("HELPDESK_REDIS_DB", "one")
	_, _, err = ParseConfigEnvs()
	assert.Error(t, err)
}

func TestLoadEffectiveConfig(t *testing.T) {
	fileCfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	envCfg := &Config{}
	envCfg.Server.DBPath = "/env/db"

	tests := []struct {
		name       string
		flags      Flags
		fileExists bool
		source     string
		addr       string
		dbPath     string
		wantErr    bool
	}{
		{"explicit config", Flags{Config: "x", Set: map[string]bool{"config": true}}, true, "config", "127.0.0.1:9090", "/var/lib/helpdesk", false},
		{"explicit missing config", Flags{Config: "x", Set: map[string]bool{"config": true}}, false, "", "", "", true},
		{"flags over file", Flags{Addr: ":7070", DB: "./db", Set: map[string]bool{"addr": true}}, true, "flags", ":7070", "/var/lib/helpdesk", false},
		{"db flag only", Flags{Addr: ":8080", DB: "./db", Set: map[string]bool{"db": true}}, false, "flags", "0.0.0.0:8080", "./db", false},
		{"file when present", Flags{Set: map[string]bool{}}, true, "config", "127.0.0.1:9090", "/var/lib/helpdesk", false},
		{"env fallback", Flags{Set: map[string]bool{}}, false, "env", "0.0.0.0:8080", "/env/db", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := LoadEffectiveConfig(tt.flags, fileCfg, tt.fileExists, envCfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, res.Source)
			assert.Equal(t, tt.addr, res.Addr)
			assert.Equal(t, tt.dbPath, res.DBPath)
		})
	}
}

func TestBindFlags(t *testing.T) {
	fs := pflag.NewFlagSet("helpdesk", pflag.ContinueOnError)
	flags := BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--db", "/data"}))
	flags.Resolve(fs)

	assert.Equal(t, "/data", flags.DB)
	assert.True(t, flags.Set["db"])
	assert.False(t, flags.Set["addr"])
	assert.Equal(t, DefaultConfig, flags.Config)
}

func TestValidateConfig(t *testing.T) {
	base := func() *EffectiveConfigResult {
		cfg := &Config{}
		cfg.Gateway.BaseURL = "https://gw"
		cfg.Gateway.Token = "t"
		return &EffectiveConfigResult{Config: cfg, DBPath: "/db"}
	}

	eff := base()
	require.NoError(t, ValidateConfig(eff))
	assert.Equal(t, CacheMemory, eff.Config.Cache.Driver)
	assert.Equal(t, EventsNone, eff.Config.Events.Driver)
	assert.Equal(t, defaultCron, eff.Config.Labeller.Cron)
	assert.Equal(t, time.Hour, eff.Config.Labeller.Lookback.Duration())
	assert.Equal(t, "/db", eff.Config.Server.DBPath)

	tests := []struct {
		name   string
		mutate func(e *EffectiveConfigResult)
	}{
		{"no db path", func(e *EffectiveConfigResult) { e.DBPath = "" }},
		{"bad cron", func(e *EffectiveConfigResult) { e.Config.Labeller.Cron = "every minute" }},
		{"unknown cache", func(e *EffectiveConfigResult) { e.Config.Cache.Driver = "memcached" }},
		{"redis without addr", func(e *EffectiveConfigResult) { e.Config.Cache.Driver = CacheRedis }},
		{"unknown events", func(e *EffectiveConfigResult) { e.Config.Events.Driver = "nats" }},
		{"amqp without url", func(e *EffectiveConfigResult) { e.Config.Events.Driver = EventsAMQP }},
		{"no gateway url", func(e *EffectiveConfigResult) { e.Config.Gateway.BaseURL = "" }},
		{"org without token", func(e *EffectiveConfigResult) {
			e.Config.Gateway.Token = ""
			e.Config.Orgs = []OrgSeed{{ID: 1, Name: "UNICEF"}}
		}},
		{"user in unknown org", func(e *EffectiveConfigResult) {
			e.Config.Users = []UserSeed{{Org: 9, Name: "x", Role: "admin"}}
		}},
		{"analyst without partner", func(e *EffectiveConfigResult) {
			e.Config.Orgs = []OrgSeed{{ID: 1, Name: "UNICEF"}}
			e.Config.Users = []UserSeed{{Org: 1, Name: "x", Role: "analyst"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eff := base()
			tt.mutate(eff)
			assert.Error(t, ValidateConfig(eff))
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HELPDESK_TEST_DOTENV=loaded\n"), 0o600))
	t.Setenv("HELPDESK_TEST_DOTENV", "")
	os.Unsetenv("HELPDESK_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("HELPDESK_TEST_DOTENV"))
}
