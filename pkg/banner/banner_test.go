package banner

import (
	"bytes"
	"strings"
	"testing"

	"github.com/praekelt/helpdesk/pkg/config"
)

func TestPrint(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.Driver = config.CacheRedis
	cfg.Labeller.Enabled = true
	cfg.Labeller.Cron = "* * * * *"
	cfg.Orgs = []config.OrgSeed{{ID: 1}, {ID: 2}}
	eff := config.EffectiveConfigResult{Config: cfg, Addr: ":8080", DBPath: "/db", Source: "config"}

	var buf bytes.Buffer
	Print(&buf, eff, "1.2.3")
	out := buf.String()
	for _, want := range []string{"Listen:   :8080", "Version:  1.2.3", "Labeller: enabled (cron=* * * * *", "2 seeded", "Cache: shared (redis)"} {
		if !strings.Contains(out, want) {
			t.Errorf("banner missing %q:\n%s", want, out)
		}
	}
}
