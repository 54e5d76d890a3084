package banner

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/praekelt/helpdesk/pkg/config"
)

const banner = `
 _          _           _           _
| |__   ___| |_ __   __| | ___  ___| | __
| '_ \ / _ \ | '_ \ / _` + "`" + ` |/ _ \/ __| |/ /
| | | |  __/ | |_) | (_| |  __/\__ \   <
|_| |_|\___|_| .__/ \__,_|\___||___/_|\_\
             |_|
`

// Lines summarises the effective config, one entry per line, for the startup
// log and the banner.
func Lines(eff config.EffectiveConfigResult, version string) []string {
	cfg := eff.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}
	out := []string{
		fmt.Sprintf("Listen:   %s", eff.Addr),
		fmt.Sprintf("DB Path:  %s", eff.DBPath),
		fmt.Sprintf("Config:   %s", src),
	}
	if version != "" {
		out = append(out, fmt.Sprintf("Version:  %s", version))
	}
	out = append(out,
		fmt.Sprintf("Gateway:  %s (timeout %s, %.0f req/s)", cfg.Gateway.BaseURL, cfg.Gateway.Timeout.Duration(), cfg.Gateway.RPS),
		fmt.Sprintf("Cache:    %s (ttl %s)", cfg.Cache.Driver, cfg.Cache.TTL.Duration()),
		fmt.Sprintf("Events:   %s", cfg.Events.Driver),
		fmt.Sprintf("Body max: %s", cfg.Server.MaxBodySize),
	)
	if cfg.Labeller.Enabled {
		out = append(out, fmt.Sprintf("Labeller: enabled (cron=%s, lookback %s)", cfg.Labeller.Cron, cfg.Labeller.Lookback.Duration()))
	} else {
		out = append(out, "Labeller: disabled")
	}
	out = append(out, fmt.Sprintf("Orgs:     %s seeded, %s users", humanize.Comma(int64(len(cfg.Orgs))), humanize.Comma(int64(len(cfg.Users)))))
	return out
}

func Print(w io.Writer, eff config.EffectiveConfigResult, version string) {
	fmt.Fprint(w, banner)
	fmt.Fprintln(w, "== Config =====================================================")
	fmt.Fprintln(w, strings.Join(Lines(eff, version), "\n"))
	fmt.Fprintln(w, "\n== Examples ===================================================")
	fmt.Fprintln(w, "curl -H 'X-User-ID: 1' 'http://<host>:<port>/api/v1/cases?view=open'")
	fmt.Fprintln(w, "curl -H 'X-User-ID: 1' 'http://<host>:<port>/api/v1/messages?view=inbox'")
	fmt.Fprintln(w, "\n== Production? =================================================")
	if eff.Config != nil && eff.Config.Cache.Driver == config.CacheRedis {
		fmt.Fprintln(w, "- Cache: shared (redis)")
	} else {
		fmt.Fprintln(w, "- Cache: process local, watermarks are lost on restart")
	}
	if eff.Config != nil && eff.Config.Server.RateLimit.RPS > 0 {
		fmt.Fprintf(w, "- Rate limit: %.0f req/s\n", eff.Config.Server.RateLimit.RPS)
	} else {
		fmt.Fprintln(w, "- Rate limit: unlimited")
	}
	fmt.Fprintln(w, "\n== Logs: =================================================")
}
