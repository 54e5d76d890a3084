package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/valyala/fasthttp"
)

func TestCountersAndHandler(t *testing.T) {
	before := testutil.ToFloat64(CaseTransitions.WithLabelValues("O"))
	CaseTransitions.WithLabelValues("O").Inc()
	if got := testutil.ToFloat64(CaseTransitions.WithLabelValues("O")); got != before+1 {
		t.Fatalf("expected counter to advance by one, got %v -> %v", before, got)
	}

	RegisterStoreUsage(func() uint64 { return 4096 })
	RegisterStoreUsage(func() uint64 { return 1 }) // ignored, must not panic

	var ctx fasthttp.RequestCtx
	ctx.Request.SetRequestURI("/metrics")
	Handler()(&ctx)

	if ctx.Response.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("expected 200 got %d", ctx.Response.StatusCode())
	}
	body := string(ctx.Response.Body())
	for _, want := range []string{"helpdesk_case_transitions_total", "helpdesk_store_disk_bytes 4096"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
