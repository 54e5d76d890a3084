package api

import (
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/praekelt/helpdesk/pkg/api/router"
)

type limiterEntry struct {
	l        *rate.Limiter
	lastSeen time.Time
}

// limiterPool holds one token bucket per caller, dropping idle ones.
type limiterPool struct {
	mu    sync.Mutex
	m     map[string]*limiterEntry
	rps   float64
	burst int
	ttl   time.Duration
	now   func() time.Time
}

func newLimiterPool(rps float64, burst int) *limiterPool {
	if burst <= 0 {
		burst = int(rps)
		if burst < 1 {
			burst = 1
		}
	}
	return &limiterPool{m: make(map[string]*limiterEntry), rps: rps, burst: burst, ttl: 10 * time.Minute, now: time.Now}
}

func (p *limiterPool) Allow(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	e, ok := p.m[key]
	if !ok {
		p.sweep(now)
		e = &limiterEntry{l: rate.NewLimiter(rate.Limit(p.rps), p.burst)}
		p.m[key] = e
	}
	e.lastSeen = now
	return e.l.AllowN(now, 1)
}

func (p *limiterPool) sweep(now time.Time) {
	cutoff := now.Add(-p.ttl)
	for k, e := range p.m {
		if e.lastSeen.Before(cutoff) {
			delete(p.m, k)
		}
	}
}

// RateLimit throttles callers by X-User-ID, falling back to the remote IP.
// A non-positive rps disables it.
func RateLimit(rps float64, burst int) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if rps <= 0 {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	pool := newLimiterPool(rps, burst)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			key := string(ctx.Request.Header.Peek(UserHeader))
			if key == "" {
				key = ctx.RemoteIP().String()
			}
			if !pool.Allow(key) {
				router.WriteJSONError(ctx, fasthttp.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next(ctx)
		}
	}
}
