// Package router implements C7: provider selection policies, the
// per-provider dispatch state machine, circuit breaking, retries,
// fallback chains, streaming, and the degraded-mode responder (spec
// §4.7/§4.7a). Grounded on
// Harshitk-cp-engram/internal/llm/provider.go's provider-client-per-name
// factory shape, generalized into a capability-enum selection, and on
// Harshitk-cp-engram/internal/api/middleware/ratelimit.go's
// golang.org/x/time/rate usage, generalized from per-IP to per-provider.
package router

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultRPS/defaultBurst implement the default token bucket of spec
// §4.7 (30 req / 60s); per-provider overrides are supplied via
// WithOverride.
const (
	defaultWindow = 60 * time.Second
	defaultRPS    = float64(30) / 60
	defaultBurst  = 30
)

// limiterSet owns one token bucket per provider, defaulting to 30 req/60s
// unless an override was registered.
type limiterSet struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	overrides map[string]struct {
		rps   float64
		burst int
	}
}

func newLimiterSet() *limiterSet {
	return &limiterSet{
		limiters: make(map[string]*rate.Limiter),
		overrides: make(map[string]struct {
			rps   float64
			burst int
		}),
	}
}

// WithOverride registers a non-default token bucket for a provider, e.g.
// openai 60 req / 60s (spec §4.7).
func (l *limiterSet) WithOverride(provider string, requestsPerWindow int, window time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[provider] = struct {
		rps   float64
		burst int
	}{rps: float64(requestsPerWindow) / window.Seconds(), burst: requestsPerWindow}
	delete(l.limiters, provider)
}

func (l *limiterSet) get(provider string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters[provider]; ok {
		return lim
	}
	rps, burst := defaultRPS, defaultBurst
	if o, ok := l.overrides[provider]; ok {
		rps, burst = o.rps, o.burst
	}
	lim := rate.NewLimiter(rate.Limit(rps), burst)
	l.limiters[provider] = lim
	return lim
}

// Allow consumes a token immediately, reporting whether one was available
// (spec §4.7: "consume a token from the token bucket ... if exhausted,
// sleep until the window boundary, then refill and retry once").
func (l *limiterSet) Allow(provider string) bool {
	return l.get(provider).Allow()
}

// ReserveDelay reports how long the caller must wait for the next token,
// used to implement the single sleep-then-retry on exhaustion. The
// reservation itself is cancelled immediately: ReserveDelay only peeks at
// the wait time, it must not consume the token it is measuring, since the
// caller consumes the real token itself via Allow() after waiting out the
// delay. Without the cancel, a single exhaustion would drain two tokens
// (one here, one from the retry Allow()) instead of one.
func (l *limiterSet) ReserveDelay(provider string) time.Duration {
	lim := l.get(provider)
	r := lim.Reserve()
	if !r.OK() {
		return defaultWindow
	}
	delay := r.Delay()
	r.CancelAt(time.Now())
	return delay
}
