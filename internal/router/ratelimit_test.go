package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterSet_ReserveDelayDoesNotConsumeATokenItself(t *testing.T) {
	l := newLimiterSet()
	l.WithOverride("p", 1, defaultWindow)

	assert.True(t, l.Allow("p"), "first call consumes the sole token")
	assert.False(t, l.Allow("p"), "bucket is now exhausted")

	// ReserveDelay must only peek at the wait time; it must not itself
	// consume the token being measured, since the caller's retry path
	// calls Allow() again after waiting out the reported delay.
	delay := l.ReserveDelay("p")
	assert.Greater(t, delay.Nanoseconds(), int64(0))

	// Simulate time passing past the refill boundary: if ReserveDelay had
	// also consumed a token, a second one would still be missing here and
	// this would report false.
	lim := l.get("p")
	future := time.Now().Add(defaultWindow + time.Second)
	assert.True(t, lim.AllowN(future, 1), "refilled token is available; ReserveDelay did not drain it")
}

func TestLimiterSet_ReserveDelayBoundedByWindowWhenBucketExhausted(t *testing.T) {
	l := newLimiterSet()
	l.WithOverride("p", 1, defaultWindow)
	l.Allow("p")

	delay := l.ReserveDelay("p")
	assert.LessOrEqual(t, delay, defaultWindow+time.Second)
}
