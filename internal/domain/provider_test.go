package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderHealth_CircuitSelfClosesAfterCooldown(t *testing.T) {
	h := NewProviderHealth()
	start := time.Now()

	for i := 0; i < 3; i++ {
		h.RecordFailure(errors.New("boom"), start, 3, 60*time.Second, 15*time.Second)
	}
	assert.Equal(t, StateCircuitOpen, h.State(start), "circuit trips at the failure threshold")
	assert.False(t, h.Dispatchable(start))

	afterCooldown := start.Add(61 * time.Second)
	assert.Equal(t, StateHealthy, h.State(afterCooldown), "circuit self-closes once circuitOpenUntil has passed")
	assert.True(t, h.Dispatchable(afterCooldown), "a self-closed circuit must actually be dispatchable, not stuck forever")
}

func TestProviderHealth_RecordHealthCheckClearsCircuitOutOfBand(t *testing.T) {
	h := NewProviderHealth()
	now := time.Now()
	for i := 0; i < 3; i++ {
		h.RecordFailure(errors.New("boom"), now, 3, 60*time.Second, 15*time.Second)
	}
	require := assert.New(t)
	require.Equal(StateCircuitOpen, h.State(now))

	h.RecordHealthCheck(HealthStatus{OK: true}, now)
	require.Equal(StateHealthy, h.State(now), "a healthy probe clears the circuit immediately, without waiting for the cooldown")
	require.True(h.Snapshot(now).IsHealthy)
}

func TestProviderHealth_RecordHealthCheckFailureDoesNotOpenCircuit(t *testing.T) {
	h := NewProviderHealth()
	now := time.Now()

	h.RecordHealthCheck(HealthStatus{OK: false, Detail: "connection refused"}, now)

	assert.Equal(t, StateHealthy, h.State(now), "a failing probe alone never opens the circuit; only dispatch failures do")
	snap := h.Snapshot(now)
	assert.False(t, snap.IsHealthy)
	assert.Error(t, snap.LastError)
}
