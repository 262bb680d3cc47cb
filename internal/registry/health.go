package registry

import (
	"context"
	"sync"

	"github.com/kari-ai/core/internal/domain"
)

// healthCache caches the last health_check/health result per component name
// (spec §4.6: "the registry caches the last result per component").
type healthCache struct {
	mu   sync.RWMutex
	last map[string]domain.HealthStatus
}

func newHealthCache() *healthCache {
	return &healthCache{last: make(map[string]domain.HealthStatus)}
}

func (h *healthCache) record(name string, status domain.HealthStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[name] = status
}

func (h *healthCache) get(name string) (domain.HealthStatus, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.last[name]
	return s, ok
}

// ProviderHealth runs the provider's health check (if the spec carries a
// live Provider) and caches the result, returning it.
func (r *Registry) ProviderHealth(ctx context.Context, name string) domain.HealthStatus {
	spec, ok := r.Provider(name)
	if !ok || spec.Provider == nil {
		return domain.HealthStatus{OK: false, Detail: "provider not registered"}
	}
	status := spec.Provider.CheckHealth(ctx)
	r.health.record(name, status)
	return status
}

// LastProviderHealth returns the cached result of the most recent health
// check for name, without probing again.
func (r *Registry) LastProviderHealth(name string) (domain.HealthStatus, bool) {
	return r.health.get(name)
}

// RuntimeHealth runs the runtime's health check and caches the result.
func (r *Registry) RuntimeHealth(ctx context.Context, name string) domain.HealthStatus {
	rt, ok := r.Runtime(name)
	if !ok {
		return domain.HealthStatus{OK: false, Detail: "runtime not registered"}
	}
	status := rt.CheckHealth(ctx)
	r.health.record("runtime:"+name, status)
	return status
}
