// Package registry implements C6: a thread-safe name->spec lookup for
// providers and runtimes, generalized from wisbric-nightowl's
// pkg/messaging.Registry (map[string]Handler guarded by a mutex) into two
// maps plus an instance cache.
package registry

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"sync"

	"github.com/kari-ai/core/internal/domain"
)

// Registry holds every known ProviderSpec and RuntimeSpec, plus a cache of
// already-constructed instances keyed by a hash of their init kwargs
// (spec §4.6).
type Registry struct {
	mu                     sync.RWMutex
	providers              map[string]domain.ProviderSpec
	runtimes               map[string]domain.RuntimeSpec
	instances              map[string]any
	instanceKeysByProvider map[string]map[string]struct{}
	health                 *healthCache
}

func New() *Registry {
	return &Registry{
		providers:              make(map[string]domain.ProviderSpec),
		runtimes:               make(map[string]domain.RuntimeSpec),
		instances:              make(map[string]any),
		instanceKeysByProvider: make(map[string]map[string]struct{}),
		health:                 newHealthCache(),
	}
}

// RegisterProvider adds or replaces a provider spec by name.
func (r *Registry) RegisterProvider(spec domain.ProviderSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[spec.Name] = spec
}

// RegisterRuntime adds or replaces a runtime spec by name.
func (r *Registry) RegisterRuntime(spec domain.RuntimeSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runtimes[spec.Name] = spec
}

// Unregister removes a provider spec and every instance cached under it, so
// registering, unregistering, then re-registering a provider restores
// behavioral equivalence to the first registration (R3): a stale cached
// instance from before the unregister can never leak into the re-registered
// provider's lookups.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, name)
	for key := range r.instanceKeysByProvider[name] {
		delete(r.instances, key)
	}
	delete(r.instanceKeysByProvider, name)
}

// Provider looks up a provider spec by name.
func (r *Registry) Provider(name string) (domain.ProviderSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Providers returns every registered provider spec, in insertion-independent
// alphabetical order (stable for policy tie-breaking, spec §4.7).
func (r *Registry) Providers() []domain.ProviderSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ProviderSpec, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Runtime looks up a runtime spec by name.
func (r *Registry) Runtime(name string) (domain.RuntimeSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.runtimes[name]
	return rt, ok
}

// CompatibleRuntimes filters runtimes by format support and, when both sides
// declare families, family support, returning a list sorted by descending
// priority (spec §4.6, I6).
func (r *Registry) CompatibleRuntimes(model domain.ModelMetadata) []domain.RuntimeSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.RuntimeSpec
	for _, rt := range r.runtimes {
		if !rt.SupportsFormat(model.Format) {
			continue
		}
		if model.Family != "" && !rt.SupportsFamily(model.Family) {
			continue
		}
		out = append(out, rt)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// OptimalRuntime further filters CompatibleRuntimes by requirement
// predicates, returning the highest-priority survivor; if no runtime
// satisfies every predicate, it falls back to the first of the unfiltered
// compatible list (spec §4.6, P6).
func (r *Registry) OptimalRuntime(model domain.ModelMetadata, req domain.RuntimeRequirements) (domain.RuntimeSpec, bool) {
	compatible := r.CompatibleRuntimes(model)
	if len(compatible) == 0 {
		return domain.RuntimeSpec{}, false
	}
	for _, rt := range compatible {
		if rt.Satisfies(req) {
			return rt, true
		}
	}
	return compatible[0], true
}

// InstanceKey hashes a set of initialization kwargs into a stable cache key.
func InstanceKey(name string, kwargs map[string]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|", name)
	keys := make([]string, 0, len(kwargs))
	for k := range kwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s;", k, kwargs[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// CachedInstance returns a previously built instance for key, if any.
func (r *Registry) CachedInstance(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.instances[key]
	return v, ok
}

// CacheInstance stores an instance under key for later reuse, associated
// with providerName so Unregister can purge it precisely.
func (r *Registry) CacheInstance(providerName, key string, instance any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[key] = instance
	if r.instanceKeysByProvider[providerName] == nil {
		r.instanceKeysByProvider[providerName] = make(map[string]struct{})
	}
	r.instanceKeysByProvider[providerName][key] = struct{}{}
}
