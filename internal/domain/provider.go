package domain

import (
	"container/ring"
	"context"
	"errors"
	"sync"
	"time"
)

// ProviderCategory classifies a ProviderSpec (spec §3).
type ProviderCategory string

const (
	CategoryLLM        ProviderCategory = "LLM"
	CategoryEmbedding  ProviderCategory = "embedding"
	CategoryUIFramework ProviderCategory = "ui_framework"
)

// Capability replaces duck-typed `hasattr(provider, "stream_response")`
// probing (REDESIGN FLAG §9) with an explicit, declared set.
type Capability string

const (
	CapStreaming       Capability = "streaming"
	CapEmbeddings      Capability = "embeddings"
	CapFunctionCalling Capability = "function_calling"
	CapVision          Capability = "vision"
	CapLocalExecution  Capability = "local_execution"
)

// PriorityBucket is the coarse local-first class used by the Priority
// policy's strict ladder (spec §4.7, GLOSSARY).
type PriorityBucket int

const (
	BucketLocal PriorityBucket = iota
	BucketTransformer
	BucketNLP
	BucketLightweight
	BucketRemote
	BucketFallback
)

// HealthChecker is satisfied by both ProviderSpec and RuntimeSpec.
type HealthChecker interface {
	CheckHealth(ctx context.Context) HealthStatus
}

// Provider is the external contract an inference provider implements
// (spec §6). GenerateResponse/StreamResponse are always present; whether
// they are actually invokable is governed by Capabilities, not by
// presence, satisfying the capability-enum REDESIGN FLAG.
type Provider interface {
	HealthChecker
	Name() string
	GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error)
	StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan StreamChunk, error)
}

// StreamChunk is one element of a provider's streaming response sequence.
type StreamChunk struct {
	Text string
	Err  error
	Done bool
}

// ProviderSpec is the registry's static description of a provider (spec §3).
type ProviderSpec struct {
	Name           string
	Category       ProviderCategory
	RequiresAPIKey bool
	Capabilities   map[Capability]struct{}
	FallbackModels []string
	DefaultModel   string
	Bucket         PriorityBucket
	Provider       Provider
}

// HasCapability reports whether the spec declares cap.
func (p ProviderSpec) HasCapability(cap Capability) bool {
	_, ok := p.Capabilities[cap]
	return ok
}

// ModelMetadata describes a model a RuntimeSpec may be asked to load.
type ModelMetadata struct {
	ID            string
	Family        string
	Format        string
	Parameters    string
	Quantization  string
	ContextLength int
	LocalPath     string
}

// RuntimeRequirements are the optional predicates optimal_runtime filters
// by (spec §4.6).
type RuntimeRequirements struct {
	RequiresGPU     bool
	MemoryEfficient bool
	Streaming       bool
	HighThroughput  bool
	FastStartup     bool
}

// RuntimeSpec is the registry's static description of an execution runtime.
type RuntimeSpec struct {
	Name               string
	SupportedFamilies  []string
	SupportedFormats   []string
	RequiresGPU        bool
	SupportsStreaming  bool
	Priority           int // 0-100, higher wins per I6; equal priorities are ordered by name
	MemoryEfficient    bool
	HighThroughput     bool
	FastStartup        bool
	Load               func(ctx context.Context, cfg map[string]any) (any, error)
	HealthFn           func(ctx context.Context) HealthStatus
}

func (r RuntimeSpec) CheckHealth(ctx context.Context) HealthStatus {
	if r.HealthFn == nil {
		return HealthStatus{OK: true, Detail: "no health check configured"}
	}
	return r.HealthFn(ctx)
}

// SupportsFormat reports whether format is in SupportedFormats.
func (r RuntimeSpec) SupportsFormat(format string) bool {
	for _, f := range r.SupportedFormats {
		if f == format {
			return true
		}
	}
	return false
}

// SupportsFamily reports whether family is in SupportedFamilies, or true if
// the runtime declares no family restriction.
func (r RuntimeSpec) SupportsFamily(family string) bool {
	if len(r.SupportedFamilies) == 0 {
		return true
	}
	for _, f := range r.SupportedFamilies {
		if f == family {
			return true
		}
	}
	return false
}

// Satisfies reports whether r meets the given requirement predicates
// (spec §4.6 optimal_runtime filtering).
func (r RuntimeSpec) Satisfies(req RuntimeRequirements) bool {
	if req.RequiresGPU && !r.RequiresGPU {
		return false
	}
	if req.Streaming && !r.SupportsStreaming {
		return false
	}
	if req.MemoryEfficient && !r.MemoryEfficient {
		return false
	}
	if req.HighThroughput && !r.HighThroughput {
		return false
	}
	if req.FastStartup && !r.FastStartup {
		return false
	}
	return true
}

// ProviderState is the dispatch state machine of spec §4.7. Only healthy
// allows dispatch (I3: at most one of {healthy, circuit_open, rate_limited}
// governs dispatch at a time).
type ProviderState int

const (
	StateHealthy ProviderState = iota
	StateRateLimited
	StateCircuitOpen
	StateDraining
)

func (s ProviderState) String() string {
	switch s {
	case StateRateLimited:
		return "rate_limited"
	case StateCircuitOpen:
		return "circuit_open"
	case StateDraining:
		return "draining"
	default:
		return "healthy"
	}
}

const latencyRingSize = 20

// ProviderHealth is mutated only by the dispatcher owning a given request
// for that provider (spec §5); a sync.Mutex guards every transition.
type ProviderHealth struct {
	mu                 sync.Mutex
	isHealthy          bool
	lastCheck          time.Time
	consecutiveFailures int
	circuitOpenUntil   time.Time
	rateLimitedUntil   time.Time
	windowStart        time.Time
	requestsInWindow   int
	latencySamples     *ring.Ring
	lastError          error
}

// NewProviderHealth creates a health record in the healthy state.
func NewProviderHealth() *ProviderHealth {
	return &ProviderHealth{
		isHealthy:      true,
		lastCheck:      time.Time{},
		windowStart:    time.Time{},
		latencySamples: ring.New(latencyRingSize),
	}
}

// Snapshot is a read-only copy for status endpoints and policy selection
// (spec §5: "readers take a read snapshot").
type Snapshot struct {
	IsHealthy           bool
	State               ProviderState
	ConsecutiveFailures int
	CircuitOpenUntil    time.Time
	RateLimitedUntil    time.Time
	LastError           error
}

// State returns the current dispatch state as of now.
func (h *ProviderHealth) State(now time.Time) ProviderState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stateLocked(now)
}

// stateLocked derives dispatch state from the cooldown timers alone: once
// circuitOpenUntil has passed the circuit self-closes into a half-open
// trial (StateHealthy), the same way gobreaker reopens for one probe call
// after its timeout. isHealthy is a last-known-health signal for Snapshot,
// not a second, independent veto — letting it shadow an expired timer is
// exactly the stuck-forever bug a self-closing breaker must not have.
func (h *ProviderHealth) stateLocked(now time.Time) ProviderState {
	if now.Before(h.circuitOpenUntil) {
		return StateCircuitOpen
	}
	if now.Before(h.rateLimitedUntil) {
		return StateRateLimited
	}
	return StateHealthy
}

// Snapshot returns a copy of the health record's externally visible fields.
func (h *ProviderHealth) Snapshot(now time.Time) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{
		IsHealthy:           h.isHealthy,
		State:               h.stateLocked(now),
		ConsecutiveFailures: h.consecutiveFailures,
		CircuitOpenUntil:    h.circuitOpenUntil,
		RateLimitedUntil:    h.rateLimitedUntil,
		LastError:           h.lastError,
	}
}

// Dispatchable reports whether the provider may be dispatched to right now.
func (h *ProviderHealth) Dispatchable(now time.Time) bool {
	return h.State(now) == StateHealthy
}

// RecordSuccess clears the failure streak, resets the circuit, and pushes a
// latency sample (spec §4.7).
func (h *ProviderHealth) RecordSuccess(latency time.Duration, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isHealthy = true
	h.consecutiveFailures = 0
	h.circuitOpenUntil = time.Time{}
	h.lastCheck = now
	h.lastError = nil
	h.latencySamples.Value = latency
	h.latencySamples = h.latencySamples.Next()
}

// RecordFailure applies the circuit-breaker and rate-limit cooldown rules
// of spec §4.7.
func (h *ProviderHealth) RecordFailure(err error, now time.Time, circuitThreshold int, circuitCooldown, rateLimitCooldown time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutiveFailures++
	h.lastCheck = now
	h.lastError = err

	if domainErrIsRateLimited(err) {
		h.rateLimitedUntil = now.Add(rateLimitCooldown)
	}
	if h.consecutiveFailures >= circuitThreshold {
		h.circuitOpenUntil = now.Add(circuitCooldown)
		h.isHealthy = false
	}
}

func domainErrIsRateLimited(err error) bool {
	return ClassifyTransportError(err) == KindRateLimited
}

// RecordHealthCheck folds the background health monitor's out-of-band
// probe result into the health record (spec §4.9/§5's "background health
// monitor"). A healthy probe clears the failure streak and the circuit
// timer outright — the self-close path a cooldown alone cannot drive when
// no dispatch traffic is flowing. A failing probe only updates the
// last-known-health signal; it never opens the circuit itself, since
// spec §7 reserves that to dispatch failures.
func (h *ProviderHealth) RecordHealthCheck(status HealthStatus, now time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastCheck = now
	if status.OK {
		h.isHealthy = true
		h.consecutiveFailures = 0
		h.circuitOpenUntil = time.Time{}
		h.lastError = nil
		return
	}
	h.isHealthy = false
	if status.Detail != "" {
		h.lastError = errors.New(status.Detail)
	}
}

// SetRateLimited forces the rate-limit cooldown directly (used by the token
// bucket wait path when a window is exhausted).
func (h *ProviderHealth) SetRateLimited(until time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rateLimitedUntil = until
}

// LatencySamples returns a copy of the recorded latency ring, oldest first.
func (h *ProviderHealth) LatencySamples() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]time.Duration, 0, latencyRingSize)
	h.latencySamples.Do(func(v any) {
		if d, ok := v.(time.Duration); ok {
			out = append(out, d)
		}
	})
	return out
}

// RoutingRequest is the caller's inference request (spec §3).
type RoutingRequest struct {
	Message           string
	Stream            bool
	PreferredProvider string
	PreferredModel    string
	MaxTokens         int
	Temperature       float64
	ConversationID    string
	CorrelationID     string
}
