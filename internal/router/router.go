package router

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/registry"
	"github.com/kari-ai/core/internal/telemetry"
)

const (
	maxAttemptsPerProvider = 3
	maxFallbackProviders   = 2
	circuitThreshold       = 3
	circuitCooldown        = 60 * time.Second
	rateLimitCooldown      = 15 * time.Second
	defaultCallTimeout     = 30 * time.Second
	// maxRateLimitWait caps the sleep-then-retry wait of spec §5 so a
	// generous token-bucket refill window can never stall a dispatch
	// attempt for longer than the caller would tolerate.
	maxRateLimitWait = 15 * time.Second
)

// RouteResult is the outcome of a Dispatch call: either a provider's
// response or, when every candidate in the chain failed, a deterministic
// degraded-mode reply (spec §4.7/§4.7a).
type RouteResult struct {
	Text     string
	Provider string
	Degraded *DegradedResponse
}

// Router is C7: the provider selection and dispatch engine.
type Router struct {
	reg         *registry.Registry
	policy      Policy
	logger      *zap.Logger
	callTimeout time.Duration

	limiters *limiterSet
	breakers *breakerSet
	rr       *rrCounters

	mu     sync.RWMutex
	health map[string]*domain.ProviderHealth

	monitorMu     sync.Mutex
	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// New constructs a Router over reg, dispatching with the given policy.
// callTimeout defaults to 30s (spec §4.7) when zero.
func New(reg *registry.Registry, policy Policy, logger *zap.Logger, callTimeout time.Duration) *Router {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Router{
		reg:         reg,
		policy:      policy,
		logger:      logger,
		callTimeout: callTimeout,
		limiters:    newLimiterSet(),
		breakers:    newBreakerSet(),
		rr:          newRRCounters(),
		health:      make(map[string]*domain.ProviderHealth),
	}
}

// WithRateLimitOverride registers a non-default token bucket for a
// provider (e.g. openai 60 req/60s per spec §4.7).
func (r *Router) WithRateLimitOverride(provider string, requestsPerWindow int, window time.Duration) {
	r.limiters.WithOverride(provider, requestsPerWindow, window)
}

func (r *Router) healthFor(name string) *domain.ProviderHealth {
	r.mu.RLock()
	h, ok := r.health[name]
	r.mu.RUnlock()
	if ok {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.health[name]; ok {
		return h
	}
	h = domain.NewProviderHealth()
	r.health[name] = h
	return h
}

// candidates returns every registered CategoryLLM provider: the pool that
// SelectProvider/Dispatch choose from. Embedding and UI-framework
// providers are never candidates for a chat dispatch (spec §3's Category
// partitions the registry; Embed/Classify walk the full registry
// themselves to find the capability they need).
func (r *Router) candidates() []candidate {
	specs := r.reg.Providers()
	out := make([]candidate, 0, len(specs))
	for _, s := range specs {
		if s.Category != domain.CategoryLLM {
			continue
		}
		out = append(out, candidate{spec: s, health: r.healthFor(s.Name)})
	}
	return out
}

// allCandidates returns every registered provider regardless of category,
// for capability-scoped lookups like Embed that cross the LLM/embedding
// boundary on purpose.
func (r *Router) allCandidates() []candidate {
	specs := r.reg.Providers()
	out := make([]candidate, 0, len(specs))
	for _, s := range specs {
		out = append(out, candidate{spec: s, health: r.healthFor(s.Name)})
	}
	return out
}

// resolvePreference implements spec §4.7's preferred provider/model
// resolution: if both are named, both must be healthy and the model must
// be the provider's declared default, else the hint is dropped (logged).
// If only a model is named, the first healthy provider declaring that
// default wins.
func (r *Router) resolvePreference(req domain.RoutingRequest, now time.Time) (candidate, bool) {
	cands := r.candidates()

	if req.PreferredProvider != "" && req.PreferredModel != "" {
		for _, c := range cands {
			if c.spec.Name == req.PreferredProvider {
				if c.health.Dispatchable(now) && c.spec.DefaultModel == req.PreferredModel {
					return c, true
				}
				r.logger.Warn("dropping preferred provider/model hint",
					zap.String("provider", req.PreferredProvider),
					zap.String("model", req.PreferredModel))
				return candidate{}, false
			}
		}
		return candidate{}, false
	}

	if req.PreferredModel != "" {
		for _, c := range alphabetical(cands) {
			if c.spec.DefaultModel == req.PreferredModel && c.health.Dispatchable(now) {
				return c, true
			}
		}
	}

	return candidate{}, false
}

// SelectProvider picks the next dispatch candidate per the active policy,
// honoring any preference hint first (spec §4.7).
func (r *Router) SelectProvider(req domain.RoutingRequest) (domain.ProviderSpec, bool) {
	r.ensureHealthMonitor()
	now := time.Now()
	if pref, ok := r.resolvePreference(req, now); ok {
		return pref.spec, true
	}

	cands := r.candidates()
	var c candidate
	var ok bool
	switch r.policy {
	case PolicyRoundRobin:
		c, ok = r.rr.selectRoundRobin(cands, now)
	case PolicyHybrid:
		c, ok = r.rr.selectHybrid(cands, now)
	default:
		c, ok = selectPriority(cands, now)
	}
	if !ok {
		return domain.ProviderSpec{}, false
	}
	return c.spec, true
}

// dispatchOnce performs the rate-limit/circuit-breaker/timeout dance of
// spec §4.7 for a single attempt against one provider.
func (r *Router) dispatchOnce(ctx context.Context, spec domain.ProviderSpec, req domain.RoutingRequest) (string, error) {
	if !r.limiters.Allow(spec.Name) {
		delay := r.limiters.ReserveDelay(spec.Name)
		if delay > maxRateLimitWait {
			delay = maxRateLimitWait
		}
		r.healthFor(spec.Name).SetRateLimited(time.Now().Add(delay))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if !r.limiters.Allow(spec.Name) {
			return "", domain.Classify(domain.KindRateLimited, errors.New("rate limit exceeded after refill retry"))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	start := time.Now()
	text, err := r.breakers.Execute(spec.Name, func() (string, error) {
		return spec.Provider.GenerateResponse(callCtx, req.Message, map[string]any{
			"max_tokens":  req.MaxTokens,
			"temperature": req.Temperature,
			"model":       req.PreferredModel,
		})
	})
	latency := time.Since(start)

	health := r.healthFor(spec.Name)
	if err != nil {
		health.RecordFailure(err, time.Now(), circuitThreshold, circuitCooldown, rateLimitCooldown)
		telemetry.ProviderFailuresTotal.WithLabelValues(spec.Name, domain.ClassifyTransportError(err).String()).Inc()
		return "", err
	}
	health.RecordSuccess(latency, time.Now())
	telemetry.ProviderLatencySeconds.WithLabelValues(spec.Name, string(r.policy)).Observe(latency.Seconds())
	return text, nil
}

// backoff computes the retry delay of spec §4.7: min(1.0*2^(n-1), 10.0)
// seconds plus uniform jitter in [0, 0.5).
func backoff(attempt int) time.Duration {
	base := math.Min(math.Pow(2, float64(attempt-1)), 10.0)
	jitter := rand.Float64() * 0.5
	return time.Duration((base + jitter) * float64(time.Second))
}

// dispatchWithRetry retries a single provider up to maxAttemptsPerProvider
// times with exponential backoff before giving up on it.
func (r *Router) dispatchWithRetry(ctx context.Context, spec domain.ProviderSpec, req domain.RoutingRequest) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttemptsPerProvider; attempt++ {
		text, err := r.dispatchOnce(ctx, spec, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt < maxAttemptsPerProvider {
			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}
	return "", lastErr
}

// Dispatch implements the full selection, retry, and fallback chain of
// spec §4.7, falling back to degraded mode (§4.7a) when the chain is
// exhausted.
func (r *Router) Dispatch(ctx context.Context, req domain.RoutingRequest) RouteResult {
	logger := telemetry.With(r.logger, ctx, "", string(r.policy))

	spec, ok := r.SelectProvider(req)
	if !ok {
		telemetry.ProviderSelectionsTotal.WithLabelValues("", string(r.policy), "no_candidate").Inc()
		return RouteResult{Degraded: ptr(degradedResponse(nil))}
	}

	tried := map[string]struct{}{spec.Name: {}}
	var errs []error

	text, err := r.dispatchWithRetry(ctx, spec, req)
	if err == nil {
		telemetry.ProviderSelectionsTotal.WithLabelValues(spec.Name, string(r.policy), "success").Inc()
		return RouteResult{Text: text, Provider: spec.Name}
	}
	telemetry.ProviderSelectionsTotal.WithLabelValues(spec.Name, string(r.policy), "failure").Inc()
	errs = append(errs, err)
	logger.Warn("provider exhausted retries", zap.String("provider", spec.Name), zap.Error(err))

	for i := 0; i < maxFallbackProviders; i++ {
		next, ok := r.nextFallback(req, tried)
		if !ok {
			break
		}
		tried[next.Name] = struct{}{}
		telemetry.ProviderFallbacksTotal.WithLabelValues(spec.Name, next.Name, string(domain.InferDegradedReason(errs))).Inc()

		text, err := r.dispatchWithRetry(ctx, next, req)
		if err == nil {
			telemetry.ProviderSelectionsTotal.WithLabelValues(next.Name, string(r.policy), "success").Inc()
			return RouteResult{Text: text, Provider: next.Name}
		}
		telemetry.ProviderSelectionsTotal.WithLabelValues(next.Name, string(r.policy), "failure").Inc()
		errs = append(errs, err)
		logger.Warn("fallback provider exhausted retries", zap.String("provider", next.Name), zap.Error(err))
		spec = next
	}

	dr := degradedResponse(errs)
	return RouteResult{Degraded: &dr}
}

// nextFallback selects the next healthy provider per the active policy,
// excluding anything already tried. Dispatch calls it at most
// maxFallbackProviders times.
func (r *Router) nextFallback(req domain.RoutingRequest, tried map[string]struct{}) (domain.ProviderSpec, bool) {
	now := time.Now()
	cands := r.candidates()
	var remaining []candidate
	for _, c := range cands {
		if _, skip := tried[c.spec.Name]; skip {
			continue
		}
		remaining = append(remaining, c)
	}
	if len(remaining) == 0 {
		return domain.ProviderSpec{}, false
	}

	var c candidate
	var ok bool
	switch r.policy {
	case PolicyRoundRobin:
		c, ok = r.rr.selectRoundRobin(remaining, now)
	case PolicyHybrid:
		c, ok = r.rr.selectHybrid(remaining, now)
	default:
		c, ok = selectPriority(remaining, now)
	}
	if !ok {
		return domain.ProviderSpec{}, false
	}
	return c.spec, true
}

// Stream dispatches a streaming request, returning a single-chunk
// sequence when the selected provider doesn't advertise streaming (spec
// §4.7).
func (r *Router) Stream(ctx context.Context, req domain.RoutingRequest) (<-chan domain.StreamChunk, string, error) {
	spec, ok := r.SelectProvider(req)
	if !ok {
		dr := degradedResponse(nil)
		return streamSingleChunk(dr.Message, nil), "", nil
	}
	if !req.Stream || !spec.HasCapability(domain.CapStreaming) {
		result := r.Dispatch(ctx, req)
		if result.Degraded != nil {
			return streamSingleChunk(result.Degraded.Message, nil), "", nil
		}
		return streamSingleChunk(result.Text, nil), result.Provider, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	upstream, err := spec.Provider.StreamResponse(callCtx, req.Message, map[string]any{
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	})
	if err != nil {
		cancel()
		r.healthFor(spec.Name).RecordFailure(err, time.Now(), circuitThreshold, circuitCooldown, rateLimitCooldown)
		return nil, "", err
	}

	out := relayStream(callCtx, upstream)
	done := make(chan domain.StreamChunk)
	go func() {
		defer cancel()
		defer close(done)
		for chunk := range out {
			done <- chunk
		}
	}()
	return done, spec.Name, nil
}

// Embed dispatches to the first healthy provider declaring embeddings
// capability, for C5's relationship-detection refinement step.
func (r *Router) Embed(ctx context.Context, text string) ([]float32, error) {
	r.ensureHealthMonitor()
	now := time.Now()
	for _, c := range alphabetical(r.allCandidates()) {
		if !c.spec.HasCapability(domain.CapEmbeddings) || !c.health.Dispatchable(now) {
			continue
		}
		resp, err := r.dispatchWithRetry(ctx, c.spec, domain.RoutingRequest{Message: text})
		if err != nil {
			continue
		}
		return decodeEmbedding(resp), nil
	}
	return nil, errors.New("no healthy embedding provider available")
}

// Classify dispatches to the first healthy NLP-bucket provider, for C5's
// type-classification refinement step.
func (r *Router) Classify(ctx context.Context, text string) (string, error) {
	r.ensureHealthMonitor()
	now := time.Now()
	for _, c := range alphabetical(r.candidates()) {
		if c.spec.Bucket != domain.BucketNLP || !c.health.Dispatchable(now) {
			continue
		}
		resp, err := r.dispatchWithRetry(ctx, c.spec, domain.RoutingRequest{Message: text})
		if err != nil {
			continue
		}
		return resp, nil
	}
	return "", errors.New("no healthy NLP provider available")
}

func ptr[T any](v T) *T { return &v }

// decodeEmbedding parses an embedding provider's response, which encodes
// the vector as a JSON array of floats in its text payload. A malformed
// payload yields a nil vector rather than a panic.
func decodeEmbedding(resp string) []float32 {
	var vec []float32
	if err := json.Unmarshal([]byte(resp), &vec); err != nil {
		return nil
	}
	return vec
}
