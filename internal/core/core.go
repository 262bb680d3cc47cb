// Package core implements C9: the explicit Core value that owns every
// long-lived component (REDESIGN FLAG: replaces "module-level singletons &
// lazy globals" with a constructed-once struct, grounded on
// Harshitk-cp-engram/internal/api/router.go's App-struct wiring pattern).
package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/adapter"
	"github.com/kari-ai/core/internal/buffer"
	"github.com/kari-ai/core/internal/config"
	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/enrichment"
	"github.com/kari-ai/core/internal/llmprovider"
	"github.com/kari-ai/core/internal/memoryorch"
	"github.com/kari-ai/core/internal/reconciler"
	"github.com/kari-ai/core/internal/registry"
	"github.com/kari-ai/core/internal/router"
	"github.com/kari-ai/core/internal/secret"
	"github.com/kari-ai/core/internal/telemetry"
)

// Core owns the Registry, every backend adapter, the write buffer, the
// reconciler, the router, and the metrics registry (spec §4.9).
type Core struct {
	Registry     *registry.Registry
	Adapters     memoryorch.Adapters
	Cache        domain.CacheAdapter
	Buffer       *buffer.Buffer
	Orchestrator *memoryorch.Orchestrator
	Enrichment   *enrichment.Pipeline
	Reconciler   *reconciler.Reconciler
	Router       *router.Router
	Secrets      secret.Resolver
	Metrics      *prometheus.Registry

	logger *zap.Logger

	closers      []closer
	shutdownOnce sync.Once
}

type closer struct {
	name string
	fn   func() error
}

// New wires every component in the initialization order of spec §4.9:
// Registry -> Backend Adapters (independently, non-fatal) -> Cache ->
// Reconciler (only if Authoritative and Cache are both registered) ->
// Router (background health monitor started lazily on first use).
func New(ctx context.Context, logger *zap.Logger) (*Core, error) {
	c := &Core{
		Registry: registry.New(),
		Secrets:  secret.NewEnvResolver(),
		Metrics:  prometheus.NewRegistry(),
		logger:   logger,
	}
	telemetry.Register(c.Metrics)

	domain.DefaultRecallTimeout = config.RecallTimeout()
	domain.DefaultStoreTimeout = config.StoreTimeout()
	domain.DefaultHealthCheckTimeout = config.HealthCheckTimeout()

	c.wireAdapters(ctx)

	c.Buffer = buffer.New(c.Cache, logger)
	c.Orchestrator = memoryorch.New(c.Adapters, c.Buffer, logger)

	if c.Adapters.Authoritative != nil && c.Cache != nil {
		c.Reconciler = reconciler.New(c.Adapters.Authoritative, c.Buffer, logger,
			config.ReconcileInterval(), config.DrainBudget())
		c.Reconciler.Start()
		c.closers = append(c.closers, closer{name: "reconciler", fn: func() error {
			c.Reconciler.Stop()
			return nil
		}})
	}

	c.wireProviders()

	c.Router = router.New(c.Registry, router.PolicyPriority, logger, config.ProviderCallTimeout())
	c.Router.WithRateLimitOverride("openai", 60, time.Minute)
	c.closers = append(c.closers, closer{name: "router-health-monitor", fn: func() error {
		c.Router.StopHealthMonitor()
		return nil
	}})
	c.Enrichment = enrichment.New(c.Router, logger)

	return c, nil
}

// wireAdapters constructs every backend adapter independently; a failure
// constructing one is logged and that adapter is left nil, never fatal to
// startup (spec §4.9).
func (c *Core) wireAdapters(ctx context.Context) {
	if db, err := adapter.DialPostgresPool(ctx, config.PostgresURL()); err != nil {
		c.logger.Warn("vector/authoritative postgres pool unavailable", zap.Error(err))
	} else {
		embed := func(ctx context.Context, text string) ([]float32, error) {
			return c.Router.Embed(ctx, text)
		}
		c.Adapters.Vector = adapter.NewVector(db, embed)
		c.Adapters.Authoritative = adapter.NewAuthoritative(db)
		c.closers = append(c.closers, closer{name: "postgres", fn: func() error {
			db.Close()
			return nil
		}})
	}

	if cache, err := adapter.NewCache(ctx, config.RedisURL()); err != nil {
		c.logger.Warn("cache adapter unavailable", zap.Error(err))
	} else {
		c.Cache = cache
		c.closers = append(c.closers, closer{name: "cache", fn: cache.Close})
	}

	if host := config.ElasticHost(); host != "" {
		addr := fmt.Sprintf("http://%s:%s", host, config.ElasticPort())
		ti, err := adapter.NewTextIndex([]string{addr}, config.ElasticUser(), config.ElasticPassword(), config.ElasticIndex())
		if err != nil {
			c.logger.Warn("text index adapter unavailable", zap.Error(err))
		} else {
			c.Adapters.TextIndex = ti
		}
	}

	if an, err := adapter.NewAnalytics(config.DuckDBPath()); err != nil {
		c.logger.Warn("analytics adapter unavailable", zap.Error(err))
	} else {
		c.Adapters.Analytics = an
		c.closers = append(c.closers, closer{name: "analytics", fn: an.Close})
	}
}

// wireProviders populates the Registry with every provider whose secret
// resolves (plus the always-available local provider) and the execution
// runtimes C6 knows the shape of (spec §4.6, §6).
func (c *Core) wireProviders() {
	for _, spec := range llmprovider.BuildProviders(c.Secrets) {
		c.Registry.RegisterProvider(spec)
	}
	for _, rt := range llmprovider.DefaultRuntimes() {
		c.Registry.RegisterRuntime(rt)
	}
}

// Shutdown is idempotent (spec §4.9, Q2: one shutdown path): it stops the
// reconciler timer and closes adapter connections in reverse registration
// order exactly once, regardless of how many times it is called.
func (c *Core) Shutdown(ctx context.Context) error {
	var firstErr error
	c.shutdownOnce.Do(func() {
		for i := len(c.closers) - 1; i >= 0; i-- {
			cl := c.closers[i]
			if err := cl.fn(); err != nil {
				c.logger.Warn("shutdown: component close failed", zap.String("component", cl.name), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	})
	return firstErr
}
