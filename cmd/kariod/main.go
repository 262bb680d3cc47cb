// Command kariod runs the memory and provider routing core as a
// background service. Its only exposed HTTP surface is /healthz and
// /metrics (spec §4.9's ambient operability surface; chat/HTTP feature
// surfaces are explicitly out of scope, see spec.md's Non-goals).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kari-ai/core/internal/buildconfig"
	"github.com/kari-ai/core/internal/config"
	"github.com/kari-ai/core/internal/core"
	"github.com/kari-ai/core/internal/httpmw"
)

func main() {
	if err := config.Load(); err != nil {
		panic(err)
	}

	logger, err := newLogger(config.LogLevel())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := core.New(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialize core", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return httpmw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst(), next)
	})
	r.Get("/healthz", healthzHandler(c))
	r.Handle("/metrics", promhttp.HandlerFor(c.Metrics, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    config.ServerAddr(),
		Handler: r,
	}

	go func() {
		logger.Info(buildconfig.Binary+" starting",
			zap.String("addr", srv.Addr),
			zap.String("version", buildconfig.Version()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down kariod")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Warn("core shutdown reported an error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server forced to shutdown", zap.Error(err))
	}
	logger.Info("kariod stopped")
}

// newLogger builds a production zap logger at the configured level
// (spec §6 LOG_LEVEL, never wired by the teacher this was adapted from).
func newLogger(level string) (*zap.Logger, error) {
	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(level)); err != nil {
		zl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	return cfg.Build()
}

func healthzHandler(c *core.Core) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		status := map[string]any{
			"status": "ok",
			"build":  buildconfig.VersionInfo(),
		}
		if c.Adapters.Vector != nil {
			status["vector"] = c.Adapters.Vector.Health(req.Context()).OK
		}
		if c.Adapters.Authoritative != nil {
			status["authoritative"] = c.Adapters.Authoritative.Health(req.Context()).OK
		}
		if c.Cache != nil {
			status["cache"] = c.Cache.Health(req.Context()).OK
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}
