package router

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
)

// healthMonitorInterval is the background health monitor's probe period.
// Unspecified numerically by spec §5; chosen in the same neighborhood as
// the reconciler's 5s tick and well inside the 60s circuit cooldown so a
// provider's circuit reliably self-closes on its own schedule rather than
// waiting for the next dispatch.
const healthMonitorInterval = 10 * time.Second

// ensureHealthMonitor lazily starts the background health monitor on
// first use (spec §4.9, §5: "a single task per process; double-start is
// prevented by a lock and a not-done check on an existing task handle").
// Every public dispatch-class method calls this; only the first caller
// actually starts the goroutine, and a prior Stop leaves the done channel
// closed so a later call can restart it.
func (r *Router) ensureHealthMonitor() {
	r.monitorMu.Lock()
	defer r.monitorMu.Unlock()

	if r.monitorDone != nil {
		select {
		case <-r.monitorDone:
			// prior monitor exited (StopHealthMonitor was called); restart below.
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.monitorCancel = cancel
	r.monitorDone = make(chan struct{})
	go r.runHealthMonitor(ctx, r.monitorDone)
}

// runHealthMonitor owns its own ticker exclusively, mirroring the
// reconciler's ticker/stopCh shape (internal/reconciler).
func (r *Router) runHealthMonitor(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(healthMonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.probeAllHealth(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// probeAllHealth runs every registered provider's health_check and feeds
// the result back into its ProviderHealth record. This is the out-of-band
// path that lets a circuit self-close (GLOSSARY: "self-closing after a
// cooldown") even when no dispatch traffic is exercising that provider.
func (r *Router) probeAllHealth(ctx context.Context) {
	for _, c := range r.allCandidates() {
		if c.spec.Provider == nil {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, domain.DefaultHealthCheckTimeout)
		status := r.reg.ProviderHealth(probeCtx, c.spec.Name)
		cancel()

		c.health.RecordHealthCheck(status, time.Now())
		if !status.OK {
			r.logger.Warn("provider health check failed",
				zap.String("provider", c.spec.Name), zap.String("detail", status.Detail))
		}
	}
}

// StopHealthMonitor cancels the background health monitor if one is
// running and waits for it to exit (spec §4.9: "cancel health monitor").
// Safe to call even if the monitor was never started.
func (r *Router) StopHealthMonitor() {
	r.monitorMu.Lock()
	cancel := r.monitorCancel
	done := r.monitorDone
	r.monitorMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}
