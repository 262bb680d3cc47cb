// Package reconciler implements C3: a background loop that probes the
// Authoritative adapter's health and replays buffered writes once it
// recovers (spec §4.3), grounded on
// Harshitk-cp-engram/internal/service/expirer.go's ticker/stopCh/WaitGroup
// shape.
package reconciler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/buffer"
	"github.com/kari-ai/core/internal/domain"
)

// Reconciler owns its own timer exclusively; shutdown cancels it
// deterministically (spec §4.3, §5).
type Reconciler struct {
	authoritative domain.AuthoritativeAdapter
	buf           *buffer.Buffer
	logger        *zap.Logger

	interval time.Duration
	budget   int

	stopCh chan struct{}
	wg     sync.WaitGroup

	mu           sync.Mutex
	wasHealthy   bool
	pendingDrain bool
	drainedTotal int64
	expiredTotal int64
}

// New creates a Reconciler with the given tick interval and per-tick drain
// budget (spec §4.3 defaults: 5s, 200 entries).
func New(authoritative domain.AuthoritativeAdapter, buf *buffer.Buffer, logger *zap.Logger, interval time.Duration, budget int) *Reconciler {
	if interval <= 0 {
		interval = domain.DefaultReconcileInterval
	}
	if budget <= 0 {
		budget = domain.DefaultDrainBudget
	}
	return &Reconciler{
		authoritative: authoritative,
		buf:           buf,
		logger:        logger,
		interval:      interval,
		budget:        budget,
		stopCh:        make(chan struct{}),
		wasHealthy:    true,
	}
}

// Start runs the reconciler on its own ticker in a background goroutine.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		r.logger.Info("reconciler started", zap.Duration("interval", r.interval), zap.Int("drain_budget", r.budget))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), r.interval)
				r.Tick(ctx)
				cancel()
			case <-r.stopCh:
				r.logger.Info("reconciler stopped")
				return
			}
		}
	}()
}

// Stop deterministically cancels the reconciler's timer and waits for the
// in-flight tick to finish.
func (r *Reconciler) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// Tick implements spec §4.3's three-step schedule: probe health, drain on
// recovery, yield past the budget. Draining also runs on every later
// healthy tick while a prior drain left work undone (P2: a buffer larger
// than the per-tick budget must fully drain over ceil(|W|/budget) ticks,
// not just the one transition tick). Exported so tests can single-step it.
func (r *Reconciler) Tick(ctx context.Context) {
	status := r.authoritative.Health(ctx)

	r.mu.Lock()
	transitioned := !r.wasHealthy && status.OK
	r.wasHealthy = status.OK
	shouldDrain := status.OK && (transitioned || r.pendingDrain)
	r.mu.Unlock()

	if !status.OK {
		r.logger.Warn("authoritative store unhealthy", zap.String("detail", status.Detail))
		return
	}
	if !shouldDrain {
		return
	}

	moreWork := r.drain(ctx)

	r.mu.Lock()
	r.pendingDrain = moreWork
	r.mu.Unlock()
}

// drain scans the buffer in lexicographic order and replays each entry,
// stopping at the first failure or once the per-tick budget is exhausted
// (spec §4.3 step 2-3; Q3: scan is authoritative). Returns true if the
// budget was exhausted before the scan was fully drained, so the next
// tick knows to resume draining even without a fresh health transition.
func (r *Reconciler) drain(ctx context.Context) bool {
	keys, err := r.buf.Scan(ctx, "", "")
	if err != nil {
		r.logger.Warn("buffer scan failed", zap.Error(err))
		return true
	}

	replayed := 0
	for _, key := range keys {
		if replayed >= r.budget {
			r.logger.Info("reconciler yielding: drain budget exhausted", zap.Int("budget", r.budget))
			return true
		}

		bw, ok, err := r.buf.Load(ctx, key)
		if err != nil {
			r.logger.Warn("buffer load failed, stopping drain this tick", zap.String("key", key), zap.Error(err))
			return true
		}
		if !ok {
			r.recordExpired()
			continue
		}

		if err := r.authoritative.Upsert(ctx, bw.Entry.VectorID, bw.Entry); err != nil {
			r.logger.Warn("buffered replay failed, stopping drain this tick", zap.String("key", key), zap.Error(err))
			return true
		}
		if err := r.buf.Delete(ctx, key); err != nil {
			r.logger.Warn("failed to delete replayed buffer entry", zap.String("key", key), zap.Error(err))
		}
		replayed++
		r.recordDrained()
	}
	return false
}

func (r *Reconciler) recordDrained() {
	r.mu.Lock()
	r.drainedTotal++
	r.mu.Unlock()
}

func (r *Reconciler) recordExpired() {
	r.mu.Lock()
	r.expiredTotal++
	r.mu.Unlock()
}

// Stats reports cumulative drain counters, useful for tests and status
// endpoints.
func (r *Reconciler) Stats() (drained, expired int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drainedTotal, r.expiredTotal
}
