// Package memoryorch implements C4: the tiered recall ladder and the
// write fan-out, with partial-failure tolerance and strict separation
// between the Authoritative source of truth and every derived store
// (spec §4.4).
package memoryorch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/buffer"
	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Adapters bundles the four optional backend adapters the orchestrator
// fans recall/write across; the cache adapter is reached through the
// buffer instead. Any field may be nil: missing adapters
// degrade functionality but never abort an operation (spec §4.1).
type Adapters struct {
	Vector        domain.VectorAdapter
	Authoritative domain.AuthoritativeAdapter
	TextIndex     domain.TextIndexAdapter
	Analytics     domain.AnalyticsAdapter
}

// Orchestrator is C4.
type Orchestrator struct {
	adapters Adapters
	buf      *buffer.Buffer
	logger   *zap.Logger
}

func New(adapters Adapters, buf *buffer.Buffer, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{adapters: adapters, buf: buf, logger: logger}
}

// RecallContext walks the priority ladder of spec §4.4: the first tier to
// return a non-empty, non-error result wins. A tier's failure is logged at
// WARN and skipped; the ladder never aborts on a single failure. If every
// tier is empty or failing, it returns an empty slice (not an error) and
// increments recall_miss (spec I5: len(result) <= opts.Limit is enforced
// by every adapter's own LIMIT clause, verified again here defensively).
func (o *Orchestrator) RecallContext(ctx context.Context, userID, query string, opts domain.RecallOpts) []domain.MemoryEntry {
	logger := telemetry.With(o.logger, ctx, "", "")
	telemetry.MemoryRecallTotal.Inc()

	type tier struct {
		name string
		fn   func() ([]domain.MemoryEntry, error)
	}

	tiers := []tier{
		{"vector", func() ([]domain.MemoryEntry, error) {
			if o.adapters.Vector == nil {
				return nil, nil
			}
			return o.adapters.Vector.Recall(ctx, userID, query, opts)
		}},
		{"text_index", func() ([]domain.MemoryEntry, error) {
			if o.adapters.TextIndex == nil {
				return nil, nil
			}
			return o.adapters.TextIndex.Search(ctx, userID, query, opts)
		}},
		{"vector_enriched", func() ([]domain.MemoryEntry, error) {
			if o.adapters.Vector == nil || o.adapters.Authoritative == nil {
				return nil, nil
			}
			hits, err := o.adapters.Vector.Recall(ctx, userID, query, opts)
			if err != nil || len(hits) == 0 {
				return hits, err
			}
			enriched := make([]domain.MemoryEntry, 0, len(hits))
			for _, h := range hits {
				if h.VectorID == "" {
					continue
				}
				full, ok, err := o.adapters.Authoritative.GetByVectorID(ctx, h.VectorID)
				if err != nil || !ok {
					continue
				}
				enriched = append(enriched, full)
			}
			return enriched, nil
		}},
		{"authoritative", func() ([]domain.MemoryEntry, error) {
			if o.adapters.Authoritative == nil {
				return nil, nil
			}
			status := o.adapters.Authoritative.Health(ctx)
			if !status.OK {
				return nil, nil
			}
			return o.adapters.Authoritative.Recall(ctx, userID, query, opts)
		}},
		{"cache", func() ([]domain.MemoryEntry, error) {
			entry, ok := o.buf.ReadCache(ctx, opts.TenantID, userID)
			if !ok {
				return nil, nil
			}
			return []domain.MemoryEntry{entry}, nil
		}},
		{"analytics", func() ([]domain.MemoryEntry, error) {
			if o.adapters.Analytics == nil {
				return nil, nil
			}
			hits, err := o.adapters.Analytics.Query(ctx, userID, query, opts)
			return hits, err
		}},
	}

	for _, t := range tiers {
		hits, err := t.fn()
		if err != nil {
			logger.Warn("recall tier failed, skipping", zap.String("tier", t.name), zap.Error(err))
			continue
		}
		if len(hits) == 0 {
			continue
		}
		if opts.Limit > 0 && len(hits) > opts.Limit {
			hits = hits[:opts.Limit]
		}
		return hits
	}

	telemetry.MemoryRecallMissTotal.Inc()
	return nil
}

// UpdateMemory fans a write out to every healthy adapter (spec §4.4). It
// succeeds if at least one adapter accepts the write; if none do, it
// returns a *domain.WriteFailure listing the vector, authoritative and
// text-index errors. A short-term cache or buffered write that does not
// land adds no entry to that list, since the buffer reports it only as a
// bool.
func (o *Orchestrator) UpdateMemory(ctx context.Context, entry domain.MemoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	logger := telemetry.With(o.logger, ctx, "", "")

	var mu sync.Mutex
	var failures []domain.AdapterFailure
	accepted := false
	markAccepted := func() {
		mu.Lock()
		accepted = true
		mu.Unlock()
	}
	addFailure := func(f domain.AdapterFailure) {
		mu.Lock()
		failures = append(failures, f)
		mu.Unlock()
	}

	var vectorID string
	if o.adapters.Vector != nil {
		id, err := o.adapters.Vector.Store(ctx, entry)
		if err != nil {
			logger.Warn("vector store failed", zap.Error(err))
			addFailure(domain.AdapterFailure{Adapter: "vector", Err: err})
		} else {
			vectorID = id
			entry.VectorID = id
			markAccepted()
		}
	}

	authoritativeHealthy := false
	if o.adapters.Authoritative != nil {
		status := o.adapters.Authoritative.Health(ctx)
		authoritativeHealthy = status.OK
		if authoritativeHealthy {
			if err := o.adapters.Authoritative.Upsert(ctx, vectorID, entry); err != nil {
				logger.Warn("authoritative upsert failed", zap.Error(err))
				addFailure(domain.AdapterFailure{Adapter: "authoritative", Err: err})
				authoritativeHealthy = false
			} else {
				markAccepted()
			}
		} else {
			addFailure(domain.AdapterFailure{Adapter: "authoritative", Err: fmtUnhealthy(status.Detail)})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if o.buf.WriteCache(gctx, entry) {
			markAccepted()
		}
		return nil
	})
	if !authoritativeHealthy && o.adapters.Authoritative != nil {
		g.Go(func() error {
			if o.buf.Buffer(gctx, entry) {
				markAccepted()
			}
			return nil
		})
	}
	if o.adapters.TextIndex != nil {
		g.Go(func() error {
			if err := o.adapters.TextIndex.Index(gctx, entry); err != nil {
				logger.Warn("text index write failed", zap.Error(err))
				addFailure(domain.AdapterFailure{Adapter: "text_index", Err: err})
				return nil
			}
			markAccepted()
			return nil
		})
	}
	_ = g.Wait()

	telemetry.MemoryStoreTotal.Inc()

	mu.Lock()
	defer mu.Unlock()
	if !accepted {
		return &domain.WriteFailure{Failures: failures}
	}
	return nil
}

func fmtUnhealthy(detail string) error {
	if detail == "" {
		detail = "authoritative store unhealthy"
	}
	return &unhealthyErr{detail: detail}
}

type unhealthyErr struct{ detail string }

func (e *unhealthyErr) Error() string { return e.detail }
