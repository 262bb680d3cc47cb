package domain

import (
	"context"
	"time"
)

// RecallOpts narrows a recall call; Limit is mandatory (I5: N <= Limit).
type RecallOpts struct {
	Limit    int
	TenantID string
}

// HealthStatus is the uniform shape every adapter's health() call returns.
type HealthStatus struct {
	OK        bool
	LatencyMS int64
	Detail    string
}

// VectorAdapter performs semantic recall and indexing (spec §4.1, §6).
type VectorAdapter interface {
	Recall(ctx context.Context, userID, query string, opts RecallOpts) ([]MemoryEntry, error)
	Store(ctx context.Context, entry MemoryEntry) (vectorID string, err error)
	Health(ctx context.Context) HealthStatus
}

// AuthoritativeAdapter is the single source of truth for MemoryEntry (I1).
type AuthoritativeAdapter interface {
	Upsert(ctx context.Context, vectorID string, entry MemoryEntry) error
	Recall(ctx context.Context, userID, query string, opts RecallOpts) ([]MemoryEntry, error)
	GetByVectorID(ctx context.Context, vectorID string) (MemoryEntry, bool, error)
	Health(ctx context.Context) HealthStatus
}

// CacheAdapter backs both the short-term recall cache and the write buffer
// (spec §4.2). Scan must support prefix iteration (REDESIGN FLAG: scan is a
// first-class contract method, not worked around with auxiliary indexes).
type CacheAdapter interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Scan(ctx context.Context, prefix string) (<-chan string, error)
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) HealthStatus
}

// TextIndexAdapter is the optional keyword/BM25 recall tier.
type TextIndexAdapter interface {
	Index(ctx context.Context, entry MemoryEntry) error
	Search(ctx context.Context, userID, query string, opts RecallOpts) ([]MemoryEntry, error)
	Health(ctx context.Context) HealthStatus
}

// AnalyticsAdapter is the read-only, last-resort recall tier (I2: no write
// path may target it — the interface has no write method at all).
type AnalyticsAdapter interface {
	Query(ctx context.Context, userID, query string, opts RecallOpts) ([]MemoryEntry, error)
	Health(ctx context.Context) HealthStatus
}
