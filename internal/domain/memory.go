// Package domain holds the entities and interfaces shared by every
// component of the memory and provider routing core. Nothing in this
// package talks to a real backend; concrete adapters live under
// internal/adapter and internal/router.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies which adapter tier produced or owns a MemoryEntry.
type SourceKind string

const (
	SourceVector        SourceKind = "vector"
	SourceAuthoritative  SourceKind = "authoritative"
	SourceCache          SourceKind = "cache"
	SourceTextIndex      SourceKind = "text_index"
	SourceAnalytics      SourceKind = "analytics"
)

// MemoryEntry is the immutable unit of recall and storage (spec §3, I1).
// It is identified by (TenantID, UserID, Timestamp) within a session.
type MemoryEntry struct {
	TenantID      string         `json:"tenant_id"`
	UserID        string         `json:"user_id"`
	SessionID     string         `json:"session_id,omitempty"`
	Query         string         `json:"query"`
	Result        map[string]any `json:"result"`
	Timestamp     time.Time      `json:"timestamp"`
	VectorID      string         `json:"vector_id,omitempty"`
	Confidence    float64        `json:"confidence,omitempty"`
	SourceKind    SourceKind     `json:"source_kind"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// Key returns the entry's natural identity within a session, per spec §3.
func (m MemoryEntry) Key() string {
	return m.TenantID + ":" + m.UserID + ":" + m.Timestamp.Format(time.RFC3339Nano)
}

// MemoryType classifies an EnrichedMemory's provisional/refined label.
type MemoryType string

const (
	TypeFact       MemoryType = "fact"
	TypePreference MemoryType = "preference"
	TypeContext    MemoryType = "context"
)

// Cluster classifies an EnrichedMemory's semantic grouping.
type Cluster string

const (
	ClusterTechnical Cluster = "technical"
	ClusterPersonal  Cluster = "personal"
	ClusterWork      Cluster = "work"
	ClusterGeneral   Cluster = "general"
)

// MemoryID identifies a memory for the purposes of relationship sets.
type MemoryID = string

// EnrichedMemory is a derived annotation of a MemoryEntry. It is never the
// source of truth (spec §3): losing it costs only recall quality, never data.
type EnrichedMemory struct {
	Entry         MemoryEntry
	Type          MemoryType
	Cluster       Cluster
	Relationships map[MemoryID]struct{}
	RelevanceScore float64
	AccessCount   int
	LastAccessed  time.Time
}

// BufferedWrite is a write that could not reach the Authoritative adapter
// and is parked in the Cache adapter's buffer namespace until replay or TTL
// expiry (spec §3, §4.2).
type BufferedWrite struct {
	Key   string        `json:"key"`
	Entry MemoryEntry   `json:"entry"`
	TTL   time.Duration `json:"ttl"`
}

// BufferKey builds the kari:mem:buffer:{tenant}:{user}:{timestamp} key.
func BufferKey(tenantID, userID string, ts time.Time) string {
	return "kari:mem:buffer:" + tenantID + ":" + userID + ":" + ts.Format(time.RFC3339Nano)
}

// BufferScanPrefix returns the scan prefix for a tenant/user's buffered
// writes, or for every buffered write when tenantID/userID are empty.
func BufferScanPrefix(tenantID, userID string) string {
	switch {
	case tenantID == "" && userID == "":
		return "kari:mem:buffer:"
	case userID == "":
		return "kari:mem:buffer:" + tenantID + ":"
	default:
		return "kari:mem:buffer:" + tenantID + ":" + userID + ":"
	}
}

// CacheKey builds the short-term recall cache key for a tenant/user scope.
func CacheKey(tenantID, userID string) string {
	return "kari:mem:" + tenantID + ":" + userID
}

const (
	// ShortTermCacheTTL is the TTL for the short-term recall cache (spec §4.2).
	ShortTermCacheTTL = 30 * time.Minute
	// BufferTTL bounds buffer growth (spec §4.2); on expiry the write is lost and logged.
	BufferTTL = 1 * time.Hour
	// DefaultReconcileInterval is the reconciler tick interval (spec §4.3).
	DefaultReconcileInterval = 5 * time.Second
	// DefaultDrainBudget bounds how many buffered entries are replayed per tick (spec §4.3).
	DefaultDrainBudget = 200
)

// DefaultRecallTimeout and DefaultStoreTimeout are the per-adapter timeouts
// of spec §4.1 (5s recall, 10s store). They are package vars rather than
// constants because internal/core.New overrides them from the
// ADAPTER_RECALL_TIMEOUT/ADAPTER_STORE_TIMEOUT env vars (spec §6) once at
// startup, before any adapter is constructed; nothing else in the process
// ever mutates them.
var (
	DefaultRecallTimeout = 5 * time.Second
	DefaultStoreTimeout  = 10 * time.Second
	// DefaultHealthCheckTimeout bounds every adapter's Health() RPC (spec §5,
	// default 2s), overridden the same way as the two timeouts above.
	DefaultHealthCheckTimeout = 2 * time.Second
)

// NewCorrelationID mints a request-scoped correlation ID (spec §4.8).
func NewCorrelationID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
