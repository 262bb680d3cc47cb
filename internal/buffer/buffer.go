// Package buffer implements C2: the ephemeral short-term recall cache and
// the write buffer, both backed by the same domain.CacheAdapter instance
// (spec §4.2).
package buffer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
)

// Buffer wraps a domain.CacheAdapter with the two key schemes of spec
// §4.2. If the cache backend is unavailable, writes proceed against other
// adapters; buffering is disabled (logged) but not fatal — callers detect
// this via the bool return values below, never an error that aborts the
// write.
type Buffer struct {
	cache  domain.CacheAdapter
	logger *zap.Logger
}

func New(cache domain.CacheAdapter, logger *zap.Logger) *Buffer {
	return &Buffer{cache: cache, logger: logger}
}

// WriteCache populates the short-term recall cache at kari:mem:{tenant}:{user}.
// Returns false when the write didn't land (no cache adapter, marshal error,
// or backend error) so callers can tell a no-op apart from an accepted write.
func (b *Buffer) WriteCache(ctx context.Context, entry domain.MemoryEntry) bool {
	if b.cache == nil {
		return false
	}
	key := domain.CacheKey(entry.TenantID, entry.UserID)
	payload, err := json.Marshal(entry)
	if err != nil {
		b.logger.Warn("marshal cache entry failed", zap.Error(err))
		return false
	}
	if err := b.cache.Set(ctx, key, payload, domain.ShortTermCacheTTL); err != nil {
		b.logger.Warn("short-term cache write failed", zap.Error(err))
		return false
	}
	return true
}

// ReadCache reads the short-term recall cache, returning ok=false if the
// cache is unavailable or empty for this scope.
func (b *Buffer) ReadCache(ctx context.Context, tenantID, userID string) (domain.MemoryEntry, bool) {
	if b.cache == nil {
		return domain.MemoryEntry{}, false
	}
	key := domain.CacheKey(tenantID, userID)
	raw, ok, err := b.cache.Get(ctx, key)
	if err != nil || !ok {
		return domain.MemoryEntry{}, false
	}
	var entry domain.MemoryEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.MemoryEntry{}, false
	}
	return entry, true
}

// Buffer parks a write that the Authoritative adapter rejected. Returns
// false when the cache backend itself is unavailable (buffering disabled
// but not fatal, per spec §4.2).
func (b *Buffer) Buffer(ctx context.Context, entry domain.MemoryEntry) bool {
	if b.cache == nil {
		b.logger.Warn("write buffering disabled: no cache adapter registered")
		return false
	}
	key := domain.BufferKey(entry.TenantID, entry.UserID, entry.Timestamp)
	bw := domain.BufferedWrite{Key: key, Entry: entry, TTL: domain.BufferTTL}
	payload, err := json.Marshal(bw)
	if err != nil {
		b.logger.Warn("marshal buffered write failed", zap.Error(err))
		return false
	}
	if err := b.cache.Set(ctx, key, payload, domain.BufferTTL); err != nil {
		b.logger.Warn("buffer write failed", zap.Error(err))
		return false
	}
	return true
}

// Scan lists every buffered key for a tenant/user scope in lexicographic
// order. Pass "" for userID to scan an entire tenant, or "" for both to
// scan every buffered write (used by the reconciler).
func (b *Buffer) Scan(ctx context.Context, tenantID, userID string) ([]string, error) {
	if b.cache == nil {
		return nil, fmt.Errorf("buffer: no cache adapter registered")
	}
	prefix := domain.BufferScanPrefix(tenantID, userID)
	ch, err := b.cache.Scan(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan buffer: %w", err)
	}
	var keys []string
	for k := range ch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Load deserializes a buffered write by key.
func (b *Buffer) Load(ctx context.Context, key string) (domain.BufferedWrite, bool, error) {
	raw, ok, err := b.cache.Get(ctx, key)
	if err != nil {
		return domain.BufferedWrite{}, false, fmt.Errorf("load buffered write: %w", err)
	}
	if !ok {
		return domain.BufferedWrite{}, false, nil
	}
	var bw domain.BufferedWrite
	if err := json.Unmarshal(raw, &bw); err != nil {
		return domain.BufferedWrite{}, false, fmt.Errorf("unmarshal buffered write: %w", err)
	}
	return bw, true, nil
}

// Delete removes a drained or expired buffered write.
func (b *Buffer) Delete(ctx context.Context, key string) error {
	return b.cache.Delete(ctx, key)
}
