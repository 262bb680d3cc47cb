package memoryorch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/buffer"
	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/memoryorch"
)

type fakeCache struct {
	mu   sync.Mutex
	data map[string][]byte
	down bool
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, false, errors.New("cache down")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return errors.New("cache down")
	}
	f.data[key] = value
	return nil
}

func (f *fakeCache) Scan(ctx context.Context, prefix string) (<-chan string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(chan string, len(f.data))
	for k := range f.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			out <- k
		}
	}
	close(out)
	return out, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *fakeCache) Health(ctx context.Context) domain.HealthStatus {
	if f.down {
		return domain.HealthStatus{OK: false}
	}
	return domain.HealthStatus{OK: true}
}

type fakeVector struct {
	entries []domain.MemoryEntry
	failing bool
}

func (f *fakeVector) Recall(ctx context.Context, userID, query string, opts domain.RecallOpts) ([]domain.MemoryEntry, error) {
	if f.failing {
		return nil, errors.New("vector down")
	}
	var out []domain.MemoryEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeVector) Store(ctx context.Context, entry domain.MemoryEntry) (string, error) {
	if f.failing {
		return "", errors.New("vector down")
	}
	entry.VectorID = "vec-1"
	f.entries = append(f.entries, entry)
	return "vec-1", nil
}

func (f *fakeVector) Health(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{OK: !f.failing}
}

type fakeAuthoritative struct {
	mu      sync.Mutex
	entries map[string]domain.MemoryEntry
	healthy bool
}

func newFakeAuthoritative(healthy bool) *fakeAuthoritative {
	return &fakeAuthoritative{entries: map[string]domain.MemoryEntry{}, healthy: healthy}
}

func (f *fakeAuthoritative) Upsert(ctx context.Context, vectorID string, entry domain.MemoryEntry) error {
	if !f.healthy {
		return errors.New("authoritative down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[vectorID] = entry
	return nil
}

func (f *fakeAuthoritative) Recall(ctx context.Context, userID, query string, opts domain.RecallOpts) ([]domain.MemoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.MemoryEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeAuthoritative) GetByVectorID(ctx context.Context, vectorID string) (domain.MemoryEntry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[vectorID]
	return e, ok, nil
}

func (f *fakeAuthoritative) Health(ctx context.Context) domain.HealthStatus {
	return domain.HealthStatus{OK: f.healthy}
}

func TestOrchestrator_S1_BasicStoreAndRecall(t *testing.T) {
	vec := &fakeVector{}
	auth := newFakeAuthoritative(true)
	cache := newFakeCache()
	buf := buffer.New(cache, zap.NewNop())
	orch := memoryorch.New(memoryorch.Adapters{Vector: vec, Authoritative: auth}, buf, zap.NewNop())

	entry := domain.MemoryEntry{TenantID: "t1", UserID: "u1", Query: "likes python", Result: map[string]any{"value": true}, Timestamp: time.Now()}
	err := orch.UpdateMemory(context.Background(), entry)
	require.NoError(t, err)

	hits := orch.RecallContext(context.Background(), "u1", "python", domain.RecallOpts{Limit: 5})
	require.NotEmpty(t, hits)
	assert.Equal(t, "likes python", hits[0].Query)
}

func TestOrchestrator_S2_AuthoritativeDownBufferThenRecover(t *testing.T) {
	vec := &fakeVector{}
	auth := newFakeAuthoritative(false)
	cache := newFakeCache()
	buf := buffer.New(cache, zap.NewNop())
	orch := memoryorch.New(memoryorch.Adapters{Vector: vec, Authoritative: auth}, buf, zap.NewNop())

	entry := domain.MemoryEntry{TenantID: "t1", UserID: "u1", Query: "q2", Result: map[string]any{"v": 2}, Timestamp: time.Now()}
	err := orch.UpdateMemory(context.Background(), entry)
	require.NoError(t, err)

	keys, err := buf.Scan(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)

	auth.healthy = true
	bw, ok, err := buf.Load(context.Background(), keys[0])
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, auth.Upsert(context.Background(), bw.Entry.VectorID, bw.Entry))
	require.NoError(t, buf.Delete(context.Background(), keys[0]))

	keysAfter, err := buf.Scan(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Empty(t, keysAfter)
}

func TestOrchestrator_WriteFailsWhenEveryAdapterRejects(t *testing.T) {
	vec := &fakeVector{failing: true}
	auth := newFakeAuthoritative(false)
	cache := newFakeCache()
	cache.down = true
	buf := buffer.New(cache, zap.NewNop())
	orch := memoryorch.New(memoryorch.Adapters{Vector: vec, Authoritative: auth}, buf, zap.NewNop())

	err := orch.UpdateMemory(context.Background(), domain.MemoryEntry{TenantID: "t1", UserID: "u1", Query: "q", Timestamp: time.Now()})
	require.Error(t, err)
	var wf *domain.WriteFailure
	require.ErrorAs(t, err, &wf)
	assert.NotEmpty(t, wf.Failures)
}

func TestOrchestrator_WriteSucceedsWhenOnlyCacheAccepts(t *testing.T) {
	vec := &fakeVector{failing: true}
	cache := newFakeCache()
	buf := buffer.New(cache, zap.NewNop())
	// No Authoritative adapter at all, so the buffer-replay write path never
	// runs; the short-term cache write is the only adapter that can accept.
	orch := memoryorch.New(memoryorch.Adapters{Vector: vec}, buf, zap.NewNop())

	err := orch.UpdateMemory(context.Background(), domain.MemoryEntry{TenantID: "t1", UserID: "u1", Query: "q", Timestamp: time.Now()})
	require.NoError(t, err, "the short-term cache write landing is itself an accepted write (P8), even though vector failed and no other adapter is registered")
}

func TestOrchestrator_RecallRespectsLimit(t *testing.T) {
	vec := &fakeVector{}
	for i := 0; i < 10; i++ {
		vec.entries = append(vec.entries, domain.MemoryEntry{UserID: "u1", Query: "q"})
	}
	buf := buffer.New(newFakeCache(), zap.NewNop())
	orch := memoryorch.New(memoryorch.Adapters{Vector: vec}, buf, zap.NewNop())

	hits := orch.RecallContext(context.Background(), "u1", "q", domain.RecallOpts{Limit: 3})
	assert.Len(t, hits, 3)
}

func TestOrchestrator_RecallEmptyIsNotError(t *testing.T) {
	buf := buffer.New(newFakeCache(), zap.NewNop())
	orch := memoryorch.New(memoryorch.Adapters{}, buf, zap.NewNop())

	hits := orch.RecallContext(context.Background(), "u1", "q", domain.RecallOpts{Limit: 5})
	assert.Empty(t, hits)
}
