package router

import (
	"sort"
	"sync"
	"time"

	"github.com/kari-ai/core/internal/domain"
)

// Policy is the selectable ordering strategy of spec §4.7.
type Policy string

const (
	PolicyPriority   Policy = "priority"
	PolicyRoundRobin Policy = "round_robin"
	PolicyHybrid     Policy = "hybrid"
)

// candidate pairs a spec with its live health record at selection time.
type candidate struct {
	spec   domain.ProviderSpec
	health *domain.ProviderHealth
}

// sortedByBucket orders candidates by PriorityBucket ascending (local
// first), ties broken alphabetically (spec §4.7 Priority policy).
func sortedByBucket(cands []candidate) []candidate {
	out := make([]candidate, len(cands))
	copy(out, cands)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].spec.Bucket != out[j].spec.Bucket {
			return out[i].spec.Bucket < out[j].spec.Bucket
		}
		return out[i].spec.Name < out[j].spec.Name
	})
	return out
}

// rrCounters tracks round-robin cursors, one flat cursor and one per
// bucket for the hybrid policy.
type rrCounters struct {
	mu       sync.Mutex
	flat     int
	byBucket map[domain.PriorityBucket]int
}

func newRRCounters() *rrCounters {
	return &rrCounters{byBucket: make(map[domain.PriorityBucket]int)}
}

// selectPriority implements the strict local-first ladder: the first
// dispatchable candidate in bucket order wins.
func selectPriority(cands []candidate, now time.Time) (candidate, bool) {
	for _, c := range sortedByBucket(cands) {
		if c.health.Dispatchable(now) {
			return c, true
		}
	}
	return candidate{}, false
}

// selectRoundRobin rotates across the flattened healthy list (alphabetical
// base ordering, so rotation is deterministic across ties).
func (r *rrCounters) selectRoundRobin(cands []candidate, now time.Time) (candidate, bool) {
	healthy := healthyOnly(alphabetical(cands), now)
	if len(healthy) == 0 {
		return candidate{}, false
	}
	r.mu.Lock()
	idx := r.flat % len(healthy)
	r.flat++
	r.mu.Unlock()
	return healthy[idx], true
}

// selectHybrid rotates within each priority bucket while preserving bucket
// order across buckets: the first bucket with a dispatchable member wins,
// and rotation only happens among that bucket's healthy members.
func (r *rrCounters) selectHybrid(cands []candidate, now time.Time) (candidate, bool) {
	buckets := groupByBucket(cands)
	order := sortedBucketKeys(buckets)
	for _, bucket := range order {
		healthy := healthyOnly(buckets[bucket], now)
		if len(healthy) == 0 {
			continue
		}
		r.mu.Lock()
		idx := r.byBucket[bucket] % len(healthy)
		r.byBucket[bucket]++
		r.mu.Unlock()
		return healthy[idx], true
	}
	return candidate{}, false
}

func alphabetical(cands []candidate) []candidate {
	out := make([]candidate, len(cands))
	copy(out, cands)
	sort.Slice(out, func(i, j int) bool { return out[i].spec.Name < out[j].spec.Name })
	return out
}

func healthyOnly(cands []candidate, now time.Time) []candidate {
	var out []candidate
	for _, c := range cands {
		if c.health.Dispatchable(now) {
			out = append(out, c)
		}
	}
	return out
}

func groupByBucket(cands []candidate) map[domain.PriorityBucket][]candidate {
	out := make(map[domain.PriorityBucket][]candidate)
	for _, c := range cands {
		out[c.spec.Bucket] = append(out[c.spec.Bucket], c)
	}
	for b := range out {
		out[b] = alphabetical(out[b])
	}
	return out
}

func sortedBucketKeys(buckets map[domain.PriorityBucket][]candidate) []domain.PriorityBucket {
	keys := make([]domain.PriorityBucket, 0, len(buckets))
	for b := range buckets {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
