package enrichment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/enrichment"
)

type fakeRefiner struct {
	classifyErr error
	embedErr    error
	embeddings  map[string][]float32
}

func (f *fakeRefiner) Classify(ctx context.Context, text string) (string, error) {
	if f.classifyErr != nil {
		return "", f.classifyErr
	}
	return "", errors.New("no opinion")
}

func (f *fakeRefiner) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embeddings[text], nil
}

func TestEnrich_KeywordClassificationWithNoRefiner(t *testing.T) {
	p := enrichment.New(nil, zap.NewNop())
	hits := []domain.MemoryEntry{
		{Query: "I like python programming"},
		{Query: "the user is located in Berlin"},
		{Query: "random unrelated note"},
	}
	enriched := p.Enrich(context.Background(), hits)
	require.Len(t, enriched, 3)
	assert.Equal(t, domain.TypePreference, enriched[0].Type)
	assert.Equal(t, domain.TypeFact, enriched[1].Type)
	assert.Equal(t, domain.TypeContext, enriched[2].Type)
}

func TestEnrich_ClusterHeuristics(t *testing.T) {
	p := enrichment.New(nil, zap.NewNop())
	hits := []domain.MemoryEntry{
		{Query: "works at acme corp as engineer"},
		{Query: "lives in home city address"},
		{Query: "likes jazz music"},
	}
	enriched := p.Enrich(context.Background(), hits)
	assert.Equal(t, domain.ClusterWork, enriched[0].Cluster)
	assert.Equal(t, domain.ClusterPersonal, enriched[1].Cluster)
	assert.Equal(t, domain.ClusterGeneral, enriched[2].Cluster)
}

func TestEnrich_ClusterHeuristics_Technical(t *testing.T) {
	p := enrichment.New(nil, zap.NewNop())
	hits := []domain.MemoryEntry{
		{Query: "fixed a bug in the deploy pipeline for the api server"},
	}
	enriched := p.Enrich(context.Background(), hits)
	assert.Equal(t, domain.ClusterTechnical, enriched[0].Cluster)
}

func TestEnrich_RelationshipDetectionByJaccardOnly(t *testing.T) {
	p := enrichment.New(nil, zap.NewNop())
	hits := []domain.MemoryEntry{
		{TenantID: "t", UserID: "u", Query: "likes python programming language"},
		{TenantID: "t", UserID: "u", Query: "likes python programming a lot"},
		{TenantID: "t", UserID: "u", Query: "completely unrelated topic about cooking"},
	}
	enriched := p.Enrich(context.Background(), hits)
	assert.NotEmpty(t, enriched[0].Relationships, "entries sharing enough tokens should be linked")
	assert.Empty(t, enriched[2].Relationships)
}

func TestEnrich_RelationshipRequiresCosineConfirmationWhenRefinerHealthy(t *testing.T) {
	refiner := &fakeRefiner{
		embeddings: map[string][]float32{
			"likes python programming language": {1, 0, 0},
			"likes python programming a lot":    {0, 1, 0},
		},
	}
	p := enrichment.New(refiner, zap.NewNop())
	hits := []domain.MemoryEntry{
		{TenantID: "t", UserID: "u", Query: "likes python programming language"},
		{TenantID: "t", UserID: "u", Query: "likes python programming a lot"},
	}
	enriched := p.Enrich(context.Background(), hits)
	assert.Empty(t, enriched[0].Relationships, "orthogonal embeddings should fail cosine confirmation despite Jaccard match")
}

func TestEnrich_RelationshipCappedAtFive(t *testing.T) {
	p := enrichment.New(nil, zap.NewNop())
	var hits []domain.MemoryEntry
	for i := 0; i < 8; i++ {
		hits = append(hits, domain.MemoryEntry{TenantID: "t", UserID: "u", Query: "likes python programming language deeply"})
	}
	enriched := p.Enrich(context.Background(), hits)
	assert.LessOrEqual(t, len(enriched[0].Relationships), 5)
}

func TestEnrich_NeverFailsOnEmptyInput(t *testing.T) {
	p := enrichment.New(nil, zap.NewNop())
	enriched := p.Enrich(context.Background(), nil)
	assert.Empty(t, enriched)
}
