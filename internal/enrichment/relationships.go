package enrichment

import (
	"context"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
)

const (
	jaccardThreshold = 0.3
	cosineThreshold  = 0.7
)

// detectRelationships links entries whose token sets clear the Jaccard
// threshold, optionally confirmed by embedding cosine similarity, capped
// at maxRelationshipCandidates per entry (spec §4.5).
func (p *Pipeline) detectRelationships(ctx context.Context, entries []domain.EnrichedMemory) {
	tokenSets := make([]map[string]struct{}, len(entries))
	for i, e := range entries {
		tokenSets[i] = tokenize(e.Entry.Query)
	}

	var embeddings [][]float32
	if p.refiner != nil {
		embeddings = make([][]float32, len(entries))
	}

	for i := range entries {
		candidates := 0
		for j := range entries {
			if i == j || candidates >= maxRelationshipCandidates {
				continue
			}
			if jaccard(tokenSets[i], tokenSets[j]) < jaccardThreshold {
				continue
			}

			confirmed := true
			if p.refiner != nil {
				vi := p.embeddingFor(ctx, embeddings, i, entries[i].Entry.Query)
				vj := p.embeddingFor(ctx, embeddings, j, entries[j].Entry.Query)
				if vi != nil && vj != nil {
					confirmed = cosineSimilarity(vi, vj) >= cosineThreshold
				}
			}
			if !confirmed {
				continue
			}

			entries[i].Relationships[entries[j].Entry.Key()] = struct{}{}
			candidates++
		}
	}
}

func (p *Pipeline) embeddingFor(ctx context.Context, cache [][]float32, idx int, text string) []float32 {
	if cache[idx] != nil {
		return cache[idx]
	}
	vec, err := p.refiner.Embed(ctx, text)
	if err != nil {
		p.logger.Warn("relationship embedding refinement failed, falling back to Jaccard-only match", zap.Error(err))
		return nil
	}
	cache[idx] = vec
	return vec
}

func tokenize(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		tok = strings.Trim(tok, ".,!?;:\"'")
		if tok != "" {
			out[tok] = struct{}{}
		}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
