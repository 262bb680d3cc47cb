// Package enrichment implements C5: best-effort type classification,
// semantic clustering, and relationship detection over a recall result
// (spec §4.5). Enrichment never fails the containing recall; every error
// is logged and swallowed.
package enrichment

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/kari-ai/core/internal/domain"
)

// Refiner is the subset of internal/router.Router the pipeline needs for
// NLP/embedding refinement, kept as a narrow interface so enrichment never
// imports router's full surface.
type Refiner interface {
	Classify(ctx context.Context, text string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

const maxRelationshipCandidates = 5

// Pipeline is C5.
type Pipeline struct {
	refiner Refiner
	logger  *zap.Logger
}

func New(refiner Refiner, logger *zap.Logger) *Pipeline {
	return &Pipeline{refiner: refiner, logger: logger}
}

// Enrich annotates every entry in hits with a provisional type, semantic
// cluster, and candidate relationships against the other entries in the
// same result set (spec §4.5). It never returns an error.
func (p *Pipeline) Enrich(ctx context.Context, hits []domain.MemoryEntry) []domain.EnrichedMemory {
	out := make([]domain.EnrichedMemory, len(hits))
	for i, h := range hits {
		out[i] = domain.EnrichedMemory{
			Entry:         h,
			Type:          p.classifyType(ctx, h),
			Cluster:       classifyCluster(h),
			Relationships: make(map[domain.MemoryID]struct{}),
		}
	}
	p.detectRelationships(ctx, out)
	return out
}

var factKeywords = []string{"is", "was", "has", "have", "located", "works at", "born"}
var preferenceKeywords = []string{"like", "prefer", "favorite", "love", "hate", "dislike"}

// classifyType applies keyword rules first, then asks the refiner (an NLP
// provider) to confirm or override when one is healthy (spec §4.5).
func (p *Pipeline) classifyType(ctx context.Context, entry domain.MemoryEntry) domain.MemoryType {
	provisional := keywordType(entry.Query)

	if p.refiner == nil {
		return provisional
	}
	refined, err := p.refiner.Classify(ctx, entry.Query)
	if err != nil {
		p.logger.Warn("type classification refinement failed, keeping provisional label", zap.Error(err))
		return provisional
	}
	switch domain.MemoryType(refined) {
	case domain.TypeFact, domain.TypePreference, domain.TypeContext:
		return domain.MemoryType(refined)
	default:
		return provisional
	}
}

func keywordType(query string) domain.MemoryType {
	lower := strings.ToLower(query)
	for _, kw := range preferenceKeywords {
		if strings.Contains(lower, kw) {
			return domain.TypePreference
		}
	}
	for _, kw := range factKeywords {
		if strings.Contains(lower, kw) {
			return domain.TypeFact
		}
	}
	return domain.TypeContext
}

var (
	organizationHints = []string{"company", "corp", "inc", "organization", "team", "employer"}
	personHints       = []string{"friend", "family", "colleague", "he ", "she ", "they ", "person"}
	placeHints        = []string{"city", "country", "address", "located", "home", "office"}
	technicalHints    = []string{"code", "bug", "api", "function", "deploy", "server", "database", "repo", "compile", "programming", "language", "framework", "library"}
)

// classifyCluster applies the entity-type heuristics of spec §4.5.
func classifyCluster(entry domain.MemoryEntry) domain.Cluster {
	lower := strings.ToLower(entry.Query)
	switch {
	case containsAny(lower, technicalHints):
		return domain.ClusterTechnical
	case containsAny(lower, organizationHints):
		return domain.ClusterWork
	case containsAny(lower, placeHints):
		return domain.ClusterPersonal
	case containsAny(lower, personHints):
		return domain.ClusterPersonal
	default:
		return domain.ClusterGeneral
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
