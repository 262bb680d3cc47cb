// Package adapter implements the five backend contracts of domain
// (VectorAdapter, AuthoritativeAdapter, CacheAdapter, TextIndexAdapter,
// AnalyticsAdapter) against real stores: Postgres+pgvector, Redis,
// Elasticsearch, and DuckDB. Every Health call and every Vector,
// Authoritative, TextIndex and Analytics data call runs under the
// per-operation timeout of spec §4.1 using context.WithTimeout; the Cache
// adapter's Get/Set/Scan/Delete use the caller's context as given, with no
// added timeout. Grounded on Harshitk-cp-engram/internal/store's
// context-first methods.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/kari-ai/core/internal/domain"
)

// Vector is the semantic-search adapter, grounded on
// Harshitk-cp-engram/internal/store/memory.go's pgvector.NewVector +
// cosine-distance query shape.
type Vector struct {
	db        *pgxpool.Pool
	embed     func(ctx context.Context, text string) ([]float32, error)
	recallTTL time.Duration
	storeTTL  time.Duration
}

// NewVector creates a Vector adapter. embed computes the query embedding;
// it is typically internal/router.Router.Embed.
func NewVector(db *pgxpool.Pool, embed func(ctx context.Context, text string) ([]float32, error)) *Vector {
	return &Vector{db: db, embed: embed, recallTTL: domain.DefaultRecallTimeout, storeTTL: domain.DefaultStoreTimeout}
}

func (v *Vector) Recall(ctx context.Context, userID, query string, opts domain.RecallOpts) ([]domain.MemoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, v.recallTTL)
	defer cancel()

	emb, err := v.embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	vec := pgvector.NewVector(emb)

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := v.db.Query(ctx,
		`SELECT tenant_id, user_id, session_id, query, result, ts, vector_id, confidence
		 FROM vector_memories
		 WHERE user_id = $1 AND ($2 = '' OR tenant_id = $2)
		 ORDER BY embedding <=> $3
		 LIMIT $4`,
		userID, opts.TenantID, vec, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vector recall: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		var e domain.MemoryEntry
		var result []byte
		if err := rows.Scan(&e.TenantID, &e.UserID, &e.SessionID, &e.Query, &result, &e.Timestamp, &e.VectorID, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		e.Result = decodeResult(result)
		e.SourceKind = domain.SourceVector
		out = append(out, e)
	}
	return out, rows.Err()
}

func (v *Vector) Store(ctx context.Context, entry domain.MemoryEntry) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.storeTTL)
	defer cancel()

	emb, err := v.embed(ctx, entry.Query)
	if err != nil {
		return "", fmt.Errorf("embed entry: %w", err)
	}
	vec := pgvector.NewVector(emb)
	vectorID := uuid.NewString()

	_, err = v.db.Exec(ctx,
		`INSERT INTO vector_memories (vector_id, tenant_id, user_id, session_id, query, result, ts, embedding, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		vectorID, entry.TenantID, entry.UserID, entry.SessionID, entry.Query, encodeResult(entry.Result), entry.Timestamp, vec, entry.Confidence,
	)
	if err != nil {
		return "", fmt.Errorf("vector store: %w", err)
	}
	return vectorID, nil
}

func (v *Vector) Health(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultHealthCheckTimeout)
	defer cancel()
	start := time.Now()
	if err := v.db.Ping(ctx); err != nil {
		return domain.HealthStatus{OK: false, Detail: err.Error()}
	}
	return domain.HealthStatus{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}
