package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kari-ai/core/internal/domain"
)

// ErrNotFound is the package's not-found sentinel. GetByVectorID does not
// return it: a missing row is reported as found=false with a nil error.
var ErrNotFound = errors.New("adapter: not found")

// Authoritative is the single source of truth for MemoryEntry (I1),
// grounded on Harshitk-cp-engram/internal/store/memory.go's
// QueryRow/Scan shape, generalized to upsert-by-vector-id-or-synthetic-id.
type Authoritative struct {
	db       *pgxpool.Pool
	storeTTL time.Duration
}

func NewAuthoritative(db *pgxpool.Pool) *Authoritative {
	return &Authoritative{db: db, storeTTL: domain.DefaultStoreTimeout}
}

func (a *Authoritative) Upsert(ctx context.Context, vectorID string, entry domain.MemoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, a.storeTTL)
	defer cancel()

	id := vectorID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := a.db.Exec(ctx,
		`INSERT INTO memories (vector_id, tenant_id, user_id, session_id, query, result, ts, confidence)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (vector_id) DO UPDATE
		   SET result = EXCLUDED.result, ts = EXCLUDED.ts, confidence = EXCLUDED.confidence`,
		id, entry.TenantID, entry.UserID, entry.SessionID, entry.Query, encodeResult(entry.Result), entry.Timestamp, entry.Confidence,
	)
	if err != nil {
		return fmt.Errorf("authoritative upsert: %w", err)
	}
	return nil
}

func (a *Authoritative) Recall(ctx context.Context, userID, query string, opts domain.RecallOpts) ([]domain.MemoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultRecallTimeout)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := a.db.Query(ctx,
		`SELECT tenant_id, user_id, session_id, query, result, ts, vector_id, confidence
		 FROM memories
		 WHERE user_id = $1 AND query ILIKE '%' || $2 || '%' AND ($3 = '' OR tenant_id = $3)
		 ORDER BY ts DESC
		 LIMIT $4`,
		userID, query, opts.TenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("authoritative recall: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		var e domain.MemoryEntry
		var result []byte
		if err := rows.Scan(&e.TenantID, &e.UserID, &e.SessionID, &e.Query, &result, &e.Timestamp, &e.VectorID, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scan authoritative row: %w", err)
		}
		e.Result = decodeResult(result)
		e.SourceKind = domain.SourceAuthoritative
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *Authoritative) GetByVectorID(ctx context.Context, vectorID string) (domain.MemoryEntry, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultRecallTimeout)
	defer cancel()

	var e domain.MemoryEntry
	var result []byte
	err := a.db.QueryRow(ctx,
		`SELECT tenant_id, user_id, session_id, query, result, ts, vector_id, confidence
		 FROM memories WHERE vector_id = $1`,
		vectorID,
	).Scan(&e.TenantID, &e.UserID, &e.SessionID, &e.Query, &result, &e.Timestamp, &e.VectorID, &e.Confidence)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MemoryEntry{}, false, nil
		}
		return domain.MemoryEntry{}, false, fmt.Errorf("get by vector id: %w", err)
	}
	e.Result = decodeResult(result)
	e.SourceKind = domain.SourceAuthoritative
	return e, true, nil
}

func (a *Authoritative) Health(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultHealthCheckTimeout)
	defer cancel()
	start := time.Now()
	if err := a.db.Ping(ctx); err != nil {
		return domain.HealthStatus{OK: false, Detail: err.Error()}
	}
	return domain.HealthStatus{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}
