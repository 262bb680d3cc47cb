package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/kari-ai/core/internal/domain"
)

// Analytics is the read-only, last-resort recall tier (I2: no write
// method exists on the interface or this type). go-duckdb is an
// ecosystem dependency not used elsewhere in the retrieval pack; see
// DESIGN.md.
type Analytics struct {
	db *sql.DB
}

// NewAnalytics opens a DuckDB file in read-only mode.
func NewAnalytics(path string) (*Analytics, error) {
	db, err := sql.Open("duckdb", path+"?access_mode=READ_ONLY")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Analytics{db: db}, nil
}

// Query runs a read-only aggregate lookup over the analytics view.
// Analytics is the last-resort recall tier (spec §4.4/Q1); the returned
// entries carry SourceKind analytics as their provenance and no separate
// staleness flag.
func (a *Analytics) Query(ctx context.Context, userID, query string, opts domain.RecallOpts) ([]domain.MemoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultRecallTimeout)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	rows, err := a.db.QueryContext(ctx,
		`SELECT tenant_id, user_id, session_id, query, result_json, ts, vector_id, confidence
		 FROM memory_analytics_view
		 WHERE user_id = ? AND query LIKE '%' || ? || '%'
		 ORDER BY ts DESC
		 LIMIT ?`,
		userID, query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics query: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		var e domain.MemoryEntry
		var result string
		if err := rows.Scan(&e.TenantID, &e.UserID, &e.SessionID, &e.Query, &result, &e.Timestamp, &e.VectorID, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scan analytics row: %w", err)
		}
		e.Result = decodeResult([]byte(result))
		e.SourceKind = domain.SourceAnalytics
		out = append(out, e)
	}
	return out, rows.Err()
}

func (a *Analytics) Health(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultHealthCheckTimeout)
	defer cancel()
	start := time.Now()
	if err := a.db.PingContext(ctx); err != nil {
		return domain.HealthStatus{OK: false, Detail: err.Error()}
	}
	return domain.HealthStatus{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}

// Close releases the underlying connection.
func (a *Analytics) Close() error { return a.db.Close() }
