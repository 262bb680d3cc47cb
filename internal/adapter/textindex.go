package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/kari-ai/core/internal/domain"
)

// TextIndex is the optional BM25 recall tier (spec §4.1). go-elasticsearch
// is an ecosystem dependency not used elsewhere in the retrieval pack; see
// DESIGN.md for why it was chosen over the pack's zero text-search
// libraries.
type TextIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewTextIndex constructs a TextIndex adapter against the given cluster.
func NewTextIndex(addresses []string, username, password, index string) (*TextIndex, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  username,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("new elasticsearch client: %w", err)
	}
	return &TextIndex{client: client, index: index}, nil
}

type textDoc struct {
	TenantID  string    `json:"tenant_id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Query     string    `json:"query"`
	Result    string    `json:"result"`
	Timestamp time.Time `json:"timestamp"`
	VectorID  string    `json:"vector_id,omitempty"`
}

func (t *TextIndex) Index(ctx context.Context, entry domain.MemoryEntry) error {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultStoreTimeout)
	defer cancel()

	doc := textDoc{
		TenantID:  entry.TenantID,
		UserID:    entry.UserID,
		SessionID: entry.SessionID,
		Query:     entry.Query,
		Result:    string(encodeResult(entry.Result)),
		Timestamp: entry.Timestamp,
		VectorID:  entry.VectorID,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal text doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:   t.index,
		Body:    bytes.NewReader(body),
		Refresh: "false",
	}
	res, err := req.Do(ctx, t.client)
	if err != nil {
		return fmt.Errorf("es index request: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("es index returned status %s", res.Status())
	}
	return nil
}

func (t *TextIndex) Search(ctx context.Context, userID, query string, opts domain.RecallOpts) ([]domain.MemoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultRecallTimeout)
	defer cancel()

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	must := []map[string]any{
		{"match": map[string]any{"user_id": userID}},
		{"match": map[string]any{"query": query}},
	}
	if opts.TenantID != "" {
		must = append(must, map[string]any{"match": map[string]any{"tenant_id": opts.TenantID}})
	}
	q := map[string]any{
		"size":  limit,
		"query": map[string]any{"bool": map[string]any{"must": must}},
	}
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal es query: %w", err)
	}

	res, err := t.client.Search(
		t.client.Search.WithContext(ctx),
		t.client.Search.WithIndex(t.index),
		t.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("es search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("es search returned status %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source textDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode es response: %w", err)
	}

	out := make([]domain.MemoryEntry, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		out = append(out, domain.MemoryEntry{
			TenantID:   hit.Source.TenantID,
			UserID:     hit.Source.UserID,
			SessionID:  hit.Source.SessionID,
			Query:      hit.Source.Query,
			Result:     decodeResult([]byte(hit.Source.Result)),
			Timestamp:  hit.Source.Timestamp,
			VectorID:   hit.Source.VectorID,
			Confidence: hit.Score,
			SourceKind: domain.SourceTextIndex,
		})
	}
	return out, nil
}

func (t *TextIndex) Health(ctx context.Context) domain.HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, domain.DefaultHealthCheckTimeout)
	defer cancel()
	start := time.Now()
	res, err := t.client.Ping(t.client.Ping.WithContext(ctx))
	if err != nil {
		return domain.HealthStatus{OK: false, Detail: err.Error()}
	}
	defer res.Body.Close()
	if res.IsError() {
		return domain.HealthStatus{OK: false, Detail: "status " + strconv.Itoa(res.StatusCode)}
	}
	return domain.HealthStatus{OK: true, LatencyMS: time.Since(start).Milliseconds()}
}
