package llmprovider

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kari-ai/core/internal/domain"
)

const (
	openAIEmbeddingURL   = "https://api.openai.com/v1/embeddings"
	openAIEmbeddingModel = "text-embedding-3-small"
)

// Embedding wraps the OpenAI embeddings endpoint as a domain.Provider
// declaring only CapEmbeddings: GenerateResponse returns the vector
// JSON-encoded in its text payload, matching Router.Embed's decoder,
// grounded on Harshitk-cp-engram/internal/embedding/openai.go.
type Embedding struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func NewEmbedding(apiKey, model string) *Embedding {
	return NewEmbeddingWithBaseURL(apiKey, model, openAIEmbeddingURL)
}

// NewEmbeddingWithBaseURL overrides the embeddings endpoint, for pointing
// the client at a test server.
func NewEmbeddingWithBaseURL(apiKey, model, baseURL string) *Embedding {
	if model == "" {
		model = openAIEmbeddingModel
	}
	return &Embedding{apiKey: apiKey, model: model, baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *Embedding) Name() string { return "openai-embedding" }

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (p *Embedding) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := embeddingRequest{Model: p.model, Input: prompt}
	var resp embeddingResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := doJSON(ctx, p.httpClient, "POST", p.baseURL, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	out, err := json.Marshal(resp.Data[0].Embedding)
	if err != nil {
		return "", domain.Classify(domain.KindTransientBackend, err)
	}
	return string(out), nil
}

// StreamResponse is unused: Embedding declares no CapStreaming, so the
// router never calls it.
func (p *Embedding) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
	text, err := p.GenerateResponse(ctx, prompt, params)
	out := make(chan domain.StreamChunk, 1)
	if err != nil {
		out <- domain.StreamChunk{Err: err, Done: true}
	} else {
		out <- domain.StreamChunk{Text: text, Done: true}
	}
	close(out)
	return out, nil
}

func (p *Embedding) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing OPENAI_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}
