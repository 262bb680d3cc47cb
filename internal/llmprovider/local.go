package llmprovider

import (
	"context"
	"net/http"
	"strings"

	"github.com/kari-ai/core/internal/domain"
)

const localDefaultModel = "llama3.1"

// Local dispatches to an Ollama-compatible local inference server,
// requiring no API key (spec §4.7's "local" priority bucket is the first
// rung of the strict ladder). baseURL defaults to the standard local
// Ollama port.
type Local struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewLocal(baseURL, model string) *Local {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = localDefaultModel
	}
	return &Local{baseURL: baseURL, model: model, httpClient: newHTTPClient()}
}

func (p *Local) Name() string { return "local" }

type localGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type localGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (p *Local) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := localGenerateRequest{Model: p.model, Prompt: prompt, Stream: false}
	var resp localGenerateResponse
	if err := doJSON(ctx, p.httpClient, "POST", p.baseURL+"/api/generate", nil, req, &resp); err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Response), nil
}

func (p *Local) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
	req := localGenerateRequest{Model: p.model, Prompt: prompt, Stream: true}
	return ndjsonChatStream(ctx, p.httpClient, p.baseURL+"/api/generate", nil, req, func(raw []byte) (string, bool, error) {
		var chunk localGenerateResponse
		if err := unmarshalChunk(raw, &chunk); err != nil {
			return "", false, err
		}
		return chunk.Response, chunk.Done, nil
	})
}

// CheckHealth probes the local server's version endpoint; an unreachable
// daemon is reported unhealthy rather than treated as a configuration
// error, since no API key is ever required for this provider.
func (p *Local) CheckHealth(ctx context.Context) domain.HealthStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/version", nil)
	if err != nil {
		return domain.HealthStatus{OK: false, Detail: err.Error()}
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return domain.HealthStatus{OK: false, Detail: "local inference server unreachable: " + err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()
	return domain.HealthStatus{OK: resp.StatusCode == http.StatusOK, Detail: p.baseURL}
}
