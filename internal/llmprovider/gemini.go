package llmprovider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/kari-ai/core/internal/domain"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/models"
	geminiDefaultModel = "gemini-2.0-flash"
)

// Gemini is a domain.Provider backed by the Generative Language API,
// grounded on Harshitk-cp-engram/internal/llm/gemini.go.
type Gemini struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGemini(apiKey, model string) *Gemini {
	if model == "" {
		model = geminiDefaultModel
	}
	return &Gemini{apiKey: apiKey, model: model, httpClient: newHTTPClient()}
}

func (p *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *Gemini) url(action string) string {
	return fmt.Sprintf("%s/%s:%s?key=%s", geminiBaseURL, p.model, action, p.apiKey)
}

func (p *Gemini) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}
	var resp geminiResponse
	if err := doJSON(ctx, p.httpClient, "POST", p.url("generateContent"), nil, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}

// StreamResponse falls back to a single-chunk sequence: the REST
// streamGenerateContent endpoint returns a JSON array rather than SSE, so
// wiring native streaming would need a separate decoder this provider
// doesn't advertise; the router treats absent CapStreaming as non-streaming.
func (p *Gemini) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
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

func (p *Gemini) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing GEMINI_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}
