package llmprovider

import (
	"context"
	"net/http"
	"strings"

	"github.com/kari-ai/core/internal/domain"
)

const (
	anthropicMessagesURL  = "https://api.anthropic.com/v1/messages"
	anthropicVersion      = "2023-06-01"
	anthropicDefaultModel = "claude-3-5-haiku-20241022"
)

// Anthropic is a domain.Provider backed by the Claude messages API,
// grounded on Harshitk-cp-engram/internal/llm/anthropic.go.
type Anthropic struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewAnthropic(apiKey, model string) *Anthropic {
	if model == "" {
		model = anthropicDefaultModel
	}
	return &Anthropic{apiKey: apiKey, model: model, httpClient: newHTTPClient()}
}

func (p *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Anthropic) headers() map[string]string {
	return map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
}

func (p *Anthropic) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	maxTokens := intParam(params, "max_tokens")
	if maxTokens == 0 {
		maxTokens = 1024
	}
	req := anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	}
	var resp anthropicResponse
	if err := doJSON(ctx, p.httpClient, "POST", anthropicMessagesURL, p.headers(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	return strings.TrimSpace(resp.Content[0].Text), nil
}

func (p *Anthropic) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
	maxTokens := intParam(params, "max_tokens")
	if maxTokens == 0 {
		maxTokens = 1024
	}
	req := anthropicRequest{
		Model:     p.model,
		MaxTokens: maxTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
		Stream:    true,
	}
	return sseChatStream(ctx, p.httpClient, anthropicMessagesURL, p.headers(), req, func(raw []byte) (string, bool, error) {
		var evt struct {
			Type  string `json:"type"`
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
		}
		if err := unmarshalChunk(raw, &evt); err != nil {
			return "", false, err
		}
		switch evt.Type {
		case "content_block_delta":
			return evt.Delta.Text, false, nil
		case "message_stop":
			return "", true, nil
		default:
			return "", false, nil
		}
	})
}

func (p *Anthropic) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing ANTHROPIC_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}
