package llmprovider

import (
	"context"
	"net/http"
	"strings"

	"github.com/kari-ai/core/internal/domain"
)

const (
	openAIChatURL      = "https://api.openai.com/v1/chat/completions"
	openAIDefaultModel = "gpt-4o-mini"
)

// OpenAI is a domain.Provider backed by the OpenAI chat-completions API,
// grounded on Harshitk-cp-engram/internal/llm/openai.go's complete().
type OpenAI struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAI constructs the provider. model defaults to gpt-4o-mini.
func NewOpenAI(apiKey, model string) *OpenAI {
	return NewOpenAIWithBaseURL(apiKey, model, openAIChatURL)
}

// NewOpenAIWithBaseURL overrides the chat-completions endpoint, for
// pointing the client at a test server.
func NewOpenAIWithBaseURL(apiKey, model, baseURL string) *OpenAI {
	if model == "" {
		model = openAIDefaultModel
	}
	return &OpenAI{apiKey: apiKey, model: model, baseURL: baseURL, httpClient: newHTTPClient()}
}

func (p *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *OpenAI) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: floatParam(params, "temperature"),
		MaxTokens:   intParam(params, "max_tokens"),
	}
	var resp chatResponse
	if err := doJSON(ctx, p.httpClient, "POST", p.baseURL, p.headers(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *OpenAI) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
	req := chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: floatParam(params, "temperature"),
		MaxTokens:   intParam(params, "max_tokens"),
		Stream:      true,
	}
	return sseChatStream(ctx, p.httpClient, p.baseURL, p.headers(), req, func(raw []byte) (string, bool, error) {
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason *string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := unmarshalChunk(raw, &chunk); err != nil {
			return "", false, err
		}
		if len(chunk.Choices) == 0 {
			return "", false, nil
		}
		done := chunk.Choices[0].FinishReason != nil
		return chunk.Choices[0].Delta.Content, done, nil
	})
}

func (p *OpenAI) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing OPENAI_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}
