package llmprovider

import (
	"context"
	"net/http"
	"strings"

	"github.com/kari-ai/core/internal/domain"
)

const (
	deepseekChatURL      = "https://api.deepseek.com/chat/completions"
	deepseekDefaultModel = "deepseek-chat"
)

// DeepSeek speaks the same OpenAI-compatible chat-completions wire format
// as llmprovider.OpenAI, just against a different base URL and model.
type DeepSeek struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewDeepSeek(apiKey, model string) *DeepSeek {
	if model == "" {
		model = deepseekDefaultModel
	}
	return &DeepSeek{apiKey: apiKey, model: model, httpClient: newHTTPClient()}
}

func (p *DeepSeek) Name() string { return "deepseek" }

func (p *DeepSeek) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + p.apiKey}
}

func (p *DeepSeek) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: floatParam(params, "temperature"),
		MaxTokens:   intParam(params, "max_tokens"),
	}
	var resp chatResponse
	if err := doJSON(ctx, p.httpClient, "POST", deepseekChatURL, p.headers(), req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (p *DeepSeek) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
	req := chatRequest{
		Model:       p.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: floatParam(params, "temperature"),
		MaxTokens:   intParam(params, "max_tokens"),
		Stream:      true,
	}
	return sseChatStream(ctx, p.httpClient, deepseekChatURL, p.headers(), req, func(raw []byte) (string, bool, error) {
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
		return chunk.Choices[0].Delta.Content, chunk.Choices[0].FinishReason != nil, nil
	})
}

func (p *DeepSeek) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing DEEPSEEK_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}

const (
	cohereChatURL      = "https://api.cohere.com/v1/chat"
	cohereDefaultModel = "command-r"
)

// Cohere is a domain.Provider backed by Cohere's chat endpoint. It declares
// no streaming capability; the router treats it as single-chunk.
type Cohere struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewCohere(apiKey, model string) *Cohere {
	if model == "" {
		model = cohereDefaultModel
	}
	return &Cohere{apiKey: apiKey, model: model, httpClient: newHTTPClient()}
}

func (p *Cohere) Name() string { return "cohere" }

func (p *Cohere) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := struct {
		Model   string `json:"model"`
		Message string `json:"message"`
	}{Model: p.model, Message: prompt}
	var resp struct {
		Text string `json:"text"`
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := doJSON(ctx, p.httpClient, "POST", cohereChatURL, headers, req, &resp); err != nil {
		return "", err
	}
	if resp.Text == "" {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	return strings.TrimSpace(resp.Text), nil
}

func (p *Cohere) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
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

func (p *Cohere) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing COHERE_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}

const huggingFaceInferenceURL = "https://api-inference.huggingface.co/models/"

// HuggingFace dispatches to the hosted Inference API for a single model
// endpoint, declared at construction.
type HuggingFace struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewHuggingFace(apiKey, model string) *HuggingFace {
	if model == "" {
		model = "meta-llama/Llama-3.1-8B-Instruct"
	}
	return &HuggingFace{apiKey: apiKey, model: model, httpClient: newHTTPClient()}
}

func (p *HuggingFace) Name() string { return "huggingface" }

func (p *HuggingFace) GenerateResponse(ctx context.Context, prompt string, params map[string]any) (string, error) {
	req := struct {
		Inputs string `json:"inputs"`
	}{Inputs: prompt}
	var resp []struct {
		GeneratedText string `json:"generated_text"`
	}
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := doJSON(ctx, p.httpClient, "POST", huggingFaceInferenceURL+p.model, headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", domain.Classify(domain.KindTransientBackend, errEmptyChoices)
	}
	return strings.TrimSpace(resp[0].GeneratedText), nil
}

func (p *HuggingFace) StreamResponse(ctx context.Context, prompt string, params map[string]any) (<-chan domain.StreamChunk, error) {
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

func (p *HuggingFace) CheckHealth(ctx context.Context) domain.HealthStatus {
	if p.apiKey == "" {
		return domain.HealthStatus{OK: false, Detail: "missing HUGGINGFACE_API_KEY"}
	}
	return domain.HealthStatus{OK: true, Detail: "configured"}
}
