package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/kari-ai/core/internal/domain"
)

var errEmptyChoices = errors.New("API returned no choices")

func floatParam(params map[string]any, key string) float64 {
	if v, ok := params[key].(float64); ok {
		return v
	}
	return 0
}

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func unmarshalChunk(raw []byte, out any) error {
	return json.Unmarshal(raw, out)
}

// sseChatStream issues a streaming POST and relays each parsed delta onto a
// domain.StreamChunk channel, closing promptly on ctx cancellation (spec
// §4.7: "cancellation must terminate the upstream call promptly"). parse
// extracts the incremental text and whether the chunk is the final one
// from one SSE "data:" payload.
func sseChatStream(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, parse func(raw []byte) (text string, done bool, err error)) (<-chan domain.StreamChunk, error) {
	return framedChatStream(ctx, client, url, headers, body, sseLines, parse)
}

// ndjsonChatStream is the same relay as sseChatStream but for APIs (Ollama)
// that stream one bare JSON object per line instead of SSE "data:" frames.
func ndjsonChatStream(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, parse func(raw []byte) (text string, done bool, err error)) (<-chan domain.StreamChunk, error) {
	return framedChatStream(ctx, client, url, headers, body, ndjsonLines, parse)
}

func framedChatStream(ctx context.Context, client *http.Client, url string, headers map[string]string, body any, readFrames func(r io.Reader, emit func(string) bool) error, parse func(raw []byte) (text string, done bool, err error)) (<-chan domain.StreamChunk, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, domain.Classify(domain.KindTransientBackend, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, domain.Classify(domain.KindTransientBackend, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, domain.Classify(domain.KindTransientBackend, err)
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, classifyHTTPError(resp.StatusCode, errBody)
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		defer func() { _ = resp.Body.Close() }()

		err := readFrames(resp.Body, func(data string) bool {
			text, done, perr := parse([]byte(data))
			if perr != nil {
				select {
				case out <- domain.StreamChunk{Err: perr, Done: true}:
				case <-ctx.Done():
				}
				return false
			}
			if text != "" {
				select {
				case out <- domain.StreamChunk{Text: text}:
				case <-ctx.Done():
					return false
				}
			}
			if done {
				select {
				case out <- domain.StreamChunk{Done: true}:
				case <-ctx.Done():
				}
				return false
			}
			return true
		})
		if err != nil {
			select {
			case out <- domain.StreamChunk{Err: err, Done: true}:
			default:
			}
		}
	}()
	return out, nil
}

