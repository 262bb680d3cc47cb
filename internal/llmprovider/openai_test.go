package llmprovider_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/llmprovider"
)

func TestOpenAI_GenerateResponse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"choices":[{"message":{"content":"hi there"}}]}`)
	}))
	defer srv.Close()

	p := llmprovider.NewOpenAIWithBaseURL("sk-test", "", srv.URL)
	text, err := p.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestOpenAI_GenerateResponse_RateLimitClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"error":{"message":"rate limit exceeded"}}`)
	}))
	defer srv.Close()

	p := llmprovider.NewOpenAIWithBaseURL("sk-test", "", srv.URL)
	_, err := p.GenerateResponse(context.Background(), "hello", nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindRateLimited, domain.ClassifyTransportError(err))
}

func TestOpenAI_CheckHealth_MissingKey(t *testing.T) {
	p := llmprovider.NewOpenAI("", "")
	status := p.CheckHealth(context.Background())
	assert.False(t, status.OK)
}

func TestOpenAI_StreamResponse_RelaysDeltasThenDone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"choices":[{"delta":{"content":"he"}}]}`,
			`{"choices":[{"delta":{"content":"llo"}}]}`,
			`{"choices":[{"delta":{},"finish_reason":"stop"}]}`,
		}
		for _, f := range frames {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", f)
		}
		_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := llmprovider.NewOpenAIWithBaseURL("sk-test", "", srv.URL)
	ch, err := p.StreamResponse(context.Background(), "hello", nil)
	require.NoError(t, err)

	var text string
	var sawDone bool
	for chunk := range ch {
		text += chunk.Text
		if chunk.Done {
			sawDone = true
		}
	}
	assert.Equal(t, "hello", text)
	assert.True(t, sawDone)
}

func TestEmbedding_GenerateResponse_ReturnsJSONVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"data":[{"embedding":[0.1,0.2,0.3]}]}`)
	}))
	defer srv.Close()

	p := llmprovider.NewEmbeddingWithBaseURL("sk-test", "", srv.URL)
	text, err := p.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)

	var vec []float32
	require.NoError(t, json.Unmarshal([]byte(text), &vec))
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}
