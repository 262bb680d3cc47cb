package llmprovider_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kari-ai/core/internal/llmprovider"
)

func TestLocal_GenerateResponse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		_, _ = fmt.Fprint(w, `{"response":"hi from ollama","done":true}`)
	}))
	defer srv.Close()

	p := llmprovider.NewLocal(srv.URL, "")
	text, err := p.GenerateResponse(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi from ollama", text)
}

func TestLocal_StreamResponse_NDJSONRelay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"response":"he","done":false}`,
			`{"response":"llo","done":false}`,
			`{"response":"","done":true}`,
		}
		for _, l := range lines {
			_, _ = fmt.Fprintln(w, l)
		}
	}))
	defer srv.Close()

	p := llmprovider.NewLocal(srv.URL, "")
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

func TestLocal_CheckHealth_Unreachable(t *testing.T) {
	p := llmprovider.NewLocal("http://127.0.0.1:1", "")
	status := p.CheckHealth(context.Background())
	assert.False(t, status.OK)
}

func TestLocal_CheckHealth_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := llmprovider.NewLocal(srv.URL, "")
	status := p.CheckHealth(context.Background())
	assert.True(t, status.OK)
}
