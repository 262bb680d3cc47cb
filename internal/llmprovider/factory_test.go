package llmprovider_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/llmprovider"
)

type fakeResolver map[string]string

func (f fakeResolver) Resolve(provider string) (string, bool) {
	v, ok := f[provider]
	return v, ok
}

func TestBuildProviders_AlwaysIncludesLocal(t *testing.T) {
	specs := llmprovider.BuildProviders(fakeResolver{})
	require.Len(t, specs, 1)
	assert.Equal(t, "local", specs[0].Name)
}

func TestBuildProviders_AddsConfiguredProviders(t *testing.T) {
	specs := llmprovider.BuildProviders(fakeResolver{
		"openai":    "sk-test",
		"anthropic": "sk-ant-test",
	})

	names := make([]string, 0, len(specs))
	for _, s := range specs {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "local")
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "openai-embedding")
	assert.Contains(t, names, "anthropic")
	assert.NotContains(t, names, "gemini")
	assert.NotContains(t, names, "deepseek")
}

func TestBuildProviders_EmbeddingProviderCategorySeparatesFromLLM(t *testing.T) {
	specs := llmprovider.BuildProviders(fakeResolver{"openai": "sk-test"})
	var sawEmbedding, sawLLM bool
	for _, s := range specs {
		if s.Name == "openai-embedding" {
			sawEmbedding = true
			assert.Equal(t, "embedding", string(s.Category))
		}
		if s.Name == "openai" {
			sawLLM = true
			assert.Equal(t, "LLM", string(s.Category))
		}
	}
	assert.True(t, sawEmbedding)
	assert.True(t, sawLLM)
}

func TestDefaultRuntimes_CoversKnownRuntimes(t *testing.T) {
	runtimes := llmprovider.DefaultRuntimes()
	names := make([]string, 0, len(runtimes))
	for _, r := range runtimes {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "llama_cpp")
	assert.Contains(t, names, "vllm")
	assert.Contains(t, names, "onnxruntime")
}

func TestDefaultRuntimes_LoadReturnsConfigurationMissing(t *testing.T) {
	runtimes := llmprovider.DefaultRuntimes()
	_, err := runtimes[0].Load(nil, nil)
	require.Error(t, err)
	assert.Equal(t, domain.KindConfigurationMissing, domain.ClassifyTransportError(err))
}
