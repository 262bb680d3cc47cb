package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/registry"
)

func TestCompatibleRuntimes_FiltersByFormatAndFamily(t *testing.T) {
	r := registry.New()
	r.RegisterRuntime(domain.RuntimeSpec{Name: "vllm", SupportedFormats: []string{"gguf"}, SupportedFamilies: []string{"llama"}, Priority: 50})
	r.RegisterRuntime(domain.RuntimeSpec{Name: "onnx", SupportedFormats: []string{"onnx"}, Priority: 90})
	r.RegisterRuntime(domain.RuntimeSpec{Name: "llamacpp", SupportedFormats: []string{"gguf"}, SupportedFamilies: []string{"llama", "mistral"}, Priority: 70})

	compatible := r.CompatibleRuntimes(domain.ModelMetadata{Format: "gguf", Family: "llama"})
	require.Len(t, compatible, 2)
	assert.Equal(t, "llamacpp", compatible[0].Name)
	assert.Equal(t, "vllm", compatible[1].Name)
}

func TestOptimalRuntime_FallsBackToFirstCompatibleWhenNoPredicateSurvives(t *testing.T) {
	r := registry.New()
	r.RegisterRuntime(domain.RuntimeSpec{Name: "cpu", SupportedFormats: []string{"gguf"}, Priority: 40})
	r.RegisterRuntime(domain.RuntimeSpec{Name: "gpu", SupportedFormats: []string{"gguf"}, Priority: 80, RequiresGPU: true})

	got, ok := r.OptimalRuntime(domain.ModelMetadata{Format: "gguf"}, domain.RuntimeRequirements{RequiresGPU: true})
	require.True(t, ok)
	assert.Equal(t, "gpu", got.Name)

	got, ok = r.OptimalRuntime(domain.ModelMetadata{Format: "gguf"}, domain.RuntimeRequirements{MemoryEfficient: true})
	require.True(t, ok)
	assert.Equal(t, "gpu", got.Name, "no runtime declares memory_efficient, so the highest-priority compatible one wins the fallback")
}

func TestOptimalRuntime_NoCompatibleRuntimes(t *testing.T) {
	r := registry.New()
	_, ok := r.OptimalRuntime(domain.ModelMetadata{Format: "onnx"}, domain.RuntimeRequirements{})
	assert.False(t, ok)
}

func TestInstanceKey_StableAcrossKwargOrder(t *testing.T) {
	k1 := registry.InstanceKey("openai", map[string]string{"model": "gpt-4", "temp": "0.2"})
	k2 := registry.InstanceKey("openai", map[string]string{"temp": "0.2", "model": "gpt-4"})
	assert.Equal(t, k1, k2)
}

func TestRegistry_CachesInstance(t *testing.T) {
	r := registry.New()
	key := registry.InstanceKey("openai", map[string]string{"model": "gpt-4"})

	_, ok := r.CachedInstance(key)
	assert.False(t, ok)

	r.CacheInstance("openai", key, "client-handle")
	got, ok := r.CachedInstance(key)
	require.True(t, ok)
	assert.Equal(t, "client-handle", got)
}

func TestUnregister_DropsProviderAndCachedInstances(t *testing.T) {
	r := registry.New()
	spec := domain.ProviderSpec{Name: "openai"}
	r.RegisterProvider(spec)
	key := registry.InstanceKey("openai", map[string]string{"model": "gpt-4"})
	r.CacheInstance("openai", key, "client-handle")

	_, ok := r.Provider("openai")
	require.True(t, ok)
	_, ok = r.CachedInstance(key)
	require.True(t, ok)

	r.Unregister("openai")

	_, ok = r.Provider("openai")
	assert.False(t, ok)
	_, ok = r.CachedInstance(key)
	assert.False(t, ok)
}

func TestRegister_Unregister_Reregister_RestoresEquivalence(t *testing.T) {
	r := registry.New()
	spec := domain.ProviderSpec{Name: "openai", DefaultModel: "gpt-4o-mini"}
	r.RegisterProvider(spec)
	key := registry.InstanceKey("openai", map[string]string{"model": "gpt-4"})
	r.CacheInstance("openai", key, "stale-client-handle")

	r.Unregister("openai")
	r.RegisterProvider(spec)

	got, ok := r.Provider("openai")
	require.True(t, ok)
	assert.Equal(t, spec, got)

	_, ok = r.CachedInstance(key)
	assert.False(t, ok, "re-registering must not resurrect an instance cached before the unregister")
}

func TestRegistry_ProvidersSortedAlphabetically(t *testing.T) {
	r := registry.New()
	r.RegisterProvider(domain.ProviderSpec{Name: "zeta"})
	r.RegisterProvider(domain.ProviderSpec{Name: "alpha"})
	r.RegisterProvider(domain.ProviderSpec{Name: "mid"})

	names := []string{}
	for _, p := range r.Providers() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}
