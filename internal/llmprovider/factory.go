package llmprovider

import (
	"context"
	"os/exec"

	"github.com/kari-ai/core/internal/domain"
	"github.com/kari-ai/core/internal/secret"
)

func caps(cs ...domain.Capability) map[domain.Capability]struct{} {
	m := make(map[domain.Capability]struct{}, len(cs))
	for _, c := range cs {
		m[c] = struct{}{}
	}
	return m
}

// BuildProviders constructs the registry-ready ProviderSpec for every
// provider the contractual env-var mapping of spec §6 knows about. The
// local provider is always included (no API key required, spec §4.7's
// local-first ladder); every other provider is included only when its
// secret resolves, so ConfigurationMissing providers never make it into
// the registry's candidate list.
func BuildProviders(secrets secret.Resolver) []domain.ProviderSpec {
	out := []domain.ProviderSpec{localSpec()}

	if key, ok := secrets.Resolve("openai"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "openai",
			Category:       domain.CategoryLLM,
			RequiresAPIKey: true,
			Capabilities:   caps(domain.CapStreaming, domain.CapFunctionCalling),
			FallbackModels: []string{"gpt-4o-mini"},
			DefaultModel:   openAIDefaultModel,
			Bucket:         domain.BucketRemote,
			Provider:       NewOpenAI(key, ""),
		})
	}
	if key, ok := secrets.Resolve("anthropic"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "anthropic",
			Category:       domain.CategoryLLM,
			RequiresAPIKey: true,
			Capabilities:   caps(domain.CapStreaming, domain.CapVision),
			FallbackModels: []string{"claude-3-5-haiku-20241022"},
			DefaultModel:   anthropicDefaultModel,
			Bucket:         domain.BucketRemote,
			Provider:       NewAnthropic(key, ""),
		})
	}
	if key, ok := secrets.Resolve("gemini"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "gemini",
			Category:       domain.CategoryLLM,
			RequiresAPIKey: true,
			Capabilities:   caps(domain.CapVision),
			FallbackModels: []string{"gemini-2.0-flash"},
			DefaultModel:   geminiDefaultModel,
			Bucket:         domain.BucketRemote,
			Provider:       NewGemini(key, ""),
		})
	}
	if key, ok := secrets.Resolve("deepseek"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "deepseek",
			Category:       domain.CategoryLLM,
			RequiresAPIKey: true,
			Capabilities:   caps(domain.CapStreaming),
			FallbackModels: []string{"deepseek-chat"},
			DefaultModel:   deepseekDefaultModel,
			Bucket:         domain.BucketTransformer,
			Provider:       NewDeepSeek(key, ""),
		})
	}
	if key, ok := secrets.Resolve("huggingface"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "huggingface",
			Category:       domain.CategoryLLM,
			RequiresAPIKey: true,
			Capabilities:   caps(),
			Bucket:         domain.BucketLightweight,
			Provider:       NewHuggingFace(key, ""),
		})
	}
	if key, ok := secrets.Resolve("cohere"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "cohere",
			Category:       domain.CategoryLLM,
			RequiresAPIKey: true,
			Capabilities:   caps(),
			FallbackModels: []string{"command-r"},
			DefaultModel:   cohereDefaultModel,
			Bucket:         domain.BucketNLP,
			Provider:       NewCohere(key, ""),
		})
	}
	if key, ok := secrets.Resolve("openai"); ok {
		out = append(out, domain.ProviderSpec{
			Name:           "openai-embedding",
			Category:       domain.CategoryEmbedding,
			RequiresAPIKey: true,
			Capabilities:   caps(domain.CapEmbeddings),
			DefaultModel:   openAIEmbeddingModel,
			Bucket:         domain.BucketRemote,
			Provider:       NewEmbedding(key, ""),
		})
	}

	return out
}

func localSpec() domain.ProviderSpec {
	return domain.ProviderSpec{
		Name:           "local",
		Category:       domain.CategoryLLM,
		RequiresAPIKey: false,
		Capabilities:   caps(domain.CapStreaming, domain.CapLocalExecution),
		FallbackModels: []string{localDefaultModel},
		DefaultModel:   localDefaultModel,
		Bucket:         domain.BucketLocal,
		Provider:       NewLocal("", ""),
	}
}

// DefaultRuntimes describes the execution runtimes the registry knows the
// shape of (spec §4.6, S6). Loading and running a model is explicitly out
// of scope (spec.md Non-goals: "a new model inference runtime"); Load
// returns a not-implemented error rather than a stub binary, and Health
// reports availability by checking for the runtime's CLI on PATH, the
// same signal a real integration would gate on before attempting to load.
func DefaultRuntimes() []domain.RuntimeSpec {
	return []domain.RuntimeSpec{
		{
			Name:              "llama_cpp",
			SupportedFamilies: []string{"llama", "mistral", "qwen"},
			SupportedFormats:  []string{"gguf"},
			RequiresGPU:       false,
			SupportsStreaming: true,
			Priority:          80,
			MemoryEfficient:   true,
			FastStartup:       true,
			Load:              unavailableLoad("llama_cpp"),
			HealthFn:          binaryHealth("llama-server"),
		},
		{
			Name:              "vllm",
			SupportedFamilies: []string{"llama", "mistral", "qwen", "gemma"},
			SupportedFormats:  []string{"safetensors"},
			RequiresGPU:       true,
			SupportsStreaming: true,
			Priority:          90,
			HighThroughput:    true,
			Load:              unavailableLoad("vllm"),
			HealthFn:          binaryHealth("vllm"),
		},
		{
			Name:              "onnxruntime",
			SupportedFamilies: nil,
			SupportedFormats:  []string{"onnx"},
			RequiresGPU:       false,
			SupportsStreaming: false,
			Priority:          60,
			MemoryEfficient:   true,
			FastStartup:       true,
			Load:              unavailableLoad("onnxruntime"),
			HealthFn:          binaryHealth("onnxruntime"),
		},
	}
}

func unavailableLoad(name string) func(ctx context.Context, cfg map[string]any) (any, error) {
	return func(ctx context.Context, cfg map[string]any) (any, error) {
		return nil, domain.Classify(domain.KindConfigurationMissing, errRuntimeLoadUnsupported(name))
	}
}

func binaryHealth(bin string) func(ctx context.Context) domain.HealthStatus {
	return func(ctx context.Context) domain.HealthStatus {
		if _, err := exec.LookPath(bin); err != nil {
			return domain.HealthStatus{OK: false, Detail: bin + " not found on PATH"}
		}
		return domain.HealthStatus{OK: true, Detail: bin + " available"}
	}
}

type runtimeLoadUnsupportedError struct{ name string }

func (e runtimeLoadUnsupportedError) Error() string {
	return e.name + " model loading is an external collaborator in this build"
}

func errRuntimeLoadUnsupported(name string) error { return runtimeLoadUnsupportedError{name: name} }
