// Package secret resolves provider API keys from the environment.
//
// Resolve is pure: it never caches a negative result and never mutates
// process state, so a config reload always sees the live environment
// (spec §9 REDESIGN FLAG: "secret resolution via multiple env var
// spellings with fallbacks" becomes a single explicit precedence list
// per provider instead of ad hoc fallback probing).
package secret

import "os"

// Resolver resolves the secret for a named provider.
type Resolver interface {
	Resolve(provider string) (value string, ok bool)
}

// envVarsByProvider is the contractual mapping of spec §6.
var envVarsByProvider = map[string][]string{
	"openai":      {"OPENAI_API_KEY"},
	"anthropic":   {"ANTHROPIC_API_KEY"},
	"gemini":      {"GEMINI_API_KEY"},
	"deepseek":    {"DEEPSEEK_API_KEY"},
	"huggingface": {"HUGGINGFACE_API_KEY"},
	"cohere":      {"COHERE_API_KEY"},
	"copilotkit":  {"COPILOT_API_KEY"},
}

// EnvResolver resolves secrets from process environment variables using the
// precedence list registered for each provider.
type EnvResolver struct {
	precedence map[string][]string
}

// NewEnvResolver creates a resolver using the contractual provider->env-var
// mapping of spec §6.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{precedence: envVarsByProvider}
}

// WithPrecedence overrides or extends the precedence list for a provider.
func (r *EnvResolver) WithPrecedence(provider string, envVars ...string) *EnvResolver {
	cp := make(map[string][]string, len(r.precedence))
	for k, v := range r.precedence {
		cp[k] = v
	}
	cp[provider] = envVars
	return &EnvResolver{precedence: cp}
}

// Resolve returns the first non-empty env var value in the provider's
// precedence list. It performs no caching: every call re-reads the
// environment.
func (r *EnvResolver) Resolve(provider string) (string, bool) {
	for _, envVar := range r.precedence[provider] {
		if v := os.Getenv(envVar); v != "" {
			return v, true
		}
	}
	return "", false
}
