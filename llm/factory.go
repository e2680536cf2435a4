// LLM Provider Factory - Ergonomic builder-first API for creating LLM providers.
//
// Quick Start:
//
//	// Simplest: read API key (and optional base URL) from environment
//	openai, err := llm.ProviderOpenAI.FromEnv()
//	claude, err := llm.ProviderAnthropic.FromEnv()
//	local, err := llm.ProviderOllama.FromEnv()  // no key needed
//
//	// Full configuration
//	custom, err := llm.ProviderOpenRouter.
//	    BaseURL("https://openrouter.ai/api/v1").
//	    MaxTokens(8192).
//	    APIKey("sk-or-...")
//
// Models are chosen per request, so one provider serves every model it hosts.

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
	// ProviderOpenRouter is the OpenRouter gateway.
	ProviderOpenRouter
	// ProviderOllama is a local Ollama server.
	ProviderOllama
)

// AllProviders lists every supported provider type.
var AllProviders = []ProviderType{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderDeepSeek,
	ProviderGemini,
	ProviderOpenRouter,
	ProviderOllama,
}

// DefaultMaxTokens is used when no max token count is configured.
const DefaultMaxTokens = 4096

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	case ProviderOpenRouter:
		return "openrouter"
	case ProviderOllama:
		return "ollama"
	default:
		return "unknown"
	}
}

// EnvVar returns the environment variable name for this provider's API key.
// Local providers have none.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderDeepSeek:
		return "DEEPSEEK_API_KEY"
	case ProviderGemini:
		return "GEMINI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}

// BaseURLEnvVar returns the environment variable that overrides the endpoint.
func (p ProviderType) BaseURLEnvVar() string {
	if p == ProviderOllama {
		return "OLLAMA_HOST"
	}
	return strings.ToUpper(p.String()) + "_BASE_URL"
}

// Local reports whether the provider runs on the local machine.
func (p ProviderType) Local() bool {
	return p == ProviderOllama
}

// FileParts reports whether the provider's adapter can send file attachments.
// The OpenAI-compatible endpoints only carry text and images.
func (p ProviderType) FileParts() bool {
	switch p {
	case ProviderDeepSeek, ProviderOpenRouter, ProviderOllama:
		return false
	default:
		return true
	}
}

// ParseProviderType parses a provider from string (case-insensitive).
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	case "openrouter":
		return ProviderOpenRouter, nil
	case "ollama", "local":
		return ProviderOllama, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// SplitModel splits a "provider/model" identifier. A bare model name yields an
// empty provider. Only the first slash separates, so OpenRouter ids such as
// "openrouter/meta-llama/llama-3-70b" keep their vendor prefix in the model.
func SplitModel(id string) (provider, model string) {
	before, after, ok := strings.Cut(id, "/")
	if !ok {
		return "", id
	}
	if _, err := ParseProviderType(before); err != nil {
		return "", id
	}
	return strings.ToLower(before), after
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Provider, error) {
	return NewProviderBuilder(p).FromEnv()
}

// BaseURL starts configuring this provider with a custom endpoint.
func (p ProviderType) BaseURL(url string) *ProviderBuilder {
	return NewProviderBuilder(p).BaseURL(url)
}

// APIKey creates a provider with an explicit API key (uses defaults for everything else).
func (p ProviderType) APIKey(key string) (Provider, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder is a builder for configuring LLM providers.
type ProviderBuilder struct {
	providerType ProviderType
	baseURL      string
	maxTokens    uint32
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{
		providerType: providerType,
	}
}

// BaseURL sets the API endpoint. Empty keeps the provider default.
func (b *ProviderBuilder) BaseURL(url string) *ProviderBuilder {
	b.baseURL = url
	return b
}

// MaxTokens sets the default maximum tokens for responses.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// FromEnv builds the provider, reading API key and base URL from environment.
func (b *ProviderBuilder) FromEnv() (Provider, error) {
	if b.baseURL == "" {
		b.baseURL = os.Getenv(b.providerType.BaseURLEnvVar())
	}
	if b.providerType.Local() {
		return b.build("")
	}

	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Provider, error) {
	if apiKey == "" && !b.providerType.Local() {
		return nil, fmt.Errorf("%s: API key is required", b.providerType)
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(apiKey, b.baseURL, maxTokens), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(apiKey, b.baseURL, maxTokens), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(apiKey, b.baseURL, maxTokens), nil
	case ProviderGemini:
		return NewGeminiProvider(apiKey, b.baseURL, maxTokens), nil
	case ProviderOpenRouter:
		return NewOpenRouterProvider(apiKey, b.baseURL, maxTokens), nil
	case ProviderOllama:
		return NewOllamaProvider(ollamaURL(b.baseURL), maxTokens), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// ollamaURL turns an OLLAMA_HOST style address into the OpenAI-compatible
// endpoint of the server.
func ollamaURL(host string) string {
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	host = strings.TrimSuffix(host, "/")
	if !strings.HasSuffix(host, "/v1") {
		host += "/v1"
	}
	return host
}
