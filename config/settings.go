// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig
	Extract ExtractConfig
	Budget  BudgetConfig
	Log     LogConfig
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	MaxTokens   uint32
	Temperature float64

	// PreprocessUnknown decides file preprocessing for models without
	// capability metadata.
	PreprocessUnknown bool

	// CatalogPath is an optional YAML file extending the built-in model catalog.
	CatalogPath string
}

// ExtractConfig holds local text extraction configuration.
type ExtractConfig struct {
	// Command is an external converter invoked as "<command> <file>" for
	// formats the built-in converters do not handle.
	Command string
}

// BudgetConfig holds priority routing configuration.
type BudgetConfig struct {
	PrioritiesPath string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level slog.Level
}

// providerInfo holds configuration for a specific LLM provider.
type providerInfo struct {
	modelEnv     string
	defaultModel string
	apiKeyEnv    string
	baseURLEnv   string
}

// Supported providers and their configuration.
var providers = map[string]providerInfo{
	"openai":     {"OPENAI_MODEL", "gpt-4o", "OPENAI_API_KEY", "OPENAI_BASE_URL"},
	"anthropic":  {"ANTHROPIC_MODEL", "claude-sonnet-4-20250514", "ANTHROPIC_API_KEY", "ANTHROPIC_BASE_URL"},
	"deepseek":   {"DEEPSEEK_MODEL", "deepseek-chat", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL"},
	"gemini":     {"GEMINI_MODEL", "gemini-2.5-flash", "GEMINI_API_KEY", "GEMINI_BASE_URL"},
	"openrouter": {"OPENROUTER_MODEL", "openai/gpt-4o", "OPENROUTER_API_KEY", "OPENROUTER_BASE_URL"},
	"ollama":     {"OLLAMA_MODEL", "llama3.2", "", "OLLAMA_HOST"},
}

// Provider aliases map to canonical names.
var providerAliases = map[string]string{
	"claude": "anthropic",
	"google": "gemini",
	"gpt":    "openai",
	"local":  "ollama",
}

// DefaultProvider is used when neither the caller nor LLM_PROVIDER names one.
const DefaultProvider = "openai"

// New creates settings for the specified provider, loading values from environment variables.
// An empty provider falls back to LLM_PROVIDER, then DefaultProvider.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	if provider == "" {
		provider = getEnv("LLM_PROVIDER", DefaultProvider)
	}
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", 4096)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat64("LLM_TEMPERATURE", 0.2)
	if err != nil {
		return Settings{}, err
	}

	preprocessUnknown, err := getEnvBool("LLM_PREPROCESS_UNKNOWN", false)
	if err != nil {
		return Settings{}, err
	}

	level, err := getEnvLevel("LOG_LEVEL", slog.LevelWarn)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:          provider,
			Model:             getEnv(info.modelEnv, info.defaultModel),
			BaseURL:           os.Getenv(info.baseURLEnv),
			MaxTokens:         maxTokens,
			Temperature:       temperature,
			PreprocessUnknown: preprocessUnknown,
			CatalogPath:       os.Getenv("LLM_CATALOG_PATH"),
		},
		Extract: ExtractConfig{
			Command: os.Getenv("EXTRACT_COMMAND"),
		},
		Budget: BudgetConfig{
			PrioritiesPath: os.Getenv("LLM_PRIORITIES_PATH"),
		},
		Log: LogConfig{
			Level: level,
		},
	}, nil
}

// ModelID returns the configured model as "provider/model".
func (s Settings) ModelID() string {
	return s.LLM.Provider + "/" + s.LLM.Model
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if canonical, ok := providerAliases[provider]; ok {
		return canonical
	}
	return provider
}

// getProviderInfo returns configuration for a provider.
func getProviderInfo(provider string) (providerInfo, error) {
	info, ok := providers[provider]
	if !ok {
		return providerInfo{}, fmt.Errorf("unknown provider: %q (supported: %s)", provider, strings.Join(SupportedProviders(), ", "))
	}
	return info, nil
}

// APIKeyFor returns the API key for a provider from environment variables.
// Local providers need none and return an empty key.
func APIKeyFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}
	if info.apiKeyEnv == "" {
		return "", nil
	}

	key := os.Getenv(info.apiKeyEnv)
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", info.apiKeyEnv)
	}
	return key, nil
}

// BaseURLFor returns the endpoint override for a provider, or "" for the default.
func BaseURLFor(provider string) (string, error) {
	provider = normalizeProvider(provider)

	info, err := getProviderInfo(provider)
	if err != nil {
		return "", err
	}
	return os.Getenv(info.baseURLEnv), nil
}

// SupportedProviders returns the supported provider names, sorted.
func SupportedProviders() []string {
	result := make([]string, 0, len(providers))
	for name := range providers {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Environment variable helpers with proper error handling

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}

func getEnvLevel(key string, defaultVal slog.Level) (slog.Level, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(val)); err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return level, nil
}
