package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/richinex/polyllm/handler"
)

func TestNewValidProvider(t *testing.T) {
	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
}

func TestNewWithAlias(t *testing.T) {
	settings, err := New("claude")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "anthropic" {
		t.Errorf("expected provider 'anthropic' (normalized from 'claude'), got %q", settings.LLM.Provider)
	}

	settings, err = New("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "ollama" {
		t.Errorf("expected provider 'ollama' (normalized from 'local'), got %q", settings.LLM.Provider)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("unknown_provider")
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "openrouter") {
		t.Errorf("expected supported providers in error, got %v", err)
	}
}

func TestNewDefaults(t *testing.T) {
	for _, key := range []string{"LLM_PROVIDER", "OPENAI_MODEL", "LLM_MAX_TOKENS", "LLM_TEMPERATURE", "LLM_PREPROCESS_UNKNOWN", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.LLM.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", settings.LLM.Provider)
	}
	if settings.LLM.Model != "gpt-4o" {
		t.Errorf("expected model 'gpt-4o', got %q", settings.LLM.Model)
	}
	if settings.LLM.MaxTokens != 4096 {
		t.Errorf("expected max tokens 4096, got %d", settings.LLM.MaxTokens)
	}
	if settings.LLM.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", settings.LLM.Temperature)
	}
	if settings.LLM.PreprocessUnknown {
		t.Error("expected preprocess unknown to default to false")
	}
	if settings.Log.Level != slog.LevelWarn {
		t.Errorf("expected log level warn, got %v", settings.Log.Level)
	}
	if got := settings.ModelID(); got != "openai/gpt-4o" {
		t.Errorf("expected model id 'openai/gpt-4o', got %q", got)
	}
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "google")
	t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")
	t.Setenv("GEMINI_BASE_URL", "http://proxy.local")
	t.Setenv("LLM_MAX_TOKENS", "1024")
	t.Setenv("LLM_TEMPERATURE", "0.5")
	t.Setenv("LLM_PREPROCESS_UNKNOWN", "true")
	t.Setenv("LLM_CATALOG_PATH", "/etc/polyllm/catalog.yaml")
	t.Setenv("LLM_PRIORITIES_PATH", "priorities.yaml")
	t.Setenv("EXTRACT_COMMAND", "markitdown")
	t.Setenv("LOG_LEVEL", "debug")

	settings, err := New("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := LLMConfig{
		Provider:          "gemini",
		Model:             "gemini-2.5-pro",
		BaseURL:           "http://proxy.local",
		MaxTokens:         1024,
		Temperature:       0.5,
		PreprocessUnknown: true,
		CatalogPath:       "/etc/polyllm/catalog.yaml",
	}
	if !reflect.DeepEqual(settings.LLM, want) {
		t.Errorf("expected %+v, got %+v", want, settings.LLM)
	}
	if settings.Extract.Command != "markitdown" {
		t.Errorf("expected extract command 'markitdown', got %q", settings.Extract.Command)
	}
	if settings.Budget.PrioritiesPath != "priorities.yaml" {
		t.Errorf("expected priorities path 'priorities.yaml', got %q", settings.Budget.PrioritiesPath)
	}
	if settings.Log.Level != slog.LevelDebug {
		t.Errorf("expected log level debug, got %v", settings.Log.Level)
	}
}

func TestNewWithInvalidEnvVar(t *testing.T) {
	for key, val := range map[string]string{
		"LLM_MAX_TOKENS":         "lots",
		"LLM_TEMPERATURE":        "warm",
		"LLM_PREPROCESS_UNKNOWN": "maybe",
		"LOG_LEVEL":              "chatty",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			_, err := New("openai")
			if err == nil {
				t.Fatalf("expected error for invalid %s", key)
			}
			if !strings.Contains(err.Error(), key) {
				t.Errorf("expected error to mention %s, got %v", key, err)
			}
		})
	}
}

func TestAPIKeyForValidProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	key, err := APIKeyFor("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "test-key" {
		t.Errorf("expected 'test-key', got %q", key)
	}
}

func TestAPIKeyForMissing(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := APIKeyFor("openai")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestAPIKeyForLocalProvider(t *testing.T) {
	key, err := APIKeyFor("ollama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "" {
		t.Errorf("expected no key for a local provider, got %q", key)
	}
}

func TestAPIKeyForUnknownProvider(t *testing.T) {
	_, err := APIKeyFor("unknown")
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBaseURLFor(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")

	url, err := BaseURLFor("local")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "gpu-box:11434" {
		t.Errorf("expected 'gpu-box:11434', got %q", url)
	}

	if _, err := BaseURLFor("unknown"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestSupportedProviders(t *testing.T) {
	want := []string{"anthropic", "deepseek", "gemini", "ollama", "openai", "openrouter"}
	if got := SupportedProviders(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "DEEPSEEK_API_KEY", "GEMINI_API_KEY", "OPENROUTER_API_KEY",
		"OPENAI_BASE_URL", "DEEPSEEK_BASE_URL", "OPENROUTER_BASE_URL", "OLLAMA_HOST",
		"LLM_CATALOG_PATH", "EXTRACT_COMMAND",
	} {
		t.Setenv(key, "")
	}
}

// chatServer answers OpenAI-compatible chat completions and counts requests.
func chatServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"pong"},"finish_reason":"stop"}],"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestNewHandlerRegistersAvailableProviders(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	settings, err := New("anthropic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := settings.NewHandler(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := h.Providers(), []string{"anthropic", "ollama"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected providers %v, got %v", want, got)
	}

	_, err = h.Complete(context.Background(), handler.Request{Model: "openai/gpt-4o", UserText: "hi"})
	if !errors.Is(err, handler.ErrProviderNotConfigured) {
		t.Errorf("expected ErrProviderNotConfigured, got %v", err)
	}
}

func TestNewHandlerRequiresConfiguredProviderKey(t *testing.T) {
	clearProviderEnv(t)

	settings, err := New("openai")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = settings.NewHandler(nil)
	if err == nil || !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("expected missing OPENAI_API_KEY error, got %v", err)
	}
}

func TestNewHandlerUsesBaseURLFromEnvironment(t *testing.T) {
	clearProviderEnv(t)
	srv, hits := chatServer(t)
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	t.Setenv("DEEPSEEK_BASE_URL", srv.URL)

	settings, err := New("ollama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h, err := settings.NewHandler(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	completion, err := h.Complete(context.Background(), handler.Request{Model: "deepseek/deepseek-chat", UserText: "ping"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completion.Text != "pong" || *hits != 1 {
		t.Errorf("expected one request answered with 'pong', got %q after %d requests", completion.Text, *hits)
	}
}

func TestNewHandlerUsesConfiguredBaseURL(t *testing.T) {
	clearProviderEnv(t)
	srv, hits := chatServer(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-or-test")

	settings, err := New("openrouter")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	settings.LLM.BaseURL = srv.URL

	h, err := settings.NewHandler(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := h.Complete(context.Background(), handler.Request{Model: settings.ModelID(), UserText: "ping"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *hits != 1 {
		t.Errorf("expected the configured endpoint to serve the request, got %d requests", *hits)
	}
}

func TestNewHandlerBadCatalogPath(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("LLM_CATALOG_PATH", "/does/not/exist.yaml")

	settings, err := New("ollama")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := settings.NewHandler(nil); err == nil {
		t.Error("expected error for a missing catalog file")
	}
}
