package config

import (
	"fmt"
	"log/slog"

	"github.com/richinex/polyllm/extract"
	"github.com/richinex/polyllm/handler"
	"github.com/richinex/polyllm/llm"
)

// NewHandler builds a handler from the settings. The configured provider
// must have its credentials set; every other supported provider is registered
// when its API key is present. Local providers are always registered.
func (s Settings) NewHandler(logger *slog.Logger) (*handler.Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := llm.LoadCatalog(s.LLM.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	extractOpts := []extract.MarkdownOption{extract.WithLogger(logger)}
	if s.Extract.Command != "" {
		extractOpts = append(extractOpts, extract.WithCommand(extract.ParseCommand(s.Extract.Command)))
	}

	opts := []handler.Option{
		handler.WithLogger(logger),
		handler.WithCapabilities(catalog),
		handler.WithExtractor(extract.NewMarkdown(extractOpts...)),
		handler.WithDefaultProvider(s.LLM.Provider),
		handler.WithPreprocessUnknown(s.LLM.PreprocessUnknown),
		handler.WithMaxTokens(int(s.LLM.MaxTokens)),
	}

	for _, name := range SupportedProviders() {
		provider, err := s.buildProvider(name)
		if err != nil {
			if name == s.LLM.Provider {
				return nil, fmt.Errorf("config: %w", err)
			}
			logger.Debug("provider not registered", "provider", name, "error", err)
			continue
		}
		opts = append(opts, handler.WithProvider(name, provider))
	}

	return handler.New(opts...), nil
}

// buildProvider creates the named provider from its environment. The
// configured provider uses the base URL captured in the settings.
func (s Settings) buildProvider(name string) (llm.Provider, error) {
	pt, err := llm.ParseProviderType(name)
	if err != nil {
		return nil, err
	}
	key, err := APIKeyFor(name)
	if err != nil {
		return nil, err
	}

	baseURL := s.LLM.BaseURL
	if name != s.LLM.Provider {
		if baseURL, err = BaseURLFor(name); err != nil {
			return nil, err
		}
	}
	return llm.NewProviderBuilder(pt).BaseURL(baseURL).MaxTokens(s.LLM.MaxTokens).APIKey(key)
}
