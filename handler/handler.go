// Package handler dispatches completion requests to providers.
//
// A Handler owns the registered providers, the capability source used to
// decide file preprocessing, and the payload builder. One call resolves the
// model to a provider, decides whether attached files must be extracted to
// text, builds the payload and invokes the provider.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/richinex/polyllm/extract"
	jsonutil "github.com/richinex/polyllm/internal/json"
	"github.com/richinex/polyllm/llm"
	"github.com/richinex/polyllm/payload"
)

// DefaultTemperature is used when a request does not set one.
const DefaultTemperature = 0.2

// Request is one logical completion call.
type Request struct {
	// Model is "provider/model" or a bare model name.
	Model        string
	SystemPrompt string
	UserText     string
	History      []llm.Message
	Files        []payload.FileRef

	// Temperature defaults to DefaultTemperature when nil.
	Temperature *float64

	// Preprocess overrides the capability-based decision to extract files
	// to text. Disabling it for a model that needs it is a configuration error.
	Preprocess *bool

	// ParseJSON parses the reply into Completion.Data.
	ParseJSON bool
}

// Prepared is a request resolved to a provider and payload.
type Prepared struct {
	Provider   llm.Provider
	ModelID    string // "provider/model"
	Model      string // model name sent to the provider
	Messages   []llm.Message
	Preprocess bool
	Request    llm.Request
}

// Completion is the result of a blocking call.
type Completion struct {
	Text     string
	Data     any
	Usage    *llm.TokenUsage
	Model    string
	Messages []llm.Message // the payload that was sent
}

// ModelLister lists catalog models by provider.
type ModelLister interface {
	ModelsByProvider(provider string) ([]llm.ModelDescriptor, bool)
}

// Handler dispatches requests. Configure it with options before use; it is
// safe for concurrent use afterwards as long as its providers are.
type Handler struct {
	providers         map[string]llm.Provider
	capabilities      llm.CapabilitySource
	extractor         extract.Extractor
	logger            *slog.Logger
	builder           *payload.Builder
	defaultProvider   string
	preprocessUnknown bool
	maxTokens         int
}

// Option configures a Handler.
type Option func(*Handler)

// WithProvider registers a provider under name ("openai", "ollama", ...).
// Aliases such as "claude" are normalized.
func WithProvider(name string, p llm.Provider) Option {
	return func(h *Handler) { h.providers[canonicalProvider(name)] = p }
}

// WithCapabilities sets the capability source. Defaults to the embedded catalog.
func WithCapabilities(c llm.CapabilitySource) Option {
	return func(h *Handler) { h.capabilities = c }
}

// WithExtractor sets the extractor used for preprocessing.
func WithExtractor(e extract.Extractor) Option {
	return func(h *Handler) { h.extractor = e }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDefaultProvider sets the provider for bare model names the catalog
// does not know.
func WithDefaultProvider(name string) Option {
	return func(h *Handler) { h.defaultProvider = canonicalProvider(name) }
}

// WithPreprocessUnknown sets whether files are extracted locally for models
// without capability metadata. Defaults to false.
func WithPreprocessUnknown(v bool) Option {
	return func(h *Handler) { h.preprocessUnknown = v }
}

// WithMaxTokens sets the per-request output token limit. Zero keeps each
// provider's own default.
func WithMaxTokens(n int) Option {
	return func(h *Handler) { h.maxTokens = n }
}

// New creates a Handler.
func New(opts ...Option) *Handler {
	h := &Handler{
		providers: make(map[string]llm.Provider),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.capabilities == nil {
		h.capabilities = llm.DefaultCatalog()
	}
	if h.extractor == nil {
		h.extractor = extract.NewMarkdown(extract.WithLogger(h.logger))
	}
	h.logger = h.logger.With("component", "handler")
	h.builder = payload.NewBuilder(h.extractor, h.logger)
	return h
}

// Providers returns the names of the registered providers, sorted.
func (h *Handler) Providers() []string {
	names := make([]string, 0, len(h.providers))
	for name := range h.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Prepare resolves the provider, decides preprocessing and builds the payload
// without contacting the provider.
func (h *Handler) Prepare(ctx context.Context, req Request) (Prepared, error) {
	providerName, model, err := h.resolveModel(req.Model)
	if err != nil {
		return Prepared{}, err
	}
	provider, ok := h.providers[providerName]
	if !ok {
		return Prepared{}, fmt.Errorf("%w: %s (model %s)", ErrProviderNotConfigured, providerName, req.Model)
	}
	modelID := providerName + "/" + model

	preprocess := req.Preprocess != nil && *req.Preprocess
	if hasFiles(req.Files) {
		preprocess, err = h.ResolvePreprocessing(modelID, req.Preprocess)
		if err != nil {
			return Prepared{}, err
		}
	}

	messages, err := h.builder.BuildPayload(ctx, payload.PayloadInput{
		UserText:     req.UserText,
		SystemPrompt: req.SystemPrompt,
		Files:        req.Files,
		Preprocess:   preprocess,
		History:      req.History,
	})
	if err != nil {
		return Prepared{}, err
	}

	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	return Prepared{
		Provider:   provider,
		ModelID:    modelID,
		Model:      model,
		Messages:   messages,
		Preprocess: preprocess,
		Request: llm.Request{
			Model:       model,
			Messages:    messages,
			Temperature: temperature,
			MaxTokens:   h.maxTokens,
		},
	}, nil
}

// Complete runs a blocking completion. When ParseJSON is set and the reply is
// not valid JSON, the returned Completion still carries the text alongside a
// *json.MalformedResponseError.
func (h *Handler) Complete(ctx context.Context, req Request) (Completion, error) {
	prepared, err := h.Prepare(ctx, req)
	if err != nil {
		return Completion{}, err
	}

	h.logger.Debug("sending completion",
		"model", prepared.ModelID,
		"messages", len(prepared.Messages),
		"preprocess", prepared.Preprocess)

	resp, err := prepared.Provider.Generate(ctx, prepared.Request)
	if err != nil {
		return Completion{}, fmt.Errorf("%s: %w", prepared.ModelID, err)
	}

	completion := Completion{
		Text:     resp.Content,
		Usage:    resp.Usage,
		Model:    prepared.ModelID,
		Messages: prepared.Messages,
	}
	if req.ParseJSON {
		data, err := jsonutil.ParseStructured(resp.Content)
		if err != nil {
			return completion, err
		}
		completion.Data = data
	}
	return completion, nil
}

// RequestJSON runs a completion and decodes the reply into T.
func RequestJSON[T any](ctx context.Context, h *Handler, req Request) (T, error) {
	req.ParseJSON = false
	completion, err := h.Complete(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return jsonutil.ParseInto[T](completion.Text)
}

// ListModels lists the catalog models of a provider. Unknown providers yield
// an empty list.
func (h *Handler) ListModels(provider string) []llm.ModelDescriptor {
	lister, ok := h.capabilities.(ModelLister)
	if !ok {
		return []llm.ModelDescriptor{}
	}
	models, ok := lister.ModelsByProvider(canonicalProvider(provider))
	if !ok {
		return []llm.ModelDescriptor{}
	}
	return models
}

// ListRemoteModels asks a registered provider for the models it serves.
func (h *Handler) ListRemoteModels(ctx context.Context, provider string) ([]llm.ModelDescriptor, error) {
	name := canonicalProvider(provider)
	p, ok := h.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return models, nil
}

// resolveModel splits a model id into provider and model name. Bare names
// take their provider from the capability source, then the default provider.
func (h *Handler) resolveModel(id string) (provider, model string, err error) {
	if id == "" {
		return "", "", &ConfigurationError{Model: id, Reason: "no model specified"}
	}

	provider, model = llm.SplitModel(id)
	if provider != "" {
		return canonicalProvider(provider), model, nil
	}

	if capability := h.capability(model); capability.Known && capability.Info.Provider != "" {
		return capability.Info.Provider, model, nil
	}
	if h.defaultProvider != "" {
		return h.defaultProvider, model, nil
	}
	return "", "", fmt.Errorf("%w: cannot infer provider for model %q", ErrProviderNotConfigured, id)
}

func canonicalProvider(name string) string {
	if p, err := llm.ParseProviderType(name); err == nil {
		return p.String()
	}
	return name
}

func hasFiles(files []payload.FileRef) bool {
	for _, f := range files {
		if !f.IsZero() {
			return true
		}
	}
	return false
}
