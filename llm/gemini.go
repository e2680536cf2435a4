// Google Gemini Provider implementation using official google.golang.org/genai SDK.
//
// Information Hiding:
// - API authentication and client creation
// - Request/response format for Gemini API
// - System instruction handling via config
// - Inline data parts for images and documents
// - Streaming via official SDK iterator

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface for Google Gemini.
type GeminiProvider struct {
	client    *genai.Client
	maxTokens int32
	initErr   error // Stores client initialization error for deferred reporting
}

// NewGeminiProvider creates a new Gemini provider.
// If client initialization fails, the error is stored and returned on first use.
func NewGeminiProvider(apiKey, baseURL string, maxTokens uint32) *GeminiProvider {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return &GeminiProvider{
			maxTokens: int32(maxTokens),
			initErr:   fmt.Errorf("failed to initialize Gemini client: %w", err),
		}
	}

	return &GeminiProvider{
		client:    client,
		maxTokens: int32(maxTokens),
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) ready() error {
	if p.initErr != nil {
		return p.initErr
	}
	if p.client == nil {
		return fmt.Errorf("gemini client not initialized")
	}
	return nil
}

// Generate sends a chat completion request.
func (p *GeminiProvider) Generate(ctx context.Context, req Request) (Response, error) {
	if err := p.ready(); err != nil {
		return Response{}, err
	}

	contents, config, err := p.request(req)
	if err != nil {
		return Response{}, err
	}

	response, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	return Response{Content: response.Text(), Usage: geminiUsage(response)}, nil
}

// Stream streams a chat completion. The SDK's push iterator is turned into a
// pull stream, so the request starts on the first call to Next.
func (p *GeminiProvider) Stream(ctx context.Context, req Request) (TextStream, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	contents, config, err := p.request(req)
	if err != nil {
		return nil, err
	}

	next, stop := iter.Pull2(p.client.Models.GenerateContentStream(ctx, req.Model, contents, config))
	return &geminiStream{next: next, stop: stop}, nil
}

// ListModels lists the models available to the API key.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}

	var models []ModelDescriptor
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("list models failed: %w", err)
		}
		models = append(models, ModelDescriptor{
			ID:          strings.TrimPrefix(m.Name, "models/"),
			Provider:    p.Name(),
			DisplayName: m.DisplayName,
		})
	}
	return models, nil
}

func (p *GeminiProvider) request(req Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	contents, systemInstruction, err := convertToGeminiMessages(req.Messages)
	if err != nil {
		return nil, nil, err
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int32(req.MaxTokens)
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(systemInstruction, genai.RoleUser)
	}
	return contents, config, nil
}

func geminiUsage(response *genai.GenerateContentResponse) *TokenUsage {
	if response == nil || response.UsageMetadata == nil {
		return nil
	}
	return &TokenUsage{
		PromptTokens:     uint32(response.UsageMetadata.PromptTokenCount),
		CompletionTokens: uint32(response.UsageMetadata.CandidatesTokenCount),
		TotalTokens:      uint32(response.UsageMetadata.TotalTokenCount),
	}
}

// geminiStream adapts a pulled response iterator to TextStream.
type geminiStream struct {
	next    func() (*genai.GenerateContentResponse, error, bool)
	stop    func()
	current string
	usage   *TokenUsage
	err     error
	done    bool
}

func (s *geminiStream) Next() bool {
	for !s.done {
		response, err, ok := s.next()
		if !ok {
			s.done = true
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("stream error: %w", err)
			s.done = true
			return false
		}

		if usage := geminiUsage(response); usage != nil {
			s.usage = usage
		}

		if text := response.Text(); text != "" {
			s.current = text
			return true
		}
	}
	return false
}

func (s *geminiStream) Current() string { return s.current }

func (s *geminiStream) Err() error { return s.err }

func (s *geminiStream) Usage() *TokenUsage { return s.usage }

func (s *geminiStream) Close() error {
	s.done = true
	s.stop()
	return nil
}

// convertToGeminiMessages converts our Message to Gemini format.
// Extracts system message and returns it separately.
func convertToGeminiMessages(messages []Message) ([]*genai.Content, string, error) {
	systemInstruction, rest := splitSystem(messages)

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		var role genai.Role
		switch msg.Role {
		case RoleUser:
			role = genai.RoleUser
		case RoleAssistant:
			role = genai.RoleModel
		default:
			return nil, "", fmt.Errorf("gemini: unsupported role %q", msg.Role)
		}

		if !msg.IsMultipart() {
			contents = append(contents, genai.NewContentFromText(msg.Content, role))
			continue
		}

		parts := make([]*genai.Part, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			part, err := convertToGeminiPart(b)
			if err != nil {
				return nil, "", err
			}
			parts = append(parts, part)
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}

	return contents, systemInstruction, nil
}

func convertToGeminiPart(b ContentBlock) (*genai.Part, error) {
	var url string
	switch b.Type {
	case BlockText:
		return genai.NewPartFromText(b.Text), nil
	case BlockImage:
		url = b.ImageURL
	case BlockFile:
		url = b.FileData
	default:
		return nil, fmt.Errorf("gemini: %w: block type %q", ErrUnsupportedContent, b.Type)
	}

	mimeType, data, err := ParseDataURL(url)
	if err != nil {
		return nil, fmt.Errorf("gemini: %s block: %w", b.Type, err)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("gemini: %s block: %w", b.Type, err)
	}
	return genai.NewPartFromBytes(raw, mimeType), nil
}

// Verify GeminiProvider implements Provider
var _ Provider = (*GeminiProvider)(nil)
