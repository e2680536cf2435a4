// OpenAI-compatible Provider implementation using go-openai library.
//
// Information Hiding:
// - Uses the OpenAI Chat Completions wire format against a different base URL
// - Serves DeepSeek, OpenRouter and a local Ollama server (/v1)
// - Streaming via go-openai library

package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"
)

// Base URLs of the OpenAI-compatible endpoints.
const (
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
	ollamaBaseURL     = "http://127.0.0.1:11434/v1"
)

// CompatProvider implements the Provider interface for OpenAI-compatible endpoints.
// It sends text and image parts; file parts are rejected, so models behind it
// must receive preprocessed file content.
type CompatProvider struct {
	name      string
	client    *goopenai.Client
	maxTokens int
}

// NewCompatProvider creates a provider for an OpenAI-compatible endpoint.
func NewCompatProvider(name, apiKey, baseURL string, maxTokens uint32) *CompatProvider {
	config := goopenai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &CompatProvider{
		name:      name,
		client:    goopenai.NewClientWithConfig(config),
		maxTokens: int(maxTokens),
	}
}

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, baseURL string, maxTokens uint32) *CompatProvider {
	if baseURL == "" {
		baseURL = deepseekBaseURL
	}
	return NewCompatProvider("deepseek", apiKey, baseURL, maxTokens)
}

// NewOpenRouterProvider creates a new OpenRouter provider.
func NewOpenRouterProvider(apiKey, baseURL string, maxTokens uint32) *CompatProvider {
	if baseURL == "" {
		baseURL = openrouterBaseURL
	}
	return NewCompatProvider("openrouter", apiKey, baseURL, maxTokens)
}

// NewOllamaProvider creates a provider for a local Ollama server.
// Ollama ignores the API key, any non-empty value works.
func NewOllamaProvider(baseURL string, maxTokens uint32) *CompatProvider {
	if baseURL == "" {
		baseURL = ollamaBaseURL
	}
	return NewCompatProvider("ollama", "ollama", baseURL, maxTokens)
}

// Name returns the provider name.
func (p *CompatProvider) Name() string {
	return p.name
}

// Generate sends a chat completion request.
func (p *CompatProvider) Generate(ctx context.Context, req Request) (Response, error) {
	chatReq, err := p.request(req)
	if err != nil {
		return Response{}, err
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(resp.Usage.PromptTokens),
		CompletionTokens: uint32(resp.Usage.CompletionTokens),
		TotalTokens:      uint32(resp.Usage.TotalTokens),
	}

	return Response{Content: content, Usage: usage}, nil
}

// Stream streams a chat completion.
func (p *CompatProvider) Stream(ctx context.Context, req Request) (TextStream, error) {
	chatReq, err := p.request(req)
	if err != nil {
		return nil, err
	}
	chatReq.Stream = true
	chatReq.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("stream creation failed: %w", err)
	}
	return &compatStream{stream: stream}, nil
}

// ListModels lists the models served by the endpoint.
func (p *CompatProvider) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(list.Models))
	for _, m := range list.Models {
		models = append(models, ModelDescriptor{ID: m.ID, Provider: p.name})
	}
	return models, nil
}

func (p *CompatProvider) request(req Request) (goopenai.ChatCompletionRequest, error) {
	messages, err := convertToCompatMessages(req.Messages)
	if err != nil {
		return goopenai.ChatCompletionRequest{}, fmt.Errorf("%s: %w", p.name, err)
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	// Compatible servers honour max_tokens; max_completion_tokens is OpenAI-only.
	return goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
	}, nil
}

// compatStream adapts go-openai's stream to TextStream.
type compatStream struct {
	stream  *goopenai.ChatCompletionStream
	current string
	usage   *TokenUsage
	err     error
	closed  bool
}

func (s *compatStream) Next() bool {
	for {
		response, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			s.err = fmt.Errorf("stream recv failed: %w", err)
			return false
		}

		// Capture token usage from final chunk
		if response.Usage != nil {
			s.usage = &TokenUsage{
				PromptTokens:     uint32(response.Usage.PromptTokens),
				CompletionTokens: uint32(response.Usage.CompletionTokens),
				TotalTokens:      uint32(response.Usage.TotalTokens),
			}
		}

		if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
			s.current = response.Choices[0].Delta.Content
			return true
		}
	}
}

func (s *compatStream) Current() string { return s.current }

func (s *compatStream) Err() error { return s.err }

func (s *compatStream) Usage() *TokenUsage { return s.usage }

func (s *compatStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

// convertToCompatMessages converts our Message to goopenai.ChatCompletionMessage.
// go-openai rejects messages that set both Content and MultiContent, so
// multi-part messages only populate MultiContent.
func convertToCompatMessages(messages []Message) ([]goopenai.ChatCompletionMessage, error) {
	result := make([]goopenai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		if !msg.IsMultipart() || msg.Role != RoleUser {
			result[i] = goopenai.ChatCompletionMessage{
				Role:    string(msg.Role),
				Content: msg.Text(),
			}
			continue
		}

		parts := make([]goopenai.ChatMessagePart, 0, len(msg.Blocks))
		for _, b := range msg.Blocks {
			switch b.Type {
			case BlockText:
				parts = append(parts, goopenai.ChatMessagePart{
					Type: goopenai.ChatMessagePartTypeText,
					Text: b.Text,
				})
			case BlockImage:
				parts = append(parts, goopenai.ChatMessagePart{
					Type:     goopenai.ChatMessagePartTypeImageURL,
					ImageURL: &goopenai.ChatMessageImageURL{URL: b.ImageURL},
				})
			case BlockFile:
				return nil, fmt.Errorf("%w: file %s requires preprocessing for this endpoint", ErrUnsupportedContent, b.Filename)
			default:
				return nil, fmt.Errorf("%w: block type %q", ErrUnsupportedContent, b.Type)
			}
		}
		result[i] = goopenai.ChatCompletionMessage{
			Role:         string(msg.Role),
			MultiContent: parts,
		}
	}
	return result, nil
}

// Verify CompatProvider implements Provider
var _ Provider = (*CompatProvider)(nil)
