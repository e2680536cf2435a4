// OpenAI Provider implementation using the official openai-go SDK.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for OpenAI Chat Completions API
// - Text, image and file content parts
// - Streaming via the SDK's SSE stream

package llm

import (
	"context"
	"fmt"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"
)

// OpenAIProvider implements the Provider interface for OpenAI.
// It is the only OpenAI-shaped adapter that can send file parts.
type OpenAIProvider struct {
	client    openai.Client
	maxTokens int64
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey, baseURL string, maxTokens uint32) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIProvider{
		client:    openai.NewClient(opts...),
		maxTokens: int64(maxTokens),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate sends a chat completion request.
func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	params, err := p.params(req)
	if err != nil {
		return Response{}, err
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("chat completion failed: %w", err)
	}

	content := ""
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}

	usage := &TokenUsage{
		PromptTokens:     uint32(completion.Usage.PromptTokens),
		CompletionTokens: uint32(completion.Usage.CompletionTokens),
		TotalTokens:      uint32(completion.Usage.TotalTokens),
	}

	return Response{Content: content, Usage: usage}, nil
}

// Stream streams a chat completion.
func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (TextStream, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	return &openAIStream{stream: p.client.Chat.Completions.NewStreaming(ctx, params)}, nil
}

// ListModels lists the models available to the API key.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelDescriptor{ID: m.ID, Provider: p.Name()})
	}
	return models, nil
}

func (p *OpenAIProvider) params(req Request) (openai.ChatCompletionNewParams, error) {
	messages, err := convertToOpenAIMessages(req.Messages)
	if err != nil {
		return openai.ChatCompletionNewParams{}, err
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	return openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(req.Model),
		Messages:            messages,
		Temperature:         openai.Float(req.Temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}, nil
}

// openAIStream adapts the SDK chunk stream to TextStream.
type openAIStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
	usage   *TokenUsage
	closed  bool
}

func (s *openAIStream) Next() bool {
	for s.stream.Next() {
		chunk := s.stream.Current()

		// Capture token usage from final chunk
		if chunk.Usage.TotalTokens > 0 {
			s.usage = &TokenUsage{
				PromptTokens:     uint32(chunk.Usage.PromptTokens),
				CompletionTokens: uint32(chunk.Usage.CompletionTokens),
				TotalTokens:      uint32(chunk.Usage.TotalTokens),
			}
		}

		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.current = chunk.Choices[0].Delta.Content
			return true
		}
	}
	return false
}

func (s *openAIStream) Current() string { return s.current }

func (s *openAIStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("stream recv failed: %w", err)
	}
	return nil
}

func (s *openAIStream) Usage() *TokenUsage { return s.usage }

func (s *openAIStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

// convertToOpenAIMessages converts our Message to the SDK's message union.
func convertToOpenAIMessages(messages []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Text()))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Text()))
		case RoleUser:
			if !msg.IsMultipart() {
				result = append(result, openai.UserMessage(msg.Content))
				continue
			}
			parts, err := convertToOpenAIParts(msg.Blocks)
			if err != nil {
				return nil, err
			}
			result = append(result, openai.UserMessage(parts))
		default:
			return nil, fmt.Errorf("openai: unsupported role %q", msg.Role)
		}
	}
	return result, nil
}

func convertToOpenAIParts(blocks []ContentBlock) ([]openai.ChatCompletionContentPartUnionParam, error) {
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			parts = append(parts, openai.TextContentPart(b.Text))
		case BlockImage:
			parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
				URL: b.ImageURL,
			}))
		case BlockFile:
			parts = append(parts, openai.FileContentPart(openai.ChatCompletionContentPartFileFileParam{
				Filename: openai.String(b.Filename),
				FileData: openai.String(b.FileData),
			}))
		default:
			return nil, fmt.Errorf("openai: %w: block type %q", ErrUnsupportedContent, b.Type)
		}
	}
	return parts, nil
}

// Verify OpenAIProvider implements Provider
var _ Provider = (*OpenAIProvider)(nil)
