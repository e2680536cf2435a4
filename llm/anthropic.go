// Anthropic Provider implementation using official anthropic-sdk-go.
//
// Information Hiding:
// - API endpoint and authentication
// - Request/response format for Anthropic Messages API
// - Translation of image/file data URLs into image and document blocks
// - Streaming via official SDK

package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
)

// AnthropicProvider implements the Provider interface for Anthropic Claude.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, baseURL string, maxTokens uint32) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		maxTokens: int64(maxTokens),
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return "anthropic"
}

// Generate sends a chat completion request.
// Long generations are only reliable over the streaming endpoint, so the
// reply is collected from a stream.
func (p *AnthropicProvider) Generate(ctx context.Context, req Request) (Response, error) {
	return NewClient(p).Collect(ctx, req)
}

// Stream streams a chat completion.
func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (TextStream, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}
	return &anthropicStream{stream: p.client.Messages.NewStreaming(ctx, params)}, nil
}

// ListModels lists the models available to the API key.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]ModelDescriptor, error) {
	page, err := p.client.Models.List(ctx, anthropic.ModelListParams{})
	if err != nil {
		return nil, fmt.Errorf("list models failed: %w", err)
	}

	models := make([]ModelDescriptor, 0, len(page.Data))
	for _, m := range page.Data {
		models = append(models, ModelDescriptor{
			ID:          m.ID,
			Provider:    p.Name(),
			DisplayName: m.DisplayName,
		})
	}
	return models, nil
}

func (p *AnthropicProvider) params(req Request) (anthropic.MessageNewParams, error) {
	anthropicMessages, systemPrompt, err := convertToAnthropicMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := p.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   maxTokens,
		Messages:    anthropicMessages,
		Temperature: anthropic.Float(req.Temperature),
	}

	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemPrompt},
		}
	}
	return params, nil
}

// anthropicStream adapts the SDK event stream to TextStream.
type anthropicStream struct {
	stream  *ssestream.Stream[anthropic.MessageStreamEventUnion]
	current string
	usage   *TokenUsage
	closed  bool
}

func (s *anthropicStream) Next() bool {
	for s.stream.Next() {
		event := s.stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			// Capture input tokens from message start
			if eventVariant.Message.Usage.InputTokens > 0 {
				s.usage = &TokenUsage{
					PromptTokens: uint32(eventVariant.Message.Usage.InputTokens),
					TotalTokens:  uint32(eventVariant.Message.Usage.InputTokens),
				}
			}
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					s.current = deltaVariant.Text
					return true
				}
			}
		case anthropic.MessageDeltaEvent:
			// Capture output tokens from message delta
			if eventVariant.Usage.OutputTokens > 0 {
				if s.usage == nil {
					s.usage = &TokenUsage{}
				}
				s.usage.CompletionTokens = uint32(eventVariant.Usage.OutputTokens)
				s.usage.TotalTokens = s.usage.PromptTokens + s.usage.CompletionTokens
			}
		}
	}
	return false
}

func (s *anthropicStream) Current() string { return s.current }

func (s *anthropicStream) Err() error {
	if err := s.stream.Err(); err != nil {
		return fmt.Errorf("stream error: %w", err)
	}
	return nil
}

func (s *anthropicStream) Usage() *TokenUsage { return s.usage }

func (s *anthropicStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

// convertToAnthropicMessages converts our Message to Anthropic format.
// Extracts system message and returns it separately.
func convertToAnthropicMessages(messages []Message) ([]anthropic.MessageParam, string, error) {
	systemPrompt, rest := splitSystem(messages)

	anthropicMessages := make([]anthropic.MessageParam, 0, len(rest))
	for _, msg := range rest {
		blocks, err := convertToAnthropicBlocks(msg)
		if err != nil {
			return nil, "", err
		}
		if len(blocks) == 0 {
			// Messages API rejects empty content; an empty reply carries nothing.
			continue
		}
		switch msg.Role {
		case RoleUser:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(blocks...))
		case RoleAssistant:
			anthropicMessages = append(anthropicMessages, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, "", fmt.Errorf("anthropic: unsupported role %q", msg.Role)
		}
	}

	return anthropicMessages, systemPrompt, nil
}

func convertToAnthropicBlocks(msg Message) ([]anthropic.ContentBlockParamUnion, error) {
	if !msg.IsMultipart() {
		if strings.TrimSpace(msg.Content) == "" {
			return nil, nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}, nil
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
	for _, b := range msg.Blocks {
		switch b.Type {
		case BlockText:
			if strings.TrimSpace(b.Text) == "" {
				continue
			}
			blocks = append(blocks, anthropic.NewTextBlock(b.Text))
		case BlockImage:
			mimeType, data, err := ParseDataURL(b.ImageURL)
			if err != nil {
				return nil, fmt.Errorf("anthropic: image block: %w", err)
			}
			blocks = append(blocks, anthropic.NewImageBlockBase64(mimeType, data))
		case BlockFile:
			block, err := anthropicDocumentBlock(b)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		default:
			return nil, fmt.Errorf("anthropic: %w: block type %q", ErrUnsupportedContent, b.Type)
		}
	}
	return blocks, nil
}

// anthropicDocumentBlock maps a file block onto a document block. PDFs travel
// as base64, text documents are decoded into a plain-text source.
func anthropicDocumentBlock(b ContentBlock) (anthropic.ContentBlockParamUnion, error) {
	mimeType, data, err := ParseDataURL(b.FileData)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("anthropic: file %s: %w", b.Filename, err)
	}

	switch {
	case mimeType == "application/pdf":
		return anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: data}), nil
	case strings.HasPrefix(mimeType, "text/"):
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return anthropic.ContentBlockParamUnion{}, fmt.Errorf("anthropic: file %s: %w", b.Filename, err)
		}
		return anthropic.NewDocumentBlock(anthropic.PlainTextSourceParam{Data: string(raw)}), nil
	default:
		return anthropic.ContentBlockParamUnion{}, fmt.Errorf("anthropic: %w: %s (%s)", ErrUnsupportedContent, b.Filename, mimeType)
	}
}

// Verify AnthropicProvider implements Provider
var _ Provider = (*AnthropicProvider)(nil)
