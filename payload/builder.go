package payload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/richinex/polyllm/extract"
	"github.com/richinex/polyllm/llm"
)

// Builder builds user content and full payloads.
type Builder struct {
	extractor extract.Extractor
	logger    *slog.Logger
}

// NewBuilder creates a builder. A nil extractor makes preprocessing fail with
// extract.ErrUnavailable; a nil logger uses slog.Default.
func NewBuilder(extractor extract.Extractor, logger *slog.Logger) *Builder {
	if extractor == nil {
		extractor = extract.Unavailable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		extractor: extractor,
		logger:    logger.With("component", "payload"),
	}
}

// PayloadInput is everything needed for one outgoing message list.
type PayloadInput struct {
	UserText     string
	SystemPrompt string
	Files        []FileRef
	Preprocess   bool
	History      []llm.Message
}

// BuildUserContent builds the content blocks of one user message.
//
// Without files the result is a single text block. With preprocess set every
// file is extracted to markdown and merged with the text into one text block.
// Otherwise the text comes first, followed by one image or file block per
// file in input order.
func (b *Builder) BuildUserContent(ctx context.Context, userText string, files []FileRef, preprocess bool) ([]llm.ContentBlock, error) {
	if userText == "" && countRefs(files) == 0 {
		return nil, fmt.Errorf("%w: either user text or files must be provided", ErrInvalidInput)
	}

	resolved, err := ResolveAll(files)
	if err != nil {
		return nil, err
	}
	if len(resolved) == 0 {
		return []llm.ContentBlock{llm.TextBlock(userText)}, nil
	}

	if preprocess {
		text, err := b.preprocess(ctx, userText, resolved)
		if err != nil {
			return nil, err
		}
		return []llm.ContentBlock{llm.TextBlock(text)}, nil
	}

	blocks := make([]llm.ContentBlock, 0, len(resolved)+1)
	if userText != "" {
		blocks = append(blocks, llm.TextBlock(userText))
	}
	for _, f := range resolved {
		mimeType, ok := LookupType(f.Filename)
		if !ok {
			b.logger.Warn("could not detect MIME type, using default",
				"filename", f.Filename, "mime", DefaultMimeType)
			mimeType = DefaultMimeType
		}

		url := DataURL(mimeType, f.Data)
		if IsImage(mimeType) {
			blocks = append(blocks, llm.ImageBlock(url))
		} else {
			blocks = append(blocks, llm.FileBlock(f.Filename, url))
		}
	}
	return blocks, nil
}

func (b *Builder) preprocess(ctx context.Context, userText string, files []ResolvedFile) (string, error) {
	sections := make([]string, 0, len(files))
	for _, f := range files {
		b.logger.Info("preprocessing file content locally", "filename", f.Filename)

		md, err := b.extractor.Extract(ctx, f.Filename, f.Data)
		if err != nil {
			return "", fmt.Errorf("extract %s: %w", f.Filename, err)
		}
		sections = append(sections, FileSection(f.Filename, md))
	}

	var sb strings.Builder
	if userText != "" {
		sb.WriteString(userText)
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(sections, "\n"))
	return sb.String(), nil
}

// FileSection wraps extracted file text in the delimiting markers.
func FileSection(filename, text string) string {
	return fmt.Sprintf("\n<<<FILE CONTENT (%s)>>>\n%s\n<<<END FILE CONTENT>>>\n", filename, text)
}

// BuildPayload builds the full message list: an optional leading system
// message, the history, then the new user message. When a system prompt is
// given, system messages in the history are dropped so the payload carries
// at most one, first.
func (b *Builder) BuildPayload(ctx context.Context, in PayloadInput) ([]llm.Message, error) {
	blocks, err := b.BuildUserContent(ctx, in.UserText, in.Files, in.Preprocess)
	if err != nil {
		return nil, err
	}

	messages := make([]llm.Message, 0, len(in.History)+2)
	if in.SystemPrompt != "" {
		messages = append(messages, llm.SystemMessage(in.SystemPrompt))
	}
	for _, msg := range in.History {
		if in.SystemPrompt != "" && msg.Role == llm.RoleSystem {
			continue
		}
		messages = append(messages, msg)
	}
	messages = append(messages, llm.UserBlocksMessage(blocks))
	return messages, nil
}
