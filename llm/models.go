// Package llm provides shared data models for LLM providers.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType identifies the variant of a ContentBlock.
type BlockType string

const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image_url"
	BlockFile  BlockType = "file"
)

// ErrUnsupportedContent is returned by adapters that cannot translate a content block
// into their provider's message shape.
var ErrUnsupportedContent = errors.New("unsupported content")

// ContentBlock is one ordered element of a multi-part message.
// Exactly the fields belonging to Type are meaningful.
type ContentBlock struct {
	Type BlockType

	// Text is set for BlockText.
	Text string

	// ImageURL is a data URL, set for BlockImage.
	ImageURL string

	// Filename and FileData (a data URL) are set for BlockFile.
	Filename string
	FileData string
}

// TextBlock creates a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ImageBlock creates an image content block from a data URL.
func ImageBlock(dataURL string) ContentBlock {
	return ContentBlock{Type: BlockImage, ImageURL: dataURL}
}

// FileBlock creates a generic file content block from a filename and data URL.
func FileBlock(filename, dataURL string) ContentBlock {
	return ContentBlock{Type: BlockFile, Filename: filename, FileData: dataURL}
}

type wireImageURL struct {
	URL string `json:"url"`
}

type wireFile struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type wireBlock struct {
	Type     BlockType     `json:"type"`
	Text     *string       `json:"text,omitempty"`
	ImageURL *wireImageURL `json:"image_url,omitempty"`
	File     *wireFile     `json:"file,omitempty"`
}

// MarshalJSON encodes the block in the OpenAI-compatible chat wire shape.
func (b ContentBlock) MarshalJSON() ([]byte, error) {
	w := wireBlock{Type: b.Type}
	switch b.Type {
	case BlockText:
		text := b.Text
		w.Text = &text
	case BlockImage:
		w.ImageURL = &wireImageURL{URL: b.ImageURL}
	case BlockFile:
		w.File = &wireFile{Filename: b.Filename, FileData: b.FileData}
	default:
		return nil, fmt.Errorf("%w: block type %q", ErrUnsupportedContent, b.Type)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes a block from the OpenAI-compatible chat wire shape.
func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	var w wireBlock
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case BlockText:
		*b = ContentBlock{Type: BlockText}
		if w.Text != nil {
			b.Text = *w.Text
		}
	case BlockImage:
		if w.ImageURL == nil {
			return fmt.Errorf("image_url block without image_url")
		}
		*b = ImageBlock(w.ImageURL.URL)
	case BlockFile:
		if w.File == nil {
			return fmt.Errorf("file block without file")
		}
		*b = FileBlock(w.File.Filename, w.File.FileData)
	default:
		return fmt.Errorf("%w: block type %q", ErrUnsupportedContent, w.Type)
	}
	return nil
}

// Message represents a chat message with role and content.
// When Blocks is non-nil the content is the ordered block sequence,
// otherwise it is the plain Content string.
type Message struct {
	Role    Role
	Content string
	Blocks  []ContentBlock
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a plain-text user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// UserBlocksMessage creates a user message with multi-part content.
func UserBlocksMessage(blocks []ContentBlock) Message {
	return Message{Role: RoleUser, Blocks: blocks}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// IsMultipart reports whether the message carries block content.
func (m Message) IsMultipart() bool {
	return m.Blocks != nil
}

// Text returns the message's textual content. For multi-part messages the
// text blocks are joined with newlines and attachments are skipped.
func (m Message) Text() string {
	if !m.IsMultipart() {
		return m.Content
	}
	var parts []string
	for _, b := range m.Blocks {
		if b.Type == BlockText {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON encodes the message as {role, content} where content is either
// a string or an array of typed blocks.
func (m Message) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if m.IsMultipart() {
		content, err = json.Marshal(m.Blocks)
	} else {
		content, err = json.Marshal(m.Content)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON decodes a message from the {role, content} wire shape.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Message{Role: w.Role}
	trimmed := strings.TrimSpace(string(w.Content))
	if strings.HasPrefix(trimmed, "[") {
		blocks := []ContentBlock{}
		if err := json.Unmarshal(w.Content, &blocks); err != nil {
			return err
		}
		m.Blocks = blocks
		return nil
	}
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return json.Unmarshal(w.Content, &m.Content)
}

// ParseDataURL splits a base64 data URL into its MIME type and payload.
func ParseDataURL(url string) (mimeType, data string, err error) {
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return "", "", fmt.Errorf("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", "", fmt.Errorf("malformed data URL: missing payload")
	}
	mimeType, ok = strings.CutSuffix(header, ";base64")
	if !ok {
		return "", "", fmt.Errorf("malformed data URL: payload is not base64")
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return mimeType, payload, nil
}

// Request is a provider-level completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Response represents a response from an LLM provider.
type Response struct {
	Content string
	Usage   *TokenUsage
}

// TokenUsage contains token usage statistics.
type TokenUsage struct {
	PromptTokens     uint32
	CompletionTokens uint32
	TotalTokens      uint32
}

// ModelDescriptor describes a model offered by a provider.
type ModelDescriptor struct {
	ID          string `json:"id" yaml:"id"`
	Provider    string `json:"provider" yaml:"provider"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

// splitSystem separates the system prompt from the conversation messages.
// Providers that carry the system prompt out of band use this.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			system = msg.Text()
			continue
		}
		rest = append(rest, msg)
	}
	return system, rest
}
