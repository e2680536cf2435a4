package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// converter turns raw file bytes into markdown.
type converter func(filename string, raw []byte) (string, error)

// Markdown is the built-in Extractor. PDFs, spreadsheets and text formats are
// converted in process; any other type goes to the optional external command.
type Markdown struct {
	command *Command
	logger  *slog.Logger
}

// MarkdownOption configures a Markdown extractor.
type MarkdownOption func(*Markdown)

// WithCommand sets the fallback command for file types without a built-in
// converter.
func WithCommand(c *Command) MarkdownOption {
	return func(m *Markdown) { m.command = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) MarkdownOption {
	return func(m *Markdown) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMarkdown creates the built-in extractor.
func NewMarkdown(opts ...MarkdownOption) *Markdown {
	m := &Markdown{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "extract")
	return m
}

func (m *Markdown) converterFor(filename string) converter {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return pdfToMarkdown
	case ext == ".xlsx" || ext == ".xlsm":
		return xlsxToMarkdown
	case textLanguages[ext] != "" || plainText[ext]:
		return textToMarkdown
	}
	return nil
}

// Supports reports whether Extract can handle filename at all.
func (m *Markdown) Supports(filename string) bool {
	return m.converterFor(filename) != nil || m.command.Available()
}

// Extract implements Extractor.
func (m *Markdown) Extract(ctx context.Context, filename, base64Data string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := decode(filename, base64Data)
	if err != nil {
		return "", err
	}

	if conv := m.converterFor(filename); conv != nil {
		m.logger.Debug("converting file", "filename", filename, "bytes", len(raw))
		return conv(filename, raw)
	}

	if m.command.Available() {
		m.logger.Debug("converting file with external command", "filename", filename, "command", m.command.Name())
		return m.command.Convert(ctx, filename, raw)
	}

	return "", fmt.Errorf("%w: no converter for %s", ErrUnavailable, filename)
}

// Verify Markdown implements Extractor
var _ Extractor = (*Markdown)(nil)
