// Package extract converts file bytes into markdown text for models that
// cannot read attachments natively.
package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when no extraction engine can handle a file,
	// or the engine is not installed.
	ErrUnavailable = errors.New("text extraction unavailable")

	// ErrFailed is returned when an engine could not parse a file.
	ErrFailed = errors.New("text extraction failed")
)

// Extractor converts a base64-encoded file into markdown.
type Extractor interface {
	Extract(ctx context.Context, filename, base64Data string) (string, error)
}

// Func adapts a function to Extractor.
type Func func(ctx context.Context, filename, base64Data string) (string, error)

// Extract calls f.
func (f Func) Extract(ctx context.Context, filename, base64Data string) (string, error) {
	return f(ctx, filename, base64Data)
}

// Unavailable returns an Extractor that always fails with ErrUnavailable.
func Unavailable() Extractor {
	return Func(func(_ context.Context, filename, _ string) (string, error) {
		return "", fmt.Errorf("%w: no extractor configured for %s", ErrUnavailable, filename)
	})
}

func decode(filename, base64Data string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid base64: %v", ErrFailed, filename, err)
	}
	return raw, nil
}

func failed(filename string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrFailed, filename, err)
}
