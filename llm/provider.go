// Package llm provides LLM provider abstractions.
//
// LLM Provider interface - the abstract interface for LLM providers.
// Each provider implementation hides:
// - API client initialization and authentication
// - Translation from the portable message shape to the vendor's shape
// - Streaming transport details
// - Provider-specific error handling

package llm

import (
	"context"
)

// Provider defines the abstract interface for LLM providers.
// Implementations hide provider-specific details while exposing
// a consistent interface for chat completions. The model is chosen
// per request so a single provider can serve several models.
type Provider interface {
	// Name returns the provider name (for logging/debugging).
	Name() string

	// Generate sends a chat completion request and waits for the full reply.
	Generate(ctx context.Context, req Request) (Response, error)

	// Stream opens a streaming chat completion. The caller owns the returned
	// stream and must Close it, whether or not it was read to the end.
	Stream(ctx context.Context, req Request) (TextStream, error)

	// ListModels lists the models the provider currently serves.
	ListModels(ctx context.Context) ([]ModelDescriptor, error)
}

// TextStream is a pull-based sequence of text fragments backed by an open
// transport. Next blocks until the next fragment is available.
type TextStream interface {
	// Next advances to the next fragment. It returns false at the end of
	// the stream or on error.
	Next() bool

	// Current returns the fragment Next advanced to.
	Current() string

	// Err returns the error that stopped the stream, if any.
	Err() error

	// Usage returns token usage once reported by the provider, or nil.
	Usage() *TokenUsage

	// Close releases the underlying transport. It is safe to call more than once.
	Close() error
}
