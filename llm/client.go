// LLMClient - Simple wrapper around providers.

package llm

import (
	"context"
	"strings"
)

// Client wraps a Provider with a simple interface.
type Client struct {
	provider Provider
}

// NewClient creates a new LLM client from a provider.
func NewClient(provider Provider) *Client {
	return &Client{provider: provider}
}

// Collect streams a completion and concatenates the fragments.
// The stream is closed before returning.
func (c *Client) Collect(ctx context.Context, req Request) (Response, error) {
	stream, err := c.provider.Stream(ctx, req)
	if err != nil {
		return Response{}, err
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		sb.WriteString(stream.Current())
	}
	if err := stream.Err(); err != nil {
		return Response{}, err
	}
	return Response{Content: sb.String(), Usage: stream.Usage()}, nil
}

// Provider returns the underlying provider.
func (c *Client) Provider() Provider {
	return c.provider
}
