// Package llmtest provides an in-memory llm.Provider for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/richinex/polyllm/llm"
)

// Provider is a scripted llm.Provider. Generate returns Reply (or the next of
// Replies), Stream yields Fragments. Every request is recorded in Calls.
type Provider struct {
	ProviderName string
	Reply        string
	Replies      []string
	Fragments    []string
	Usage        *llm.TokenUsage
	Error        error // returned by Generate and by Stream's open
	StreamError  error // reported after all fragments
	Models       []llm.ModelDescriptor

	mu     sync.Mutex
	Calls  []llm.Request
	opened int
	closed int
}

// Name implements llm.Provider.
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "fake"
	}
	return p.ProviderName
}

// Generate implements llm.Provider.
func (p *Provider) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, req)
	if p.Error != nil {
		return llm.Response{}, p.Error
	}

	reply := p.Reply
	if len(p.Replies) > 0 {
		reply, p.Replies = p.Replies[0], p.Replies[1:]
	}
	if reply == "" && len(p.Fragments) > 0 {
		reply = strings.Join(p.Fragments, "")
	}
	return llm.Response{Content: reply, Usage: p.Usage}, nil
}

// Stream implements llm.Provider.
func (p *Provider) Stream(_ context.Context, req llm.Request) (llm.TextStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Calls = append(p.Calls, req)
	if p.Error != nil {
		return nil, p.Error
	}
	p.opened++
	return &stream{provider: p, fragments: append([]string(nil), p.Fragments...), pos: -1}, nil
}

// ListModels implements llm.Provider.
func (p *Provider) ListModels(context.Context) ([]llm.ModelDescriptor, error) {
	if p.Error != nil {
		return nil, p.Error
	}
	return p.Models, nil
}

// Opened returns how many streams were opened.
func (p *Provider) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// Closed returns how many streams were closed.
func (p *Provider) Closed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// LastCall returns the most recent request.
func (p *Provider) LastCall() llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Calls) == 0 {
		return llm.Request{}
	}
	return p.Calls[len(p.Calls)-1]
}

type stream struct {
	provider  *Provider
	fragments []string
	pos       int
	closed    bool
}

func (s *stream) Next() bool {
	if s.closed || s.pos+1 >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *stream) Current() string { return s.fragments[s.pos] }

func (s *stream) Err() error {
	if s.pos+1 >= len(s.fragments) {
		return s.provider.StreamError
	}
	return nil
}

func (s *stream) Usage() *llm.TokenUsage {
	if s.pos+1 >= len(s.fragments) {
		return s.provider.Usage
	}
	return nil
}

func (s *stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.provider.mu.Lock()
	s.provider.closed++
	s.provider.mu.Unlock()
	return nil
}

// Verify Provider implements llm.Provider
var _ llm.Provider = (*Provider)(nil)
