package handler

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/richinex/polyllm/llm"
)

// Stream is a single-use streaming completion. The provider transport opens
// on the first pull from Fragments and closes when iteration stops.
type Stream struct {
	ctx      context.Context
	prepared Prepared

	consumed bool
	done     bool
	text     strings.Builder
	usage    *llm.TokenUsage
	err      error
}

// Stream prepares a streaming completion. Configuration and input errors are
// returned here, before any network call.
func (h *Handler) Stream(ctx context.Context, req Request) (*Stream, error) {
	prepared, err := h.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("prepared stream",
		"model", prepared.ModelID,
		"messages", len(prepared.Messages),
		"preprocess", prepared.Preprocess)
	return &Stream{ctx: ctx, prepared: prepared}, nil
}

// Fragments yields text fragments as the provider sends them. A transport
// error is yielded once as the final element. Breaking out of the loop
// closes the transport. Iterating a second time yields ErrStreamConsumed.
func (s *Stream) Fragments() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if s.consumed {
			yield("", ErrStreamConsumed)
			return
		}
		s.consumed = true

		ts, err := s.prepared.Provider.Stream(s.ctx, s.prepared.Request)
		if err != nil {
			s.err = fmt.Errorf("%s: %w", s.prepared.ModelID, err)
			yield("", s.err)
			return
		}
		defer ts.Close()

		for ts.Next() {
			fragment := ts.Current()
			s.text.WriteString(fragment)
			if !yield(fragment, nil) {
				return
			}
		}
		s.usage = ts.Usage()

		if err := ts.Err(); err != nil {
			s.err = fmt.Errorf("%s: %w", s.prepared.ModelID, err)
			yield("", s.err)
			return
		}
		s.done = true
	}
}

// Text returns the text received so far.
func (s *Stream) Text() string { return s.text.String() }

// Usage returns token usage once the stream is exhausted, if reported.
func (s *Stream) Usage() *llm.TokenUsage { return s.usage }

// Messages returns the payload sent to the provider.
func (s *Stream) Messages() []llm.Message { return s.prepared.Messages }

// Model returns the "provider/model" id the stream targets.
func (s *Stream) Model() string { return s.prepared.ModelID }

// Done reports whether the stream was read to the end without error.
func (s *Stream) Done() bool { return s.done }

// Err returns the transport error that ended the stream, if any.
func (s *Stream) Err() error { return s.err }
