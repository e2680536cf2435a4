// Package conversation keeps a multi-turn transcript on top of a handler.
//
// The system prompt is sent only while the transcript is empty. Every
// successful turn appends the normalized user message (as built by the
// payload builder) and the assistant reply, so the transcript can always be
// replayed as history. A failed turn leaves the transcript untouched.
package conversation

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"

	"github.com/richinex/polyllm/handler"
	"github.com/richinex/polyllm/llm"
	"github.com/richinex/polyllm/payload"
)

// Completer is the part of *handler.Handler a conversation needs.
type Completer interface {
	Complete(ctx context.Context, req handler.Request) (handler.Completion, error)
	Stream(ctx context.Context, req handler.Request) (*handler.Stream, error)
}

// Turn is one user turn.
type Turn struct {
	Text       string
	Files      []payload.FileRef
	Preprocess *bool
	ParseJSON  bool
}

// Conversation is a transcript bound to one model. It is not safe for
// concurrent use.
type Conversation struct {
	id           string
	completer    Completer
	model        string
	systemPrompt string
	temperature  *float64
	history      []llm.Message
	logger       *slog.Logger
}

// Option configures a Conversation.
type Option func(*Conversation)

// WithSystemPrompt sets the system prompt sent on the first turn.
func WithSystemPrompt(prompt string) Option {
	return func(c *Conversation) { c.systemPrompt = prompt }
}

// WithTemperature sets the sampling temperature for every turn.
func WithTemperature(t float64) Option {
	return func(c *Conversation) { c.temperature = &t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Conversation) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty conversation with model.
func New(completer Completer, model string, opts ...Option) *Conversation {
	c := &Conversation{
		id:        uuid.New().String(),
		completer: completer,
		model:     model,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "conversation", "conversation_id", c.id)
	return c
}

// Send runs one blocking turn. With ParseJSON set the parsed value is in
// Completion.Data and the transcript records the raw reply text.
func (c *Conversation) Send(ctx context.Context, turn Turn) (handler.Completion, error) {
	completion, err := c.completer.Complete(ctx, c.request(turn))
	if err != nil {
		return completion, err
	}

	c.appendTurn(completion.Messages, completion.Text)
	return completion, nil
}

// Stream starts a streaming turn. Configuration errors are returned before
// any fragment is produced. The turn is appended once the fragments are read
// to the end without error; breaking early or failing mid-stream appends
// nothing.
func (c *Conversation) Stream(ctx context.Context, turn Turn) (iter.Seq2[string, error], error) {
	s, err := c.completer.Stream(ctx, c.request(turn))
	if err != nil {
		return nil, err
	}

	return func(yield func(string, error) bool) {
		for fragment, err := range s.Fragments() {
			if !yield(fragment, err) {
				return
			}
			if err != nil {
				return
			}
		}
		if s.Done() {
			c.appendTurn(s.Messages(), s.Text())
		}
	}, nil
}

func (c *Conversation) request(turn Turn) handler.Request {
	req := handler.Request{
		Model:       c.model,
		UserText:    turn.Text,
		History:     c.History(),
		Files:       turn.Files,
		Temperature: c.temperature,
		Preprocess:  turn.Preprocess,
		ParseJSON:   turn.ParseJSON,
	}
	if len(c.history) == 0 {
		req.SystemPrompt = c.systemPrompt
	}
	return req
}

// appendTurn records the user message the payload ended with and the reply.
func (c *Conversation) appendTurn(sent []llm.Message, reply string) {
	if len(sent) == 0 {
		return
	}
	user := sent[len(sent)-1]
	c.history = append(c.history, user, llm.AssistantMessage(reply))
	c.logger.Debug("turn recorded", "messages", len(c.history))
}

// History returns a copy of the transcript.
func (c *Conversation) History() []llm.Message {
	out := make([]llm.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Len returns the number of messages in the transcript.
func (c *Conversation) Len() int { return len(c.history) }

// ClearHistory empties the transcript. The next turn sends the system prompt again.
func (c *Conversation) ClearHistory() {
	c.history = nil
}

// SetSystemPrompt replaces the system prompt. It takes effect on the next
// turn sent with an empty transcript.
func (c *Conversation) SetSystemPrompt(prompt string) {
	c.systemPrompt = prompt
}

// SystemPrompt returns the configured system prompt.
func (c *Conversation) SystemPrompt() string { return c.systemPrompt }

// Model returns the model the conversation talks to.
func (c *Conversation) Model() string { return c.model }

// ID returns the conversation's unique id.
func (c *Conversation) ID() string { return c.id }

func (c *Conversation) String() string {
	return fmt.Sprintf("Conversation(id=%s, model=%s, messages=%d)", c.id, c.model, len(c.history))
}
