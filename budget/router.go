package budget

import (
	"context"
	"fmt"

	"github.com/richinex/polyllm/handler"
)

// Completer is the part of *handler.Handler the router needs.
type Completer interface {
	Complete(ctx context.Context, req handler.Request) (handler.Completion, error)
}

// Router sends each request to the model the tracker selects and records
// the reported usage against it.
type Router struct {
	completer Completer
	tracker   *Tracker
}

// NewRouter creates a router over completer.
func NewRouter(completer Completer, tracker *Tracker) *Router {
	return &Router{completer: completer, tracker: tracker}
}

// Complete overrides req.Model with the selected model. Usage is recorded
// whenever the provider reported it, including replies that failed JSON
// parsing.
func (r *Router) Complete(ctx context.Context, req handler.Request) (handler.Completion, error) {
	model, ok := r.tracker.SelectModel()
	if !ok {
		return handler.Completion{}, ErrBudgetExhausted
	}
	req.Model = model

	completion, err := r.completer.Complete(ctx, req)
	if completion.Usage != nil {
		r.tracker.RecordUsage(model, int64(completion.Usage.TotalTokens))
	}
	if err != nil {
		return completion, fmt.Errorf("budget: %s: %w", model, err)
	}
	return completion, nil
}

// Tracker returns the router's tracker.
func (r *Router) Tracker() *Tracker { return r.tracker }
