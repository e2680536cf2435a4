// Package budget selects models by priority and accounts token usage
// against per-model budgets.
package budget

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
)

// ErrBudgetExhausted is returned when every configured model has used up
// its budget.
var ErrBudgetExhausted = errors.New("all model budgets exhausted")

// ModelPriority is one candidate model. Lower Priority is tried first.
type ModelPriority struct {
	Model    string `json:"model" yaml:"model"`
	Budget   int64  `json:"budget" yaml:"budget"`
	Priority int    `json:"priority" yaml:"priority"`
}

// ModelUsage is one row of a Summary.
type ModelUsage struct {
	Model      string  `json:"model"`
	Priority   int     `json:"priority"`
	Used       int64   `json:"used_tokens"`
	Budget     int64   `json:"budget"`
	Remaining  int64   `json:"remaining"`
	Percentage float64 `json:"percentage"`
}

// Summary reports usage for every configured model in priority order.
type Summary struct {
	Mode   string       `json:"mode"`
	Models []ModelUsage `json:"models"`
}

// Tracker holds cumulative usage per configured model. It is not safe for
// concurrent use.
type Tracker struct {
	priorities []ModelPriority
	usage      map[string]int64
	logger     *slog.Logger
}

// NewTracker creates a tracker. Priorities are sorted stably, so equal
// priorities keep their input order.
func NewTracker(priorities []ModelPriority, logger *slog.Logger) (*Tracker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sorted := make([]ModelPriority, len(priorities))
	copy(sorted, priorities)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	usage := make(map[string]int64, len(sorted))
	for _, p := range sorted {
		if p.Model == "" {
			return nil, fmt.Errorf("budget: model priority without a model")
		}
		if p.Budget < 0 {
			return nil, fmt.Errorf("budget: negative budget %d for %s", p.Budget, p.Model)
		}
		if _, dup := usage[p.Model]; dup {
			return nil, fmt.Errorf("budget: duplicate model %s", p.Model)
		}
		usage[p.Model] = 0
	}

	t := &Tracker{
		priorities: sorted,
		usage:      usage,
		logger:     logger.With("component", "budget"),
	}
	t.logger.Debug("tracker initialized", "models", t.Models())
	return t, nil
}

// SelectModel returns the highest-priority model whose usage is below its
// budget. The boolean is false when all budgets are exhausted.
func (t *Tracker) SelectModel() (string, bool) {
	for _, p := range t.priorities {
		used := t.usage[p.Model]
		if used < p.Budget {
			t.logger.Debug("selected model",
				"model", p.Model,
				"priority", p.Priority,
				"used", used,
				"budget", p.Budget)
			return p.Model, true
		}
	}
	t.logger.Warn("all model budgets exhausted")
	return "", false
}

// RecordUsage adds tokens to model's total. Unknown models are ignored with
// a warning.
func (t *Tracker) RecordUsage(model string, tokens int64) {
	if _, ok := t.usage[model]; !ok {
		t.logger.Warn("usage for unknown model ignored", "model", model, "known", t.Models())
		return
	}
	t.usage[model] += tokens
	t.logger.Debug("recorded usage", "model", model, "tokens", tokens, "total", t.usage[model])
}

// Used returns the tokens recorded for model.
func (t *Tracker) Used(model string) int64 {
	return t.usage[model]
}

// Summary reports per-model usage in priority order.
func (t *Tracker) Summary() Summary {
	s := Summary{Mode: "priority", Models: make([]ModelUsage, 0, len(t.priorities))}
	for _, p := range t.priorities {
		used := t.usage[p.Model]
		var pct float64
		if p.Budget > 0 {
			pct = math.Round(float64(used)/float64(p.Budget)*100*100) / 100
		}
		s.Models = append(s.Models, ModelUsage{
			Model:      p.Model,
			Priority:   p.Priority,
			Used:       used,
			Budget:     p.Budget,
			Remaining:  p.Budget - used,
			Percentage: pct,
		})
	}
	return s
}

// Reset zeroes every counter and keeps the configuration.
func (t *Tracker) Reset() {
	for model := range t.usage {
		t.usage[model] = 0
	}
	t.logger.Info("reset all token usage counters")
}

// TotalUsage sums usage across all models.
func (t *Tracker) TotalUsage() int64 {
	var total int64
	for _, used := range t.usage {
		total += used
	}
	return total
}

// TotalBudget sums budgets across all models.
func (t *Tracker) TotalBudget() int64 {
	var total int64
	for _, p := range t.priorities {
		total += p.Budget
	}
	return total
}

// Models returns the configured models in priority order.
func (t *Tracker) Models() []string {
	models := make([]string, len(t.priorities))
	for i, p := range t.priorities {
		models[i] = p.Model
	}
	return models
}

func (t *Tracker) String() string {
	return fmt.Sprintf("TokenTracker(models=%d, used=%d/%d)", len(t.priorities), t.TotalUsage(), t.TotalBudget())
}
