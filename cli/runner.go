// Command execution for CLI commands.
//
// Information Hiding:
// - Handler and provider setup hidden
// - Request assembly from flags hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/richinex/polyllm/budget"
	"github.com/richinex/polyllm/config"
	"github.com/richinex/polyllm/conversation"
	"github.com/richinex/polyllm/handler"
	"github.com/richinex/polyllm/llm"
	"github.com/richinex/polyllm/payload"
)

// Options holds CLI execution options.
type Options struct {
	Provider     string
	Model        string
	SystemPrompt string
	Files        []string
	Preprocess   *bool
	JSON         bool
	Temperature  *float64
	Verbose      bool
}

// Runner executes CLI commands against a handler.
type Runner struct {
	Handler  *handler.Handler
	Settings config.Settings
	In       io.Reader
	Out      io.Writer
	Err      io.Writer
	logger   *slog.Logger
}

// NewRunner loads settings for opts.Provider and builds the handler.
func NewRunner(opts Options) (*Runner, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return nil, err
	}

	level := settings.Log.Level
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	h, err := settings.NewHandler(logger)
	if err != nil {
		return nil, err
	}

	return &Runner{
		Handler:  h,
		Settings: settings,
		In:       os.Stdin,
		Out:      os.Stdout,
		Err:      os.Stderr,
		logger:   logger,
	}, nil
}

func (r *Runner) model(opts Options) string {
	if opts.Model != "" {
		return opts.Model
	}
	return r.Settings.ModelID()
}

func (r *Runner) temperature(opts Options) *float64 {
	if opts.Temperature != nil {
		return opts.Temperature
	}
	t := r.Settings.LLM.Temperature
	return &t
}

func (r *Runner) request(text string, opts Options) handler.Request {
	return handler.Request{
		Model:        r.model(opts),
		SystemPrompt: opts.SystemPrompt,
		UserText:     text,
		Files:        fileRefs(opts.Files),
		Temperature:  r.temperature(opts),
		Preprocess:   opts.Preprocess,
		ParseJSON:    opts.JSON,
	}
}

// Ask sends one blocking request and prints the reply.
func (r *Runner) Ask(ctx context.Context, text string, opts Options) error {
	completion, err := r.Handler.Complete(ctx, r.request(text, opts))
	if err != nil {
		return err
	}

	if opts.JSON {
		if err := r.printJSON(completion.Data); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(r.Out, completion.Text)
	}

	if opts.Verbose {
		r.printUsage(completion.Model, completion.Usage)
	}
	return nil
}

// Stream prints fragments as they arrive.
func (r *Runner) Stream(ctx context.Context, text string, opts Options) error {
	s, err := r.Handler.Stream(ctx, r.request(text, opts))
	if err != nil {
		return err
	}

	for fragment, err := range s.Fragments() {
		if err != nil {
			fmt.Fprintln(r.Out)
			return err
		}
		fmt.Fprint(r.Out, fragment)
	}
	fmt.Fprintln(r.Out)

	if opts.Verbose {
		r.printUsage(s.Model(), s.Usage())
	}
	return nil
}

// Chat runs an interactive conversation. Lines starting with a slash are
// commands: /clear, /history and /exit.
func (r *Runner) Chat(ctx context.Context, opts Options) error {
	convOpts := []conversation.Option{conversation.WithLogger(r.logger)}
	if opts.SystemPrompt != "" {
		convOpts = append(convOpts, conversation.WithSystemPrompt(opts.SystemPrompt))
	}
	convOpts = append(convOpts, conversation.WithTemperature(*r.temperature(opts)))
	conv := conversation.New(r.Handler, r.model(opts), convOpts...)

	fmt.Fprintf(r.Out, "Chat with %s. Type /exit to quit.\n\n", conv.Model())

	scanner := bufio.NewScanner(r.In)
	for {
		fmt.Fprint(r.Out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit", "exit", "quit":
			return nil
		case "/clear":
			conv.ClearHistory()
			fmt.Fprintf(r.Out, "History cleared.\n\n")
			continue
		case "/history":
			r.printHistory(conv.History())
			continue
		}

		fragments, err := conv.Stream(ctx, conversation.Turn{Text: input})
		if err != nil {
			fmt.Fprintf(r.Err, "\nError: %v\n\n", err)
			continue
		}

		fmt.Fprintln(r.Out)
		for fragment, err := range fragments {
			if err != nil {
				fmt.Fprintf(r.Err, "\nError: %v\n", err)
				break
			}
			fmt.Fprint(r.Out, fragment)
		}
		fmt.Fprint(r.Out, "\n\n")
	}

	return scanner.Err()
}

// Models lists catalog models, or asks the provider when remote is set.
func (r *Runner) Models(ctx context.Context, provider string, remote bool) error {
	providers := []string{provider}
	if provider == "" {
		providers = r.Handler.Providers()
	}

	for _, name := range providers {
		var (
			models []llm.ModelDescriptor
			err    error
		)
		if remote {
			models, err = r.Handler.ListRemoteModels(ctx, name)
			if err != nil {
				return err
			}
		} else {
			models = r.Handler.ListModels(name)
		}

		fmt.Fprintf(r.Out, "%s:\n", name)
		if len(models) == 0 {
			fmt.Fprintln(r.Out, "  (none)")
		}
		for _, m := range models {
			if m.DisplayName != "" {
				fmt.Fprintf(r.Out, "  %s/%s  %s\n", name, m.ID, m.DisplayName)
			} else {
				fmt.Fprintf(r.Out, "  %s/%s\n", name, m.ID)
			}
		}
	}
	return nil
}

// Budget routes the request through a priority tracker repeat times and
// prints each reply followed by the usage summary. The tracker lives for one
// invocation, so repeats are how a run reaches the lower-priority models.
// An exhausted budget ends the run early.
func (r *Runner) Budget(ctx context.Context, text, prioritiesPath string, repeat int, opts Options) error {
	if prioritiesPath == "" {
		prioritiesPath = r.Settings.Budget.PrioritiesPath
	}
	if prioritiesPath == "" {
		return fmt.Errorf("--priorities or LLM_PRIORITIES_PATH is required")
	}
	if repeat < 1 {
		repeat = 1
	}

	priorities, err := budget.LoadPriorities(prioritiesPath)
	if err != nil {
		return err
	}
	tracker, err := budget.NewTracker(priorities, r.logger)
	if err != nil {
		return err
	}
	router := budget.NewRouter(r.Handler, tracker)
	req := r.request(text, opts)

	for i := 0; i < repeat; i++ {
		completion, err := router.Complete(ctx, req)
		if errors.Is(err, budget.ErrBudgetExhausted) && i > 0 {
			fmt.Fprintf(r.Out, "All budgets exhausted after %d requests.\n\n", i)
			break
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(r.Out, "[%s]\n%s\n\n", completion.Model, completion.Text)
	}

	r.printSummary(tracker.Summary())
	return nil
}

func (r *Runner) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode reply: %w", err)
	}
	fmt.Fprintln(r.Out, string(out))
	return nil
}

func (r *Runner) printHistory(history []llm.Message) {
	if len(history) == 0 {
		fmt.Fprintf(r.Out, "(empty)\n\n")
		return
	}
	for _, msg := range history {
		fmt.Fprintf(r.Out, "%s: %s\n", msg.Role, truncateString(msg.Text(), maxHistoryLen))
	}
	fmt.Fprintln(r.Out)
}

func (r *Runner) printUsage(model string, usage *llm.TokenUsage) {
	if usage == nil {
		fmt.Fprintf(r.Err, "\n%s: no token usage reported\n", model)
		return
	}
	fmt.Fprintf(r.Err, "\nToken Usage (%s):\n", model)
	fmt.Fprintf(r.Err, "  Prompt tokens: %d\n", usage.PromptTokens)
	fmt.Fprintf(r.Err, "  Completion tokens: %d\n", usage.CompletionTokens)
	fmt.Fprintf(r.Err, "  Total tokens: %d\n", usage.TotalTokens)
}

func (r *Runner) printSummary(s budget.Summary) {
	fmt.Fprintf(r.Out, "Budget (%s):\n", s.Mode)
	for _, m := range s.Models {
		fmt.Fprintf(r.Out, "  %d. %s  %d/%d tokens (%.2f%%), %d remaining\n",
			m.Priority, m.Model, m.Used, m.Budget, m.Percentage, m.Remaining)
	}
}

func fileRefs(paths []string) []payload.FileRef {
	refs := make([]payload.FileRef, 0, len(paths))
	for _, p := range paths {
		refs = append(refs, payload.Path(p))
	}
	return refs
}

const maxHistoryLen = 200

// truncateString truncates a string to maxLen runes, preserving UTF-8 boundaries.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
