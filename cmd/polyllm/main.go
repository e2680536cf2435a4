// Package main provides the polyllm CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/polyllm/cli"
)

var (
	// Global flags
	provider string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "polyllm",
		Short: "One call shape over OpenAI, Anthropic, Gemini, DeepSeek, OpenRouter and Ollama",
		Long: `A CLI for sending prompts and files to hosted and local language models.

Models are named "provider/model" (openai/gpt-4o, anthropic/claude-sonnet-4-20250514,
ollama/llama3.2). Files are attached natively when the model can read them and
converted to markdown locally otherwise.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "Default provider (openai, anthropic, deepseek, gemini, openrouter, ollama)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs and token usage")

	rootCmd.AddCommand(askCmd(ctx))
	rootCmd.AddCommand(streamCmd(ctx))
	rootCmd.AddCommand(chatCmd(ctx))
	rootCmd.AddCommand(modelsCmd(ctx))
	rootCmd.AddCommand(budgetCmd(ctx))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requestFlags are shared by every command that sends a prompt.
type requestFlags struct {
	model        string
	systemPrompt string
	files        []string
	preprocess   bool
	noPreprocess bool
	json         bool
	temperature  float64
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.model, "model", "", `Model as "provider/model" (default from <PROVIDER>_MODEL)`)
	cmd.Flags().StringVarP(&f.systemPrompt, "system", "s", "", "System prompt")
	cmd.Flags().StringArrayVarP(&f.files, "file", "f", nil, "File to attach (repeatable)")
	cmd.Flags().BoolVar(&f.preprocess, "preprocess", false, "Always convert files to text locally")
	cmd.Flags().BoolVar(&f.noPreprocess, "no-preprocess", false, "Never convert files locally (fails for models that need it)")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", 0.2, "Sampling temperature (default from LLM_TEMPERATURE)")
	cmd.MarkFlagsMutuallyExclusive("preprocess", "no-preprocess")
}

func (f *requestFlags) options(cmd *cobra.Command) cli.Options {
	opts := cli.Options{
		Provider:     provider,
		Model:        f.model,
		SystemPrompt: f.systemPrompt,
		Files:        f.files,
		JSON:         f.json,
		Verbose:      verbose,
	}
	switch {
	case f.preprocess:
		v := true
		opts.Preprocess = &v
	case f.noPreprocess:
		v := false
		opts.Preprocess = &v
	}
	if cmd.Flags().Changed("temperature") {
		t := f.temperature
		opts.Temperature = &t
	}
	return opts
}

func askCmd(ctx context.Context) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Send one prompt and print the reply",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd)
			r, err := cli.NewRunner(opts)
			if err != nil {
				return err
			}
			return r.Ask(ctx, firstArg(args), opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.json, "json", false, "Parse the reply as JSON and pretty-print it")

	return cmd
}

func streamCmd(ctx context.Context) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "stream [text]",
		Short: "Send one prompt and print the reply as it arrives",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd)
			r, err := cli.NewRunner(opts)
			if err != nil {
				return err
			}
			return r.Stream(ctx, firstArg(args), opts)
		},
	}

	flags.register(cmd)

	return cmd
}

func chatCmd(ctx context.Context) *cobra.Command {
	var model, systemPrompt string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Start an interactive conversation. The transcript lives in memory.

Commands:
  /history  show the transcript
  /clear    start over (the system prompt is sent again)
  /exit     quit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := cli.Options{
				Provider:     provider,
				Model:        model,
				SystemPrompt: systemPrompt,
				Verbose:      verbose,
			}
			r, err := cli.NewRunner(opts)
			if err != nil {
				return err
			}
			return r.Chat(ctx, opts)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", `Model as "provider/model"`)
	cmd.Flags().StringVarP(&systemPrompt, "system", "s", "", "System prompt")

	return cmd
}

func modelsCmd(ctx context.Context) *cobra.Command {
	var remote bool

	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List known models",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cli.NewRunner(cli.Options{Provider: provider, Verbose: verbose})
			if err != nil {
				return err
			}
			return r.Models(ctx, firstArg(args), remote)
		},
	}

	cmd.Flags().BoolVar(&remote, "remote", false, "Ask the provider instead of the built-in catalog")

	return cmd
}

func budgetCmd(ctx context.Context) *cobra.Command {
	var flags requestFlags
	var prioritiesPath string
	var repeat int

	cmd := &cobra.Command{
		Use:   "budget [text]",
		Short: "Route a prompt to the highest-priority model still under budget",
		Long: `Route a prompt to the highest-priority model still under its token budget
and print the usage summary. Budgets are tracked for a single run; use
--repeat to send the prompt several times and watch the router fall back
once a model's budget is spent. Priorities are read from a YAML or JSON file:

  - model: openai/gpt-4o-mini
    budget: 100000
    priority: 1
  - model: anthropic/claude-3-5-haiku-20241022
    budget: 50000
    priority: 2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options(cmd)
			r, err := cli.NewRunner(opts)
			if err != nil {
				return err
			}
			return r.Budget(ctx, firstArg(args), prioritiesPath, repeat, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&prioritiesPath, "priorities", "", "Priorities file (default LLM_PRIORITIES_PATH)")
	cmd.Flags().IntVarP(&repeat, "repeat", "n", 1, "Send the prompt this many times against the same budgets")

	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
