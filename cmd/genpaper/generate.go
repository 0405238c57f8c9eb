package main

import (
	"fmt"
	"log/slog"
	"os"

	openai "github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/sadiq-codes/genpaper/internal/secrets"
	"github.com/sadiq-codes/genpaper/internal/session"
	"github.com/sadiq-codes/genpaper/internal/stream"
	"github.com/sadiq-codes/genpaper/internal/tokens"
)

// sessions guards one live generation stream per project within this process.
var sessions = session.NewRegistry()

var generateCmd = &cobra.Command{
	Use:   "generate [file]",
	Short: "Reconcile a live token stream against the citation store",
	Long: `Generate consumes a token stream, buffers it to sentence boundaries,
resolves citation placeholders window by window, and writes reconciled text
to stdout as it becomes final.

With --prompt and an OpenAI API key the stream comes from a chat model;
otherwise the named file (or stdin) is replayed in chunks, which exercises
the same reconciliation path offline.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		projectID, _ := cmd.Flags().GetString("project")
		if projectID == "" {
			return fmt.Errorf("--project is required")
		}
		verbose, _ := cmd.Flags().GetBool("verbose")

		sess, err := sessions.Acquire(projectID, session.DefaultTTL)
		if err != nil {
			return fmt.Errorf("project %s: %w", projectID, err)
		}
		defer sessions.Release(sess)

		eng, err := newEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		producer, closeProducer, err := newProducer(cmd, args)
		if err != nil {
			return err
		}
		defer closeProducer()

		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		cfg := eng.cfg.Stream
		if styleName, _ := cmd.Flags().GetString("style"); styleName != "" {
			cfg.Style = styleName
		}

		r := stream.NewReconciler(projectID, eng.orch, cfg, logger, printEvent)
		summary, err := r.Run(cmd.Context(), producer)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "\nResolved %d, failed %d, malformed %d across %d windows\n",
			summary.Resolved, summary.Failed, summary.Malformed, summary.Windows)
		return nil
	},
}

// printEvent forwards reconciler events to the terminal: finalized text to
// stdout, diagnostics to stderr.
func printEvent(e stream.Event) {
	switch e.Type {
	case stream.EventText:
		fmt.Print(e.Text)
	case stream.EventWarning:
		if e.RetryAfter > 0 {
			fmt.Fprintf(os.Stderr, "warning: %s (retry after %s)\n", e.Text, e.RetryAfter)
			return
		}
		fmt.Fprintf(os.Stderr, "warning: %s\n", e.Text)
	case stream.EventFallback:
		fmt.Fprintf(os.Stderr, "warning: %d source(s) degraded to fallback text\n", e.Count)
	case stream.EventError:
		fmt.Fprintf(os.Stderr, "error: %v\n", e.Err)
	}
}

func newProducer(cmd *cobra.Command, args []string) (tokens.Producer, func(), error) {
	prompt, _ := cmd.Flags().GetString("prompt")
	if prompt != "" {
		key := secrets.Value(loadedSecrets, secrets.OpenAIAPIKey, "OPENAI_API_KEY")
		if key == "" {
			return nil, nil, fmt.Errorf("--prompt requires an OpenAI API key (.secrets/%s or OPENAI_API_KEY)", secrets.OpenAIAPIKey)
		}
		model, _ := cmd.Flags().GetString("model")
		p, err := tokens.NewOpenAIProducer(cmd.Context(), openai.NewClient(key), model, prompt)
		if err != nil {
			return nil, nil, fmt.Errorf("opening completion stream: %w", err)
		}
		return p, func() { p.Close() }, nil
	}

	if len(args) == 0 || args[0] == "-" {
		return tokens.NewReaderProducer(os.Stdin), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", args[0], err)
	}
	return tokens.NewReaderProducer(f), func() { f.Close() }, nil
}

func init() {
	generateCmd.Flags().String("project", "", "project identifier scoping the citation store")
	generateCmd.Flags().String("style", "", "inline citation style: numeric or author-year")
	generateCmd.Flags().String("prompt", "", "generation prompt; streams from the OpenAI API")
	generateCmd.Flags().String("model", openai.GPT4oMini, "model identifier for --prompt")
	generateCmd.Flags().Bool("verbose", false, "log window decisions to stderr")

	rootCmd.AddCommand(generateCmd)
}
