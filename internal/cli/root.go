// Package cli implements the insight command line client.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/insight/internal/apiclient"
	"github.com/MikeSquared-Agency/insight/internal/config"
	"github.com/MikeSquared-Agency/insight/internal/identity"
	"github.com/MikeSquared-Agency/insight/internal/logging"
)

var version = "dev"

// app carries flag values and the clients built from them before each command runs.
type app struct {
	apiURL      string
	sessionFile string
	timeout     time.Duration
	logLevel    string
	provider    string
	fallback    bool

	client   *apiclient.Client
	identity *identity.Identity
	storage  *identity.FileStorage
}

// NewRootCommand builds the command tree with defaults from the environment.
func NewRootCommand() *cobra.Command {
	cfg := config.LoadClient()
	a := &app{}

	root := &cobra.Command{
		Use:   "insight",
		Short: "Ask natural-language questions about your datasets",
		Long: `insight sends questions about uploaded datasets to the Data Insight
Generator API and keeps a per-session history of the answers.

Quick Start:
  insight dataset upload sales.csv       # Upload a dataset
  insight ask "Which product sells best?" --dataset <id>
  insight chat --dataset <id>           # Interactive session
  insight history list                  # Show previous answers`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.apiURL, "api-url", cfg.APIURL, "Base URL of the insight API")
	flags.StringVar(&a.sessionFile, "session-file", cfg.SessionFile, "Where the session token is kept")
	flags.DurationVar(&a.timeout, "timeout", cfg.Timeout, "Per-call timeout")
	flags.StringVar(&a.logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flags.StringVarP(&a.provider, "provider", "p", cfg.Provider, "Primary LLM provider (gemini, deepseek)")
	flags.BoolVar(&a.fallback, "fallback", cfg.Fallback, "Retry on the other provider when the primary fails")

	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newAskCommand(a),
		newChatCommand(a),
		newHistoryCommand(a),
		newDatasetCommand(a),
		newSessionCommand(a),
		newHealthCommand(a),
	)
	return root
}

func (a *app) setup(stderr io.Writer) error {
	logging.Setup(a.logLevel, "text", stderr)
	if a.timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}
	a.client = apiclient.New(a.apiURL, a.timeout)
	a.storage = identity.NewFileStorage(a.sessionFile)
	a.identity = identity.New(a.storage)
	return nil
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	_ = godotenv.Load()
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}
