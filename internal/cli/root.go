// Package cli provides the command-line interface for rxrag.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/rxrag/internal/app"
	"github.com/raphaelgruber/rxrag/internal/client"
	"github.com/raphaelgruber/rxrag/internal/config"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

// env is the state shared by all subcommands of one invocation.
type env struct {
	// Global flags
	verbose   bool
	serverURL string
	remote    bool

	cfg        config.Config
	logger     *slog.Logger
	logCleanup func() error
	opts       []app.Option

	// Lazily opened local pipeline
	app *app.App
}

// openApp returns the local pipeline, opening the catalog on first use.
func (e *env) openApp(ctx context.Context) (*app.App, error) {
	if e.app != nil {
		return e.app, nil
	}
	a, err := app.New(ctx, e.cfg, e.logger, e.opts...)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	e.app = a
	return a, nil
}

// client returns a server client for --remote commands.
func (e *env) client() *client.Client {
	return client.New(e.serverURL)
}

func (e *env) close() {
	if e.app != nil {
		if err := e.app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close catalog: %v\n", err)
		}
		e.app = nil
	}
	if e.logCleanup != nil {
		_ = e.logCleanup()
		e.logCleanup = nil
	}
}

// newRootCmd builds the command tree over e.
func newRootCmd(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:   "rxrag",
		Short: "AI pharmacist over patient records and a drug catalog",
		Long: `rxrag answers medication questions from a patient's FHIR record and a local
drug knowledge catalog.

Each question is routed by an LLM to either a patient record lookup or a drug
catalog lookup, enriched with catalog knowledge for the medications it mentions,
and answered by an AI pharmacist.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip setup for version and help commands
			if cmd.Name() == "version" || cmd.Name() == "help" {
				return nil
			}

			e.cfg = config.Load()

			// Keep the terminal quiet unless asked; the log file still gets warnings.
			level := slog.LevelWarn
			if e.verbose {
				level = slog.LevelDebug
			}
			e.logger, e.logCleanup = config.SetupLogger(e.cfg.LogFile, level)
			return nil
		},
	}

	// Global flags
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&e.remote, "remote", false, "send questions to a running rxrag server")
	root.PersistentFlags().StringVar(&e.serverURL, "server", "", "server URL (default $RXRAG_SERVER_URL or "+client.DefaultEndpoint+")")

	// Add subcommands
	root.AddCommand(newAskCmd(e))
	root.AddCommand(newChatCmd(e))
	root.AddCommand(newDrugCmd(e))
	root.AddCommand(newRecordsCmd(e))
	root.AddCommand(newCatalogCmd(e))
	root.AddCommand(newStatsCmd(e))
	root.AddCommand(newSessionCmd(e))
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI with process arguments.
func Execute() error {
	return ExecuteContext(context.Background(), os.Args[1:], os.Stdin, os.Stdout)
}

// ExecuteContext runs the CLI with explicit arguments and streams. Options
// are passed to the local pipeline, which lets tests replace the LLM backend.
func ExecuteContext(ctx context.Context, args []string, in io.Reader, out io.Writer, opts ...app.Option) error {
	e := &env{opts: opts}
	defer e.close()

	root := newRootCmd(e)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}
