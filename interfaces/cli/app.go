// Package cli provides the db2i command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	db2igo "github.com/ibmi-agents/db2i-go"
	"github.com/ibmi-agents/db2i-go/infrastructure/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Version information set at build time.
var (
	Version   = db2igo.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader

	configPath string
	schema     string

	settings  *config.Settings
	connector Connector
	logCloser io.Closer
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		stdin:     os.Stdin,
		connector: Connect,
	}

	app.root = &cobra.Command{
		Use:   "db2i",
		Short: "Db2 for i tools for LLM agents",
		Long: `db2i exposes IBM i system services and read-only Db2 for i SQL as tools.

It serves them to MCP clients over stdio, runs them directly from the
command line or an interactive shell, and executes the built-in and
configured workflows on demand or on a cron schedule.

Connection settings come from the environment or a .env file
(HOST, DB_USER, PASSWORD, DB_PORT, SCHEMA).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app.logCloser != nil {
				_ = app.logCloser.Close()
				app.logCloser = nil
			}
		},
	}

	app.root.PersistentFlags().StringVarP(&app.configPath, "config", "c", "", "Catalog file (default: $AGENTS_CONFIG)")
	app.root.PersistentFlags().StringVar(&app.schema, "schema", "", "Schema to use (default: $SCHEMA)")

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newServeCmd(),
		app.newToolsCmd(),
		app.newCallCmd(),
		app.newAgentsCmd(),
		app.newTeamsCmd(),
		app.newWorkflowsCmd(),
		app.newWorkflowCmd(),
		app.newValidateCmd(),
		app.newScheduleCmd(),
		app.newHealthCmd(),
		app.newSessionsCmd(),
		app.newNotesCmd(),
		app.newCacheCmd(),
		app.newShellCmd(),
		app.newSchemaCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// WithInput sets the reader used by the shell and approval prompts.
func (a *App) WithInput(stdin io.Reader) *App {
	a.stdin = stdin
	a.root.SetIn(stdin)
	return a
}

// WithSettings uses s instead of reading the environment.
func (a *App) WithSettings(s *config.Settings) *App {
	a.settings = s
	return a
}

// WithConnector replaces the IBM i connector.
func (a *App) WithConnector(c Connector) *App {
	a.connector = c
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

// setup loads settings and installs the console logger.
func (a *App) setup() error {
	if a.settings == nil {
		s, err := config.LoadSettings()
		if err != nil {
			return err
		}
		a.settings = s
	}
	if a.schema != "" {
		a.settings.Schema = a.schema
	}
	if a.configPath == "" {
		a.configPath = a.settings.AgentsConfig
	}

	closer, err := logging.Init(logging.Config{
		Enabled: a.settings.EnableLogging,
		Level:   a.settings.LogLevel,
		Format:  "console",
		Output:  a.stderr,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.logCloser = closer
	return nil
}

// newVersionCmd creates the version command.
func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "db2i version %s\n", Version)
			_, _ = fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			_, _ = fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}
