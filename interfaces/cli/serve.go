package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
	"github.com/ibmi-agents/db2i-go/infrastructure/mcp"
	mw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
)

type serveOptions struct {
	catalog      bool
	notesBackend string
	corrective   bool
}

// newServeCmd creates the serve command.
func (a *App) newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve tools to an MCP client over stdio",
		Long: `Start an MCP server on stdin/stdout.

By default the server exposes list-usable-tables, describe-table,
run-sql-query and add-note over the configured schema. With --catalog it
exposes every IBM i services tool instead, each call going through the
middleware chain.

Logs never go to stdout, which carries the protocol. They are written to
LOG_DIR when ENABLE_LOGGING is true.

Examples:
  db2i serve --schema SAMPLE
  db2i serve --catalog --notes-backend sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.catalog, "catalog", false, "Expose the full tool catalog")
	cmd.Flags().StringVar(&opts.notesBackend, "notes-backend", "", "Override the note/session store (memory, sqlite, postgres, mongodb)")
	cmd.Flags().BoolVar(&opts.corrective, "corrective", false, "Register run_corrective_query with --catalog (calls are denied)")

	return cmd
}

func (a *App) serve(ctx context.Context, opts *serveOptions) error {
	// Stdout belongs to the protocol; move logging to files.
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
	closer, err := logging.Init(logging.ServerConfig(a.settings.EnableLogging, a.settings.LogLevel, a.settings.LogDir))
	if err != nil {
		return err
	}
	a.logCloser = closer

	// Nobody can answer a prompt on a protocol stream.
	deny := mw.ApproverFunc(func(context.Context, mw.ApprovalRequest) (mw.ApprovalResponse, error) {
		return mw.ApprovalResponse{Reason: "interactive approval is unavailable over MCP"}, nil
	})
	env, err := a.open(ctx, envOptions{
		connect:    true,
		corrective: opts.corrective,
		approver:   deny,
		backend:    opts.notesBackend,
	})
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	if opts.catalog {
		srv := mcp.NewCatalogServer(mcp.CatalogServerConfig{
			Runtime:      env.runtime,
			Version:      Version,
			Instructions: catalogInstructions,
		})
		logging.Info().
			Add(logging.Component("mcp")).
			Add(logging.Int("tools", len(srv.ToolNames()))).
			Add(logging.SessionID(srv.SessionID())).
			Msg("serving tool catalog")
		return srv.ServeStdio(ctx)
	}

	srv := mcp.NewDb2iServer(mcp.Db2iServerConfig{
		Database: env.conn.Database,
		Notes:    env.backends.Notes,
		Version:  Version,
	})
	logging.Info().
		Add(logging.Component("mcp")).
		Add(logging.Schema(env.settings.Schema)).
		Add(logging.Str("notes", env.backends.Kind)).
		Msg("serving db2i tools")
	return srv.ServeStdio(ctx)
}

var catalogInstructions = strings.Join([]string{
	"Tools answer questions about an IBM i system using Db2 for i SQL services.",
	"Every tool returns text. Failures start with 'Error:'.",
	"Prefer the specific tools over ad-hoc SQL.",
}, " ")
