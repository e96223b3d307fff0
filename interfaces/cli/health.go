package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/application"
)

type healthOptions struct {
	file   string
	strict bool
}

// newHealthCmd creates the health command.
func (a *App) newHealthCmd() *cobra.Command {
	opts := &healthOptions{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run SQL health checks and print the report as JSON",
		Long: `Run every check of a JSON or YAML file and print an "IBM i Health Report".

  {"checks": [{"sql": "select * from qsys2.system_status_info", "description": "System status"}]}

Checks must be read-only queries. A failing check is reported in place and
the others still run.

Examples:
  db2i health --file checks.json
  db2i health --file checks.yaml --strict`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.health(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Health check file (JSON or YAML)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit with an error when any check fails")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (a *App) health(ctx context.Context, opts *healthOptions) error {
	checks, err := application.LoadHealthChecks(opts.file)
	if err != nil {
		return err
	}

	conn, err := a.connector(ctx, a.settings)
	if err != nil {
		return err
	}
	defer func() {
		if conn.Close != nil {
			_ = conn.Close()
		}
	}()

	report := application.Health(ctx, conn.Runner, checks)
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if opts.strict && report.Failed() > 0 {
		return fmt.Errorf("%d of %d health checks failed", report.Failed(), len(report.Checks))
	}
	return nil
}
