package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/infrastructure/config"
)

type schemaOptions struct {
	outputPath string
}

// newSchemaCmd creates the schema command.
func (a *App) newSchemaCmd() *cobra.Command {
	opts := &schemaOptions{}

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the catalog JSON schema",
		Long: `Print the JSON Schema that catalog files are validated against.

Examples:
  # Print to stdout
  db2i schema

  # Write to a file for editor validation
  db2i schema -o agents.schema.json

  # .vscode/settings.json:
  # "yaml.schemas": {
  #   "./agents.schema.json": ["agents*.yaml"]
  # }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.exportSchema(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "Output file path (default: stdout)")

	return cmd
}

func (a *App) exportSchema(opts *schemaOptions) error {
	schemaJSON, err := config.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if opts.outputPath == "" {
		_, _ = fmt.Fprintln(a.stdout, schemaJSON)
		return nil
	}

	if err := os.WriteFile(opts.outputPath, []byte(schemaJSON), 0o600); err != nil {
		return fmt.Errorf("failed to write schema file: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "Schema written to %s\n", opts.outputPath)
	return nil
}
