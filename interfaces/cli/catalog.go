package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibmi-agents/db2i-go/application"
	domainconfig "github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/domain/workflow"
)

// newAgentsCmd creates the agents command.
func (a *App) newAgentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List configured agents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tMODEL\tTOOLS\tDESCRIPTION")
			for _, ag := range cat.Agents {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", ag.Name, ag.Model, len(ag.Tools), firstLine(ag.Description))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <name>",
		Short: "Print an agent as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			ag, ok := cat.Agent(args[0])
			if !ok {
				return fmt.Errorf("unknown agent: %s", args[0])
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(ag); err != nil {
				return err
			}
			return enc.Close()
		},
	})

	return cmd
}

// newTeamsCmd creates the teams command.
func (a *App) newTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List configured teams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tMODE\tMEMBERS")
			for _, t := range cat.Teams {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Mode, strings.Join(t.Members, ", "))
			}
			return w.Flush()
		},
	}
}

// newWorkflowsCmd creates the workflows command.
func (a *App) newWorkflowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workflows",
		Short: "List configured workflows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tSTEPS\tTOOLS\tDESCRIPTION")
			for _, wf := range cat.Workflows {
				_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					wf.Name, countSteps(wf.Steps), strings.Join(wf.Tools(), ", "), firstLine(wf.Description))
			}
			return w.Flush()
		},
	}
}

func countSteps(steps []workflow.Step) int {
	n := 0
	for _, s := range steps {
		n++
		if s.Loop != nil {
			n += countSteps(s.Loop.Steps)
		}
	}
	return n
}

type validateOptions struct {
	checkEnv bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a catalog file",
		Long: `Validate an agents/teams/workflows/schedules catalog.

The file is checked against the catalog JSON schema and then merged over
the built-in catalog. Model identifiers, tool names, team members,
workflow functions and cron expressions must all resolve. With --check-env
the provider API keys each agent's model needs must be set.

Without a file argument the --config file is validated, or the built-in
catalog when none is set.

Examples:
  db2i validate agents.yaml
  db2i validate agents.yaml --check-env`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.configPath
			if len(args) == 1 {
				path = args[0]
			}
			return a.validate(path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.checkEnv, "check-env", false, "Require provider credentials for every agent model")

	return cmd
}

func (a *App) validate(path string, opts *validateOptions) error {
	var lookup func(string) (string, bool)
	if opts.checkEnv {
		lookup = os.LookupEnv
	}

	var (
		cat *domainconfig.Catalog
		err error
	)
	if path == "" {
		cat = application.BuiltinCatalog()
		err = a.validateBuiltin(cat, lookup)
		path = "built-in catalog"
	} else {
		cat, err = a.loadCatalog(path, lookup)
	}
	if err != nil {
		var verrs domainconfig.ValidationErrors
		if errors.As(err, &verrs) {
			_, _ = fmt.Fprintf(a.stdout, "%s: %d problem(s)\n", path, len(verrs))
			for _, e := range verrs {
				_, _ = fmt.Fprintf(a.stdout, "  - %s\n", e.Error())
			}
		}
		return err
	}

	_, _ = fmt.Fprintf(a.stdout, "%s is valid: %d agents, %d teams, %d workflows, %d schedules\n",
		path, len(cat.Agents), len(cat.Teams), len(cat.Workflows), len(cat.Schedules))
	return nil
}

func (a *App) validateBuiltin(cat *domainconfig.Catalog, lookup func(string) (string, bool)) error {
	reg, err := registry(offline{}, offline{}, true)
	if err != nil {
		return err
	}
	v := domainconfig.NewValidator()
	v.ToolExists = reg.Has
	v.LookupEnv = lookup
	if errs := v.Validate(cat); errs.HasErrors() {
		return fmt.Errorf("%w: %w", domainconfig.ErrValidationFailed, errs)
	}
	return nil
}
