package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/application"
	domainconfig "github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
	mw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
	"github.com/ibmi-agents/db2i-go/infrastructure/scheduler"
)

type workflowRunOptions struct {
	session string
	json    bool
}

// newWorkflowCmd creates the workflow command group.
func (a *App) newWorkflowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Run workflows",
	}

	opts := &workflowRunOptions{}
	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a workflow and print each step's output",
		Long: `Run a built-in or configured workflow against the IBM i system.

A failing tool step is reported and the workflow continues. A failing
function step stops it.

Examples:
  db2i workflow run ptf-currency
  db2i workflow run iterative-performance --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runWorkflow(cmd.Context(), args[0], opts)
		},
	}
	run.Flags().StringVar(&opts.session, "session", "", "Record the run in this session")
	run.Flags().BoolVar(&opts.json, "json", false, "Print the result as JSON")

	cmd.AddCommand(run)
	return cmd
}

func (a *App) runWorkflow(ctx context.Context, name string, opts *workflowRunOptions) error {
	env, err := a.open(ctx, envOptions{connect: true, approver: mw.AutoApprover()})
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	wf, ok := env.catalog.Workflow(name)
	if !ok {
		return fmt.Errorf("unknown workflow: %s", name)
	}
	runner, err := application.NewWorkflowRunner(env.runtime)
	if err != nil {
		return err
	}

	res, runErr := runner.Run(ctx, wf, opts.session)
	if opts.json {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
		return runErr
	}

	for _, out := range res.Outputs {
		status := "ok"
		if !out.Success {
			status = "failed"
		}
		_, _ = fmt.Fprintf(a.stdout, "== %s (%s)\n%s\n\n", out.Step, status, out.Content)
	}
	_, _ = fmt.Fprintf(a.stdout, "workflow %s %s, session %s\n", wf.Name, res.Run.State, res.SessionID)
	return runErr
}

type scheduleOptions struct {
	watch bool
	list  bool
}

// newScheduleCmd creates the schedule command.
func (a *App) newScheduleCmd() *cobra.Command {
	opts := &scheduleOptions{}

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run workflows on their cron schedules",
		Long: `Run every schedule of the catalog file until interrupted.

Schedules name a workflow and a five-field cron expression. A schedule
whose previous run is still active skips its next firing. With --watch the
catalog file is reloaded when it changes.

Examples:
  db2i schedule -c agents.yaml
  db2i schedule -c agents.yaml --watch
  db2i schedule -c agents.yaml --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.schedule(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload schedules when the catalog file changes")
	cmd.Flags().BoolVar(&opts.list, "list", false, "Print the schedules and their next run, then exit")

	return cmd
}

func (a *App) schedule(ctx context.Context, opts *scheduleOptions) error {
	if opts.watch && a.configPath == "" {
		return fmt.Errorf("--watch needs a catalog file (--config or AGENTS_CONFIG)")
	}

	cat, err := a.catalog()
	if err != nil {
		return err
	}
	var current atomic.Pointer[domainconfig.Catalog]
	current.Store(cat)

	var env *environment
	run := func(ctx context.Context, name string) error {
		wf, ok := current.Load().Workflow(name)
		if !ok {
			return fmt.Errorf("unknown workflow: %s", name)
		}
		runner, err := application.NewWorkflowRunner(env.runtime)
		if err != nil {
			return err
		}
		res, err := runner.Run(ctx, wf, "")
		if err == nil {
			logging.Info().
				Add(logging.Workflow(name)).
				Add(logging.SessionID(res.SessionID)).
				Msg("scheduled workflow finished")
		}
		return err
	}

	s := scheduler.New(run)
	if err := s.Load(cat.Schedules); err != nil {
		return err
	}
	if opts.list {
		return a.printSchedules(s)
	}
	if len(cat.Schedules) == 0 && !opts.watch {
		return fmt.Errorf("no schedules configured")
	}

	env, err = a.open(ctx, envOptions{connect: true, approver: mw.AutoApprover()})
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	s.Start()
	defer s.Stop()
	if err := a.printSchedules(s); err != nil {
		return err
	}

	if !opts.watch {
		<-ctx.Done()
		return nil
	}
	loader, err := a.catalogLoader(application.BuiltinCatalog(), nil)
	if err != nil {
		return err
	}
	err = s.Watch(ctx, a.configPath, loader, func(c *domainconfig.Catalog) *domainconfig.Catalog {
		current.Store(c)
		return c
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (a *App) printSchedules(s *scheduler.Scheduler) error {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCHEDULE\tWORKFLOW\tCRON\tNEXT")
	for _, e := range s.Entries() {
		next := "-"
		if !e.Next.IsZero() {
			next = e.Next.Format("2006-01-02 15:04:05")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Name, e.Workflow, e.Cron, next)
	}
	return w.Flush()
}
