package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/application"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

const shellPrompt = "db2i> "

type shellOptions struct {
	agent  string
	stream bool
}

// newShellCmd creates the shell command.
func (a *App) newShellCmd() *cobra.Command {
	opts := &shellOptions{}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive tool shell",
		Long: `Start an interactive loop over the tools of an agent.

Commands:
  <tool> [json]   run a tool, e.g. get_active_jobs {"limit": 5}
  tools           list the available tools
  help            show this help
  exit, quit      leave the shell

Every call is recorded in one session. Input lines are appended to
HISTORY_FILE.

Examples:
  db2i shell
  db2i shell --agent ptf-assistant`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.shell(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.agent, "agent", "a", "", "Restrict the shell to this agent's tools")
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "Print output without the progress spinner")

	return cmd
}

// shellSession is the state of one interactive shell.
type shellSession struct {
	app     *App
	env     *environment
	agent   string
	allowed map[string]bool
	session string
	spin    *spinner.Spinner
	history io.WriteCloser
}

func (a *App) shell(ctx context.Context, opts *shellOptions) error {
	in := bufio.NewReader(a.stdin)

	sh := &shellSession{app: a, agent: "shell"}
	if !opts.stream {
		sh.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.stderr))
	}
	approver := a.promptApprover(in, sh.stopSpinner)

	env, err := a.open(ctx, envOptions{connect: true, corrective: true, approver: approver})
	if err != nil {
		return err
	}
	defer env.Close(ctx)
	sh.env = env

	if opts.agent != "" {
		ag, ok := env.catalog.Agent(opts.agent)
		if !ok {
			return fmt.Errorf("unknown agent: %s", opts.agent)
		}
		sh.agent = ag.Name
		sh.allowed = make(map[string]bool, len(ag.Tools))
		for _, t := range ag.Tools {
			sh.allowed[t] = true
		}
	}

	s := session.New(sh.agent)
	if err := env.runtime.Sessions().Create(ctx, s); err != nil {
		return err
	}
	sh.session = s.ID

	if sh.history, err = openHistory(env.settings.HistoryFile); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("shell history disabled")
	} else {
		defer func() { _ = sh.history.Close() }()
	}

	_, _ = fmt.Fprintf(a.stdout, "db2i %s shell (%s), session %s. Type 'help' for commands.\n", Version, sh.agent, sh.session)
	for {
		if ctx.Err() != nil {
			return nil
		}
		_, _ = fmt.Fprint(a.stdout, shellPrompt)
		line, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		done := sh.handle(ctx, strings.TrimSpace(line))
		if done || err == io.EOF {
			if err == io.EOF {
				_, _ = fmt.Fprintln(a.stdout)
			}
			return nil
		}
	}
}

// handle runs one input line. It returns true when the shell should exit.
func (sh *shellSession) handle(ctx context.Context, line string) bool {
	out := sh.app.stdout
	if line == "" {
		return false
	}
	sh.remember(line)

	name, rest, _ := strings.Cut(line, " ")
	switch name {
	case "exit", "quit":
		return true
	case "help":
		_, _ = fmt.Fprintln(out, "Commands: <tool> [json], tools, help, exit, quit")
		return false
	case "tools":
		for _, t := range sh.tools() {
			_, _ = fmt.Fprintf(out, "  %-36s %s\n", t, firstLine(sh.description(t)))
		}
		return false
	}

	if sh.allowed != nil && !sh.allowed[name] {
		_, _ = fmt.Fprintf(out, "Error: %s is not one of %s's tools\n", name, sh.agent)
		return false
	}
	input := json.RawMessage(strings.TrimSpace(rest))
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	if !json.Valid(input) {
		_, _ = fmt.Fprintf(out, "Error: input is not valid JSON: %s\n", rest)
		return false
	}

	sh.startSpinner(name)
	result, err := sh.env.runtime.ExecuteCall(ctx, application.Call{
		SessionID: sh.session,
		Agent:     sh.agent,
		Tool:      name,
		Input:     input,
	})
	sh.stopSpinner()
	if err != nil {
		_, _ = fmt.Fprintf(out, "Error: %v\n", err)
		return false
	}
	_, _ = fmt.Fprintln(out, result.Text())
	return false
}

func (sh *shellSession) tools() []string {
	var names []string
	for _, t := range sh.env.runtime.Tools() {
		if sh.allowed == nil || sh.allowed[t.Name()] {
			names = append(names, t.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (sh *shellSession) description(name string) string {
	t, ok := sh.env.runtime.Registry().Get(name)
	if !ok {
		return ""
	}
	return t.Description()
}

func (sh *shellSession) startSpinner(name string) {
	if sh.spin == nil {
		return
	}
	sh.spin.Suffix = " running " + name
	sh.spin.Start()
}

func (sh *shellSession) stopSpinner() {
	if sh.spin != nil && sh.spin.Active() {
		sh.spin.Stop()
	}
}

func (sh *shellSession) remember(line string) {
	if sh.history == nil {
		return
	}
	if _, err := fmt.Fprintln(sh.history, line); err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("writing shell history failed")
	}
}

func openHistory(path string) (io.WriteCloser, error) {
	if path == "" {
		return nil, fmt.Errorf("HISTORY_FILE is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
}
