package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ibmi-agents/db2i-go/application"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	mw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
)

type toolsOptions struct {
	pack string
}

// newToolsCmd creates the tools command.
func (a *App) newToolsCmd() *cobra.Command {
	opts := &toolsOptions{}

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the available tools",
		Long: `List every tool with its pack, risk level and behavior flags.

Examples:
  db2i tools
  db2i tools --pack ptf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listTools(opts)
		},
	}

	cmd.Flags().StringVar(&opts.pack, "pack", "", "Only list tools from this pack")

	return cmd
}

func (a *App) listTools(opts *toolsOptions) error {
	packs, err := application.Packs(offline{}, offline{}, application.PackOptions{Corrective: true})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TOOL\tPACK\tRISK\tFLAGS\tDESCRIPTION")
	found := false
	for _, p := range packs {
		if opts.pack != "" && p.Name != opts.pack {
			continue
		}
		found = true
		for _, t := range p.Tools {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				t.Name(), p.Name, t.Annotations().RiskLevel, flags(t.Annotations()), firstLine(t.Description()))
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("unknown pack: %s", opts.pack)
	}
	return nil
}

func flags(an tool.Annotations) string {
	var out []string
	if an.ReadOnly {
		out = append(out, "read-only")
	}
	if an.Destructive {
		out = append(out, "destructive")
	}
	if an.CanCache() {
		out = append(out, "cached")
	}
	if an.ShouldRequireApproval() {
		out = append(out, "approval")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:77] + "..."
	}
	return s
}

type callOptions struct {
	input   string
	yes     bool
	session string
}

// newCallCmd creates the call command.
func (a *App) newCallCmd() *cobra.Command {
	opts := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Execute one tool and print its output",
		Long: `Execute a tool through the full middleware chain and print the text
it returns. Tools that change the system ask for confirmation unless --yes
is given.

Examples:
  db2i call get_ptf_currency_info
  db2i call get_active_jobs --input '{"limit":5}'
  db2i call run_corrective_query --input '{"profile_name":"QSECOFR"}' --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.call(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "{}", "Tool input as JSON")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Approve tools that require confirmation")
	cmd.Flags().StringVar(&opts.session, "session", "", "Record the call in this session")

	return cmd
}

func (a *App) call(ctx context.Context, name string, opts *callOptions) error {
	input := json.RawMessage(opts.input)
	if !json.Valid(input) {
		return fmt.Errorf("--input is not valid JSON: %s", opts.input)
	}

	approver := mw.AutoApprover()
	if !opts.yes {
		approver = a.promptApprover(bufio.NewReader(a.stdin), nil)
	}
	env, err := a.open(ctx, envOptions{connect: true, corrective: true, approver: approver})
	if err != nil {
		return err
	}
	defer env.Close(ctx)

	result, err := env.runtime.ExecuteCall(ctx, application.Call{
		SessionID: opts.session,
		Agent:     "cli",
		Tool:      name,
		Input:     input,
	})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.stdout, result.Text())
	return nil
}

// promptApprover asks on the terminal before a tool that requires approval
// runs. pause, when set, runs before the prompt is written.
func (a *App) promptApprover(in *bufio.Reader, pause func()) mw.Approver {
	return mw.ApproverFunc(func(ctx context.Context, req mw.ApprovalRequest) (mw.ApprovalResponse, error) {
		if pause != nil {
			pause()
		}
		_, _ = fmt.Fprintf(a.stderr, "Tool %s (risk %s) wants to run with input %s\nApprove? [y/N] ",
			req.Tool, req.RiskLevel, compact(req.Input))
		answer, err := in.ReadString('\n')
		if err != nil && err != io.EOF {
			return mw.ApprovalResponse{}, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return mw.ApprovalResponse{Approved: true}, nil
		default:
			return mw.ApprovalResponse{Approved: false, Reason: "declined at the prompt"}, nil
		}
	})
}

func compact(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
