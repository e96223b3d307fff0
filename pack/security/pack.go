// Package security provides tools that find user profiles exposed to
// *PUBLIC on IBM i.
package security

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

const exposedWhere = `
FROM qsys2.object_privileges
WHERE system_object_schema = 'QSYS' AND object_type = '*USRPRF' AND object_name NOT IN ('QDBSHR',
        'QDBSHRDO', 'QDOC', 'QTMPLPD') AND user_name = '*PUBLIC' AND object_authority <>
        '*EXCLUDE'
`

// Metric is one named security check.
type Metric struct {
	Name        string
	Description string
	SQL         string
}

// Metrics are the checks get_security_metrics can run, keyed by id.
var Metrics = map[string]Metric{
	"count_exposed_profiles": {
		Name:        "Count Exposed User Profiles",
		Description: "How many *USRPRF's do not have *PUBLIC set to *EXCLUDE?",
		SQL:         "SELECT COUNT(*)" + exposedWhere,
	},
	"list_exposed_profiles": {
		Name:        "List Exposed User Profiles",
		Description: "Which *USRPRF's do not have *PUBLIC set to *EXCLUDE?",
		SQL:         "SELECT object_name AS user_name, object_authority" + exposedWhere,
	},
	"fix_exposed_profiles": {
		Name:        "Fix Exposed User Profiles",
		Description: "Which *USRPRF's do not have *PUBLIC set to *EXCLUDE? Include a query that corrects the exposure",
		SQL: `SELECT object_name AS user_name, object_authority,
'SELECT qsys2.qcmdexc(''GRTOBJAUT OBJ(QSYS/' || object_name || ') OBJTYPE(*USRPRF) USER(*PUBLIC) AUT(*EXCLUDE)'') FROM sysibm.sysdummy1'
    AS corrective_query` + exposedWhere,
	},
}

// MetricIDs returns the metric ids in sorted order.
func MetricIDs() []string {
	ids := make([]string, 0, len(Metrics))
	for id := range Metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type options struct {
	corrective bool
}

// Option configures the pack.
type Option func(*options)

// WithCorrective registers run_corrective_query, which changes object
// authorities on the system.
func WithCorrective(enabled bool) Option {
	return func(o *options) {
		o.corrective = enabled
	}
}

// New creates the security pack.
func New(runner db2i.SQLRunner, opts ...Option) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("security: runner is required")
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	tools := []tool.Tool{
		metricTool(runner, "count_exposed_profiles", "Count how many user profiles don't have *PUBLIC set to *EXCLUDE"),
		metricTool(runner, "list_exposed_profiles", "List all user profiles that don't have *PUBLIC set to *EXCLUDE"),
		metricTool(runner, "fix_exposed_profiles", "Generate corrective queries for user profiles that don't have *PUBLIC set to *EXCLUDE"),
		metricsTool(runner),
	}
	if o.corrective {
		tools = append(tools, correctiveTool(runner))
	}

	return pack.NewBuilder("security").
		WithDescription("User profile exposure checks").
		AddTools(tools...).
		Build()
}

func metricTool(runner db2i.SQLRunner, id, description string) tool.Tool {
	query := Metrics[id].SQL
	return tool.NewBuilder(id).
		WithDescription(description).
		WithCategory("security").
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
			out, err := runner.Run(ctx, query)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type metricsInput struct {
	ID string `json:"id"`
}

func metricsTool(runner db2i.SQLRunner) tool.Tool {
	ids := MetricIDs()
	return tool.NewBuilder("get_security_metrics").
		WithDescription(fmt.Sprintf("Gather security metrics by running one of %s", strings.Join(ids, ", "))).
		WithCategory("security").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"id": tool.Enum("The security metric ID to run", ids...),
		}, "id")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[metricsInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			m, ok := Metrics[in.ID]
			if !ok {
				var b strings.Builder
				fmt.Fprintf(&b, "%s not valid metric. Valid metrics are:", in.ID)
				for _, id := range ids {
					fmt.Fprintf(&b, "\n- %s: %s", id, Metrics[id].Description)
				}
				return tool.TextResult(b.String()), nil
			}
			out, err := runner.Run(ctx, m.SQL)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type correctiveInput struct {
	ProfileName string `json:"profile_name"`
}

func correctiveTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("run_corrective_query").
		WithDescription("Execute corrective SQL queries to fix exposed user profiles").
		WithCategory("security").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"profile_name": tool.String("User profile to fix. All exposed profiles are fixed when empty."),
		})).
		Destructive().
		RequiresApproval().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[correctiveInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(runCorrective(ctx, runner, in.ProfileName)), nil
		}).
		MustBuild()
}

func runCorrective(ctx context.Context, runner db2i.SQLRunner, profile string) string {
	rs, err := runner.Query(ctx, Metrics["fix_exposed_profiles"].SQL)
	if err != nil {
		return fmt.Sprintf("Error executing corrective queries: %v", err)
	}

	users := rs.Strings("USER_NAME")
	queries := rs.Strings("CORRECTIVE_QUERY")
	var results []string
	for i := 0; i < len(users) && i < len(queries); i++ {
		if profile != "" && !strings.EqualFold(profile, users[i]) {
			continue
		}
		out, err := runner.Run(ctx, queries[i])
		if err != nil {
			out = "Error: " + err.Error()
		}
		logging.Warn().
			Add(logging.Component("security")).
			Add(logging.Str("profile", users[i])).
			Msg("corrected public authority")
		results = append(results, fmt.Sprintf("Fixed profile %s: %s", users[i], out))
	}

	if len(results) == 0 {
		if profile != "" {
			return fmt.Sprintf("No exposed profile found with name '%s'", profile)
		}
		return "No exposed profiles found that need fixing"
	}
	return strings.Join(results, "\n")
}
