// Package ptf provides tools for PTF group currency on IBM i.
package ptf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ibmi-agents/db2i-go/domain/pack"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
)

// Group is a known PTF group.
type Group struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Groups lists the PTF groups the tools accept.
var Groups = []Group{
	{"SF99675", "HARDWARE AND RELATED PTFS"},
	{"SF99668", "IBM DB2 MIRROR FOR I"},
	{"SF99667", "740 TCP/IP PTF"},
	{"SF99737", "TECHNOLOGY REFRESH"},
	{"SF99666", "HIGH AVAILABILITY FOR IBM I"},
	{"SF99661", "WEBSPHERE APP SERVER V8.5"},
	{"SF99739", "GROUP HIPER"},
	{"SF99662", "IBM HTTP SERVER FOR I"},
	{"SF99704", "DB2 FOR IBM I"},
	{"SF99665", "JAVA"},
	{"SF99663", "PERFORMANCE TOOLS"},
	{"SF99738", "GROUP SECURITY"},
	{"SF99664", "BACKUP RECOVERY SOLUTIONS"},
	{"SF99225", "Open Source"},
}

// CurrencySQL compares installed and available group levels for the
// running release.
const CurrencySQL = `
With iLevel(iVersion, iRelease) AS
(
select OS_VERSION, OS_RELEASE from sysibmadm.env_sys_info
)
SELECT P.*
    FROM iLevel, systools.group_ptf_currency P
    WHERE ptf_group_release =
        'R' CONCAT iVersion CONCAT iRelease concat '0'
    ORDER BY ptf_group_level_available -
        ptf_group_level_installed DESC
`

// MissingSQL lists missing PTFs of one group.
const MissingSQL = `
SELECT *
FROM TABLE(systools.group_ptf_details(?)) a
    WHERE PTF_STATUS = 'PTF MISSING'
`

// ValidGroup reports whether id is a known group.
func ValidGroup(id string) bool {
	for _, g := range Groups {
		if g.ID == id {
			return true
		}
	}
	return false
}

func groupIDs() []string {
	ids := make([]string, len(Groups))
	for i, g := range Groups {
		ids[i] = g.ID
	}
	return ids
}

// New creates the PTF pack.
func New(runner db2i.SQLRunner) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("ptf: runner is required")
	}

	return pack.NewBuilder("ptf").
		WithDescription("PTF group currency and missing PTFs").
		AddTools(
			currencyTool(runner),
			missingTool(runner),
			listGroupsTool(),
		).
		Build()
}

func currencyTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_ptf_currency_info").
		WithDescription("Derive the IBM i operating system level and then determine the level of currency of PTF Groups").
		WithCategory("ptf").
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
			out, err := runner.Run(ctx, CurrencySQL)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type missingInput struct {
	PTFGroup string `json:"ptf_group"`
}

func missingTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_missing_ptf_info").
		WithDescription("Determine if this IBM i is missing any PTFs for a specific PTF group").
		WithCategory("ptf").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"ptf_group": tool.String("PTF group name, e.g. SF99737 for Technology Refresh"),
		}, "ptf_group")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[missingInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			group := strings.ToUpper(strings.TrimSpace(in.PTFGroup))
			if !ValidGroup(group) {
				return tool.TextResult(fmt.Sprintf("PTF name: %s not valid. Valid PTF groups are: %s",
					in.PTFGroup, strings.Join(groupIDs(), ", "))), nil
			}
			out, err := runner.Run(ctx, MissingSQL, group)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

func listGroupsTool() tool.Tool {
	return tool.NewBuilder("list_ptf_groups").
		WithDescription("List the known PTF groups and what they contain").
		WithCategory("ptf").
		ReadOnly().
		WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
			var b strings.Builder
			for _, g := range Groups {
				fmt.Fprintf(&b, "%s: %s\n", g.ID, g.Description)
			}
			return tool.TextResult(strings.TrimRight(b.String(), "\n")), nil
		}).
		MustBuild()
}
