// Package performance provides IBM i performance monitoring tools over
// the QSYS2 services.
package performance

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

const defaultJobLimit = 10

// New creates the performance pack.
func New(runner db2i.SQLRunner) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("performance: runner is required")
	}

	tools := make([]tool.Tool, 0, len(Metrics)+4)
	for _, m := range Metrics {
		tools = append(tools, metricTool(runner, m))
	}
	tools = append(tools,
		activeJobsTool(runner),
		metricsTool(runner),
		compositeTool(runner, "get_collection_services_config",
			"Get Collection Services configuration and category settings",
			section{"Collection Services Config", "collection_services"},
			section{"Collection Categories", "collection_categories"}),
		compositeTool(runner, "analyze_system_performance",
			"Analyze system performance using multiple metrics",
			section{"System Status", "system_status"},
			section{"Memory Pool Usage", "memory_pools"},
			section{"System Activity", "system_activity"}),
	)

	return pack.NewBuilder("performance").
		WithDescription("System status, memory pools, temporary storage and job CPU").
		AddTools(tools...).
		Build()
}

func metricTool(runner db2i.SQLRunner, m Metric) tool.Tool {
	return tool.NewBuilder(m.Tool).
		WithDescription(m.Description).
		WithCategory("performance").
		ReadOnly().
		Cacheable().
		WithTags(m.ID).
		WithHandler(func(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
			out, err := runner.Run(ctx, m.SQL)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type activeJobsInput struct {
	Limit int `json:"limit"`
}

func activeJobsTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_active_jobs").
		WithDescription("Get the top N CPU consuming jobs in QUSRWRK and QSYSWRK subsystems").
		WithCategory("performance").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"limit": tool.Integer("Number of jobs", defaultJobLimit),
		})).
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[activeJobsInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			if in.Limit <= 0 {
				in.Limit = defaultJobLimit
			}
			out, err := runner.Run(ctx, ActiveJobsSQL, in.Limit)
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
	return tool.NewBuilder("get_performance_metrics").
		WithDescription(fmt.Sprintf("Gather relevant performance metrics by running one of %s", strings.Join(ids, ", "))).
		WithCategory("performance").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"id": tool.Enum("Performance metric id", ids...),
		}, "id")).
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[metricsInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			m, ok := Lookup(in.ID)
			if !ok {
				return tool.TextResult(fmt.Sprintf("%s not valid metric. Valid metrics are: %s", in.ID, strings.Join(ids, ", "))), nil
			}
			out, err := runner.Run(ctx, m.SQL)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type section struct {
	title  string
	metric string
}

func compositeTool(runner db2i.SQLRunner, name, description string, sections ...section) tool.Tool {
	return tool.NewBuilder(name).
		WithDescription(description).
		WithCategory("performance").
		ReadOnly().
		Cacheable().
		WithHandler(func(ctx context.Context, _ json.RawMessage) (tool.Result, error) {
			return tool.TextResult(runSections(ctx, runner, sections)), nil
		}).
		MustBuild()
}

// runSections renders each section as a titled block. A failing query is
// rendered in place so the other sections still reach the caller.
func runSections(ctx context.Context, runner db2i.SQLRunner, sections []section) string {
	blocks := make([]string, len(sections))
	for i, s := range sections {
		m, _ := Lookup(s.metric)
		out, err := runner.Run(ctx, m.SQL)
		if err != nil {
			out = "Error: " + err.Error()
		}
		blocks[i] = s.title + ":\n" + out
	}
	return strings.Join(blocks, "\n\n")
}
