// Package jvm provides tools over QSYS2.JVM_INFO.
package jvm

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
)

const defaultLimit = 10

// Options are the JVM properties QSYS2.SET_JVM accepts.
var Options = map[string]string{
	"GC_ENABLE_VERBOSE":    "Enable verbose garbage collection detail for diagnostic tracking",
	"GC_DISABLE_VERBOSE":   "Disable verbose garbage collection detail",
	"GENERATE_HEAP_DUMP":   "Generate a dump of all heap space allocations that have not yet been freed",
	"GENERATE_SYSTEM_DUMP": "Generate a binary format raw memory image of the job for comprehensive analysis",
	"GENERATE_JAVA_DUMP":   "Generate multiple diagnostic files containing JVM and Java application details",
}

const topGCSQL = `SELECT TOTAL_GC_TIME, GC_CYCLE_NUMBER, JAVA_THREAD_COUNT,
       JOB_NAME, JOB_NAME_SHORT, JOB_USER, JOB_NUMBER,
       PROCESS_ID, START_TIME, MAX_HEAP_SIZE, CURRENT_HEAP_SIZE,
       IN_USE_HEAP_SIZE, GC_POLICY_NAME
FROM QSYS2.JVM_INFO
ORDER BY TOTAL_GC_TIME DESC
FETCH FIRST %d ROWS ONLY`

const byUserSQL = `SELECT JOB_NAME, JOB_NAME_SHORT, JOB_NUMBER, PROCESS_ID,
       START_TIME, TOTAL_GC_TIME, GC_CYCLE_NUMBER,
       CURRENT_HEAP_SIZE, IN_USE_HEAP_SIZE, MAX_HEAP_SIZE,
       GC_POLICY_NAME, JAVA_THREAD_COUNT
FROM QSYS2.JVM_INFO
WHERE JOB_USER = ?
ORDER BY TOTAL_GC_TIME DESC`

const largeHeapSQL = `SELECT CURRENT_HEAP_SIZE, IN_USE_HEAP_SIZE, MAX_HEAP_SIZE, INITIAL_HEAP_SIZE,
       TOTAL_GC_TIME, GC_CYCLE_NUMBER, GC_POLICY_NAME,
       JOB_NAME, JOB_NAME_SHORT, JOB_USER, JOB_NUMBER, PROCESS_ID, START_TIME,
       JAVA_THREAD_COUNT
FROM QSYS2.JVM_INFO
ORDER BY CURRENT_HEAP_SIZE DESC
FETCH FIRST %d ROWS ONLY`

// New creates the JVM pack.
func New(runner db2i.SQLRunner) (*pack.Pack, error) {
	if runner == nil {
		return nil, errors.New("jvm: runner is required")
	}

	return pack.NewBuilder("jvm").
		WithDescription("Java virtual machine garbage collection and heap usage").
		AddTools(
			limitTool(runner, "get_top_gc_jobs", "Find the top JVM jobs by time spent in Garbage Collection", topGCSQL),
			byUserTool(runner),
			limitTool(runner, "get_large_heap_jobs", "Find JVM jobs with the largest heap sizes", largeHeapSQL),
			optionsTool(),
		).
		Build()
}

type limitInput struct {
	Limit int `json:"limit"`
}

func limitTool(runner db2i.SQLRunner, name, description, format string) tool.Tool {
	return tool.NewBuilder(name).
		WithDescription(description).
		WithCategory("jvm").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"limit": tool.Integer("Maximum number of results to return", defaultLimit),
		})).
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[limitInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			if in.Limit <= 0 {
				in.Limit = defaultLimit
			}
			out, err := runner.Run(ctx, fmt.Sprintf(format, in.Limit))
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

type userInput struct {
	User string `json:"user"`
}

func byUserTool(runner db2i.SQLRunner) tool.Tool {
	return tool.NewBuilder("get_jvm_by_user").
		WithDescription("Find all JVM jobs for a specific user").
		WithCategory("jvm").
		WithInputSchema(tool.ObjectSchema(map[string]tool.Property{
			"user": tool.String("User profile to search for"),
		}, "user")).
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (tool.Result, error) {
			in, err := tool.DecodeInput[userInput](input)
			if err != nil {
				return tool.Result{}, err
			}
			user := strings.ToUpper(strings.TrimSpace(in.User))
			if user == "" {
				return tool.Result{}, fmt.Errorf("%w: user is required", tool.ErrInvalidInput)
			}
			out, err := runner.Run(ctx, byUserSQL, user)
			if err != nil {
				return tool.Result{}, err
			}
			return tool.TextResult(out), nil
		}).
		MustBuild()
}

func optionsTool() tool.Tool {
	return tool.NewBuilder("get_jvm_options").
		WithDescription("List the JVM properties that can be changed on a running JVM").
		WithCategory("jvm").
		ReadOnly().
		WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
			names := make([]string, 0, len(Options))
			for name := range Options {
				names = append(names, name)
			}
			sort.Strings(names)
			lines := make([]string, len(names))
			for i, name := range names {
				lines[i] = name + ": " + Options[name]
			}
			return tool.TextResult(strings.Join(lines, "\n")), nil
		}).
		MustBuild()
}
