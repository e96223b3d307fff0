package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
	"github.com/google/uuid"

	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/domain/workflow"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
	"github.com/ibmi-agents/db2i-go/infrastructure/statemachine"
)

// ErrNestedLoop is returned for a loop step inside another loop.
var ErrNestedLoop = errors.New("nested loops are not supported")

// WorkflowRunner executes workflows step by step over the runtime.
type WorkflowRunner struct {
	runtime    *Runtime
	functions  map[string]workflow.Function
	conditions map[string]workflow.EndCondition
	machine    *statekit.MachineConfig[*statemachine.Run]
}

// RunnerOption configures a WorkflowRunner.
type RunnerOption func(*WorkflowRunner)

// WithFunction registers an executor step under name.
func WithFunction(name string, fn workflow.Function) RunnerOption {
	return func(r *WorkflowRunner) {
		r.functions[name] = fn
	}
}

// WithEndCondition registers a loop end condition under name.
func WithEndCondition(name string, cond workflow.EndCondition) RunnerOption {
	return func(r *WorkflowRunner) {
		r.conditions[name] = cond
	}
}

// NewWorkflowRunner creates a runner with the built-in functions and end
// conditions.
func NewWorkflowRunner(rt *Runtime, opts ...RunnerOption) (*WorkflowRunner, error) {
	if rt == nil {
		return nil, errors.New("runtime is required")
	}
	machine, err := statemachine.NewRunMachine()
	if err != nil {
		return nil, fmt.Errorf("build run machine: %w", err)
	}
	r := &WorkflowRunner{
		runtime:    rt,
		functions:  workflow.Functions(),
		conditions: workflow.EndConditions(),
		machine:    machine,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// WorkflowResult is the outcome of one run.
type WorkflowResult struct {
	SessionID string            `json:"session_id"`
	Run       *statemachine.Run `json:"run"`
	Outputs   []workflow.Output `json:"outputs"`
}

// Validate checks the workflow shape and that every tool it calls is registered.
func (r *WorkflowRunner) Validate(wf workflow.Workflow) error {
	if err := wf.Validate(r.functions, r.conditions); err != nil {
		return err
	}
	if err := checkNesting(wf.Steps, false); err != nil {
		return fmt.Errorf("%w %q: %w", workflow.ErrInvalidWorkflow, wf.Name, err)
	}
	for _, name := range wf.Tools() {
		if !r.runtime.Registry().Has(name) {
			return fmt.Errorf("%w %q: %w: %s", workflow.ErrInvalidWorkflow, wf.Name, tool.ErrToolNotFound, name)
		}
	}
	return nil
}

func checkNesting(steps []workflow.Step, inLoop bool) error {
	for _, s := range steps {
		if s.Loop == nil {
			continue
		}
		if inLoop {
			return fmt.Errorf("%w: %s", ErrNestedLoop, s.Name)
		}
		if err := checkNesting(s.Loop.Steps, true); err != nil {
			return err
		}
	}
	return nil
}

// Run executes wf. Tool failures become unsuccessful outputs rendered as
// "Error: ..." and the run continues; function failures, cancellation and
// invalid workflows fail the run. Every step is recorded in the session,
// which is created when sessionID is empty or unknown.
func (r *WorkflowRunner) Run(ctx context.Context, wf workflow.Workflow, sessionID string) (*WorkflowResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	run := &statemachine.Run{ID: uuid.NewString(), Workflow: wf.Name}
	interp := statemachine.NewInterpreter(r.machine, run)
	defer interp.Stop()

	result := &WorkflowResult{SessionID: sessionID, Run: run}

	if err := r.Validate(wf); err != nil {
		_ = interp.Fail(err)
		return result, err
	}
	if err := interp.Start(); err != nil {
		return result, err
	}

	logging.Info().
		Add(logging.Workflow(wf.Name)).
		Add(logging.SessionID(sessionID)).
		Add(logging.Str("run_id", run.ID)).
		Msg("workflow started")

	ex := &execution{runner: r, wf: wf, sessionID: sessionID, interp: interp}
	if err := ex.steps(ctx, wf.Steps, 0); err != nil {
		result.Outputs = ex.outputs
		_ = interp.Fail(err)
		logging.Error().
			Add(logging.Workflow(wf.Name)).
			Add(logging.Str("run_id", run.ID)).
			Add(logging.ErrorField(err)).
			Msg("workflow failed")
		return result, err
	}
	result.Outputs = ex.outputs

	if err := interp.Complete(); err != nil {
		return result, err
	}
	logging.Info().
		Add(logging.Workflow(wf.Name)).
		Add(logging.Str("run_id", run.ID)).
		Add(logging.Int("steps", len(ex.outputs))).
		Add(logging.Duration(run.EndedAt.Sub(run.StartedAt))).
		Msg("workflow completed")
	return result, nil
}

// execution holds the state of one run.
type execution struct {
	runner    *WorkflowRunner
	wf        workflow.Workflow
	sessionID string
	interp    *statemachine.Interpreter
	outputs   []workflow.Output
}

func (e *execution) steps(ctx context.Context, steps []workflow.Step, iteration int) error {
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch s.Kind() {
		case workflow.KindTool:
			e.outputs = append(e.outputs, e.tool(ctx, s))
		case workflow.KindFunction:
			err = e.function(ctx, s, iteration)
		case workflow.KindLoop:
			err = e.loop(ctx, s)
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", s.Name, err)
		}
	}
	return nil
}

func (e *execution) tool(ctx context.Context, s workflow.Step) workflow.Output {
	var input json.RawMessage
	if len(s.Input) > 0 {
		raw, err := json.Marshal(s.Input)
		if err != nil {
			return workflow.Output{Step: s.Name, Content: "Error: " + err.Error(), Error: err.Error()}
		}
		input = raw
	}

	res, err := e.runner.runtime.ExecuteCall(ctx, Call{
		SessionID: e.sessionID,
		Agent:     "workflow:" + e.wf.Name,
		Tool:      s.Tool,
		Input:     input,
	})
	if err != nil {
		logging.Warn().
			Add(logging.Workflow(e.wf.Name)).
			Add(logging.Step(s.Name)).
			Add(logging.ErrorField(err)).
			Msg("workflow step failed")
		return workflow.Output{Step: s.Name, Content: "Error: " + err.Error(), Error: err.Error()}
	}
	return workflow.Output{Step: s.Name, Content: res.Text(), Success: true}
}

func (e *execution) function(ctx context.Context, s workflow.Step, iteration int) error {
	fn := e.runner.functions[s.Function]
	start := time.Now()
	out, err := fn(ctx, workflow.StepInput{
		Workflow:  e.wf.Name,
		Iteration: iteration,
		Previous:  append([]workflow.Output(nil), e.outputs...),
	})

	entry := session.Entry{
		Tool:     s.Function,
		Duration: time.Since(start),
		At:       start.UTC(),
	}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Output = out.Content
	}
	e.record(ctx, entry)

	if err != nil {
		return err
	}
	out.Step = s.Name
	e.outputs = append(e.outputs, out)
	return nil
}

func (e *execution) loop(ctx context.Context, s workflow.Step) error {
	if err := e.interp.EnterLoop(s.Name); err != nil {
		return err
	}
	cond := e.runner.conditions[s.Loop.EndCondition]
	reason := "max iterations reached"
	for {
		n, err := e.interp.Iterate()
		if err != nil {
			return err
		}
		first := len(e.outputs)
		if err := e.steps(ctx, s.Loop.Steps, n); err != nil {
			return err
		}
		if cond != nil && cond(e.outputs[first:]) {
			reason = "end condition met"
			break
		}
		if n >= s.Loop.MaxIterations {
			break
		}
	}
	logging.Debug().
		Add(logging.Workflow(e.wf.Name)).
		Add(logging.Step(s.Name)).
		Add(logging.Int("iterations", e.interp.Run().Iterations)).
		Add(logging.Str("reason", reason)).
		Msg("loop finished")
	return e.interp.ExitLoop(reason)
}

// record appends a function step to the session. Tool steps are recorded by
// the session middleware.
func (e *execution) record(ctx context.Context, entry session.Entry) {
	store := e.runner.runtime.Sessions()
	if store == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	err := store.Append(ctx, e.sessionID, entry)
	if errors.Is(err, session.ErrNotFound) {
		s := session.Session{ID: e.sessionID, Agent: "workflow:" + e.wf.Name, CreatedAt: entry.At}
		if err = store.Create(ctx, s); err == nil {
			err = store.Append(ctx, e.sessionID, entry)
		}
	}
	if err != nil {
		logging.Warn().
			Add(logging.SessionID(e.sessionID)).
			Add(logging.Step(entry.Tool)).
			Add(logging.ErrorField(err)).
			Msg("session entry not recorded")
	}
}
