package statemachine

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = errors.New("invalid workflow run transition")

// Interpreter wraps the statekit interpreter for one workflow run.
type Interpreter struct {
	interp *statekit.Interpreter[*Run]
	run    *Run
}

// NewInterpreter creates an interpreter bound to run, which starts pending.
func NewInterpreter(machine *statekit.MachineConfig[*Run], run *Run) *Interpreter {
	run.State = StatePending
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **Run) {
		*c = run
	})
	interp.Start()
	return &Interpreter{interp: interp, run: run}
}

// Send fires event. Events not accepted in the current state return
// ErrInvalidTransition and leave the run unchanged.
func (i *Interpreter) Send(event statekit.EventType, reason string) error {
	from := i.State()
	to, ok := Target(from, event)
	if !ok {
		return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, event, from)
	}

	i.interp.Send(statekit.Event{
		Type:    event,
		Payload: TransitionPayload{To: to, Reason: reason},
	})

	if got := i.State(); got != to {
		return fmt.Errorf("%w: %s from %s reached %s", ErrInvalidTransition, event, from, got)
	}
	return nil
}

// Start moves the run from pending to running.
func (i *Interpreter) Start() error { return i.Send(EventStart, "") }

// EnterLoop moves the run into a loop.
func (i *Interpreter) EnterLoop(step string) error { return i.Send(EventEnterLoop, step) }

// Iterate counts a loop iteration and reports the new total.
func (i *Interpreter) Iterate() (int, error) {
	if i.State() != StateLooping {
		return 0, fmt.Errorf("%w: iterate in state %s", ErrInvalidTransition, i.State())
	}
	i.run.Iterations++
	return i.run.Iterations, nil
}

// ExitLoop returns the run to running.
func (i *Interpreter) ExitLoop(reason string) error { return i.Send(EventExitLoop, reason) }

// Complete finishes the run successfully.
func (i *Interpreter) Complete() error { return i.Send(EventComplete, "") }

// Fail finishes the run with an error. Failing a finished run is a no-op.
func (i *Interpreter) Fail(err error) error {
	if i.IsTerminal() {
		return nil
	}
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return i.Send(EventFail, reason)
}

// State returns the current state.
func (i *Interpreter) State() State {
	return State(i.interp.State().Value)
}

// IsTerminal returns true once the run completed or failed.
func (i *Interpreter) IsTerminal() bool {
	return i.State().IsTerminal()
}

// Run returns the run record.
func (i *Interpreter) Run() *Run {
	return i.run
}

// Stop stops the interpreter.
func (i *Interpreter) Stop() {
	i.interp.Stop()
}
