// Package statemachine drives workflow runs through their lifecycle with statekit.
package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"
)

// State is a workflow-run lifecycle state.
type State string

// Lifecycle states. completed and failed are final.
const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateLooping   State = "looping"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Lifecycle events.
const (
	EventStart     statekit.EventType = "START"
	EventEnterLoop statekit.EventType = "ENTER_LOOP"
	EventExitLoop  statekit.EventType = "EXIT_LOOP"
	EventComplete  statekit.EventType = "COMPLETE"
	EventFail      statekit.EventType = "FAIL"
)

// transitions lists the target of every event accepted in each state.
var transitions = map[State]map[statekit.EventType]State{
	StatePending: {
		EventStart: StateRunning,
		EventFail:  StateFailed,
	},
	StateRunning: {
		EventEnterLoop: StateLooping,
		EventComplete:  StateCompleted,
		EventFail:      StateFailed,
	},
	StateLooping: {
		EventExitLoop: StateRunning,
		EventFail:     StateFailed,
	},
}

// Target returns the state an event leads to from s.
func Target(s State, event statekit.EventType) (State, bool) {
	to, ok := transitions[s][event]
	return to, ok
}

// Transition is one recorded state change.
type Transition struct {
	From   State     `json:"from"`
	To     State     `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Run is the machine context: the lifecycle record of one workflow run.
type Run struct {
	ID         string
	Workflow   string
	State      State
	Iterations int
	Error      string
	History    []Transition
	StartedAt  time.Time
	EndedAt    time.Time
}

// TransitionPayload carries the reason for a transition.
type TransitionPayload struct {
	To     State
	Reason string
}

const (
	statePending   statekit.StateID = statekit.StateID(StatePending)
	stateRunning   statekit.StateID = statekit.StateID(StateRunning)
	stateLooping   statekit.StateID = statekit.StateID(StateLooping)
	stateCompleted statekit.StateID = statekit.StateID(StateCompleted)
	stateFailed    statekit.StateID = statekit.StateID(StateFailed)
)

// NewRunMachine creates the workflow-run statechart:
// pending → running ⇄ looping → completed | failed.
func NewRunMachine() (*statekit.MachineConfig[*Run], error) {
	return statekit.NewMachine[*Run]("workflow-run").
		WithInitial(statePending).
		WithContext(&Run{}).
		WithAction("logEntry", logStateEntry).
		WithAction("recordTransition", recordTransition).
		WithGuard("canTransition", guardCanTransition).
		State(statePending).
			OnEntry("logEntry").
			On(EventStart).Target(stateRunning).Guard("canTransition").Do("recordTransition").
			On(EventFail).Target(stateFailed).Do("recordTransition").
			Done().
		State(stateRunning).
			OnEntry("logEntry").
			On(EventEnterLoop).Target(stateLooping).Guard("canTransition").Do("recordTransition").
			On(EventComplete).Target(stateCompleted).Guard("canTransition").Do("recordTransition").
			On(EventFail).Target(stateFailed).Do("recordTransition").
			Done().
		State(stateLooping).
			OnEntry("logEntry").
			On(EventExitLoop).Target(stateRunning).Guard("canTransition").Do("recordTransition").
			On(EventFail).Target(stateFailed).Do("recordTransition").
			Done().
		State(stateCompleted).
			Final().
			OnEntry("logEntry").
			Done().
		State(stateFailed).
			Final().
			OnEntry("logEntry").
			Done().
		Build()
}
