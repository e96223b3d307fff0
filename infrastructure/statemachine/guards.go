package statemachine

import "github.com/felixgeelhaar/statekit"

// guardCanTransition checks the event against the transition table.
// Guards receive the context by value, which is *Run here.
func guardCanTransition(r *Run, event statekit.Event) bool {
	if r == nil {
		return false
	}
	_, ok := Target(r.State, event.Type)
	return ok
}
