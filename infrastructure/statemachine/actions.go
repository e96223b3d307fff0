package statemachine

import (
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Actions receive **Run because the machine context type is *Run.

func logStateEntry(ctx **Run, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	r := *ctx
	to := r.State
	if payload, ok := event.Payload.(TransitionPayload); ok {
		to = payload.To
	}
	logging.Debug().
		Add(logging.Workflow(r.Workflow)).
		Add(logging.Str("run_id", r.ID)).
		Add(logging.Str("state", string(to))).
		Msg("workflow run state entered")
}

func recordTransition(ctx **Run, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	r := *ctx
	payload, _ := event.Payload.(TransitionPayload)
	to := payload.To
	if to == "" {
		to, _ = Target(r.State, event.Type)
	}
	r.History = append(r.History, Transition{
		From:   r.State,
		To:     to,
		Reason: payload.Reason,
		At:     time.Now().UTC(),
	})
	if r.State == StatePending && to == StateRunning {
		r.StartedAt = time.Now().UTC()
	}
	if to == StateLooping {
		r.Iterations = 0
	}
	if to.IsTerminal() {
		r.EndedAt = time.Now().UTC()
	}
	if to == StateFailed && payload.Reason != "" {
		r.Error = payload.Reason
	}
	r.State = to
}

