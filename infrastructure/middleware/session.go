package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// SessionConfig configures the session recording middleware.
type SessionConfig struct {
	// Store receives one entry per call.
	Store session.Store

	// MaxOutput clips recorded outputs. Zero records them whole.
	MaxOutput int
}

// Session returns middleware that appends every call made with a session ID
// to that session's transcript. A missing session is created on first use.
// Recording failures are logged and never fail the call.
func Session(cfg SessionConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			if cfg.Store == nil || execCtx.SessionID == "" {
				return next(ctx, execCtx)
			}

			start := time.Now()
			result, err := next(ctx, execCtx)

			entry := session.Entry{
				Tool:     execCtx.Tool.Name(),
				Input:    execCtx.Input,
				Duration: time.Since(start),
				At:       start.UTC(),
			}
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Output = result.Text()
				if cfg.MaxOutput > 0 && len(entry.Output) > cfg.MaxOutput {
					entry.Output = entry.Output[:cfg.MaxOutput] + "..."
				}
			}

			// The caller's context may already be done; the entry is still recorded.
			recordCtx := context.WithoutCancel(ctx)
			if rerr := record(recordCtx, cfg.Store, execCtx, entry); rerr != nil {
				logging.Warn().
					Add(logging.SessionID(execCtx.SessionID)).
					Add(logging.Tool(entry.Tool)).
					Add(logging.ErrorField(rerr)).
					Msg("session entry not recorded")
			}

			return result, err
		}
	}
}

func record(ctx context.Context, store session.Store, execCtx *middleware.ExecutionContext, e session.Entry) error {
	err := store.Append(ctx, execCtx.SessionID, e)
	if !errors.Is(err, session.ErrNotFound) {
		return err
	}
	s := session.Session{
		ID:        execCtx.SessionID,
		Agent:     execCtx.Agent,
		CreatedAt: e.At,
	}
	if err := store.Create(ctx, s); err != nil {
		return err
	}
	return store.Append(ctx, execCtx.SessionID, e)
}
