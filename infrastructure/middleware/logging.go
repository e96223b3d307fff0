// Package middleware provides the middleware that wraps every tool call
// made through the runtime.
package middleware

import (
	"context"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// LoggingConfig configures the logging middleware.
type LoggingConfig struct {
	// LogInput logs the tool input.
	LogInput bool
	// LogOutput logs the tool output, clipped to 500 bytes.
	LogOutput bool
}

// Logging returns middleware that logs tool execution.
func Logging(cfg LoggingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			start := time.Now()

			entry := logging.Info().
				Add(logging.SessionID(execCtx.SessionID)).
				Add(logging.Tool(execCtx.Tool.Name()))
			if execCtx.Agent != "" {
				entry = entry.Add(logging.Str("agent", execCtx.Agent))
			}
			if cfg.LogInput && len(execCtx.Input) > 0 {
				entry = entry.Add(logging.Str("input", string(execCtx.Input)))
			}
			entry.Msg("executing tool")

			result, err := next(ctx, execCtx)
			duration := time.Since(start)

			if err != nil {
				logging.Error().
					Add(logging.SessionID(execCtx.SessionID)).
					Add(logging.Tool(execCtx.Tool.Name())).
					Add(logging.ErrorField(err)).
					Add(logging.Duration(duration)).
					Msg("tool execution failed")
				return result, err
			}

			done := logging.Info().
				Add(logging.SessionID(execCtx.SessionID)).
				Add(logging.Tool(execCtx.Tool.Name())).
				Add(logging.Duration(duration)).
				Add(logging.Cached(result.Cached))
			if cfg.LogOutput && len(result.Output) > 0 {
				output := string(result.Output)
				if len(output) > 500 {
					output = output[:500] + "..."
				}
				done = done.Add(logging.Str("output", output))
			}
			done.Msg("tool executed")

			return result, nil
		}
	}
}
