package middleware

import (
	"context"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/resilience"
)

// Resilience returns middleware that runs the rest of the chain under the
// executor's bulkhead, timeout, circuit breaker and retry policy.
func Resilience(executor *resilience.Executor) middleware.Middleware {
	if executor == nil {
		return middleware.Noop()
	}
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			return executor.Run(ctx, execCtx.Tool, func(ctx context.Context) (tool.Result, error) {
				return next(ctx, execCtx)
			})
		}
	}
}
