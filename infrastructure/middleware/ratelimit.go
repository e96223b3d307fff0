package middleware

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// ErrRateLimitExceeded is returned when a call is rejected by the limiter.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimitScope defines the scope for rate limiting.
type RateLimitScope string

const (
	// ScopeGlobal shares one bucket across every call.
	ScopeGlobal RateLimitScope = "global"
	// ScopePerSession keeps a bucket per session.
	ScopePerSession RateLimitScope = "per_session"
	// ScopePerTool keeps a bucket per tool.
	ScopePerTool RateLimitScope = "per_tool"
)

// RateLimitConfig configures the rate limiting middleware.
type RateLimitConfig struct {
	// Limiter overrides the token bucket built from Rate and Burst.
	Limiter ratelimit.RateLimiter

	// Scope determines how keys are generated. Default is ScopeGlobal.
	Scope RateLimitScope

	// Rate is the number of calls allowed per second.
	Rate int

	// Burst is the bucket capacity. Defaults to Rate.
	Burst int

	// Wait blocks until capacity is available instead of rejecting.
	Wait bool
}

// RateLimit returns middleware that bounds how fast tools hit the system.
func RateLimit(cfg RateLimitConfig) middleware.Middleware {
	limiter := cfg.Limiter
	if limiter == nil {
		if cfg.Rate <= 0 {
			return middleware.Noop()
		}
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Rate
		}
		limiter = ratelimit.New(&ratelimit.Config{
			Rate:  cfg.Rate,
			Burst: burst,
		})
	}

	scope := cfg.Scope
	if scope == "" {
		scope = ScopeGlobal
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			key := rateLimitKey(scope, execCtx)

			if cfg.Wait {
				if err := limiter.Wait(ctx, key); err != nil {
					return tool.Result{}, errors.Join(ErrRateLimitExceeded, err)
				}
				return next(ctx, execCtx)
			}

			if !limiter.Allow(ctx, key) {
				logging.Warn().
					Add(logging.SessionID(execCtx.SessionID)).
					Add(logging.Tool(execCtx.Tool.Name())).
					Add(logging.Str("scope", string(scope))).
					Msg("rate limit exceeded")
				return tool.Result{}, ErrRateLimitExceeded
			}
			return next(ctx, execCtx)
		}
	}
}

func rateLimitKey(scope RateLimitScope, execCtx *middleware.ExecutionContext) string {
	switch scope {
	case ScopePerSession:
		return "session:" + execCtx.SessionID
	case ScopePerTool:
		return "tool:" + execCtx.Tool.Name()
	default:
		return "global"
	}
}
