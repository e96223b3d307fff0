package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// CachingConfig configures the caching middleware.
type CachingConfig struct {
	// Cache stores results. Nil disables caching.
	Cache cache.Cache

	// TTL is how long a result stays valid. Zero never expires.
	TTL time.Duration

	// Schema scopes the keys to the connected Db2 schema.
	Schema string
}

// Caching returns middleware that serves repeated calls of cacheable tools
// from the cache. Only successful results are stored and cache errors never
// fail the call. A successful tool that is not read-only may have changed
// the system, so every cached tool result is dropped after it.
func Caching(cfg CachingConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			if cfg.Cache == nil {
				return next(ctx, execCtx)
			}
			name := execCtx.Tool.Name()
			an := execCtx.Tool.Annotations()

			if !an.CanCache() {
				result, err := next(ctx, execCtx)
				if err == nil && !an.ReadOnly {
					n, ierr := cfg.Cache.Invalidate(ctx, cache.Prefix)
					if ierr != nil {
						logging.Warn().Add(logging.Tool(name)).Add(logging.ErrorField(ierr)).Msg("cache invalidation failed")
					} else if n > 0 {
						logging.Debug().Add(logging.Tool(name)).Add(logging.Int("entries", n)).Msg("cache invalidated")
					}
				}
				return result, err
			}

			key := CacheKey(cfg.Schema, name, execCtx.Input)

			raw, ok, err := cfg.Cache.Get(ctx, key)
			if err != nil {
				logging.Warn().Add(logging.Tool(name)).Add(logging.ErrorField(err)).Msg("cache read failed")
			}
			if ok {
				return tool.Result{Output: json.RawMessage(raw), Cached: true}, nil
			}

			result, err := next(ctx, execCtx)
			if err != nil {
				return result, err
			}

			if err := cfg.Cache.Set(ctx, key, result.Output, cfg.TTL); err != nil {
				logging.Warn().Add(logging.Tool(name)).Add(logging.ErrorField(err)).Msg("cache write failed")
			}
			return result, nil
		}
	}
}

// CacheKey generates the key for a tool invocation against schema.
func CacheKey(schema, toolName string, input []byte) string {
	return cache.Key{Schema: schema, Tool: toolName, Input: input}.String()
}
