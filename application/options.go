package application

import (
	"time"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	inframw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
	"github.com/ibmi-agents/db2i-go/infrastructure/resilience"
)

// Option configures the runtime.
type Option func(*RuntimeConfig)

// WithRegistry sets the tool registry.
func WithRegistry(r tool.Registry) Option {
	return func(c *RuntimeConfig) {
		c.Registry = r
	}
}

// WithSessions sets the session store calls are recorded in.
func WithSessions(s session.Store) Option {
	return func(c *RuntimeConfig) {
		c.Sessions = s
	}
}

// WithCache enables result caching for cacheable tools.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cfg *RuntimeConfig) {
		cfg.Cache = c
		cfg.CacheTTL = ttl
	}
}

// WithSchema scopes cached results to a Db2 schema.
func WithSchema(schema string) Option {
	return func(c *RuntimeConfig) {
		c.Schema = schema
	}
}

// WithApprover sets the approval handler.
func WithApprover(a inframw.Approver) Option {
	return func(c *RuntimeConfig) {
		c.Approver = a
	}
}

// WithExecutor sets the resilient executor.
func WithExecutor(e *resilience.Executor) Option {
	return func(c *RuntimeConfig) {
		c.Executor = e
	}
}

// WithRateLimit bounds calls per second per tool.
func WithRateLimit(rate, burst int) Option {
	return func(c *RuntimeConfig) {
		c.RateLimit = rate
		c.RateBurst = burst
	}
}

// WithMiddleware replaces the default chain.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(c *RuntimeConfig) {
		c.Middleware = mw
	}
}

// New creates a runtime from options.
func New(opts ...Option) (*Runtime, error) {
	var config RuntimeConfig
	for _, opt := range opts {
		opt(&config)
	}
	return NewRuntime(config)
}
