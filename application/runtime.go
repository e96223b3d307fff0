// Package application wires the tool catalog, the middleware chain, the
// stores and the workflow runner into the runtime the front-ends use.
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	inframw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
	"github.com/ibmi-agents/db2i-go/infrastructure/resilience"
)

// Runtime executes tools through the middleware chain and records calls
// made under a session ID.
type Runtime struct {
	registry tool.Registry
	sessions session.Store
	handler  middleware.Handler
}

// RuntimeConfig contains configuration for the runtime.
type RuntimeConfig struct {
	Registry tool.Registry
	Sessions session.Store

	// Cache stores results of cacheable tools. Nil disables caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	// Schema scopes cache keys to the connected Db2 schema.
	Schema string

	// Approver confirms destructive tools. Nil rejects them.
	Approver inframw.Approver
	Executor *resilience.Executor

	// RateLimit is calls per second per tool; zero disables limiting.
	RateLimit int
	RateBurst int

	Tracer trace.Tracer
	Meter  metric.Meter

	// Middleware replaces the default chain when non-empty.
	Middleware []middleware.Middleware
}

// NewRuntime creates a runtime with the given configuration.
func NewRuntime(config RuntimeConfig) (*Runtime, error) {
	if config.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if config.Executor == nil {
		config.Executor = resilience.NewDefaultExecutor()
	}

	chain := config.Middleware
	if len(chain) == 0 {
		chain = defaultChain(config)
	}

	return &Runtime{
		registry: config.Registry,
		sessions: config.Sessions,
		handler:  middleware.Chain(chain...)(middleware.Execute),
	}, nil
}

// defaultChain orders the middleware outermost first. Cached results skip
// the rate limit and the resilience policy.
func defaultChain(c RuntimeConfig) []middleware.Middleware {
	tracing := inframw.DefaultTracingConfig()
	tracing.Tracer = c.Tracer

	return []middleware.Middleware{
		inframw.Logging(inframw.LoggingConfig{}),
		inframw.Tracing(tracing),
		inframw.Metrics(inframw.MetricsConfig{Meter: c.Meter}),
		inframw.Session(inframw.SessionConfig{Store: c.Sessions, MaxOutput: 64 * 1024}),
		inframw.Approval(inframw.ApprovalConfig{Approver: c.Approver}),
		inframw.Validation(inframw.DefaultValidationConfig()),
		inframw.Caching(inframw.CachingConfig{Cache: c.Cache, TTL: c.CacheTTL, Schema: c.Schema}),
		inframw.RateLimit(inframw.RateLimitConfig{Scope: inframw.ScopePerTool, Rate: c.RateLimit, Burst: c.RateBurst}),
		inframw.Resilience(c.Executor),
	}
}

// Call is one tool invocation.
type Call struct {
	SessionID string
	Agent     string
	Tool      string
	Input     json.RawMessage
}

// Execute runs a tool by name.
func (r *Runtime) Execute(ctx context.Context, sessionID, name string, input json.RawMessage) (tool.Result, error) {
	return r.ExecuteCall(ctx, Call{SessionID: sessionID, Tool: name, Input: input})
}

// ExecuteCall runs a call through the middleware chain.
func (r *Runtime) ExecuteCall(ctx context.Context, call Call) (tool.Result, error) {
	t, ok := r.registry.Get(call.Tool)
	if !ok {
		return tool.Result{}, fmt.Errorf("%w: %s", tool.ErrToolNotFound, call.Tool)
	}
	return r.handler(ctx, &middleware.ExecutionContext{
		SessionID: call.SessionID,
		Agent:     call.Agent,
		Tool:      t,
		Input:     call.Input,
	})
}

// ExecuteText runs a tool and renders failures as "Error: <message>".
func (r *Runtime) ExecuteText(ctx context.Context, sessionID, name string, input json.RawMessage) string {
	res, err := r.Execute(ctx, sessionID, name, input)
	if err != nil {
		return "Error: " + err.Error()
	}
	return res.Text()
}

// Tools returns the registered tools sorted by name.
func (r *Runtime) Tools() []tool.Tool {
	return r.registry.List()
}

// Registry returns the tool registry.
func (r *Runtime) Registry() tool.Registry {
	return r.registry
}

// Sessions returns the session store, which may be nil.
func (r *Runtime) Sessions() session.Store {
	return r.sessions
}
