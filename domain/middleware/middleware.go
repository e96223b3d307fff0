// Package middleware provides composable middleware around tool execution.
package middleware

import (
	"context"
	"encoding/json"

	"github.com/ibmi-agents/db2i-go/domain/tool"
)

// ExecutionContext carries one tool call through the middleware chain.
type ExecutionContext struct {
	// SessionID identifies the conversation or workflow run the call belongs to.
	SessionID string
	// Agent is the profile the call is made for, if any.
	Agent string
	// Tool is the tool being executed.
	Tool tool.Tool
	// Input is the JSON input for the tool.
	Input json.RawMessage
	// Vars carries values between middleware, such as approval decisions.
	Vars map[string]any
}

// Set stores a value in Vars, allocating the map on first use.
func (ec *ExecutionContext) Set(key string, value any) {
	if ec.Vars == nil {
		ec.Vars = make(map[string]any)
	}
	ec.Vars[key] = value
}

// Handler executes a tool and returns its result.
type Handler func(ctx context.Context, execCtx *ExecutionContext) (tool.Result, error)

// Middleware wraps a Handler with additional behavior.
type Middleware func(next Handler) Handler

// Chain composes middleware so Chain(A, B, C) runs A -> B -> C -> handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(final Handler) Handler {
		handler := final
		for i := len(middlewares) - 1; i >= 0; i-- {
			if middlewares[i] == nil {
				continue
			}
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Noop returns a middleware that passes calls through.
func Noop() Middleware {
	return func(next Handler) Handler {
		return next
	}
}

// Execute is the terminal handler that runs the tool itself.
func Execute(ctx context.Context, ec *ExecutionContext) (tool.Result, error) {
	return ec.Tool.Execute(ctx, ec.Input)
}
