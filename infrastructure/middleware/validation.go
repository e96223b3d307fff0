package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
)

// ValidationConfig configures the input validation middleware.
type ValidationConfig struct {
	// RejectEmpty rejects calls without input instead of treating them as {}.
	RejectEmpty bool
}

// DefaultValidationConfig returns a sensible default configuration.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{}
}

// Validation returns middleware that validates tool input against the
// tool's declared JSON schema. Failures wrap tool.ErrInvalidInput.
func Validation(cfg ValidationConfig) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			input, err := ValidateInput(execCtx.Tool, execCtx.Input, cfg.RejectEmpty)
			if err != nil {
				return tool.Result{}, fmt.Errorf("%w: %v", tool.ErrInvalidInput, err)
			}
			execCtx.Input = input
			return next(ctx, execCtx)
		}
	}
}

// ValidateInput checks input against the tool's input schema and returns
// the input to pass on. Empty input becomes {} unless rejectEmpty is set.
func ValidateInput(t tool.Tool, input json.RawMessage, rejectEmpty bool) (json.RawMessage, error) {
	if len(input) == 0 || string(input) == "null" {
		if rejectEmpty {
			return nil, errors.New("input is empty or null")
		}
		input = json.RawMessage(`{}`)
	}

	if !json.Valid(input) {
		return nil, errors.New("input is not valid JSON")
	}

	schema := t.InputSchema()
	if schema.IsEmpty() {
		return input, nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema.Raw()),
		gojsonschema.NewBytesLoader(input),
	)
	if err != nil {
		return nil, fmt.Errorf("input schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, fmt.Errorf("input schema validation failed: %s", strings.Join(msgs, "; "))
	}
	return input, nil
}
