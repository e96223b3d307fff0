package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
)

// TracingConfig configures the tracing middleware.
type TracingConfig struct {
	// TracerName names the tracer taken from the global provider.
	TracerName string

	// Tracer overrides the global tracer.
	Tracer trace.Tracer

	// RecordInput records the tool input as a span attribute.
	RecordInput bool

	// MaxAttributeSize limits the size of recorded attributes.
	MaxAttributeSize int

	// SpanNamePrefix is prepended to span names.
	SpanNamePrefix string
}

// DefaultTracingConfig returns a sensible default configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		TracerName:       "db2i",
		RecordInput:      true,
		MaxAttributeSize: 1024,
		SpanNamePrefix:   "tool.",
	}
}

// Tracing returns middleware that creates an OpenTelemetry span per tool call.
func Tracing(cfg TracingConfig) middleware.Middleware {
	tracer := cfg.Tracer
	if tracer == nil {
		name := cfg.TracerName
		if name == "" {
			name = "db2i"
		}
		tracer = otel.Tracer(name)
	}

	maxSize := cfg.MaxAttributeSize
	if maxSize <= 0 {
		maxSize = 1024
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			t := execCtx.Tool
			ctx, span := tracer.Start(ctx, cfg.SpanNamePrefix+t.Name(),
				trace.WithSpanKind(trace.SpanKindInternal))
			defer span.End()

			annotations := t.Annotations()
			attrs := []attribute.KeyValue{
				attribute.String("session.id", execCtx.SessionID),
				attribute.String("tool.name", t.Name()),
				attribute.String("tool.category", t.Category()),
				attribute.Bool("tool.read_only", annotations.ReadOnly),
				attribute.Bool("tool.destructive", annotations.Destructive),
				attribute.String("tool.risk_level", annotations.RiskLevel.String()),
			}
			if execCtx.Agent != "" {
				attrs = append(attrs, attribute.String("agent.name", execCtx.Agent))
			}
			if cfg.RecordInput && len(execCtx.Input) > 0 {
				attrs = append(attrs, attribute.String("tool.input", truncate(string(execCtx.Input), maxSize)))
			}
			span.SetAttributes(attrs...)

			result, err := next(ctx, execCtx)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}

			span.SetStatus(codes.Ok, "")
			span.SetAttributes(
				attribute.Int64("tool.duration_ms", result.Duration.Milliseconds()),
				attribute.Bool("tool.cached", result.Cached),
			)
			return result, nil
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
