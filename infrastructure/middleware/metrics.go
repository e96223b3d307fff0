package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Instrument names recorded by the metrics middleware.
const (
	MetricCalls    = "db2i.tool.calls"
	MetricErrors   = "db2i.tool.errors"
	MetricDuration = "db2i.tool.duration"
)

// MetricsConfig configures the metrics middleware.
type MetricsConfig struct {
	// Meter creates the instruments. Defaults to the global meter "db2i".
	Meter metric.Meter
}

type toolInstruments struct {
	calls    metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

func newToolInstruments(meter metric.Meter) (*toolInstruments, error) {
	calls, err := meter.Int64Counter(MetricCalls,
		metric.WithDescription("Tool calls made through the runtime"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(MetricErrors,
		metric.WithDescription("Tool calls that returned an error"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(MetricDuration,
		metric.WithDescription("Tool call duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	return &toolInstruments{calls: calls, errors: errs, duration: duration}, nil
}

// Metrics returns middleware that records call counts, error counts and
// durations per tool as OpenTelemetry instruments.
func Metrics(cfg MetricsConfig) middleware.Middleware {
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("db2i")
	}

	inst, err := newToolInstruments(meter)
	if err != nil {
		logging.Warn().Add(logging.ErrorField(err)).Msg("tool metrics disabled")
		return middleware.Noop()
	}

	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, execCtx *middleware.ExecutionContext) (tool.Result, error) {
			start := time.Now()
			result, err := next(ctx, execCtx)

			attrs := metric.WithAttributes(
				attribute.String("tool", execCtx.Tool.Name()),
				attribute.String("category", execCtx.Tool.Category()),
			)
			inst.calls.Add(ctx, 1, attrs)
			inst.duration.Record(ctx, time.Since(start).Seconds(), attrs)
			if err != nil {
				inst.errors.Add(ctx, 1, attrs)
			}
			return result, err
		}
	}
}
