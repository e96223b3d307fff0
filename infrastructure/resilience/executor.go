// Package resilience applies timeouts, retries, circuit breaking and a
// concurrency limit to tool calls using fortify.
package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"

	"github.com/ibmi-agents/db2i-go/domain/tool"
)

// Executor runs tools with a shared bulkhead and a circuit breaker per tool.
type Executor struct {
	config   ExecutorConfig
	bulkhead bulkhead.Bulkhead[tool.Result]
	retry    retry.Retry[tool.Result]

	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[tool.Result]
}

// ExecutorConfig configures the resilient executor.
type ExecutorConfig struct {
	// MaxConcurrent limits concurrent tool executions. It should not exceed
	// the database pool size by much, or calls queue on the pool instead.
	MaxConcurrent int

	// CircuitBreakerThreshold is the number of consecutive transient
	// failures before a tool's breaker opens.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long the circuit stays open.
	CircuitBreakerTimeout time.Duration

	// RetryMaxAttempts is the maximum number of attempts for retryable tools.
	RetryMaxAttempts int

	// RetryInitialDelay is the initial delay between retries.
	RetryInitialDelay time.Duration

	// RetryBackoffMultiplier is the exponential backoff multiplier.
	RetryBackoffMultiplier float64

	// DefaultTimeout bounds tools that declare no timeout of their own.
	DefaultTimeout time.Duration

	// Permanent errors are returned at once: never retried and never
	// counted by the circuit breaker.
	Permanent []error
}

// DefaultExecutorConfig returns a configuration with sensible defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxConcurrent:           10,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
		RetryMaxAttempts:        3,
		RetryInitialDelay:       100 * time.Millisecond,
		RetryBackoffMultiplier:  2.0,
		DefaultTimeout:          60 * time.Second,
		Permanent: []error{
			tool.ErrInvalidInput,
			tool.ErrApprovalRequired,
			tool.ErrApprovalDenied,
			context.Canceled,
		},
	}
}

// NewExecutor creates a new resilient executor.
func NewExecutor(config ExecutorConfig) *Executor {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.RetryMaxAttempts <= 0 {
		config.RetryMaxAttempts = 1
	}

	return &Executor{
		config: config,
		bulkhead: bulkhead.New[tool.Result](bulkhead.Config{
			MaxConcurrent: config.MaxConcurrent,
		}),
		retry: retry.New[tool.Result](retry.Config{
			MaxAttempts:   config.RetryMaxAttempts,
			InitialDelay:  config.RetryInitialDelay,
			BackoffPolicy: retry.BackoffExponential,
			Multiplier:    config.RetryBackoffMultiplier,
		}),
		breakers: make(map[string]circuitbreaker.CircuitBreaker[tool.Result]),
	}
}

// NewDefaultExecutor creates an executor with default configuration.
func NewDefaultExecutor() *Executor {
	return NewExecutor(DefaultExecutorConfig())
}

func (e *Executor) breaker(name string) circuitbreaker.CircuitBreaker[tool.Result] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[name]; ok {
		return cb
	}
	threshold := uint32(e.config.CircuitBreakerThreshold) // #nosec G115 -- positive, checked in NewExecutor
	cb := circuitbreaker.New[tool.Result](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    e.config.CircuitBreakerTimeout,
		Timeout:     e.config.CircuitBreakerTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	})
	e.breakers[name] = cb
	return cb
}

// IsPermanent reports whether err matches a configured permanent error.
func (e *Executor) IsPermanent(err error) bool {
	for _, p := range e.config.Permanent {
		if errors.Is(err, p) {
			return true
		}
	}
	return false
}

// Timeout returns the bound applied to t.
func (e *Executor) Timeout(t tool.Tool) time.Duration {
	if s := t.Annotations().Timeout; s > 0 {
		return time.Duration(s) * time.Second
	}
	return e.config.DefaultTimeout
}

// Execute runs a tool with resilience patterns applied.
// Composition order: Bulkhead → Timeout → Circuit Breaker → Retry (retryable tools only)
func (e *Executor) Execute(ctx context.Context, t tool.Tool, input json.RawMessage) (tool.Result, error) {
	return e.Run(ctx, t, func(ctx context.Context) (tool.Result, error) {
		return t.Execute(ctx, input)
	})
}

// Run applies the resilience patterns for t around fn.
func (e *Executor) Run(ctx context.Context, t tool.Tool, fn func(context.Context) (tool.Result, error)) (tool.Result, error) {
	start := time.Now()

	// Permanent failures escape the breaker and the retry loop through this
	// variable so they are reported unchanged.
	var permanent error
	var mu sync.Mutex
	attempt := func(ctx context.Context) (tool.Result, error) {
		res, err := fn(ctx)
		if err != nil && e.IsPermanent(err) {
			mu.Lock()
			permanent = err
			mu.Unlock()
			return res, nil
		}
		return res, err
	}

	result, err := e.bulkhead.Execute(ctx, func(ctx context.Context) (tool.Result, error) {
		if timeout := e.Timeout(t); timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		return e.breaker(t.Name()).Execute(ctx, func(ctx context.Context) (tool.Result, error) {
			if t.Annotations().CanRetry() {
				return e.retry.Do(ctx, attempt)
			}
			return attempt(ctx)
		})
	})

	mu.Lock()
	defer mu.Unlock()
	if permanent != nil {
		return tool.Result{}, permanent
	}
	if err == nil {
		result.Duration = time.Since(start)
	}
	return result, err
}

// CircuitBreakerState returns the state of a tool's circuit breaker.
func (e *Executor) CircuitBreakerState(toolName string) circuitbreaker.State {
	return e.breaker(toolName).State()
}
