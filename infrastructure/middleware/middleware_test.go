package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	domainmw "github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	mw "github.com/ibmi-agents/db2i-go/infrastructure/middleware"
	"github.com/ibmi-agents/db2i-go/infrastructure/resilience"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/memory"
)

type countingTool struct {
	calls atomic.Int32
	tool.Tool
}

func newTool(t *testing.T, name string, configure func(*tool.Builder), handler tool.Handler) *countingTool {
	t.Helper()
	ct := &countingTool{}
	if handler == nil {
		handler = func(context.Context, json.RawMessage) (tool.Result, error) {
			return tool.TextResult(name + " ok"), nil
		}
	}
	b := tool.NewBuilder(name).WithCategory("test").WithHandler(func(ctx context.Context, in json.RawMessage) (tool.Result, error) {
		ct.calls.Add(1)
		return handler(ctx, in)
	})
	if configure != nil {
		configure(b)
	}
	ct.Tool = b.MustBuild()
	return ct
}

func run(t *testing.T, m domainmw.Middleware, ec *domainmw.ExecutionContext) (tool.Result, error) {
	t.Helper()
	return domainmw.Chain(m)(domainmw.Execute)(context.Background(), ec)
}

func TestLogging(t *testing.T) {
	t.Parallel()

	ct := newTool(t, "get_system_status", nil, nil)
	res, err := run(t, mw.Logging(mw.LoggingConfig{LogInput: true, LogOutput: true}),
		&domainmw.ExecutionContext{SessionID: "s1", Tool: ct, Input: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text() != "get_system_status ok" {
		t.Errorf("Text() = %q", res.Text())
	}
}

func TestTracing(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	cfg := mw.DefaultTracingConfig()
	cfg.Tracer = tp.Tracer("test")

	ok := newTool(t, "list_ptf_groups", func(b *tool.Builder) { b.ReadOnly() }, nil)
	failing := newTool(t, "broken", nil, func(context.Context, json.RawMessage) (tool.Result, error) {
		return tool.Result{}, errors.New("SQL0204")
	})

	if _, err := run(t, mw.Tracing(cfg), &domainmw.ExecutionContext{SessionID: "s1", Tool: ok, Input: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := run(t, mw.Tracing(cfg), &domainmw.ExecutionContext{Tool: failing}); err == nil {
		t.Fatal("expected error")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name != "tool.list_ptf_groups" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	var sawCategory bool
	for _, kv := range spans[0].Attributes {
		if string(kv.Key) == "tool.category" && kv.Value.AsString() == "test" {
			sawCategory = true
		}
	}
	if !sawCategory {
		t.Error("tool.category attribute missing")
	}
	if spans[1].Status.Description != "SQL0204" {
		t.Errorf("error status = %q", spans[1].Status.Description)
	}
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m := mw.Metrics(mw.MetricsConfig{Meter: provider.Meter("test")})

	ok := newTool(t, "ok", nil, nil)
	bad := newTool(t, "bad", nil, func(context.Context, json.RawMessage) (tool.Result, error) {
		return tool.Result{}, errors.New("boom")
	})
	for i := 0; i < 2; i++ {
		_, _ = run(t, m, &domainmw.ExecutionContext{Tool: ok})
	}
	_, _ = run(t, m, &domainmw.ExecutionContext{Tool: bad})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	sums := map[string]int64{}
	var sawDuration bool
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			switch data := metric.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[metric.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				if metric.Name == mw.MetricDuration {
					sawDuration = true
				}
			}
		}
	}
	if sums[mw.MetricCalls] != 3 {
		t.Errorf("%s = %d, want 3", mw.MetricCalls, sums[mw.MetricCalls])
	}
	if sums[mw.MetricErrors] != 1 {
		t.Errorf("%s = %d, want 1", mw.MetricErrors, sums[mw.MetricErrors])
	}
	if !sawDuration {
		t.Errorf("%s not recorded", mw.MetricDuration)
	}
}

func TestSession(t *testing.T) {
	t.Parallel()

	store := memory.NewSessionStore()
	m := mw.Session(mw.SessionConfig{Store: store, MaxOutput: 5})

	ok := newTool(t, "get_system_values", nil, nil)
	bad := newTool(t, "broken", nil, func(context.Context, json.RawMessage) (tool.Result, error) {
		return tool.Result{}, errors.New("connection lost")
	})

	_, _ = run(t, m, &domainmw.ExecutionContext{SessionID: "shell-1", Agent: "ptf-assistant", Tool: ok, Input: json.RawMessage(`{"a":1}`)})
	_, _ = run(t, m, &domainmw.ExecutionContext{SessionID: "shell-1", Tool: bad})
	_, _ = run(t, m, &domainmw.ExecutionContext{Tool: ok})

	sess, err := store.Get(context.Background(), "shell-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if sess.Agent != "ptf-assistant" {
		t.Errorf("Agent = %q", sess.Agent)
	}
	if len(sess.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(sess.Entries))
	}
	if sess.Entries[0].Output != "get_s..." {
		t.Errorf("clipped output = %q", sess.Entries[0].Output)
	}
	if sess.Entries[1].Error != "connection lost" {
		t.Errorf("error = %q", sess.Entries[1].Error)
	}
	list, _ := store.List(context.Background(), 10)
	if len(list) != 1 {
		t.Errorf("sessions = %d, want 1 (calls without a session are not recorded)", len(list))
	}
}

func TestApproval(t *testing.T) {
	t.Parallel()

	deny := mw.ApproverFunc(func(context.Context, mw.ApprovalRequest) (mw.ApprovalResponse, error) {
		return mw.ApprovalResponse{Approved: false, Reason: "not today"}, nil
	})

	tests := []struct {
		name     string
		approver mw.Approver
		vars     map[string]any
		wantErr  error
		wantRuns int32
	}{
		{"no approver", nil, nil, tool.ErrApprovalRequired, 0},
		{"denied", deny, nil, tool.ErrApprovalDenied, 0},
		{"approved", mw.AutoApprover(), nil, nil, 1},
		{"pre-approved", nil, map[string]any{mw.VarApproved: true}, nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ct := newTool(t, "run_corrective_query", func(b *tool.Builder) { b.Destructive() }, nil)
			_, err := run(t, mw.Approval(mw.ApprovalConfig{Approver: tt.approver}),
				&domainmw.ExecutionContext{Tool: ct, Vars: tt.vars})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := ct.calls.Load(); got != tt.wantRuns {
				t.Errorf("runs = %d, want %d", got, tt.wantRuns)
			}
		})
	}

	readOnly := newTool(t, "list_ptf_groups", func(b *tool.Builder) { b.ReadOnly() }, nil)
	if _, err := run(t, mw.Approval(mw.ApprovalConfig{}), &domainmw.ExecutionContext{Tool: readOnly}); err != nil {
		t.Errorf("read-only tool should not need approval: %v", err)
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()

	schema := tool.ObjectSchema(map[string]tool.Property{
		"table_name": tool.String("Table"),
		"limit":      tool.Integer("Rows", 10),
	}, "table_name")

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", `{"table_name":"EMPLOYEE"}`, false},
		{"valid with limit", `{"table_name":"EMPLOYEE","limit":5}`, false},
		{"missing required", `{}`, true},
		{"empty input", ``, true},
		{"wrong type", `{"table_name":"X","limit":"five"}`, true},
		{"below minimum", `{"table_name":"X","limit":0}`, true},
		{"not json", `{table_name}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ct := newTool(t, "describe_table", func(b *tool.Builder) { b.WithInputSchema(schema) }, nil)
			_, err := run(t, mw.Validation(mw.DefaultValidationConfig()),
				&domainmw.ExecutionContext{Tool: ct, Input: json.RawMessage(tt.input)})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, tool.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestValidateInput_EmptyBecomesObject(t *testing.T) {
	t.Parallel()

	ct := newTool(t, "list_tables", nil, nil)
	in, err := mw.ValidateInput(ct, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(in) != "{}" {
		t.Errorf("input = %s, want {}", in)
	}
	if _, err := mw.ValidateInput(ct, nil, true); err == nil {
		t.Error("RejectEmpty should reject nil input")
	}
}

func TestCaching(t *testing.T) {
	t.Parallel()

	c := memory.NewCache()
	m := mw.Caching(mw.CachingConfig{Cache: c, Schema: "sample"})

	cacheable := newTool(t, "get_system_status", func(b *tool.Builder) { b.ReadOnly().Cacheable() }, nil)
	plain := newTool(t, "get_active_jobs", func(b *tool.Builder) { b.ReadOnly() }, nil)

	for i := 0; i < 3; i++ {
		res, err := run(t, m, &domainmw.ExecutionContext{Tool: cacheable, Input: json.RawMessage(`{}`)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if i > 0 && !res.Cached {
			t.Errorf("call %d should be served from cache", i)
		}
		if res.Text() != "get_system_status ok" {
			t.Errorf("Text() = %q", res.Text())
		}
		_, _ = run(t, m, &domainmw.ExecutionContext{Tool: plain, Input: json.RawMessage(`{}`)})
	}
	if got := cacheable.calls.Load(); got != 1 {
		t.Errorf("cacheable runs = %d, want 1", got)
	}
	if got := plain.calls.Load(); got != 3 {
		t.Errorf("plain runs = %d, want 3", got)
	}

	_, _ = run(t, m, &domainmw.ExecutionContext{Tool: cacheable, Input: json.RawMessage(`{"x":1}`)})
	if got := cacheable.calls.Load(); got != 2 {
		t.Errorf("different input should miss: runs = %d", got)
	}
}

func TestCaching_WriteInvalidates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := memory.NewCache()
	m := mw.Caching(mw.CachingConfig{Cache: c, Schema: "SAMPLE"})

	status := newTool(t, "get_system_status", func(b *tool.Builder) { b.ReadOnly().Cacheable() }, nil)
	failing := newTool(t, "run_corrective_query", func(b *tool.Builder) { b.Destructive() },
		func(context.Context, json.RawMessage) (tool.Result, error) {
			return tool.Result{}, errors.New("CPF2204")
		})
	corrective := newTool(t, "run_corrective_query", func(b *tool.Builder) { b.Destructive() }, nil)

	other := mw.CacheKey("PRODLIB", "list_tables", []byte(`{}`))
	if err := c.Set(ctx, other, []byte(`"x"`), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	_, _ = run(t, m, &domainmw.ExecutionContext{Tool: status, Input: json.RawMessage(`{}`)})
	_, _ = run(t, m, &domainmw.ExecutionContext{Tool: failing, Input: json.RawMessage(`{}`)})
	if res, _ := run(t, m, &domainmw.ExecutionContext{Tool: status, Input: json.RawMessage(`{}`)}); !res.Cached {
		t.Error("a failed write should keep cached results")
	}

	_, _ = run(t, m, &domainmw.ExecutionContext{Tool: corrective, Input: json.RawMessage(`{}`)})
	if res, _ := run(t, m, &domainmw.ExecutionContext{Tool: status, Input: json.RawMessage(`{}`)}); res.Cached {
		t.Error("a successful write should drop cached results")
	}
	if _, ok, _ := c.Get(ctx, other); ok {
		t.Error("results of other schemas should be dropped too")
	}
	if got := status.calls.Load(); got != 2 {
		t.Errorf("status runs = %d, want 2", got)
	}
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	a := mw.CacheKey("sample", "t", []byte(`{}`))
	if !strings.HasPrefix(a, "db2i:tool:SAMPLE:t:") {
		t.Errorf("key = %q", a)
	}
	if a == mw.CacheKey("sample", "t", []byte(`{"a":1}`)) {
		t.Error("keys should differ by input")
	}
	if a == mw.CacheKey("prodlib", "t", []byte(`{}`)) {
		t.Error("keys should differ by schema")
	}
}

func TestResilience(t *testing.T) {
	t.Parallel()

	exec := resilience.NewExecutorWithOptions(resilience.WithRetryDelay(0))
	var failures atomic.Int32
	ct := newTool(t, "get_memory_pools", func(b *tool.Builder) { b.ReadOnly() },
		func(context.Context, json.RawMessage) (tool.Result, error) {
			if failures.Add(1) < 2 {
				return tool.Result{}, errors.New("transient")
			}
			return tool.TextResult("pools"), nil
		})

	res, err := run(t, mw.Resilience(exec), &domainmw.ExecutionContext{Tool: ct})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text() != "pools" {
		t.Errorf("Text() = %q", res.Text())
	}

	invalid := newTool(t, "bad_input", func(b *tool.Builder) { b.ReadOnly() },
		func(context.Context, json.RawMessage) (tool.Result, error) {
			return tool.Result{}, tool.ErrInvalidInput
		})
	if _, err := run(t, mw.Resilience(exec), &domainmw.ExecutionContext{Tool: invalid}); !errors.Is(err, tool.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	if got := invalid.calls.Load(); got != 1 {
		t.Errorf("invalid input retried: runs = %d", got)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	m := mw.RateLimit(mw.RateLimitConfig{Rate: 1, Burst: 2, Scope: mw.ScopePerTool})
	a := newTool(t, "a", nil, nil)
	b := newTool(t, "b", nil, nil)

	var rejected int
	for i := 0; i < 3; i++ {
		if _, err := run(t, m, &domainmw.ExecutionContext{Tool: a}); errors.Is(err, mw.ErrRateLimitExceeded) {
			rejected++
		}
	}
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
	if _, err := run(t, m, &domainmw.ExecutionContext{Tool: b}); err != nil {
		t.Errorf("separate tool bucket: %v", err)
	}

	if _, err := run(t, mw.RateLimit(mw.RateLimitConfig{}), &domainmw.ExecutionContext{Tool: a}); err != nil {
		t.Errorf("zero rate disables limiting: %v", err)
	}
}
