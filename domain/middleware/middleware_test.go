package middleware_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/middleware"
	"github.com/ibmi-agents/db2i-go/domain/tool"
)

func TestChain_Order(t *testing.T) {
	t.Parallel()

	var order []string
	mark := func(name string) middleware.Middleware {
		return func(next middleware.Handler) middleware.Handler {
			return func(ctx context.Context, ec *middleware.ExecutionContext) (tool.Result, error) {
				order = append(order, "before-"+name)
				res, err := next(ctx, ec)
				order = append(order, "after-"+name)
				return res, err
			}
		}
	}

	echo := tool.NewBuilder("echo").
		WithHandler(func(_ context.Context, in json.RawMessage) (tool.Result, error) {
			order = append(order, "tool")
			return tool.NewResult(in), nil
		}).
		MustBuild()

	h := middleware.Chain(mark("1"), nil, mark("2"))(middleware.Execute)
	res, err := h(context.Background(), &middleware.ExecutionContext{Tool: echo, Input: json.RawMessage(`"x"`)})
	if err != nil {
		t.Fatalf("handler error = %v", err)
	}
	if res.Text() != "x" {
		t.Errorf("Text() = %q", res.Text())
	}

	want := []string{"before-1", "before-2", "tool", "after-2", "after-1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, order[i], want[i])
		}
	}
}

func TestExecutionContext_Set(t *testing.T) {
	t.Parallel()

	var ec middleware.ExecutionContext
	ec.Set("approved", true)
	if ec.Vars["approved"] != true {
		t.Errorf("Vars = %v", ec.Vars)
	}
}
