package jvm_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i/db2itest"
	"github.com/ibmi-agents/db2i-go/pack/jvm"
)

func TestLimitTools(t *testing.T) {
	t.Parallel()

	tests := []struct {
		tool  string
		input string
		want  string
	}{
		{"get_top_gc_jobs", `{}`, "ORDER BY TOTAL_GC_TIME DESC\nFETCH FIRST 10 ROWS ONLY"},
		{"get_top_gc_jobs", `{"limit":3}`, "FETCH FIRST 3 ROWS ONLY"},
		{"get_large_heap_jobs", `{"limit":0}`, "ORDER BY CURRENT_HEAP_SIZE DESC\nFETCH FIRST 10 ROWS ONLY"},
	}

	for _, tt := range tests {
		t.Run(tt.tool+tt.input, func(t *testing.T) {
			t.Parallel()

			rec := db2itest.NewRecorder()
			p, _ := jvm.New(rec)
			tl, _ := p.GetTool(tt.tool)
			if _, err := tl.Execute(context.Background(), json.RawMessage(tt.input)); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			last, _ := rec.Last()
			if !strings.HasSuffix(last.SQL, tt.want) {
				t.Errorf("SQL = %q, want suffix %q", last.SQL, tt.want)
			}
		})
	}
}

func TestGetJVMByUser(t *testing.T) {
	t.Parallel()

	rec := db2itest.NewRecorder()
	p, _ := jvm.New(rec)
	tl, _ := p.GetTool("get_jvm_by_user")

	if _, err := tl.Execute(context.Background(), json.RawMessage(`{"user":" qejbsvr "}`)); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	last, _ := rec.Last()
	if len(last.Args) != 1 || last.Args[0] != "QEJBSVR" {
		t.Errorf("Args = %v", last.Args)
	}

	_, err := tl.Execute(context.Background(), json.RawMessage(`{}`))
	if !errors.Is(err, tool.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

func TestGetJVMOptions(t *testing.T) {
	t.Parallel()

	p, _ := jvm.New(db2itest.NewRecorder())
	tl, _ := p.GetTool("get_jvm_options")
	res, _ := tl.Execute(context.Background(), nil)
	lines := strings.Split(res.Text(), "\n")
	if len(lines) != len(jvm.Options) || !strings.HasPrefix(lines[0], "GC_DISABLE_VERBOSE: ") {
		t.Errorf("lines = %v", lines)
	}
}
