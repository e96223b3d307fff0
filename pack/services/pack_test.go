package services_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i/db2itest"
	"github.com/ibmi-agents/db2i-go/pack/services"
)

func TestGetServicesByCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantQuery bool
		wantText  string
	}{
		{"known", `{"category":"work management"}`, true, "SERVICE_NAME"},
		{"unknown", `{"category":"GAMES"}`, false, "Invalid category 'GAMES'. Valid categories are: PTF, SECURITY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := db2itest.NewRecorder(db2itest.Reply{
				Match:  "service_category",
				Result: db2itest.Rows([]string{"SERVICE_NAME"}, []any{"ACTIVE_JOB_INFO"}),
			})
			p, _ := services.New(rec)
			tl, _ := p.GetTool("get_services_by_category")

			res, err := tl.Execute(context.Background(), json.RawMessage(tt.input))
			if err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			if !strings.Contains(res.Text(), tt.wantText) {
				t.Errorf("Text() = %q", res.Text())
			}
			calls := rec.Calls()
			if tt.wantQuery != (len(calls) == 1) {
				t.Fatalf("calls = %d", len(calls))
			}
			if tt.wantQuery && calls[0].Args[0] != "WORK MANAGEMENT" {
				t.Errorf("Args = %v", calls[0].Args)
			}
		})
	}
}

func TestGetServiceInfo(t *testing.T) {
	t.Parallel()

	rec := db2itest.NewRecorder(db2itest.Reply{
		Match:  "service_name = ?",
		Result: db2itest.Rows([]string{"SERVICE_NAME", "EXAMPLE"}, []any{"JVM_INFO", "SELECT * FROM QSYS2.JVM_INFO"}),
	})
	p, _ := services.New(rec)
	tl, _ := p.GetTool("get_service_info")

	res, _ := tl.Execute(context.Background(), json.RawMessage(`{"service_name":"jvm_info"}`))
	if !strings.Contains(res.Text(), `"EXAMPLE":"SELECT * FROM QSYS2.JVM_INFO"`) {
		t.Errorf("Text() = %q", res.Text())
	}

	empty, _ := services.New(db2itest.NewRecorder())
	tl, _ = empty.GetTool("get_service_info")
	res, _ = tl.Execute(context.Background(), json.RawMessage(`{"service_name":"NOPE"}`))
	if res.Text() != "Invalid Service name: NOPE" {
		t.Errorf("Text() = %q", res.Text())
	}
}

func TestGenerateSQLDefinition(t *testing.T) {
	t.Parallel()

	rec := db2itest.NewRecorder(db2itest.Reply{
		Match: "GENERATE_SQL",
		Result: db2itest.Rows([]string{"SRCDTA"},
			[]any{"CREATE OR REPLACE VIEW QSYS2.JVM_INFO ("},
			[]any{"  JOB_NAME ) AS SELECT 1   "},
		),
	})
	p, _ := services.New(rec)
	tl, _ := p.GetTool("generate_sql_definition")

	res, err := tl.Execute(context.Background(), json.RawMessage(`{"object":"jvm_info","library":"qsys2","type":"view"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Text() != "CREATE OR REPLACE VIEW QSYS2.JVM_INFO (\n  JOB_NAME ) AS SELECT 1" {
		t.Errorf("Text() = %q", res.Text())
	}
	last, _ := rec.Last()
	if last.Args[0] != "JVM_INFO" || last.Args[1] != "QSYS2" || last.Args[2] != "VIEW" {
		t.Errorf("Args = %v", last.Args)
	}

	none, _ := services.New(db2itest.NewRecorder())
	tl, _ = none.GetTool("generate_sql_definition")
	res, _ = tl.Execute(context.Background(), json.RawMessage(`{"object":"X","library":"Y","type":"VIEW"}`))
	if res.Text() != "No generated sql for service: Y.X of type: VIEW" {
		t.Errorf("Text() = %q", res.Text())
	}
}

func TestListServiceCategories(t *testing.T) {
	t.Parallel()

	p, _ := services.New(db2itest.NewRecorder())
	tl, _ := p.GetTool("list_service_categories")
	res, _ := tl.Execute(context.Background(), nil)
	if lines := strings.Split(res.Text(), "\n"); len(lines) != len(services.Categories) || lines[0] != "PTF: 8" {
		t.Errorf("lines = %v", lines)
	}
}
