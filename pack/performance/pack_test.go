package performance_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i/db2itest"
	"github.com/ibmi-agents/db2i-go/pack/performance"
)

func TestNew_OneToolPerMetric(t *testing.T) {
	t.Parallel()

	p, err := performance.New(db2itest.NewRecorder())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for _, m := range performance.Metrics {
		tl, ok := p.GetTool(m.Tool)
		if !ok {
			t.Errorf("missing tool %s", m.Tool)
			continue
		}
		if !tl.Annotations().CanCache() {
			t.Errorf("%s should be cacheable", m.Tool)
		}
	}
	for _, name := range []string{"get_active_jobs", "get_performance_metrics", "get_collection_services_config", "analyze_system_performance"} {
		if _, ok := p.GetTool(name); !ok {
			t.Errorf("missing tool %s", name)
		}
	}
}

func TestMetricTool_RunsItsQuery(t *testing.T) {
	t.Parallel()

	rec := db2itest.NewRecorder(db2itest.Reply{
		Match:  "qsys2.netstat_info",
		Result: db2itest.Rows([]string{"REMOTE_CONNECTIONS"}, []any{int64(12)}),
	})
	p, _ := performance.New(rec)
	tl, _ := p.GetTool("get_remote_connections")

	res, err := tl.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Text() != `[{"REMOTE_CONNECTIONS":12}]` {
		t.Errorf("Text() = %q", res.Text())
	}
}

func TestActiveJobs_Limit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  int
	}{
		{`{}`, 10},
		{`{"limit":3}`, 3},
		{`{"limit":-1}`, 10},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			rec := db2itest.NewRecorder()
			p, _ := performance.New(rec)
			tl, _ := p.GetTool("get_active_jobs")
			if _, err := tl.Execute(context.Background(), json.RawMessage(tt.input)); err != nil {
				t.Fatalf("Execute failed: %v", err)
			}
			last, _ := rec.Last()
			if last.SQL != performance.ActiveJobsSQL || last.Args[0] != tt.want {
				t.Errorf("call = %+v, want limit %d", last, tt.want)
			}
		})
	}
}

func TestGetPerformanceMetrics_Unknown(t *testing.T) {
	t.Parallel()

	rec := db2itest.NewRecorder()
	p, _ := performance.New(rec)
	tl, _ := p.GetTool("get_performance_metrics")
	res, _ := tl.Execute(context.Background(), json.RawMessage(`{"id":"cpu"}`))
	if !strings.HasPrefix(res.Text(), "cpu not valid metric") {
		t.Errorf("Text() = %q", res.Text())
	}
	if len(rec.Calls()) != 0 {
		t.Error("unknown metric ran a query")
	}
}

func TestAnalyzeSystemPerformance_SectionError(t *testing.T) {
	t.Parallel()

	rec := db2itest.NewRecorder(db2itest.Reply{
		Match: "MEMORY_POOL",
		Err:   errors.New("SQL0443 not authorized"),
	})
	p, _ := performance.New(rec)
	tl, _ := p.GetTool("analyze_system_performance")

	res, err := tl.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	want := "System Status:\n" + db2i.NoResults +
		"\n\nMemory Pool Usage:\nError: SQL0443 not authorized" +
		"\n\nSystem Activity:\n" + db2i.NoResults
	if res.Text() != want {
		t.Errorf("Text() = %q, want %q", res.Text(), want)
	}
	if len(rec.Calls()) != 3 {
		t.Errorf("calls = %d, want 3", len(rec.Calls()))
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	if _, ok := performance.Lookup("http_server"); !ok {
		t.Error("http_server should exist")
	}
	if _, ok := performance.Lookup("plan_cache"); ok {
		t.Error("plan_cache should not exist")
	}
	if ids := performance.MetricIDs(); len(ids) != len(performance.Metrics) || ids[0] != "collection_categories" {
		t.Errorf("MetricIDs() = %v", ids)
	}
}
