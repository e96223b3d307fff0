package workflow_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/workflow"
)

func TestStep_Kind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		step workflow.Step
		want workflow.Kind
	}{
		{"tool", workflow.Step{Tool: "get_system_status"}, workflow.KindTool},
		{"function", workflow.Step{Function: workflow.PerformanceDataProcessor}, workflow.KindFunction},
		{"loop", workflow.Step{Loop: &workflow.Loop{}}, workflow.KindLoop},
		{"none", workflow.Step{}, workflow.KindInvalid},
		{"two", workflow.Step{Tool: "x", Function: "y"}, workflow.KindInvalid},
	}
	for _, tt := range tests {
		if got := tt.step.Kind(); got != tt.want {
			t.Errorf("%s: Kind() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestWorkflow_Validate(t *testing.T) {
	t.Parallel()

	valid := workflow.Workflow{
		Name: "comprehensive-performance",
		Steps: []workflow.Step{
			{Name: "status", Tool: "get_system_status"},
			{Name: "process", Function: workflow.PerformanceDataProcessor},
			{Name: "report", Loop: &workflow.Loop{
				MaxIterations: 2,
				EndCondition:  workflow.ComprehensiveQualityCheck,
				Steps:         []workflow.Step{{Name: "analyze", Tool: "analyze_system_performance"}},
			}},
		},
	}
	if err := valid.Validate(workflow.Functions(), workflow.EndConditions()); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := strings.Join(valid.Tools(), ","); got != "get_system_status,analyze_system_performance" {
		t.Errorf("Tools() = %s", got)
	}

	invalid := workflow.Workflow{
		Name: "broken",
		Steps: []workflow.Step{
			{Name: "both", Tool: "a", Function: "b"},
			{Name: "fn", Function: "no_such_function"},
			{Name: "loop", Loop: &workflow.Loop{EndCondition: "never"}},
		},
	}
	err := invalid.Validate(workflow.Functions(), workflow.EndConditions())
	if !errors.Is(err, workflow.ErrInvalidWorkflow) || !errors.Is(err, workflow.ErrUnknownFunction) {
		t.Fatalf("Validate() error = %v", err)
	}
	for _, want := range []string{"steps[0]", "no_such_function", "max_iterations", "never"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() error missing %q: %v", want, err)
		}
	}

	if err := (workflow.Workflow{}).Validate(nil, nil); err == nil {
		t.Error("Validate() of empty workflow succeeded")
	}
}

func TestProcessPerformanceData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		previous []workflow.Output
		score    string
		verdict  string
	}{
		{"complete", []workflow.Output{{Content: "CPU at 40%"}, {Content: "Memory pools fine, storage 60% used"}}, "Completeness Score: 100.0%", "High Quality Data"},
		{"partial", []workflow.Output{{Content: "cpu busy"}, {Content: "memory ok"}}, "Completeness Score: 66.7%", "Incomplete Analysis Data"},
		{"empty", nil, "Completeness Score: 0.0%", "Incomplete Analysis Data"},
	}
	for _, tt := range tests {
		out, err := workflow.ProcessPerformanceData(context.Background(), workflow.StepInput{Previous: tt.previous})
		if err != nil {
			t.Fatalf("%s: error = %v", tt.name, err)
		}
		if !out.Success {
			t.Errorf("%s: Success = false", tt.name)
		}
		if !strings.Contains(out.Content, tt.score) || !strings.Contains(out.Content, tt.verdict) {
			t.Errorf("%s: content = %s", tt.name, out.Content)
		}
	}
}

func TestAssureQuality(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("a", 501)
	tests := []struct {
		name    string
		outputs []workflow.Output
		want    bool
	}{
		{"none", nil, false},
		{"system and recommendation", []workflow.Output{{Content: "CPU high; recommend more memory"}}, true},
		{"only system", []workflow.Output{{Content: "cpu high"}}, false},
		{"system and length", []workflow.Output{{Content: "cpu " + long}}, true},
		{"latest wins", []workflow.Output{{Content: "cpu, recommend"}, {Content: "nothing"}}, false},
	}
	for _, tt := range tests {
		if got := workflow.AssureQuality(tt.outputs); got != tt.want {
			t.Errorf("%s: AssureQuality() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCheckComprehensiveQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"four criteria", "Summary: CPU utilization 85%, recommend tuning", true},
		{"three criteria", "CPU utilization 85%, recommend tuning", false},
		{"length counts", "cpu usage 5%, findings " + strings.Repeat("x", 800), true},
	}
	for _, tt := range tests {
		got := workflow.CheckComprehensiveQuality([]workflow.Output{{Content: tt.content}})
		if got != tt.want {
			t.Errorf("%s: CheckComprehensiveQuality() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
