package config_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ibmi-agents/db2i-go/domain/config"
	"github.com/ibmi-agents/db2i-go/domain/profile"
	"github.com/ibmi-agents/db2i-go/domain/workflow"
)

func TestDuration_JSONAndYAML(t *testing.T) {
	t.Parallel()

	var s config.Schedule
	if err := json.Unmarshal([]byte(`{"name":"n","timeout":"1m30s"}`), &s); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if s.Timeout.Duration() != 90*time.Second {
		t.Errorf("Timeout = %v, want 1m30s", s.Timeout.Duration())
	}

	out, err := yaml.Marshal(config.Schedule{Name: "n", Timeout: config.Duration(2 * time.Hour)})
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if !strings.Contains(string(out), "timeout: 2h0m0s") {
		t.Errorf("yaml = %s", out)
	}

	if err := yaml.Unmarshal([]byte("timeout: soon"), &s); err == nil {
		t.Error("yaml.Unmarshal() accepted an invalid duration")
	}
}

func TestCatalog_Merge(t *testing.T) {
	t.Parallel()

	base := &config.Catalog{
		Agents: []profile.Agent{
			{Name: "ptf-assistant", Model: "openai:gpt-4o"},
			{Name: "jvm-assistant", Model: "openai:gpt-4o"},
		},
	}
	over := &config.Catalog{
		Agents: []profile.Agent{
			{Name: "jvm-assistant", Model: "watsonx:granite"},
			{Name: "custom", Model: "ollama:llama3"},
		},
	}

	merged := base.Merge(over)
	if len(merged.Agents) != 3 {
		t.Fatalf("merged %d agents, want 3", len(merged.Agents))
	}
	if a, _ := merged.Agent("jvm-assistant"); a.Model != "watsonx:granite" {
		t.Errorf("jvm-assistant model = %s, want override", a.Model)
	}
	if merged.Agents[2].Name != "custom" {
		t.Errorf("new entries should append, got %s", merged.Agents[2].Name)
	}
	if base.Agents[1].Model != "openai:gpt-4o" {
		t.Error("Merge() mutated the base catalog")
	}
}

func TestValidator_Validate(t *testing.T) {
	t.Parallel()

	c := &config.Catalog{
		Agents: []profile.Agent{
			{Name: "ptf-assistant", Model: "openai:gpt-4o", Tools: []string{"get_ptf_currency_info", "no_such_tool"}},
			{Name: "ptf-assistant", Model: "bogus"},
		},
		Teams: []profile.Team{
			{Name: "ibmi-team", Mode: profile.Route, Members: []string{"ptf-assistant", "ghost"}},
		},
		Workflows: []workflow.Workflow{
			{Name: "ptf-currency", Steps: []workflow.Step{{Name: "currency", Tool: "get_ptf_currency_info"}}},
		},
		Schedules: []config.Schedule{
			{Name: "nightly", Cron: "0 2 * * *", Workflow: "ptf-currency"},
			{Name: "broken", Workflow: "missing"},
		},
	}

	tools := map[string]bool{"get_ptf_currency_info": true}
	v := config.NewValidator()
	v.ToolExists = func(name string) bool { return tools[name] }
	v.LookupEnv = func(string) (string, bool) { return "", false }

	errs := v.Validate(c)
	if !errs.HasErrors() {
		t.Fatal("Validate() returned no errors")
	}
	msg := errs.Error()
	for _, want := range []string{
		"agents.ptf-assistant.tools: unknown tool: no_such_tool",
		"duplicate agent name",
		"OPENAI_API_KEY",
		"teams.ibmi-team.members: unknown agent: ghost",
		"schedules.broken.cron: cron expression is required",
		"schedules.broken.workflow: unknown workflow: missing",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("errors missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "nightly") {
		t.Errorf("valid schedule reported:\n%s", msg)
	}
}

func TestValidationErrors_Error(t *testing.T) {
	t.Parallel()

	var errs config.ValidationErrors
	if errs.Error() != "no validation errors" || errs.HasErrors() {
		t.Errorf("empty errors = %q", errs.Error())
	}
	errs = append(errs, config.ValidationError{Path: "agents.a", Message: "bad"})
	if errs.Error() != "agents.a: bad" {
		t.Errorf("single error = %q", errs.Error())
	}
	errs = append(errs, config.ValidationError{Message: "worse"})
	if !strings.HasPrefix(errs.Error(), "2 validation errors:") {
		t.Errorf("multiple errors = %q", errs.Error())
	}
}
