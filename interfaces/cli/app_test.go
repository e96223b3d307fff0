package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ibmi-agents/db2i-go/domain/cache"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/config"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i/db2itest"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage"
)

type stubDatabase struct{}

func (stubDatabase) UsableTableNames(context.Context) []string { return []string{"EMPLOYEE"} }

func (stubDatabase) TableInfoNoThrow(context.Context, []string) string {
	return "CREATE TABLE EMPLOYEE (EMPNO CHAR(6))"
}

func (stubDatabase) RunNoThrow(context.Context, string, db2i.RunOptions) string { return "[]" }

type fixture struct {
	app      *App
	stdout   *bytes.Buffer
	stderr   *bytes.Buffer
	recorder *db2itest.Recorder
	dir      string
}

// newFixture builds an App over a recorder and a sqlite store in a temp dir.
func newFixture(t *testing.T, stdin string, env map[string]string) *fixture {
	t.Helper()

	dir := t.TempDir()
	environ := map[string]string{
		"ENABLE_LOGGING": "false",
		"USE_SQLITE":     "true",
		"SQLITE_DB_PATH": filepath.Join(dir, "agents.db"),
		"CACHE_BACKEND":  "none",
		"HISTORY_FILE":   filepath.Join(dir, "history.txt"),
	}
	for k, v := range env {
		environ[k] = v
	}
	settings, err := config.ParseSettings(environ)
	if err != nil {
		t.Fatalf("ParseSettings failed: %v", err)
	}

	rec := db2itest.NewRecorder(
		db2itest.Reply{Match: "group_ptf_currency", Result: db2itest.Rows([]string{"PTF_GROUP_ID"}, []any{"SF99738"})},
	)
	f := &fixture{
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		recorder: rec,
		dir:      dir,
	}
	f.app = New().
		WithOutput(f.stdout, f.stderr).
		WithInput(strings.NewReader(stdin)).
		WithSettings(settings).
		WithConnector(func(context.Context, *config.Settings) (*Connection, error) {
			return &Connection{Runner: rec, Database: stubDatabase{}}, nil
		})
	return f
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return f.app.ExecuteWithArgs(context.Background(), args)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestApp_Version(t *testing.T) {
	f := newFixture(t, "", nil)
	if err := f.run(t, "version"); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "db2i version "+Version) {
		t.Errorf("output = %q", f.stdout.String())
	}
}

func TestApp_Tools(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant string
		wantErr bool
	}{
		{"all", []string{"tools"}, []string{"list_tables", "get_ptf_currency_info", "run_corrective_query"}, "", false},
		{"one pack", []string{"tools", "--pack", "ptf"}, []string{"get_missing_ptf_info"}, "list_tables", false},
		{"unknown pack", []string{"tools", "--pack", "kubernetes"}, nil, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "", nil)
			err := f.run(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			out := f.stdout.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %s", w)
				}
			}
			if tt.notWant != "" && strings.Contains(out, tt.notWant) {
				t.Errorf("output should not list %s", tt.notWant)
			}
		})
	}
}

func TestApp_Call(t *testing.T) {
	f := newFixture(t, "", nil)
	if err := f.run(t, "call", "get_ptf_currency_info", "--session", "s-1"); err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "SF99738") {
		t.Errorf("output = %q", f.stdout.String())
	}

	f.stdout.Reset()
	if err := f.run(t, "sessions", "show", "s-1"); err != nil {
		t.Fatalf("sessions show failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), `"tool": "get_ptf_currency_info"`) {
		t.Errorf("session = %s", f.stdout.String())
	}
}

func TestApp_CallErrors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		is    error
	}{
		{"unknown tool", "", []string{"call", "drop_everything"}, tool.ErrToolNotFound},
		{"declined", "n\n", []string{"call", "run_corrective_query", "--input", `{"profile_name":"QSECOFR"}`}, tool.ErrApprovalDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.stdin, nil)
			err := f.run(t, tt.args...)
			if !errors.Is(err, tt.is) {
				t.Errorf("err = %v, want %v", err, tt.is)
			}
		})
	}

	f := newFixture(t, "", nil)
	if err := f.run(t, "call", "get_active_jobs", "--input", "{"); err == nil {
		t.Error("malformed input should fail")
	}
}

func TestApp_Catalog(t *testing.T) {
	f := newFixture(t, "", nil)

	if err := f.run(t, "agents"); err != nil {
		t.Fatalf("agents failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "ptf-assistant") {
		t.Errorf("agents = %q", f.stdout.String())
	}

	f.stdout.Reset()
	if err := f.run(t, "agents", "show", "ptf-assistant"); err != nil {
		t.Fatalf("agents show failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "name: ptf-assistant") {
		t.Errorf("agent yaml = %q", f.stdout.String())
	}

	f.stdout.Reset()
	if err := f.run(t, "teams"); err != nil {
		t.Fatalf("teams failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "ibmi-team") {
		t.Errorf("teams = %q", f.stdout.String())
	}

	f.stdout.Reset()
	if err := f.run(t, "workflows"); err != nil {
		t.Fatalf("workflows failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "security-audit") {
		t.Errorf("workflows = %q", f.stdout.String())
	}

	if err := f.run(t, "agents", "show", "nobody"); err == nil {
		t.Error("unknown agent should fail")
	}
}

func TestApp_Validate(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "agents.yaml", `
agents:
  - name: db-agent
    model: openai:gpt-4o
    tools: [list_tables, describe_table]
workflows:
  - name: nightly-ptf
    steps:
      - name: currency
        tool: get_ptf_currency_info
schedules:
  - name: nightly
    cron: "0 2 * * *"
    workflow: nightly-ptf
`)
	invalid := writeFile(t, dir, "bad.yaml", `
agents:
  - name: db-agent
    model: openai:gpt-4o
    tools: [drop_everything]
`)

	f := newFixture(t, "", nil)
	if err := f.run(t, "validate", valid); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "is valid") {
		t.Errorf("output = %q", f.stdout.String())
	}

	f.stdout.Reset()
	err := f.run(t, "validate", invalid)
	if err == nil {
		t.Fatal("unknown tool should fail validation")
	}
	if !strings.Contains(f.stdout.String(), "unknown tool: drop_everything") {
		t.Errorf("output = %q", f.stdout.String())
	}

	f = newFixture(t, "", nil)
	if err := f.run(t, "validate"); err != nil {
		t.Errorf("built-in catalog should validate: %v", err)
	}
}

func TestApp_WorkflowRun(t *testing.T) {
	f := newFixture(t, "", nil)
	if err := f.run(t, "workflow", "run", "ptf-currency", "--json"); err != nil {
		t.Fatalf("workflow run failed: %v", err)
	}

	var res struct {
		SessionID string `json:"session_id"`
		Outputs   []struct {
			Step    string `json:"step"`
			Success bool   `json:"success"`
		} `json:"outputs"`
	}
	if err := json.Unmarshal(f.stdout.Bytes(), &res); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, f.stdout.String())
	}
	if len(res.Outputs) != 3 || res.SessionID == "" {
		t.Errorf("result = %+v", res)
	}

	if err := f.run(t, "workflow", "run", "missing"); err == nil {
		t.Error("unknown workflow should fail")
	}
}

func TestApp_ScheduleList(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "agents.yaml", `
schedules:
  - name: nightly
    cron: "0 2 * * *"
    workflow: ptf-currency
`)
	f := newFixture(t, "", nil)
	if err := f.run(t, "schedule", "-c", path, "--list"); err != nil {
		t.Fatalf("schedule --list failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "nightly") || !strings.Contains(f.stdout.String(), "ptf-currency") {
		t.Errorf("output = %q", f.stdout.String())
	}

	f = newFixture(t, "", nil)
	if err := f.run(t, "schedule", "--watch"); err == nil {
		t.Error("--watch without a catalog file should fail")
	}
}

func TestApp_Health(t *testing.T) {
	f := newFixture(t, "", nil)
	path := writeFile(t, f.dir, "checks.json",
		`{"checks":[{"sql":"select * from systools.group_ptf_currency","description":"currency"},{"sql":"drop table x","description":"bad"}]}`)

	if err := f.run(t, "health", "--file", path); err != nil {
		t.Fatalf("health failed: %v", err)
	}
	var report struct {
		Title  string `json:"title"`
		Checks []struct {
			Error string `json:"error"`
		} `json:"checks"`
	}
	if err := json.Unmarshal(f.stdout.Bytes(), &report); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if report.Title != "IBM i Health Report" || len(report.Checks) != 2 || report.Checks[1].Error == "" {
		t.Errorf("report = %+v", report)
	}

	if err := f.run(t, "health", "--file", path, "--strict"); err == nil {
		t.Error("--strict should fail when a check fails")
	}
}

func TestApp_Notes(t *testing.T) {
	f := newFixture(t, "", nil)
	if err := f.run(t, "notes", "add", "backup", "nightly at 2am"); err != nil {
		t.Fatalf("notes add failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "Added note 'backup' with content: nightly at 2am") {
		t.Errorf("output = %q", f.stdout.String())
	}

	f.stdout.Reset()
	if err := f.run(t, "notes", "list"); err != nil {
		t.Fatalf("notes list failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "backup: nightly at 2am") {
		t.Errorf("notes = %q", f.stdout.String())
	}

	if err := f.run(t, "notes", "add", " ", "x"); err == nil {
		t.Error("blank note name should fail")
	}
}

func TestApp_CacheClear(t *testing.T) {
	f := newFixture(t, "", map[string]string{"CACHE_BACKEND": "sqlite", "SCHEMA": "SAMPLE"})
	ctx := context.Background()

	b, err := storage.Open(ctx, f.app.settings, "")
	if err != nil {
		t.Fatalf("storage.Open failed: %v", err)
	}
	for _, k := range []cache.Key{
		{Schema: "SAMPLE", Tool: "list_tables"},
		{Schema: "SAMPLE", Tool: "get_active_jobs"},
		{Schema: "PRODLIB", Tool: "list_tables"},
	} {
		if err := b.Cache.Set(ctx, k.String(), []byte("[]"), 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	_ = b.Close(ctx)

	if err := f.run(t, "cache", "clear"); err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "Removed 2 cached results for schema SAMPLE") {
		t.Errorf("output = %q", f.stdout.String())
	}

	f.stdout.Reset()
	if err := f.run(t, "cache", "clear", "--all"); err != nil {
		t.Fatalf("cache clear --all failed: %v", err)
	}
	if !strings.Contains(f.stdout.String(), "Removed 1 cached results for all schemas") {
		t.Errorf("output = %q", f.stdout.String())
	}
}

func TestApp_Shell(t *testing.T) {
	stdin := "help\nget_ptf_currency_info\nlist_tables\nget_active_jobs {bad\nquit\n"
	f := newFixture(t, stdin, nil)

	if err := f.run(t, "shell", "--stream", "--agent", "ptf-assistant"); err != nil {
		t.Fatalf("shell failed: %v", err)
	}
	out := f.stdout.String()
	for _, want := range []string{
		"SF99738",
		"Error: list_tables is not one of ptf-assistant's tools",
		"Error: get_active_jobs is not one of ptf-assistant's tools",
		shellPrompt,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("shell output missing %q\n%s", want, out)
		}
	}

	history, err := os.ReadFile(filepath.Join(f.dir, "history.txt"))
	if err != nil {
		t.Fatalf("history not written: %v", err)
	}
	if lines := strings.Count(string(history), "\n"); lines != 5 {
		t.Errorf("history lines = %d, want 5", lines)
	}
}

func TestApp_Schema(t *testing.T) {
	f := newFixture(t, "", nil)
	path := filepath.Join(f.dir, "schema.json")
	if err := f.run(t, "schema", "-o", path); err != nil {
		t.Fatalf("schema failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(data) {
		t.Error("schema is not valid JSON")
	}
}

func TestApp_InvalidSettings(t *testing.T) {
	_, err := config.ParseSettings(map[string]string{"CACHE_BACKEND": "memcached"})
	if !errors.Is(err, config.ErrInvalidSettings) {
		t.Errorf("err = %v", err)
	}
}
