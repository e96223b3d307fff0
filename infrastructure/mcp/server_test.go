package mcp_test

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"testing"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/transport"

	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/domain/tool"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/mcp"
	"github.com/ibmi-agents/db2i-go/infrastructure/storage/memory"
)

type fakeDatabase struct {
	tables    []string
	described []string
	ran       string
}

func (f *fakeDatabase) UsableTableNames(context.Context) []string { return f.tables }

func (f *fakeDatabase) TableInfoNoThrow(_ context.Context, tables []string) string {
	f.described = tables
	return "CREATE TABLE " + strings.Join(tables, ",")
}

func (f *fakeDatabase) RunNoThrow(_ context.Context, stmt string, _ db2i.RunOptions) string {
	f.ran = stmt
	if _, err := db2i.Guard(stmt); err != nil {
		return "Error: " + err.Error()
	}
	return `[["000010"]]`
}

func newDb2iServer(t *testing.T) (*mcp.Db2iServer, *fakeDatabase) {
	t.Helper()
	db := &fakeDatabase{tables: []string{"DEPARTMENT", "EMPLOYEE"}}
	srv := mcp.NewDb2iServer(mcp.Db2iServerConfig{Database: db, Notes: memory.NewNoteStore()})
	if srv.Server() == nil {
		t.Fatal("Server() returned nil")
	}
	return srv, db
}

func TestDb2iServer_Replies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tool string
		args string
		want string
	}{
		{"list tables", mcp.ToolListUsableTables, ``, `Usable tables: ["DEPARTMENT","EMPLOYEE"]`},
		{"describe uppercases", mcp.ToolDescribeTable, `{"table_name":"employee"}`, "CREATE TABLE EMPLOYEE"},
		{"describe missing arg", mcp.ToolDescribeTable, `{}`, "Error: Missing table_name argument"},
		{"run query", mcp.ToolRunSQLQuery, `{"sql":"SELECT EMPNO FROM EMPLOYEE"}`, `Query result: [["000010"]]`},
		{"run rejects writes", mcp.ToolRunSQLQuery, `{"sql":"DELETE FROM EMPLOYEE"}`, "Query result: Error: Only SELECT statements are allowed"},
		{"run missing arg", mcp.ToolRunSQLQuery, ``, "Error: Missing sql argument"},
		{"add note", mcp.ToolAddNote, `{"name":"n1","content":"hello"}`, "Added note 'n1' with content: hello"},
		{"add note empty", mcp.ToolAddNote, `{"name":"n1"}`, "Error: Missing name or content"},
		{"bad json", mcp.ToolAddNote, `{`, "Error: "},
		{"unknown tool", "drop-table", `{}`, "Error: Unknown tool: drop-table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv, _ := newDb2iServer(t)
			got := srv.Call(context.Background(), tt.tool, json.RawMessage(tt.args))
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("Call(%s) = %q, want prefix %q", tt.tool, got, tt.want)
			}
		})
	}
}

func TestDb2iServer_EmptyTables(t *testing.T) {
	t.Parallel()

	srv := mcp.NewDb2iServer(mcp.Db2iServerConfig{Database: &fakeDatabase{}})
	if got := srv.ListUsableTables(context.Background()); got != "Usable tables: []" {
		t.Errorf("ListUsableTables() = %q", got)
	}
	if got := srv.AddNote(context.Background(), mcp.AddNoteInput{Name: "a", Content: "b"}); !strings.HasPrefix(got, "Error: ") {
		t.Errorf("AddNote without store = %q", got)
	}
}

func TestDb2iServer_AddNotePersists(t *testing.T) {
	t.Parallel()

	notes := memory.NewNoteStore()
	srv := mcp.NewDb2iServer(mcp.Db2iServerConfig{Database: &fakeDatabase{}, Notes: notes})
	srv.AddNote(context.Background(), mcp.AddNoteInput{Name: "ptf", Content: "apply SF99750"})

	n, err := notes.Get(context.Background(), "ptf")
	if err != nil || n.Content != "apply SF99750" {
		t.Errorf("stored note = %+v, %v", n, err)
	}
}

type advertisedSchema struct {
	Type       string `json:"type"`
	Properties map[string]struct {
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"properties"`
	Required []string `json:"required"`
}

func schemasByTool(t *testing.T, srv *mcpgo.Server) map[string]advertisedSchema {
	t.Helper()
	out := make(map[string]advertisedSchema)
	for _, info := range srv.Tools() {
		raw, err := json.Marshal(info.InputSchema)
		if err != nil {
			t.Fatalf("marshal schema of %s: %v", info.Name, err)
		}
		var sch advertisedSchema
		if err := json.Unmarshal(raw, &sch); err != nil {
			t.Fatalf("schema of %s = %s: %v", info.Name, raw, err)
		}
		out[info.Name] = sch
	}
	return out
}

func TestDb2iServer_InputSchemas(t *testing.T) {
	t.Parallel()

	srv, _ := newDb2iServer(t)
	schemas := schemasByTool(t, srv.Server())

	tests := []struct {
		tool     string
		required []string
		describe map[string]string
	}{
		{mcp.ToolListUsableTables, nil, nil},
		{mcp.ToolDescribeTable, []string{"table_name"}, map[string]string{"table_name": "The name of the table to describe"}},
		{mcp.ToolRunSQLQuery, []string{"sql"}, map[string]string{"sql": "SELECT SQL query to execute"}},
		{mcp.ToolAddNote, []string{"name", "content"}, map[string]string{"name": "", "content": ""}},
	}

	if len(schemas) != len(tests) {
		t.Fatalf("registered %d tools, want %d", len(schemas), len(tests))
	}
	for _, tt := range tests {
		sch, ok := schemas[tt.tool]
		if !ok {
			t.Errorf("%s is not registered", tt.tool)
			continue
		}
		if sch.Type != "object" {
			t.Errorf("%s schema type = %q, want object", tt.tool, sch.Type)
		}
		if !reflect.DeepEqual(sch.Required, tt.required) {
			t.Errorf("%s required = %v, want %v", tt.tool, sch.Required, tt.required)
		}
		if len(sch.Properties) != len(tt.describe) {
			t.Errorf("%s has %d properties, want %d", tt.tool, len(sch.Properties), len(tt.describe))
		}
		for field, desc := range tt.describe {
			prop, ok := sch.Properties[field]
			if !ok || prop.Type != "string" || prop.Description != desc {
				t.Errorf("%s.%s = %+v, want string %q", tt.tool, field, prop, desc)
			}
		}
	}
}

func TestDb2iServer_TypedHandlers(t *testing.T) {
	t.Parallel()

	srv, db := newDb2iServer(t)
	ctx := context.Background()

	describe, ok := srv.Server().GetTool(mcp.ToolDescribeTable)
	if !ok {
		t.Fatal("describe-table is not registered")
	}
	got, err := describe.Execute(ctx, json.RawMessage(`{"table_name":"employee"}`))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got != "CREATE TABLE EMPLOYEE" || !reflect.DeepEqual(db.described, []string{"EMPLOYEE"}) {
		t.Errorf("describe-table = %v, described %v", got, db.described)
	}

	list, _ := srv.Server().GetTool(mcp.ToolListUsableTables)
	if got, err := list.Execute(ctx, json.RawMessage(`{}`)); err != nil || got != `Usable tables: ["DEPARTMENT","EMPLOYEE"]` {
		t.Errorf("list-usable-tables = %v, %v", got, err)
	}
}

type recordingSender struct {
	mu      sync.Mutex
	methods []string
}

func (r *recordingSender) SendNotification(method string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods = append(r.methods, method)
	return nil
}

func TestDb2iServer_NoteResources(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notes := memory.NewNoteStore()
	if err := notes.Put(ctx, note.Note{Name: "ptf", Content: "apply SF99750"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	srv := mcp.NewDb2iServer(mcp.Db2iServerConfig{Database: &fakeDatabase{}, Notes: notes})
	if err := srv.PublishNotes(ctx); err != nil {
		t.Fatalf("PublishNotes() error = %v", err)
	}

	caps := srv.Server().Info().Capabilities
	if !caps.Resources || !caps.Prompts {
		t.Errorf("capabilities = %+v, want resources and prompts", caps)
	}

	resources := srv.Server().Resources()
	if len(resources) != 1 || resources[0].URITemplate != "note://internal/ptf" || resources[0].Name != "Note: ptf" || resources[0].MimeType != "text/plain" {
		t.Fatalf("Resources() = %+v", resources)
	}

	sender := &recordingSender{}
	notifyCtx := transport.ContextWithNotificationSender(ctx, sender)
	srv.AddNote(notifyCtx, mcp.AddNoteInput{Name: "jobs", Content: "QZDASOINIT is busy"})
	srv.AddNote(notifyCtx, mcp.AddNoteInput{Name: "jobs", Content: "QZDASOINIT is idle"})

	if !reflect.DeepEqual(sender.methods, []string{"notifications/resources/list_changed"}) {
		t.Errorf("notifications = %v, want one list_changed", sender.methods)
	}
	if got := len(srv.Server().Resources()); got != 2 {
		t.Errorf("Resources() has %d entries, want 2", got)
	}

	r, ok := srv.Server().FindResourceForURI(mcp.NoteURI("jobs"))
	if !ok {
		t.Fatal("note://internal/jobs is not readable")
	}
	content, err := r.Read(ctx, mcp.NoteURI("jobs"))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if content.Text != "QZDASOINIT is idle" || content.MimeType != "text/plain" {
		t.Errorf("Read() = %+v", content)
	}

	if got := mcp.NoteURI("cpu usage"); got != "note://internal/cpu%20usage" {
		t.Errorf("NoteURI() = %q", got)
	}
}

func TestDb2iServer_SummarizeNotes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	notes := memory.NewNoteStore()
	_ = notes.Put(ctx, note.Note{Name: "a", Content: "first"})
	_ = notes.Put(ctx, note.Note{Name: "b", Content: "second"})
	srv := mcp.NewDb2iServer(mcp.Db2iServerConfig{Database: &fakeDatabase{}, Notes: notes})

	prompt, ok := srv.Server().GetPrompt(mcp.PromptSummarizeNotes)
	if !ok {
		t.Fatal("summarize-notes is not registered")
	}

	tests := []struct {
		name string
		args map[string]string
		want string
	}{
		{"default is brief", nil, "Here are the current notes to summarize:\n\n- a: first\n- b: second"},
		{"brief", map[string]string{"style": "brief"}, "Here are the current notes to summarize:\n\n- a: first\n- b: second"},
		{"detailed", map[string]string{"style": "detailed"}, "Here are the current notes to summarize: Give extensive details.\n\n- a: first\n- b: second"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := prompt.Get(ctx, tt.args)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if res.Description != "Summarize the current notes" || len(res.Messages) != 1 {
				t.Fatalf("Get() = %+v", res)
			}
			msg := res.Messages[0]
			text, ok := msg.Content.(mcpgo.TextContent)
			if msg.Role != "user" || !ok || text.Text != tt.want {
				t.Errorf("message = %+v, want text %q", msg, tt.want)
			}
		})
	}

	bare := mcp.NewDb2iServer(mcp.Db2iServerConfig{Database: &fakeDatabase{}})
	if _, ok := bare.Server().GetPrompt(mcp.PromptSummarizeNotes); ok {
		t.Error("summarize-notes registered without a note store")
	}
}

type fakeExecutor struct {
	tools []tool.Tool
	calls []string
}

func (f *fakeExecutor) Tools() []tool.Tool { return f.tools }

func (f *fakeExecutor) ExecuteText(_ context.Context, sessionID, name string, _ json.RawMessage) string {
	f.calls = append(f.calls, sessionID+"/"+name)
	return "ok"
}

func TestCatalogServer(t *testing.T) {
	t.Parallel()

	mk := func(name string) tool.Tool {
		return tool.NewBuilder(name).
			WithDescription("d").
			WithHandler(func(context.Context, json.RawMessage) (tool.Result, error) {
				return tool.TextResult(""), nil
			}).
			MustBuild()
	}
	exec := &fakeExecutor{tools: []tool.Tool{mk("list_ptf_groups"), mk("get_jvm_options")}}

	srv := mcp.NewCatalogServer(mcp.CatalogServerConfig{Runtime: exec, SessionID: "s1"})

	if got := srv.ToolNames(); !reflect.DeepEqual(got, []string{"get_jvm_options", "list_ptf_groups"}) {
		t.Errorf("ToolNames() = %v", got)
	}
	if srv.SessionID() != "s1" || srv.Server() == nil {
		t.Errorf("SessionID() = %q", srv.SessionID())
	}

	for name, sch := range schemasByTool(t, srv.Server()) {
		if sch.Type != "object" {
			t.Errorf("%s schema type = %q, want object", name, sch.Type)
		}
	}
	listed, _ := srv.Server().GetTool("list_ptf_groups")
	if got, err := listed.Execute(context.Background(), json.RawMessage(`{"limit":5}`)); err != nil || got != "ok" {
		t.Errorf("Execute() = %v, %v", got, err)
	}
	if len(exec.calls) != 1 || exec.calls[0] != "s1/list_ptf_groups" {
		t.Errorf("calls = %v", exec.calls)
	}

	generated := mcp.NewCatalogServer(mcp.CatalogServerConfig{Runtime: exec})
	if generated.SessionID() == "" {
		t.Error("expected a generated session id")
	}
}
