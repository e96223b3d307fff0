package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/protocol"
	"github.com/felixgeelhaar/mcp-go/transport"

	"github.com/ibmi-agents/db2i-go/domain/note"
	"github.com/ibmi-agents/db2i-go/infrastructure/db2i"
	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// Tool names exposed by the Db2i server.
const (
	ToolListUsableTables = "list-usable-tables"
	ToolDescribeTable    = "describe-table"
	ToolRunSQLQuery      = "run-sql-query"
	ToolAddNote          = "add-note"
)

// PromptSummarizeNotes is the prompt combining every stored note.
const PromptSummarizeNotes = "summarize-notes"

// NoteURIPrefix starts the URI of every note resource.
const NoteURIPrefix = "note://internal/"

var db2iToolDescriptions = map[string]string{
	ToolListUsableTables: "List the usable tables in the schema. This tool should be called before running any other tool.",
	ToolDescribeTable:    "Describe a specific table including ites columns and sample rows. This tool should be called after list-usable-tables.",
	ToolRunSQLQuery:      "run a valid Db2 for i SQL query. This tool should be called after list-usable-tables and describe-table.",
	ToolAddNote:          "Add a new note",
}

// Database is the subset of *db2i.Database the server needs.
type Database interface {
	UsableTableNames(ctx context.Context) []string
	TableInfoNoThrow(ctx context.Context, tables []string) string
	RunNoThrow(ctx context.Context, stmt string, opts db2i.RunOptions) string
}

// Db2iServerConfig configures NewDb2iServer.
type Db2iServerConfig struct {
	Database Database
	Notes    note.Store
	Name     string
	Version  string
}

// ListUsableTablesInput is the list-usable-tables argument. It has no fields.
type ListUsableTablesInput struct{}

// DescribeTableInput is the describe-table argument.
type DescribeTableInput struct {
	TableName string `json:"table_name" jsonschema:"required,description=The name of the table to describe"`
}

// RunSQLQueryInput is the run-sql-query argument.
type RunSQLQueryInput struct {
	SQL string `json:"sql" jsonschema:"required,description=SELECT SQL query to execute"`
}

// AddNoteInput is the add-note argument.
type AddNoteInput struct {
	Name    string `json:"name" jsonschema:"required"`
	Content string `json:"content" jsonschema:"required"`
}

// Db2iServer exposes schema discovery, read-only SQL and notes over MCP.
// Each note is also a text resource at note://internal/<name>.
type Db2iServer struct {
	srv   *mcpgo.Server
	db    Database
	notes note.Store
	name  string

	mu        sync.Mutex
	published map[string]bool
}

// NewDb2iServer registers list-usable-tables, describe-table, run-sql-query
// and add-note.
func NewDb2iServer(cfg Db2iServerConfig) *Db2iServer {
	if cfg.Name == "" {
		cfg.Name = "db2i-mcp-server"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}

	s := &Db2iServer{
		srv:       newServer(cfg.Name, cfg.Version, "Db2 for i schema discovery and read-only SQL", "", cfg.Notes != nil),
		db:        cfg.Database,
		notes:     cfg.Notes,
		name:      cfg.Name,
		published: make(map[string]bool),
	}

	s.srv.Tool(ToolListUsableTables).
		Description(db2iToolDescriptions[ToolListUsableTables]).
		Handler(func(ctx context.Context, _ ListUsableTablesInput) (string, error) {
			return s.ListUsableTables(ctx), nil
		})
	s.srv.Tool(ToolDescribeTable).
		Description(db2iToolDescriptions[ToolDescribeTable]).
		Handler(func(ctx context.Context, in DescribeTableInput) (string, error) {
			return s.DescribeTable(ctx, in), nil
		})
	s.srv.Tool(ToolRunSQLQuery).
		Description(db2iToolDescriptions[ToolRunSQLQuery]).
		Handler(func(ctx context.Context, in RunSQLQueryInput) (string, error) {
			return s.RunSQLQuery(ctx, in), nil
		})
	s.srv.Tool(ToolAddNote).
		Description(db2iToolDescriptions[ToolAddNote]).
		Handler(func(ctx context.Context, in AddNoteInput) (string, error) {
			return s.AddNote(ctx, in), nil
		})

	if s.notes != nil {
		s.srv.Prompt(PromptSummarizeNotes).
			Description("Creates a summary of all notes").
			Argument("style", "Style of the summary (brief/detailed)", false).
			Handler(s.SummarizeNotes)
	}

	return s
}

// Server returns the underlying mcp-go server.
func (s *Db2iServer) Server() *mcpgo.Server {
	return s.srv
}

// ServeStdio publishes the stored notes and runs the server over
// stdin/stdout.
func (s *Db2iServer) ServeStdio(ctx context.Context) error {
	if err := s.PublishNotes(ctx); err != nil {
		logging.Warn().Add(logging.Component("mcp")).Add(logging.ErrorField(err)).Msg("listing notes failed")
	}
	return serveStdio(ctx, s.srv, s.name)
}

// NoteURI returns the resource URI of a note.
func NoteURI(name string) string {
	return NoteURIPrefix + url.PathEscape(name)
}

// PublishNotes registers a resource for every stored note not yet
// published.
func (s *Db2iServer) PublishNotes(ctx context.Context) error {
	if s.notes == nil {
		return nil
	}
	notes, err := s.notes.List(ctx)
	if err != nil {
		return err
	}
	for _, n := range notes {
		s.publish(n.Name)
	}
	return nil
}

// publish registers the resource of one note. It reports whether the
// resource list changed.
func (s *Db2iServer) publish(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.published[name] {
		return false
	}
	s.published[name] = true

	uri := NoteURI(name)
	s.srv.Resource(uri).
		Name("Note: " + name).
		Description("A simple note named " + name).
		MimeType("text/plain").
		Handler(func(ctx context.Context, _ string, _ map[string]string) (*mcpgo.ResourceContent, error) {
			n, err := s.notes.Get(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("note not found: %s: %w", name, err)
			}
			return &mcpgo.ResourceContent{URI: uri, MimeType: "text/plain", Text: n.Content}, nil
		})
	return true
}

// SummarizeNotes builds the summarize-notes prompt. style "detailed" asks
// for extensive details; anything else gives a brief summary.
func (s *Db2iServer) SummarizeNotes(ctx context.Context, args map[string]string) (*mcpgo.PromptResult, error) {
	notes, err := s.notes.List(ctx)
	if err != nil {
		return nil, err
	}

	detail := ""
	if args["style"] == "detailed" {
		detail = " Give extensive details."
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("- %s: %s", n.Name, n.Content))
	}

	return &mcpgo.PromptResult{
		Description: "Summarize the current notes",
		Messages: []mcpgo.PromptMessage{{
			Role: "user",
			Content: mcpgo.TextContent{
				Type: "text",
				Text: "Here are the current notes to summarize:" + detail + "\n\n" + strings.Join(lines, "\n"),
			},
		}},
	}, nil
}

// ListUsableTables replies with the usable tables as a JSON list.
func (s *Db2iServer) ListUsableTables(ctx context.Context) string {
	tables := s.db.UsableTableNames(ctx)
	if tables == nil {
		tables = []string{}
	}
	b, err := json.Marshal(tables)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return "Usable tables: " + string(b)
}

// DescribeTable replies with the DDL and sample rows of one table.
func (s *Db2iServer) DescribeTable(ctx context.Context, in DescribeTableInput) string {
	if strings.TrimSpace(in.TableName) == "" {
		return ErrorPrefix + "Missing table_name argument"
	}
	return s.db.TableInfoNoThrow(ctx, []string{strings.ToUpper(in.TableName)})
}

// RunSQLQuery runs a guarded read-only statement.
func (s *Db2iServer) RunSQLQuery(ctx context.Context, in RunSQLQueryInput) string {
	if strings.TrimSpace(in.SQL) == "" {
		return ErrorPrefix + "Missing sql argument"
	}
	logging.Debug().Add(logging.Component("mcp")).Add(logging.SQL(in.SQL)).Msg("run-sql-query")
	return "Query result: " + s.db.RunNoThrow(ctx, in.SQL, db2i.RunOptions{})
}

// AddNote stores a note.
func (s *Db2iServer) AddNote(ctx context.Context, in AddNoteInput) string {
	if in.Name == "" || in.Content == "" {
		return ErrorPrefix + "Missing name or content"
	}
	if s.notes == nil {
		return ErrorPrefix + "notes are not enabled"
	}
	if err := s.notes.Put(ctx, note.Note{Name: in.Name, Content: in.Content, UpdatedAt: time.Now().UTC()}); err != nil {
		return ErrorPrefix + err.Error()
	}
	if s.publish(in.Name) {
		if sender := transport.NotificationSenderFromContext(ctx); sender != nil {
			if err := sender.SendNotification(protocol.MethodResourceListChanged, nil); err != nil {
				logging.Warn().Add(logging.Component("mcp")).Add(logging.ErrorField(err)).Msg("resource list notification failed")
			}
		}
	}
	return fmt.Sprintf("Added note '%s' with content: %s", in.Name, in.Content)
}

// Call dispatches a tool by name with raw JSON arguments.
func (s *Db2iServer) Call(ctx context.Context, name string, args json.RawMessage) string {
	decode := func(v any) error {
		if len(args) == 0 {
			return nil
		}
		return json.Unmarshal(args, v)
	}

	switch name {
	case ToolListUsableTables:
		if err := decode(&ListUsableTablesInput{}); err != nil {
			return ErrorPrefix + err.Error()
		}
		return s.ListUsableTables(ctx)
	case ToolDescribeTable:
		var in DescribeTableInput
		if err := decode(&in); err != nil {
			return ErrorPrefix + err.Error()
		}
		return s.DescribeTable(ctx, in)
	case ToolRunSQLQuery:
		var in RunSQLQueryInput
		if err := decode(&in); err != nil {
			return ErrorPrefix + err.Error()
		}
		return s.RunSQLQuery(ctx, in)
	case ToolAddNote:
		var in AddNoteInput
		if err := decode(&in); err != nil {
			return ErrorPrefix + err.Error()
		}
		return s.AddNote(ctx, in)
	default:
		return ErrorPrefix + "Unknown tool: " + name
	}
}
