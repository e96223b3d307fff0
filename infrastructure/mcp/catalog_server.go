package mcp

import (
	"context"
	"encoding/json"
	"sort"

	mcpgo "github.com/felixgeelhaar/mcp-go"

	"github.com/ibmi-agents/db2i-go/domain/session"
	"github.com/ibmi-agents/db2i-go/domain/tool"
)

// Executor runs registered tools through the runtime middleware chain.
type Executor interface {
	Tools() []tool.Tool
	ExecuteText(ctx context.Context, sessionID, name string, input json.RawMessage) string
}

// CatalogServerConfig configures NewCatalogServer.
type CatalogServerConfig struct {
	Runtime      Executor
	Name         string
	Version      string
	Instructions string
	// SessionID groups every call made through this server. Empty starts a
	// new session.
	SessionID string
}

// CatalogServer exposes every registered tool over MCP.
type CatalogServer struct {
	srv       *mcpgo.Server
	runtime   Executor
	name      string
	sessionID string
	tools     []string
}

// NewCatalogServer registers one MCP tool per runtime tool.
func NewCatalogServer(cfg CatalogServerConfig) *CatalogServer {
	if cfg.Name == "" {
		cfg.Name = "db2i-catalog"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	if cfg.SessionID == "" {
		cfg.SessionID = session.New("mcp").ID
	}

	s := &CatalogServer{
		srv:       newServer(cfg.Name, cfg.Version, "IBM i services tool catalog", cfg.Instructions, false),
		runtime:   cfg.Runtime,
		name:      cfg.Name,
		sessionID: cfg.SessionID,
	}

	// mcp-go derives the advertised schema from the handler's input type, so
	// catalog tools are advertised as plain objects. The runtime validates
	// each input against the tool's own schema.
	for _, t := range cfg.Runtime.Tools() {
		name := t.Name()
		s.srv.Tool(name).
			Description(t.Description()).
			Handler(func(ctx context.Context, args map[string]any) (string, error) {
				if args == nil {
					args = map[string]any{}
				}
				input, err := json.Marshal(args)
				if err != nil {
					return ErrorPrefix + err.Error(), nil
				}
				return s.runtime.ExecuteText(ctx, s.sessionID, name, input), nil
			})
		s.tools = append(s.tools, name)
	}
	sort.Strings(s.tools)
	return s
}

// ToolNames returns the registered tool names, sorted.
func (s *CatalogServer) ToolNames() []string {
	return append([]string(nil), s.tools...)
}

// SessionID returns the session recording this server's calls.
func (s *CatalogServer) SessionID() string {
	return s.sessionID
}

// Server returns the underlying mcp-go server.
func (s *CatalogServer) Server() *mcpgo.Server {
	return s.srv
}

// ServeStdio runs the server over stdin/stdout.
func (s *CatalogServer) ServeStdio(ctx context.Context) error {
	return serveStdio(ctx, s.srv, s.name)
}
