// Package mcp serves db2i tools over the Model Context Protocol using
// github.com/felixgeelhaar/mcp-go. Two servers are provided: the four-tool
// Db2i server and a catalog server exposing every registered tool.
package mcp

import (
	"context"

	mcpgo "github.com/felixgeelhaar/mcp-go"
	mcpmiddleware "github.com/felixgeelhaar/mcp-go/middleware"
	mcpserver "github.com/felixgeelhaar/mcp-go/server"

	"github.com/ibmi-agents/db2i-go/infrastructure/logging"
)

// ErrorPrefix starts every failure reply.
const ErrorPrefix = "Error: "

// newServer builds an mcp-go server with tool capability and the standard
// middleware. notes adds the resource and prompt capabilities.
func newServer(name, version, description, instructions string, notes bool) *mcpgo.Server {
	info := mcpgo.ServerInfo{
		Name:        name,
		Version:     version,
		Description: description,
		Capabilities: mcpgo.Capabilities{
			Tools:     true,
			Resources: notes,
			Prompts:   notes,
		},
	}

	var opts []mcpgo.Option
	if instructions != "" {
		opts = append(opts, mcpgo.WithInstructions(instructions))
	}

	srv := mcpgo.NewServer(info, opts...)
	srv.Use(serverMiddleware(mcpgo.Recover()), serverMiddleware(mcpgo.RequestID()))
	return srv
}

// serverMiddleware converts an mcp-go middleware to the server package's
// identically shaped middleware type accepted by Server.Use.
func serverMiddleware(m mcpgo.Middleware) mcpserver.Middleware {
	return func(next mcpserver.HandlerFunc) mcpserver.HandlerFunc {
		return mcpserver.HandlerFunc(m(mcpmiddleware.HandlerFunc(next)))
	}
}

// serveStdio runs srv over stdin/stdout until ctx is cancelled.
func serveStdio(ctx context.Context, srv *mcpgo.Server, name string) error {
	logging.Info().
		Add(logging.Component("mcp")).
		Add(logging.Str("server", name)).
		Msg("serving over stdio")
	err := mcpgo.ServeStdio(ctx, srv)
	if err != nil && ctx.Err() == nil {
		logging.Error().Add(logging.Component("mcp")).Add(logging.ErrorField(err)).Msg("server stopped")
		return err
	}
	return nil
}
