package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/sketch/internal/canvas"
)

// instructions is sent to MCP clients on initialize. It doubles as the
// system prompt section that explains how edits behave.
const instructions = `You are editing a database schema drawn on a canvas. Tables are keyed by
identifier ("users", or "billing.invoices" for a non-public schema).

Use sketch_list_tables and sketch_describe_table to read the schema before
changing it. Submit every change for one reply as a single
sketch_apply_operations call; operations run in order and each one sees the
effects of the ones before it. A failing operation does not stop the rest,
so check the status of every entry in operationsApplied and report errors
to the user.

Foreign keys are strings of the form "table.column" or
"schema.table.column". They are not checked, so a table may reference
another that is created later in the same batch.

drop_table does NOT cascade. To delete a table that others reference:
  1. sketch_describe_table or sketch_list_tables to find every column whose
     fk points at the table,
  2. alter_column each of them with {"fk": ""} or drop_column them,
  3. drop_table the table itself,
all in one sketch_apply_operations batch.

rename_table does not rewrite foreign keys elsewhere; alter_column the
referencing columns in the same batch.

Every successful operation is one undo step. sketch_undo and sketch_redo
walk the history one operation at a time.`

// MCPServer wraps the mcp-go server with the canvas tools and resources. It
// lets an AI agent inspect the schema, submit operation batches and walk the
// undo history.
type MCPServer struct {
	editor *canvas.Editor
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with all tools and resources,
// writing through editor. The returned server is ready to serve over stdio
// or HTTP.
func NewMCPServer(editor *canvas.Editor, logger *slog.Logger, version string) *MCPServer {
	s := &MCPServer{
		editor: editor,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Sketch Schema Canvas",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
		server.WithInstructions(instructions),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, the integration path for
// clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts the MCP server in Streamable HTTP mode, listening on
// the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

// Handler returns the Streamable HTTP transport as an http.Handler so the
// API server can mount it next to the REST routes.
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint:    boolPtr(false),
		DestructiveHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
