package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/sketch/internal/ddl"
)

const (
	schemaResourceURI = "sketch://schema"
	ddlResourceURI    = "sketch://ddl"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	srv.AddResource(
		mcp.NewResource(
			schemaResourceURI,
			"Canvas Schema",
			mcp.WithResourceDescription(
				"The current schema snapshot: every table keyed by identifier, "+
					"with its ordered columns and canvas position.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleSchemaResource,
	)

	srv.AddResource(
		mcp.NewResource(
			ddlResourceURI,
			"Canvas DDL",
			mcp.WithResourceDescription("The current schema rendered as Postgres DDL."),
			mcp.WithMIMEType("application/sql"),
		),
		s.handleDDLResource,
	)
}

// handleSchemaResource returns the snapshot as JSON.
func (s *MCPServer) handleSchemaResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	b, err := json.MarshalIndent(s.editor.Store().Snapshot(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaResourceURI,
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleDDLResource returns the snapshot rendered as DDL.
func (s *MCPServer) handleDDLResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ddlResourceURI,
			MIMEType: "application/sql",
			Text:     ddl.Generate(s.editor.Store().Snapshot()),
		},
	}, nil
}
