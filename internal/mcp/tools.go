package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/ddl"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/schema"
)

// columnSchema is the JSON Schema of one column definition, shared by the
// create_table columns and the add_column column fields.
var columnSchema = map[string]any{
	"type":     "object",
	"required": []string{"title"},
	"properties": map[string]any{
		"title":        map[string]any{"type": "string"},
		"type":         map[string]any{"type": "string", "description": "Semantic type, e.g. integer, text, uuid, or an enum type name"},
		"format":       map[string]any{"type": "string", "description": "Display format; \"enum\" for enum columns. Mirrors type when omitted"},
		"default":      map[string]any{"type": []string{"string", "number", "boolean"}, "description": "SQL default expression; numbers and booleans are taken literally"},
		"required":     map[string]any{"type": "boolean"},
		"pk":           map[string]any{"type": "boolean"},
		"fk":           map[string]any{"type": "string", "description": "Referenced column as table.column or schema.table.column"},
		"enumValues":   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"enumTypeName": map[string]any{"type": "string"},
		"comment":      map[string]any{"type": "string"},
	},
}

// operationSchema is the JSON Schema of one entry of the operations array.
var operationSchema = map[string]any{
	"type":     "object",
	"required": []string{"action", "tableId"},
	"properties": map[string]any{
		"action": map[string]any{
			"type": "string",
			"enum": []string{"create_table", "drop_table", "rename_table", "add_column", "drop_column", "alter_column"},
		},
		"tableId":    map[string]any{"type": "string"},
		"newTableId": map[string]any{"type": "string", "description": "rename_table only"},
		"columns":    map[string]any{"type": "array", "items": columnSchema, "description": "create_table only"},
		"column":     columnSchema,
		"columnName": map[string]any{"type": "string", "description": "drop_column and alter_column"},
		"patch": map[string]any{
			"type":        "object",
			"description": "alter_column only: the column fields to change. An empty default or fk clears it",
		},
	},
}

// registerTools registers all canvas tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("sketch_list_tables",
			mcp.WithDescription(
				"List every table and view on the canvas with a column summary: "+
					"names, types, primary keys and foreign key targets. Use this first "+
					"to see what exists before editing.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListTables,
	)

	srv.AddTool(
		mcp.NewTool("sketch_describe_table",
			mcp.WithDescription(
				"Get the full definition of one table: every column with its type, "+
					"format, default, required flag, keys, enum values and comment.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("tableId",
				mcp.Required(),
				mcp.Description("Identifier of the table, e.g. \"users\" or \"billing.invoices\""),
			),
		),
		s.handleDescribeTable,
	)

	// ----- Editing tools -----

	srv.AddTool(
		mcp.NewTool("sketch_apply_operations",
			mcp.WithDescription(
				"Apply an ordered batch of schema operations: create_table, drop_table, "+
					"rename_table, add_column, drop_column, alter_column. Operations run "+
					"in order; a failing one is reported and the rest still run. Returns "+
					"{ok, tables, operationsApplied} where every operation has a status "+
					"and a detail message.\n\n"+
					"create_table overwrites an existing table with the same id. "+
					"drop_table does not cascade.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
			mcp.WithArray("operations",
				mcp.Required(),
				mcp.Description("Operations to apply, in order"),
				mcp.Items(operationSchema),
			),
		),
		s.handleApplyOperations,
	)

	srv.AddTool(
		mcp.NewTool("sketch_undo",
			mcp.WithDescription("Undo the most recent operation. Each operation of a batch is a separate step."),
			mcp.WithToolAnnotation(mutatingAnnotation()),
		),
		s.handleUndo,
	)

	srv.AddTool(
		mcp.NewTool("sketch_redo",
			mcp.WithDescription("Redo the most recently undone operation."),
			mcp.WithToolAnnotation(mutatingAnnotation()),
		),
		s.handleRedo,
	)

	srv.AddTool(
		mcp.NewTool("sketch_history",
			mcp.WithDescription(
				"List the operation history with the undo cursor. Entries before the "+
					"cursor can be undone; entries at or after it can be redone.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleHistory,
	)

	// ----- Export -----

	srv.AddTool(
		mcp.NewTool("sketch_export_sql",
			mcp.WithDescription(
				"Render the canvas as Postgres DDL: enum types, CREATE TABLE statements "+
					"in foreign key order, then primary and foreign key constraints.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleExportSQL,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

type columnSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
	PK   bool   `json:"pk,omitempty"`
	FK   string `json:"fk,omitempty"`
}

type tableInfo struct {
	ID      string          `json:"id"`
	Schema  string          `json:"schema,omitempty"`
	Type    string          `json:"type"`
	Columns []columnSummary `json:"columns"`
}

// handleListTables returns every table with a column summary, in key order.
func (s *MCPServer) handleListTables(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	snap := s.editor.Store().Snapshot()
	tables := make([]tableInfo, 0, len(snap))
	for _, t := range snap.Tables() {
		info := tableInfo{
			ID:      t.ID,
			Schema:  t.Schema,
			Type:    "table",
			Columns: make([]columnSummary, len(t.Columns)),
		}
		if t.IsView {
			info.Type = "view"
		}
		for i, c := range t.Columns {
			info.Columns[i] = columnSummary{Name: c.Title, Type: c.Type, PK: c.PK, FK: c.FK}
		}
		tables = append(tables, info)
	}
	return successJSON(tables)
}

// handleDescribeTable returns the full definition of one table.
func (s *MCPServer) handleDescribeTable(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	id, err := requireString(request, "tableId")
	if err != nil {
		return toolError("%v", err)
	}

	store := s.editor.Store()
	t, ok := store.Table(id)
	if !ok {
		// List the tables that do exist to help the model self-correct.
		return toolError("Table %q not found.\n\nAvailable tables: %s",
			id, availableTables(store.Snapshot()))
	}
	return successJSON(t)
}

// handleApplyOperations validates and applies a batch. A malformed batch is
// a tool error and nothing is applied.
func (s *MCPServer) handleApplyOperations(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	ops, err := operationsArg(request)
	if err != nil {
		return toolError("Invalid operations: %v", err)
	}
	if len(ops) == 0 {
		return toolError("Invalid operations: the batch is empty")
	}

	res, err := s.editor.Apply(ctx, ops)
	if err != nil {
		return toolError("Batch not applied: %v", err)
	}
	s.logger.Debug("tool batch applied", "operations", len(ops), "ok", res.OK)
	return successJSON(res)
}

type historyStep struct {
	Action      schema.Kind `json:"action"`
	TableID     string      `json:"tableId"`
	Description string      `json:"description"`
	CanUndo     bool        `json:"canUndo"`
	CanRedo     bool        `json:"canRedo"`
}

func (s *MCPServer) step(e canvas.Entry) historyStep {
	st := s.editor.Store().State()
	id := e.NewTableID
	if id == "" {
		id = e.TableID
	}
	return historyStep{
		Action:      e.Kind,
		TableID:     id,
		Description: e.Description,
		CanUndo:     st.CanUndo,
		CanRedo:     st.CanRedo,
	}
}

// handleUndo reverts the most recent history entry.
func (s *MCPServer) handleUndo(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	e, ok := s.editor.Undo()
	if !ok {
		return toolError("Nothing to undo")
	}
	return successJSON(s.step(e))
}

// handleRedo re-applies the most recently undone entry.
func (s *MCPServer) handleRedo(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	e, ok := s.editor.Redo()
	if !ok {
		return toolError("Nothing to redo")
	}
	return successJSON(s.step(e))
}

// handleHistory returns the history entries and cursor.
func (s *MCPServer) handleHistory(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	return successJSON(s.editor.Store().History())
}

// handleExportSQL renders the snapshot as DDL.
func (s *MCPServer) handleExportSQL(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	sql := ddl.Generate(s.editor.Store().Snapshot())
	if sql == "" {
		return mcp.NewToolResultText("-- The canvas is empty."), nil
	}
	return mcp.NewToolResultText(sql), nil
}

func availableTables(snap model.Snapshot) string {
	keys := snap.Keys()
	if len(keys) == 0 {
		return "(none)"
	}
	return strings.Join(keys, ", ")
}
