package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/drift"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/openapi"
	"github.com/faucetdb/sketch/internal/schema"
)

// SchemaHandler serves the canvas snapshot and applies edits to it.
type SchemaHandler struct {
	editor  *canvas.Editor
	maxBody int64
	logger  *slog.Logger
}

// NewSchemaHandler creates a new SchemaHandler. maxBody caps request bodies
// in bytes; zero means no cap.
func NewSchemaHandler(editor *canvas.Editor, maxBody int64, logger *slog.Logger) *SchemaHandler {
	return &SchemaHandler{editor: editor, maxBody: maxBody, logger: logger}
}

// current reads the canvas under one store lock, so the ETag always covers a
// single version.
func (h *SchemaHandler) current() canvas.State {
	return h.editor.Store().State()
}

// GetSchema returns the current snapshot.
// GET /api/v1/schema
func (h *SchemaHandler) GetSchema(w http.ResponseWriter, r *http.Request) {
	writeCachedJSON(w, r, h.current())
}

// ResetSchema empties the canvas and its history.
// DELETE /api/v1/schema
func (h *SchemaHandler) ResetSchema(w http.ResponseWriter, r *http.Request) {
	h.editor.Reset()
	writeJSON(w, http.StatusOK, h.current())
}

// ApplyOperations validates a batch of operations and applies it. A
// malformed batch is rejected as a whole with 400; per-operation failures
// are reported in the 200 response.
// POST /api/v1/schema/operations
func (h *SchemaHandler) ApplyOperations(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.maxBody)
	if err != nil {
		writeBodyError(w, "Failed to read request body: ", err)
		return
	}

	ops, err := schema.DecodeBatch(body)
	if err != nil {
		status, msg := classifyError(err, "Invalid operations")
		writeError(w, status, msg)
		return
	}
	if len(ops) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid operations: the batch is empty")
		return
	}

	res, err := h.editor.Apply(r.Context(), ops)
	if err != nil {
		// The client went away before the batch was committed.
		writeError(w, http.StatusServiceUnavailable, "Batch not applied: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MoveTable sets a table's canvas position. Moves are not recorded in the
// history.
// PUT /api/v1/schema/tables/{tableId}/position
func (h *SchemaHandler) MoveTable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "tableId")

	var pos model.Position
	if err := readJSON(r, h.maxBody, &pos); err != nil {
		writeBodyError(w, "Invalid JSON body: ", err)
		return
	}

	if err := h.editor.Move(id, pos); err != nil {
		if errors.Is(err, canvas.ErrTableNotFound) {
			writeError(w, http.StatusNotFound, "Table not found: "+id)
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	t, _ := h.editor.Store().Table(id)
	writeJSON(w, http.StatusOK, t)
}

// Import replaces the canvas with a schema document. The body is either an
// introspection document ({"definitions": ...}) or an OpenAPI 3 spec.
// POST /api/v1/schema/import
func (h *SchemaHandler) Import(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.maxBody)
	if err != nil {
		writeBodyError(w, "Failed to read request body: ", err)
		return
	}

	snap, err := openapi.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schema document: "+err.Error())
		return
	}

	h.editor.Import(snap)
	writeJSON(w, http.StatusOK, h.current())
}

// Diff compares a schema document against the canvas. The report lists what
// would change going from the posted schema to the canvas, e.g. when the
// document is the live database.
// POST /api/v1/schema/diff
func (h *SchemaHandler) Diff(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.maxBody)
	if err != nil {
		writeBodyError(w, "Failed to read request body: ", err)
		return
	}

	base, err := openapi.Decode(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schema document: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, drift.Diff(base, h.editor.Store().Snapshot()))
}
