package handler

import (
	"net/http"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/model"
)

// HistoryHandler exposes undo/redo over HTTP.
type HistoryHandler struct {
	editor *canvas.Editor
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(editor *canvas.Editor) *HistoryHandler {
	return &HistoryHandler{editor: editor}
}

// stepResponse is returned by undo and redo.
type stepResponse struct {
	Entry   canvas.Entry   `json:"entry"`
	Tables  model.Snapshot `json:"tables"`
	CanUndo bool           `json:"canUndo"`
	CanRedo bool           `json:"canRedo"`
}

func (h *HistoryHandler) step(e canvas.Entry) stepResponse {
	st := h.editor.Store().State()
	return stepResponse{
		Entry:   e,
		Tables:  st.Tables,
		CanUndo: st.CanUndo,
		CanRedo: st.CanRedo,
	}
}

// GetHistory returns the history entries and cursor.
// GET /api/v1/history
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.editor.Store().History())
}

// ClearHistory drops every history entry and keeps the schema.
// DELETE /api/v1/history
func (h *HistoryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.editor.ClearHistory()
	writeJSON(w, http.StatusOK, h.editor.Store().History())
}

// Undo reverts the most recent entry. 409 when there is nothing to undo.
// POST /api/v1/history/undo
func (h *HistoryHandler) Undo(w http.ResponseWriter, r *http.Request) {
	e, ok := h.editor.Undo()
	if !ok {
		writeError(w, http.StatusConflict, "Nothing to undo")
		return
	}
	writeJSON(w, http.StatusOK, h.step(e))
}

// Redo re-applies the most recently undone entry. 409 when there is nothing
// to redo.
// POST /api/v1/history/redo
func (h *HistoryHandler) Redo(w http.ResponseWriter, r *http.Request) {
	e, ok := h.editor.Redo()
	if !ok {
		writeError(w, http.StatusConflict, "Nothing to redo")
		return
	}
	writeJSON(w, http.StatusOK, h.step(e))
}
