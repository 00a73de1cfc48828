package handler

import (
	"net/http"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/ddl"
	"github.com/faucetdb/sketch/internal/openapi"
)

// ExportHandler renders the canvas as SQL or OpenAPI.
type ExportHandler struct {
	store *canvas.Store
	title string
}

// NewExportHandler creates a new ExportHandler. title names the exported
// OpenAPI document.
func NewExportHandler(store *canvas.Store, title string) *ExportHandler {
	return &ExportHandler{store: store, title: title}
}

// SQL returns the snapshot as Postgres DDL.
// GET /api/v1/export/sql
func (h *ExportHandler) SQL(w http.ResponseWriter, r *http.Request) {
	sql := ddl.Generate(h.store.Snapshot())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", `attachment; filename="schema.sql"`)
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sql))
}

// OpenAPI returns an OpenAPI 3.1 document with one component schema per
// table.
// GET /openapi.json
func (h *ExportHandler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	writeCachedJSON(w, r, openapi.Generate(h.store.Snapshot(), h.title))
}
