package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/openapi"
)

// IntrospectHandler seeds the canvas from a live Postgres database.
type IntrospectHandler struct {
	editor       *canvas.Editor
	introspector connector.Introspector
	defaults     connector.ConnectionConfig
	timeout      time.Duration
	maxBody      int64
	logger       *slog.Logger
}

// NewIntrospectHandler creates an IntrospectHandler. defaults supplies the
// schema filters and pool settings; the DSN comes from each request. A
// positive timeout bounds the whole introspection run, and a positive maxBody
// caps the request body.
func NewIntrospectHandler(editor *canvas.Editor, introspector connector.Introspector, defaults connector.ConnectionConfig, timeout time.Duration, maxBody int64, logger *slog.Logger) *IntrospectHandler {
	return &IntrospectHandler{
		editor:       editor,
		introspector: introspector,
		defaults:     defaults,
		timeout:      timeout,
		maxBody:      maxBody,
		logger:       logger,
	}
}

type introspectRequest struct {
	ConnectionString string   `json:"connection_string"`
	Schemas          []string `json:"schemas,omitempty"`
}

// Introspect reads the database named by the request and replaces the
// canvas with its tables. On any failure the canvas is left untouched.
// POST /api/v1/schema/introspect
func (h *IntrospectHandler) Introspect(w http.ResponseWriter, r *http.Request) {
	var req introspectRequest
	if err := readJSON(r, h.maxBody, &req); err != nil {
		writeBodyError(w, "Invalid JSON body: ", err)
		return
	}
	dsn := strings.TrimSpace(req.ConnectionString)
	if dsn == "" {
		writeError(w, http.StatusBadRequest, "connection_string is required")
		return
	}

	driver, err := connector.DetectDriver(dsn)
	if err != nil {
		status, msg := classifyError(err, "Introspection failed")
		writeError(w, status, msg)
		return
	}

	cfg := h.defaults
	cfg.Driver = driver
	cfg.DSN = dsn
	if len(req.Schemas) > 0 {
		cfg.Schemas = req.Schemas
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	doc, err := h.introspector.Introspect(ctx, cfg)
	if err != nil {
		h.logger.Warn("introspection failed", "dsn", connector.RedactDSN(dsn), "error", err)
		status, msg := classifyError(err, "Introspection failed")
		writeError(w, status, msg)
		return
	}

	snap := openapi.FromDocument(doc)
	h.editor.Import(snap)
	h.logger.Info("database introspected",
		"dsn", connector.RedactDSN(dsn),
		"tables", len(snap),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"tables":   snap,
		"document": doc,
	})
}
