package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/faucetdb/sketch/internal/canvas"
	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/handler"
	"github.com/faucetdb/sketch/internal/server/middleware"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	CORSOrigins     []string
	CORSMethods     []string
	MaxBodySize     int64 // bytes
	Title           string

	// IntrospectRateLimit caps introspection requests per IP per minute.
	// Zero disables the limit.
	IntrospectRateLimit int
	IntrospectTimeout   time.Duration
	Introspect          connector.ConnectionConfig
}

// DefaultConfig returns a Config with sensible production defaults.
func DefaultConfig() Config {
	return Config{
		Host:                "0.0.0.0",
		Port:                8080,
		ShutdownTimeout:     30 * time.Second,
		CORSOrigins:         []string{"*"},
		CORSMethods:         []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		MaxBodySize:         10 * 1024 * 1024, // 10MB
		Title:               "Sketch Schema",
		IntrospectRateLimit: 10,
		IntrospectTimeout:   60 * time.Second,
	}
}

// Server is the top-level HTTP server. It owns the Chi router and serves the
// canvas held by a single editor.
type Server struct {
	cfg          Config
	router       chi.Router
	editor       *canvas.Editor
	introspector connector.Introspector
	mcpHandler   http.Handler
	httpServer   *http.Server
	logger       *slog.Logger
}

// New creates a new Server, wires up all routes and middleware, and returns
// it ready to listen. mcpHandler is mounted at /mcp when non-nil. Call
// ListenAndServe to start accepting connections.
func New(cfg Config, editor *canvas.Editor, introspector connector.Introspector, mcpHandler http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:          cfg,
		editor:       editor,
		introspector: introspector,
		mcpHandler:   mcpHandler,
		logger:       logger,
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// --- Global middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(s.logger, s.editor.Store().Version))
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.CORSOrigins,
		AllowedMethods:   s.cfg.CORSMethods,
		AllowedHeaders:   []string{"Accept", "Content-Type", "If-None-Match", "Mcp-Session-Id", "X-Requested-With"},
		ExposedHeaders:   []string{"ETag", "X-Request-ID", "Mcp-Session-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(chimw.Compress(5))
	r.Use(middleware.MaxBodySize(s.cfg.MaxBodySize))

	store := s.editor.Store()
	schemaH := handler.NewSchemaHandler(s.editor, s.cfg.MaxBodySize, s.logger)
	historyH := handler.NewHistoryHandler(s.editor)
	exportH := handler.NewExportHandler(store, s.cfg.Title)
	introH := handler.NewIntrospectHandler(s.editor, s.introspector, s.cfg.Introspect, s.cfg.IntrospectTimeout, s.cfg.MaxBodySize, s.logger)
	eventsH := handler.NewEventsHandler(store, s.logger)

	// --- Health checks ---
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	// --- OpenAPI rendering of the canvas ---
	r.Get("/openapi.json", exportH.OpenAPI)

	// --- API routes ---
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/schema", func(r chi.Router) {
			r.Get("/", schemaH.GetSchema)
			r.Delete("/", schemaH.ResetSchema)
			r.Post("/operations", schemaH.ApplyOperations)
			r.Put("/tables/{tableId}/position", schemaH.MoveTable)
			r.Post("/import", schemaH.Import)
			r.Post("/diff", schemaH.Diff)
			r.Get("/events", eventsH.Stream)

			// Introspection dials out to a database, so it is throttled.
			r.Group(func(r chi.Router) {
				if s.cfg.IntrospectRateLimit > 0 {
					r.Use(middleware.RateLimit(s.cfg.IntrospectRateLimit))
				}
				r.Post("/introspect", introH.Introspect)
			})
		})

		r.Get("/history", historyH.GetHistory)
		r.Delete("/history", historyH.ClearHistory)
		r.Post("/history/undo", historyH.Undo)
		r.Post("/history/redo", historyH.Redo)

		r.Get("/export/sql", exportH.SQL)
		r.Get("/export/openapi", exportH.OpenAPI)
	})

	// --- MCP Streamable HTTP endpoint ---
	if s.mcpHandler != nil {
		r.Handle("/mcp", s.mcpHandler)
	}

	s.router = r
}

// handleHealthz is a liveness probe. Returns 200 if the process is running.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// handleReadyz reports the canvas state. The canvas lives in memory, so the
// server is ready as soon as it is listening.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	st := s.editor.Store().State()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"version": st.Version,
		"tables":  len(st.Tables),
	})
}

// ListenAndServe starts the HTTP server and blocks until a SIGINT or SIGTERM
// is received. It then performs a graceful shutdown, draining in-flight
// requests.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	// Listen for shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// No WriteTimeout: the events stream and MCP sessions are long lived.
	// Request contexts derive from ctx so open streams end on shutdown.
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Start server in background goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "addr", addr, "mcp", s.mcpHandler != nil)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server listen: %w", err)
	case <-ctx.Done():
		s.logger.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the underlying Chi router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
