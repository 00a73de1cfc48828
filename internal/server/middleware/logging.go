package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// mcpSessionHeader is set by the streamable HTTP MCP transport.
const mcpSessionHeader = "Mcp-Session-Id"

// Logger returns an HTTP middleware that writes one structured line per
// request. version, when non-nil, reports the canvas version after the
// handler ran, so edits can be matched to history entries in the log.
// Requests on an MCP session carry the session ID. Probe paths log at
// debug level.
func Logger(logger *slog.Logger, version func() uint64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(ww, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.status,
				"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
				"bytes", ww.bytes,
				"request_id", GetRequestID(r.Context()),
				"remote_addr", r.RemoteAddr,
			}
			if version != nil {
				attrs = append(attrs, "canvas_version", version())
			}
			session := r.Header.Get(mcpSessionHeader)
			if session == "" {
				session = ww.Header().Get(mcpSessionHeader)
			}
			if session != "" {
				attrs = append(attrs, "mcp_session", session)
			}

			logger.Log(r.Context(), requestLevel(r.URL.Path, ww.status), "request", attrs...)
		})
	}
}

func requestLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/healthz" || path == "/readyz":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// responseWriter records the status code and body size.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// Unwrap exposes the underlying writer so http.ResponseController can reach
// Flush for the event stream.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
