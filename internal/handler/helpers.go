package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/schema"
)

// errBodyTooLarge is returned by readBody when the body exceeds the limit.
var errBodyTooLarge = errors.New("request body too large")

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope. The optional ctx map provides additional context fields.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]any) {
	var ctxMap map[string]any
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v, reading at most limit
// bytes (no limit when limit <= 0). The body is closed after decoding.
func readJSON(r *http.Request, limit int64, v any) error {
	b, err := readBody(r, limit)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// readBody reads the whole request body. A body longer than limit fails with
// errBodyTooLarge instead of being cut short.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	defer r.Body.Close()
	if limit <= 0 {
		return io.ReadAll(r.Body)
	}
	b, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, errBodyTooLarge
	}
	return b, nil
}

// writeBodyError reports a failed body read or decode: 413 when the body was
// over a size limit, 400 otherwise.
func writeBodyError(w http.ResponseWriter, prefix string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.Is(err, errBodyTooLarge) || errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, prefix+err.Error())
}

// writeCachedJSON marshals v and serves it with a content-hash ETag. A
// request whose If-None-Match matches gets 304 with no body.
func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode response: "+err.Error())
		return
	}
	etag := fmt.Sprintf(`"%016x"`, xxh3.Hash(b))
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}

// classifyError maps request-level failures to an HTTP status code and a
// clean message.
//   - malformed batch input: 400
//   - non-Postgres connection string: 400
//   - database with no user tables: 422
//   - unreachable or failing database: 502
func classifyError(err error, fallbackMsg string) (int, string) {
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "Invalid operations: " + ve.Error()
	case errors.Is(err, connector.ErrUnsupportedDriver):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, connector.ErrEmptySchema):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusBadGateway, fallbackMsg + ": " + err.Error()
	}
}
