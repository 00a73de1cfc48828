package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/faucetdb/sketch/internal/canvas"
)

const heartbeatInterval = 25 * time.Second

// EventsHandler streams store change notifications as server-sent events so
// the canvas can re-read the snapshot after AI or API edits.
type EventsHandler struct {
	store  *canvas.Store
	logger *slog.Logger
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(store *canvas.Store, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{store: store, logger: logger}
}

// Stream writes a "ready" event with the current version, then one
// "change" event per store notification until the client disconnects.
// Notifications are coalesced, so a slow client only sees the latest one.
// GET /api/v1/schema/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	events, cancel := h.store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ready := canvas.Event{Version: h.store.Version(), Reason: "ready"}
	if err := writeEvent(w, "ready", ready); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger.Debug("event stream cannot flush", "error", err)
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := writeEvent(w, "change", ev); err != nil {
				return
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, ev canvas.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, b)
	return err
}
