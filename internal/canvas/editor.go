package canvas

import (
	"context"
	"log/slog"
	"sync"

	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/schema"
)

// Editor is the single writer for a Store. It runs operation batches through
// the schema applier and records every successful sub-operation as its own
// history entry, so undo steps back through a batch one change at a time.
type Editor struct {
	mu     sync.Mutex
	store  *Store
	logger *slog.Logger
}

// NewEditor creates an editor that writes to store.
func NewEditor(store *Store, logger *slog.Logger) *Editor {
	return &Editor{store: store, logger: logger}
}

// Store returns the underlying store for readers.
func (e *Editor) Store() *Store {
	return e.store
}

// Apply runs ops against the current snapshot and commits the successful
// ones. If ctx is done before the commit, nothing is committed and ctx.Err()
// is returned; a batch is never half-applied.
func (e *Editor) Apply(ctx context.Context, ops []schema.Operation) (schema.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return schema.Result{}, err
	}

	res := schema.Apply(e.store.Snapshot(), ops)

	if err := ctx.Err(); err != nil {
		e.logger.Warn("batch discarded", "operations", len(ops), "error", err)
		return schema.Result{}, err
	}

	entries := make([]Entry, 0, len(res.Results))
	failed := 0
	for _, r := range res.Results {
		if r.Status != schema.StatusSuccess {
			failed++
			e.logger.Debug("operation failed", "action", r.Action, "table", r.TableID, "detail", r.Detail)
			continue
		}
		if r.Change == nil {
			continue
		}
		entries = append(entries, NewEntry(r.Action, *r.Change, r.Detail))
	}
	e.store.Commit(entries...)

	e.logger.Info("batch applied",
		"operations", len(ops),
		"committed", len(entries),
		"failed", failed,
	)
	return res, nil
}

// Undo reverts the most recent entry.
func (e *Editor) Undo() (Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.store.Undo()
	if ok {
		e.logger.Info("undo", "kind", entry.Kind, "table", entry.TableID, "description", entry.Description)
	}
	return entry, ok
}

// Redo re-applies the most recently undone entry.
func (e *Editor) Redo() (Entry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.store.Redo()
	if ok {
		e.logger.Info("redo", "kind", entry.Kind, "table", entry.NewTableID, "description", entry.Description)
	}
	return entry, ok
}

// ClearHistory drops the undo/redo history and keeps the schema.
func (e *Editor) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.store.History().Entries)
	e.store.ClearHistory()
	e.logger.Info("history cleared", "entries", n)
}

// Import replaces the schema with snap and starts a fresh history.
func (e *Editor) Import(snap model.Snapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Replace(snap)
	e.logger.Info("schema imported", "tables", len(snap))
}

// Reset empties the canvas.
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Reset()
	e.logger.Info("canvas reset")
}

// Move repositions a table node.
func (e *Editor) Move(id string, pos model.Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Move(id, pos); err != nil {
		return err
	}
	e.logger.Debug("table moved", "table", id, "x", pos.X, "y", pos.Y)
	return nil
}
