// Package canvas owns the live schema of an editing session: the current
// snapshot, the linear undo/redo history, and change notifications for
// readers such as the browser renderer.
package canvas

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/schema"
)

// ErrTableNotFound is returned when a store operation addresses a table that
// is not in the snapshot.
var ErrTableNotFound = errors.New("table not found")

// Entry is one committed, reversible edit. TableID is the key the table had
// before the edit and NewTableID the key after it; they differ only for a
// rename. Before is nil for a creation and After is nil for a deletion.
// Displaced is the table a rename overwrote under NewTableID.
// Entries are never modified once committed.
type Entry struct {
	ID          string       `json:"id"`
	Kind        schema.Kind  `json:"kind"`
	TableID     string       `json:"tableId"`
	NewTableID  string       `json:"newTableId"`
	Before      *model.Table `json:"before"`
	After       *model.Table `json:"after"`
	Displaced   *model.Table `json:"displaced,omitempty"`
	Description string       `json:"description"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewEntry builds a history entry from the change an operation produced.
func NewEntry(kind schema.Kind, change schema.Change, description string) Entry {
	return Entry{
		ID:          uuid.Must(uuid.NewV7()).String(),
		Kind:        kind,
		TableID:     change.BeforeKey,
		NewTableID:  change.AfterKey,
		Before:      cloneTable(change.Before),
		After:       cloneTable(change.After),
		Displaced:   cloneTable(change.Displaced),
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
}

func (e Entry) clone() Entry {
	e.Before = cloneTable(e.Before)
	e.After = cloneTable(e.After)
	e.Displaced = cloneTable(e.Displaced)
	return e
}

// Reason says why a store event was published.
type Reason string

const (
	ReasonCommit  Reason = "commit"
	ReasonUndo    Reason = "undo"
	ReasonRedo    Reason = "redo"
	ReasonReplace Reason = "replace"
	ReasonReset   Reason = "reset"
	ReasonMove    Reason = "move"
	ReasonHistory Reason = "history_cleared"
)

// Event tells subscribers that the store changed. Subscribers re-read the
// snapshot; the event itself carries no schema data.
type Event struct {
	Version uint64 `json:"version"`
	Reason  Reason `json:"reason"`
}

// HistoryView is a read-only copy of the history state.
type HistoryView struct {
	Entries   []Entry `json:"entries"`
	Cursor    int     `json:"cursor"`
	CanUndo   bool    `json:"canUndo"`
	CanRedo   bool    `json:"canRedo"`
	UndoLabel string  `json:"undoLabel,omitempty"`
	RedoLabel string  `json:"redoLabel,omitempty"`
}

// Store holds the canonical snapshot and its history. Entries before the
// cursor are undoable; entries at or after it are redoable. A Store is safe
// for concurrent use; every method that returns schema data returns an
// independent copy.
type Store struct {
	mu      sync.RWMutex
	snap    model.Snapshot
	entries []Entry
	cursor  int
	version uint64

	subs    map[int]chan Event
	nextSub int
}

// NewStore creates a store seeded with a copy of initial, which may be nil.
func NewStore(initial model.Snapshot) *Store {
	return &Store{
		snap: initial.Clone(),
		subs: make(map[int]chan Event),
	}
}

// Snapshot returns a deep copy of the latest committed snapshot.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

// State is a consistent read of the store: every field comes from the same
// version.
type State struct {
	Tables  model.Snapshot `json:"tables"`
	Version uint64         `json:"version"`
	CanUndo bool           `json:"canUndo"`
	CanRedo bool           `json:"canRedo"`
}

// State returns the snapshot, version and undo/redo availability under one
// lock.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Tables:  s.snap.Clone(),
		Version: s.version,
		CanUndo: s.cursor > 0,
		CanRedo: s.cursor < len(s.entries),
	}
}

// Table returns a copy of a single table.
func (s *Store) Table(id string) (model.Table, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.snap[id]
	if !ok {
		return model.Table{}, false
	}
	return t.Clone(), true
}

// Version increases by one on every change to the snapshot or history.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Commit applies the forward change of each entry in order and appends the
// entries to the history, discarding any redoable entries first. The whole
// call is atomic with respect to readers. Committing nothing is a no-op.
func (s *Store) Commit(entries ...Entry) {
	if len(entries) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = s.entries[:s.cursor]
	for _, e := range entries {
		e = e.clone()
		s.forward(e)
		s.entries = append(s.entries, e)
	}
	s.cursor = len(s.entries)
	s.publish(ReasonCommit)
}

// Undo reverts the entry before the cursor and returns it. It reports false
// and changes nothing when there is nothing to undo.
func (s *Store) Undo() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == 0 {
		return Entry{}, false
	}
	s.cursor--
	e := s.entries[s.cursor]
	s.backward(e)
	s.publish(ReasonUndo)
	return e.clone(), true
}

// Redo re-applies the entry at the cursor and returns it. It reports false
// and changes nothing when there is nothing to redo.
func (s *Store) Redo() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == len(s.entries) {
		return Entry{}, false
	}
	e := s.entries[s.cursor]
	s.forward(e)
	s.cursor++
	s.publish(ReasonRedo)
	return e.clone(), true
}

// CanUndo reports whether an entry precedes the cursor.
func (s *Store) CanUndo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor > 0
}

// CanRedo reports whether an entry follows the cursor.
func (s *Store) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor < len(s.entries)
}

// UndoLabel returns the description of the entry Undo would revert, or "".
func (s *Store) UndoLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.undoLabel()
}

// RedoLabel returns the description of the entry Redo would re-apply, or "".
func (s *Store) RedoLabel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.redoLabel()
}

func (s *Store) undoLabel() string {
	if s.cursor == 0 {
		return ""
	}
	return s.entries[s.cursor-1].Description
}

func (s *Store) redoLabel() string {
	if s.cursor == len(s.entries) {
		return ""
	}
	return s.entries[s.cursor].Description
}

// History returns a copy of the history and cursor.
func (s *Store) History() HistoryView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		entries[i] = e.clone()
	}
	return HistoryView{
		Entries:   entries,
		Cursor:    s.cursor,
		CanUndo:   s.cursor > 0,
		CanRedo:   s.cursor < len(s.entries),
		UndoLabel: s.undoLabel(),
		RedoLabel: s.redoLabel(),
	}
}

// ClearHistory discards every entry and resets the cursor. The snapshot is
// left as it is.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.cursor = 0
	s.publish(ReasonHistory)
}

// Replace swaps in a copy of snap wholesale and starts a fresh history, as
// when a new import seeds the canvas.
func (s *Store) Replace(snap model.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap.Clone()
	s.entries = nil
	s.cursor = 0
	s.publish(ReasonReplace)
}

// Reset empties both the snapshot and the history.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = make(model.Snapshot)
	s.entries = nil
	s.cursor = 0
	s.publish(ReasonReset)
}

// Move sets the canvas position of a table. Positions belong to the renderer
// and are not recorded in the history.
func (s *Store) Move(id string, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.snap[id]
	if !ok {
		return ErrTableNotFound
	}
	t.Position = &pos
	s.snap[id] = t
	s.publish(ReasonMove)
	return nil
}

// Subscribe registers for change events. The channel holds at most one
// pending event; a slow reader only ever sees the newest one. Call the
// returned function to unsubscribe; it closes the channel.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 1)
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// forward applies the entry's after-state. Callers hold s.mu.
func (s *Store) forward(e Entry) {
	if e.After == nil || e.TableID != e.NewTableID {
		delete(s.snap, e.TableID)
	}
	if e.After != nil {
		s.snap[e.NewTableID] = e.After.Clone()
	}
}

// backward restores the entry's before-state. Callers hold s.mu.
func (s *Store) backward(e Entry) {
	if e.After != nil {
		delete(s.snap, e.NewTableID)
	}
	if e.Before != nil {
		s.snap[e.TableID] = e.Before.Clone()
	}
	if e.Displaced != nil {
		s.snap[e.NewTableID] = e.Displaced.Clone()
	}
}

// publish bumps the version and notifies subscribers without blocking.
// Callers hold s.mu.
func (s *Store) publish(reason Reason) {
	s.version++
	ev := Event{Version: s.version, Reason: reason}
	for _, ch := range s.subs {
		select {
		case ch <- ev:
			continue
		default:
		}
		// Replace the stale pending event with the newest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- ev:
		default:
		}
	}
}

func cloneTable(t *model.Table) *model.Table {
	if t == nil {
		return nil
	}
	c := t.Clone()
	return &c
}
