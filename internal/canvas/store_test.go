package canvas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/schema"
)

func newTestEditor(t *testing.T, seed model.Snapshot) *Editor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEditor(NewStore(seed), logger)
}

func mustApply(t *testing.T, ed *Editor, ops ...schema.Operation) schema.Result {
	t.Helper()
	res, err := ed.Apply(context.Background(), ops)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	return res
}

func seed() model.Snapshot {
	return model.Snapshot{
		"users": {
			ID:       "users",
			Columns:  []model.Column{{Title: "id", Type: "integer", Format: "integer", PK: true}},
			Position: &model.Position{X: 1, Y: 2},
		},
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	ed := newTestEditor(t, seed())
	store := ed.Store()
	initial := store.Snapshot()

	ops := []schema.Operation{
		schema.CreateTable{TableID: "orders", Columns: []schema.ColumnInput{{Title: "id", Type: "integer"}}},
		schema.AddColumn{TableID: "orders", Column: schema.ColumnInput{Title: "user_id", Type: "integer", FK: "users.id"}},
		schema.AlterColumn{TableID: "users", Column: "id", Patch: schema.ColumnPatch{Format: strPtr("bigint")}},
		schema.RenameTable{TableID: "users", NewTableID: "crm.people"},
		schema.CreateTable{TableID: "orders", Columns: []schema.ColumnInput{{Title: "only"}}},
		schema.DropColumn{TableID: "orders", Column: "only"},
		schema.DropTable{TableID: "orders"},
	}
	var states []model.Snapshot
	for _, op := range ops {
		res := mustApply(t, ed, op)
		if !res.OK {
			t.Fatalf("%s failed: %s", op.Kind(), res.Results[0].Detail)
		}
		states = append(states, store.Snapshot())
	}
	final := store.Snapshot()
	n := len(ops)

	for i := n - 1; i >= 0; i-- {
		if _, ok := ed.Undo(); !ok {
			t.Fatalf("undo %d reported nothing to undo", n-i)
		}
		want := initial
		if i > 0 {
			want = states[i-1]
		}
		if got := store.Snapshot(); !reflect.DeepEqual(got, want) {
			t.Fatalf("after undoing %s:\n got %+v\nwant %+v", ops[i].Kind(), got, want)
		}
	}
	if store.CanUndo() {
		t.Error("CanUndo should be false after undoing everything")
	}
	if _, ok := ed.Undo(); ok {
		t.Error("undo at start should be a no-op")
	}

	for i := 0; i < n; i++ {
		if _, ok := ed.Redo(); !ok {
			t.Fatalf("redo %d reported nothing to redo", i+1)
		}
	}
	if store.CanRedo() {
		t.Error("CanRedo should be false after redoing everything")
	}
	if got := store.Snapshot(); !reflect.DeepEqual(got, final) {
		t.Errorf("redo did not restore final state:\n got %+v\nwant %+v", got, final)
	}
	if _, ok := ed.Redo(); ok {
		t.Error("redo at end should be a no-op")
	}
}

func TestHistoryTruncation(t *testing.T) {
	ed := newTestEditor(t, nil)
	store := ed.Store()

	for _, id := range []string{"a", "b", "c"} {
		mustApply(t, ed, schema.CreateTable{TableID: id})
	}
	ed.Undo()
	if !store.CanRedo() {
		t.Fatal("expected redo to be available after undo")
	}

	mustApply(t, ed, schema.CreateTable{TableID: "d"})
	if store.CanRedo() {
		t.Error("commit after undo must discard redoable entries")
	}
	h := store.History()
	if len(h.Entries) != 3 || h.Cursor != 3 {
		t.Errorf("history = %d entries, cursor %d; want 3, 3", len(h.Entries), h.Cursor)
	}
	if _, ok := store.Snapshot()["c"]; ok {
		t.Error("undone table c should not come back")
	}
}

func TestBatchCommitsOneEntryPerSuccess(t *testing.T) {
	ed := newTestEditor(t, seed())
	store := ed.Store()

	res := mustApply(t, ed,
		schema.CreateTable{TableID: "tags", Columns: []schema.ColumnInput{{Title: "id"}}},
		schema.DropTable{TableID: "missing"},
		schema.AddColumn{TableID: "tags", Column: schema.ColumnInput{Title: "name"}},
		schema.RenameTable{TableID: "users", NewTableID: "users"},
	)
	if res.OK {
		t.Error("expected ok=false")
	}

	h := store.History()
	if len(h.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(h.Entries))
	}
	if h.Entries[0].Kind != schema.KindCreateTable || h.Entries[1].Kind != schema.KindAddColumn {
		t.Errorf("entry kinds = %s, %s", h.Entries[0].Kind, h.Entries[1].Kind)
	}
	if h.UndoLabel != `Added column "name" (string) to table "tags"` {
		t.Errorf("UndoLabel = %q", h.UndoLabel)
	}
	if h.Entries[0].ID == "" || h.Entries[0].ID == h.Entries[1].ID {
		t.Errorf("entry ids not unique: %q %q", h.Entries[0].ID, h.Entries[1].ID)
	}

	ed.Undo()
	tags := store.Snapshot()["tags"]
	if len(tags.Columns) != 1 {
		t.Errorf("undo should step back one sub-operation, columns = %+v", tags.Columns)
	}
}

func TestLabels(t *testing.T) {
	ed := newTestEditor(t, nil)
	store := ed.Store()

	if store.UndoLabel() != "" || store.RedoLabel() != "" {
		t.Error("labels should be empty with no history")
	}
	mustApply(t, ed, schema.CreateTable{TableID: "t"})
	want := `Created table "t" with 0 columns`
	if got := store.UndoLabel(); got != want {
		t.Errorf("UndoLabel = %q, want %q", got, want)
	}
	// Reading labels has no side effects.
	store.UndoLabel()
	if !store.CanUndo() || store.CanRedo() {
		t.Error("label read changed state")
	}

	ed.Undo()
	if got := store.RedoLabel(); got != want {
		t.Errorf("RedoLabel = %q, want %q", got, want)
	}
	if store.UndoLabel() != "" {
		t.Error("UndoLabel should be empty at start")
	}
}

func TestClearHistoryKeepsSnapshot(t *testing.T) {
	ed := newTestEditor(t, nil)
	store := ed.Store()

	mustApply(t, ed, schema.CreateTable{TableID: "a"}, schema.CreateTable{TableID: "b"})
	ed.Undo()
	before := store.Snapshot()

	ed.ClearHistory()

	if !reflect.DeepEqual(store.Snapshot(), before) {
		t.Error("ClearHistory changed the snapshot")
	}
	h := store.History()
	if len(h.Entries) != 0 || h.Cursor != 0 || h.CanUndo || h.CanRedo {
		t.Errorf("history not cleared: %+v", h)
	}
}

func TestRenameInversion(t *testing.T) {
	ed := newTestEditor(t, seed())
	store := ed.Store()

	mustApply(t, ed, schema.RenameTable{TableID: "users", NewTableID: "people"})
	entry, ok := ed.Undo()
	if !ok {
		t.Fatal("nothing to undo")
	}
	if entry.TableID != "users" || entry.NewTableID != "people" {
		t.Errorf("entry keys = %q -> %q", entry.TableID, entry.NewTableID)
	}
	snap := store.Snapshot()
	if _, ok := snap["people"]; ok {
		t.Error("people should be gone after undo")
	}
	if users, ok := snap["users"]; !ok || users.ID != "users" {
		t.Errorf("users not restored: %+v", snap)
	}

	ed.Redo()
	snap = store.Snapshot()
	if _, ok := snap["users"]; ok {
		t.Error("users should be gone after redo")
	}
	if _, ok := snap["people"]; !ok {
		t.Error("people missing after redo")
	}
}

func TestUndoRenameOntoExistingTable(t *testing.T) {
	initial := seed()
	initial["people"] = model.Table{
		ID:      "people",
		Columns: []model.Column{{Title: "name", Type: "text", Format: "text"}},
	}
	ed := newTestEditor(t, initial)
	store := ed.Store()
	orig := store.Snapshot()

	res := mustApply(t, ed, schema.RenameTable{TableID: "users", NewTableID: "people"})
	if !res.OK {
		t.Fatalf("rename failed: %s", res.Results[0].Detail)
	}
	renamed := store.Snapshot()
	if len(renamed) != 1 || renamed["people"].Columns[0].Title != "id" {
		t.Fatalf("people should hold the users columns: %+v", renamed)
	}

	entry, ok := ed.Undo()
	if !ok || entry.Displaced == nil {
		t.Fatalf("undo entry = %+v, %v", entry, ok)
	}
	if got := store.Snapshot(); !reflect.DeepEqual(got, orig) {
		t.Errorf("undo did not restore both tables:\n got %+v\nwant %+v", got, orig)
	}

	ed.Redo()
	if got := store.Snapshot(); !reflect.DeepEqual(got, renamed) {
		t.Errorf("redo = %+v, want %+v", got, renamed)
	}
}

func TestUndoOverwritingCreateRestoresPrevious(t *testing.T) {
	ed := newTestEditor(t, seed())
	store := ed.Store()
	orig := store.Snapshot()

	mustApply(t, ed, schema.CreateTable{TableID: "users", Columns: []schema.ColumnInput{{Title: "replacement"}}})
	ed.Undo()
	if !reflect.DeepEqual(store.Snapshot(), orig) {
		t.Errorf("undo of overwrite = %+v, want %+v", store.Snapshot(), orig)
	}
}

func TestCancelledBatchCommitsNothing(t *testing.T) {
	ed := newTestEditor(t, seed())
	store := ed.Store()
	before := store.Snapshot()
	version := store.Version()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ed.Apply(ctx, []schema.Operation{schema.DropTable{TableID: "users"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if !reflect.DeepEqual(store.Snapshot(), before) {
		t.Error("cancelled batch modified the snapshot")
	}
	if store.CanUndo() || store.Version() != version {
		t.Error("cancelled batch touched the history")
	}
}

func TestSnapshotReadersCannotMutateStore(t *testing.T) {
	store := NewStore(seed())
	snap := store.Snapshot()
	snap["users"].Columns[0].Title = "hacked"
	delete(snap, "users")

	if got := store.Snapshot()["users"].Columns[0].Title; got != "id" {
		t.Errorf("store mutated through snapshot copy: %q", got)
	}

	h := NewStore(nil)
	h.Commit(NewEntry(schema.KindCreateTable, schema.Change{
		BeforeKey: "x", AfterKey: "x", After: &model.Table{ID: "x"},
	}, "create x"))
	view := h.History()
	view.Entries[0].After.ID = "mutated"
	if h.History().Entries[0].After.ID != "x" {
		t.Error("history mutated through view")
	}
}

func TestStateIsConsistentUnderWrites(t *testing.T) {
	ed := newTestEditor(t, nil)
	store := ed.Store()

	const n = 200
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			op := schema.CreateTable{TableID: fmt.Sprintf("t%d", i)}
			if _, err := ed.Apply(context.Background(), []schema.Operation{op}); err != nil {
				t.Errorf("Apply: %v", err)
				return
			}
		}
	}()

	// Every commit adds one table and bumps the version once.
	for {
		st := store.State()
		if uint64(len(st.Tables)) != st.Version {
			t.Fatalf("state mixes versions: %d tables at version %d", len(st.Tables), st.Version)
		}
		if st.CanUndo != (st.Version > 0) || st.CanRedo {
			t.Fatalf("undo/redo flags out of step: %+v", st)
		}
		select {
		case <-done:
			if st := store.State(); st.Version != n {
				t.Errorf("final version = %d, want %d", st.Version, n)
			}
			return
		default:
		}
	}
}

func TestMoveIsNotTracked(t *testing.T) {
	ed := newTestEditor(t, seed())
	store := ed.Store()

	if err := ed.Move("users", model.Position{X: 50, Y: 60}); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if p := store.Snapshot()["users"].Position; p == nil || p.X != 50 || p.Y != 60 {
		t.Errorf("position = %+v", p)
	}
	if store.CanUndo() {
		t.Error("move should not create a history entry")
	}
	if err := ed.Move("ghost", model.Position{}); !errors.Is(err, ErrTableNotFound) {
		t.Errorf("err = %v, want ErrTableNotFound", err)
	}
}

func TestImportAndReset(t *testing.T) {
	ed := newTestEditor(t, nil)
	store := ed.Store()
	mustApply(t, ed, schema.CreateTable{TableID: "scratch"})

	ed.Import(seed())
	if !reflect.DeepEqual(store.Snapshot(), seed()) {
		t.Errorf("import snapshot = %+v", store.Snapshot())
	}
	if store.CanUndo() {
		t.Error("import should start a fresh history")
	}

	mustApply(t, ed, schema.CreateTable{TableID: "x"})
	ed.Reset()
	if len(store.Snapshot()) != 0 || store.CanUndo() {
		t.Error("reset should empty snapshot and history")
	}
}

func TestSubscribeDeliversLatestEvent(t *testing.T) {
	store := NewStore(nil)
	events, cancel := store.Subscribe()

	store.Commit(NewEntry(schema.KindCreateTable, schema.Change{BeforeKey: "a", AfterKey: "a", After: &model.Table{ID: "a"}}, "a"))
	store.Undo()
	store.Redo()

	select {
	case ev := <-events:
		if ev.Reason != ReasonRedo || ev.Version != store.Version() {
			t.Errorf("event = %+v, want latest redo at version %d", ev, store.Version())
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	select {
	case ev := <-events:
		t.Errorf("unexpected stale event %+v", ev)
	default:
	}

	cancel()
	cancel()
	if _, ok := <-events; ok {
		t.Error("channel should be closed after cancel")
	}
	store.Reset()
}

func strPtr(s string) *string { return &s }
