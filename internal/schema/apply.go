package schema

import (
	"fmt"

	"github.com/faucetdb/sketch/internal/model"
)

// Status is the outcome of a single operation.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Change is the table-level effect of one successful operation: the table
// under BeforeKey before the operation and the table under AfterKey after it.
// Before is nil for a creation and After is nil for a deletion. The two keys
// differ only for a rename. Displaced is the table a rename overwrote under
// AfterKey, if any.
type Change struct {
	BeforeKey string
	Before    *model.Table
	AfterKey  string
	After     *model.Table
	Displaced *model.Table
}

// OperationResult reports what one operation did.
type OperationResult struct {
	Action     Kind   `json:"action"`
	TableID    string `json:"tableId,omitempty"`
	NewTableID string `json:"newTableId,omitempty"`
	Status     Status `json:"status"`
	Detail     string `json:"detail"`

	// Change is set for successful operations that modified the snapshot.
	Change *Change `json:"-"`
}

// Result is the outcome of a batch.
type Result struct {
	OK       bool              `json:"ok"`
	Snapshot model.Snapshot    `json:"tables"`
	Results  []OperationResult `json:"operationsApplied"`
}

// Apply runs ops in order against a deep copy of snap. Each operation sees
// the effects of the ones before it. A failing operation is recorded and the
// batch continues; OK is false if any operation failed. snap is never
// modified.
func Apply(snap model.Snapshot, ops []Operation) Result {
	next := snap.Clone()
	res := Result{
		OK:       true,
		Snapshot: next,
		Results:  make([]OperationResult, 0, len(ops)),
	}
	for _, op := range ops {
		r := applyOne(next, op)
		if r.Status != StatusSuccess {
			res.OK = false
		}
		res.Results = append(res.Results, r)
	}
	return res
}

func applyOne(snap model.Snapshot, op Operation) OperationResult {
	switch o := op.(type) {
	case CreateTable:
		return applyCreateTable(snap, o)
	case DropTable:
		return applyDropTable(snap, o)
	case RenameTable:
		return applyRenameTable(snap, o)
	case AddColumn:
		return applyAddColumn(snap, o)
	case DropColumn:
		return applyDropColumn(snap, o)
	case AlterColumn:
		return applyAlterColumn(snap, o)
	default:
		panic(fmt.Sprintf("schema: unhandled operation type %T", op))
	}
}

func applyCreateTable(snap model.Snapshot, op CreateTable) OperationResult {
	t := model.Table{
		ID:      op.TableID,
		Schema:  model.Namespace(op.TableID),
		Columns: make([]model.Column, 0, len(op.Columns)),
	}
	for _, in := range op.Columns {
		t.Columns = append(t.Columns, in.Column())
	}

	var before *model.Table
	if existing, ok := snap[op.TableID]; ok {
		before = tablePtr(existing)
		if existing.Position != nil {
			p := *existing.Position
			t.Position = &p
		}
	}
	snap[op.TableID] = t

	return succeed(op, fmt.Sprintf("Created table %q with %d columns", op.TableID, len(t.Columns)), &Change{
		BeforeKey: op.TableID,
		Before:    before,
		AfterKey:  op.TableID,
		After:     tablePtr(t),
	})
}

func applyDropTable(snap model.Snapshot, op DropTable) OperationResult {
	existing, ok := snap[op.TableID]
	if !ok {
		return fail(op, fmt.Sprintf("Table %q not found", op.TableID))
	}
	delete(snap, op.TableID)

	return succeed(op, fmt.Sprintf("Dropped table %q", op.TableID), &Change{
		BeforeKey: op.TableID,
		Before:    tablePtr(existing),
		AfterKey:  op.TableID,
	})
}

func applyRenameTable(snap model.Snapshot, op RenameTable) OperationResult {
	existing, ok := snap[op.TableID]
	if !ok {
		return fail(op, fmt.Sprintf("Table %q not found", op.TableID))
	}
	if op.NewTableID == op.TableID {
		return succeed(op, fmt.Sprintf("Table %q already has that name", op.TableID), nil)
	}
	var displaced *model.Table
	if existingTarget, taken := snap[op.NewTableID]; taken {
		displaced = tablePtr(existingTarget)
	}

	renamed := existing.Clone()
	renamed.ID = op.NewTableID
	renamed.Schema = model.Namespace(op.NewTableID)
	snap[op.NewTableID] = renamed
	delete(snap, op.TableID)

	detail := fmt.Sprintf("Renamed table %q to %q", op.TableID, op.NewTableID)
	if displaced != nil {
		detail += fmt.Sprintf(" (replaced the existing %q)", op.NewTableID)
	}
	return succeed(op, detail, &Change{
		BeforeKey: op.TableID,
		Before:    tablePtr(existing),
		AfterKey:  op.NewTableID,
		After:     tablePtr(renamed),
		Displaced: displaced,
	})
}

func applyAddColumn(snap model.Snapshot, op AddColumn) OperationResult {
	existing, ok := snap[op.TableID]
	if !ok {
		return fail(op, fmt.Sprintf("Table %q not found", op.TableID))
	}

	updated := existing.Clone()
	col := op.Column.Column()
	updated.Columns = append(updated.Columns, col)
	snap[op.TableID] = updated

	return succeed(op, fmt.Sprintf("Added column %q (%s) to table %q", col.Title, col.Type, op.TableID), &Change{
		BeforeKey: op.TableID,
		Before:    tablePtr(existing),
		AfterKey:  op.TableID,
		After:     tablePtr(updated),
	})
}

func applyDropColumn(snap model.Snapshot, op DropColumn) OperationResult {
	existing, ok := snap[op.TableID]
	if !ok {
		return fail(op, fmt.Sprintf("Table %q not found", op.TableID))
	}
	idx := existing.ColumnIndex(op.Column)
	if idx < 0 {
		return fail(op, fmt.Sprintf("Column %q not found in table %q", op.Column, op.TableID))
	}

	updated := existing.Clone()
	updated.Columns = append(updated.Columns[:idx], updated.Columns[idx+1:]...)
	snap[op.TableID] = updated

	return succeed(op, fmt.Sprintf("Dropped column %q from table %q", op.Column, op.TableID), &Change{
		BeforeKey: op.TableID,
		Before:    tablePtr(existing),
		AfterKey:  op.TableID,
		After:     tablePtr(updated),
	})
}

func applyAlterColumn(snap model.Snapshot, op AlterColumn) OperationResult {
	existing, ok := snap[op.TableID]
	if !ok {
		return fail(op, fmt.Sprintf("Table %q not found", op.TableID))
	}
	idx := existing.ColumnIndex(op.Column)
	if idx < 0 {
		return fail(op, fmt.Sprintf("Column %q not found in table %q", op.Column, op.TableID))
	}

	updated := existing.Clone()
	updated.Columns[idx] = op.Patch.merge(updated.Columns[idx])
	snap[op.TableID] = updated

	detail := fmt.Sprintf("Altered column %q in table %q", op.Column, op.TableID)
	if newTitle := updated.Columns[idx].Title; newTitle != op.Column {
		detail = fmt.Sprintf("Altered column %q in table %q (renamed to %q)", op.Column, op.TableID, newTitle)
	}
	return succeed(op, detail, &Change{
		BeforeKey: op.TableID,
		Before:    tablePtr(existing),
		AfterKey:  op.TableID,
		After:     tablePtr(updated),
	})
}

func newResult(op Operation) OperationResult {
	r := OperationResult{Action: op.Kind(), TableID: op.Target()}
	if rn, ok := op.(RenameTable); ok {
		r.NewTableID = rn.NewTableID
	}
	return r
}

func succeed(op Operation, detail string, change *Change) OperationResult {
	r := newResult(op)
	r.Status = StatusSuccess
	r.Detail = detail
	r.Change = change
	return r
}

func fail(op Operation, detail string) OperationResult {
	r := newResult(op)
	r.Status = StatusError
	r.Detail = detail
	return r
}

// tablePtr returns a pointer to an independent copy of t, so history never
// aliases the live snapshot.
func tablePtr(t model.Table) *model.Table {
	c := t.Clone()
	return &c
}
