package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Request is the wire shape of one operation as submitted over HTTP or by an
// AI tool call. Which fields are required depends on Action.
type Request struct {
	Action     string        `json:"action"`
	TableID    string        `json:"tableId"`
	NewTableID string        `json:"newTableId,omitempty"`
	Columns    []ColumnInput `json:"columns,omitempty"`
	Column     *ColumnInput  `json:"column,omitempty"`
	ColumnName string        `json:"columnName,omitempty"`
	Patch      *ColumnPatch  `json:"patch,omitempty"`
}

// ValidationError reports a malformed request. Index is the position of the
// offending request within its batch, or -1 for a single request.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Index >= 0 {
		fmt.Fprintf(&b, "operation %d: ", e.Index)
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Index: -1, Field: field, Message: msg}
}

// Operation validates the request and converts it to its typed operation.
func (r Request) Operation() (Operation, error) {
	tableID := strings.TrimSpace(r.TableID)
	if tableID == "" {
		return nil, invalid("tableId", "is required")
	}

	switch Kind(r.Action) {
	case KindCreateTable:
		for i, c := range r.Columns {
			if strings.TrimSpace(c.Title) == "" {
				return nil, invalid(fmt.Sprintf("columns[%d].title", i), "is required")
			}
		}
		return CreateTable{TableID: tableID, Columns: r.Columns}, nil

	case KindDropTable:
		return DropTable{TableID: tableID}, nil

	case KindRenameTable:
		newID := strings.TrimSpace(r.NewTableID)
		if newID == "" {
			return nil, invalid("newTableId", "is required")
		}
		return RenameTable{TableID: tableID, NewTableID: newID}, nil

	case KindAddColumn:
		if r.Column == nil {
			return nil, invalid("column", "is required")
		}
		if strings.TrimSpace(r.Column.Title) == "" {
			return nil, invalid("column.title", "is required")
		}
		return AddColumn{TableID: tableID, Column: *r.Column}, nil

	case KindDropColumn:
		if r.ColumnName == "" {
			return nil, invalid("columnName", "is required")
		}
		return DropColumn{TableID: tableID, Column: r.ColumnName}, nil

	case KindAlterColumn:
		if r.ColumnName == "" {
			return nil, invalid("columnName", "is required")
		}
		if r.Patch == nil || r.Patch.IsEmpty() {
			return nil, invalid("patch", "must set at least one field")
		}
		if r.Patch.Title != nil && strings.TrimSpace(*r.Patch.Title) == "" {
			return nil, invalid("patch.title", "must not be empty")
		}
		if r.Patch.Type != nil && strings.TrimSpace(*r.Patch.Type) == "" {
			return nil, invalid("patch.type", "must not be empty")
		}
		if r.Patch.Format != nil && strings.TrimSpace(*r.Patch.Format) == "" {
			return nil, invalid("patch.format", "must not be empty")
		}
		return AlterColumn{TableID: tableID, Column: r.ColumnName, Patch: *r.Patch}, nil

	case "":
		return nil, invalid("action", "is required")

	default:
		return nil, invalid("action", fmt.Sprintf("unknown action %q (valid: %s)", r.Action, validKinds()))
	}
}

// Operations validates a batch of requests. The first invalid request fails
// the whole batch; nothing is applied.
func Operations(reqs []Request) ([]Operation, error) {
	ops := make([]Operation, 0, len(reqs))
	for i, r := range reqs {
		op, err := r.Operation()
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Index = i
			}
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// DecodeBatch parses a JSON array of requests and validates it.
func DecodeBatch(data []byte) ([]Operation, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, invalid("", "operations must be a JSON array")
	}
	var reqs []Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, invalid("", "invalid JSON: "+err.Error())
	}
	return Operations(reqs)
}

// RequestFor converts a typed operation back to its wire shape.
func RequestFor(op Operation) Request {
	r := Request{Action: string(op.Kind()), TableID: op.Target()}
	switch o := op.(type) {
	case CreateTable:
		r.Columns = o.Columns
	case DropTable:
	case RenameTable:
		r.NewTableID = o.NewTableID
	case AddColumn:
		c := o.Column
		r.Column = &c
	case DropColumn:
		r.ColumnName = o.Column
	case AlterColumn:
		p := o.Patch
		r.ColumnName = o.Column
		r.Patch = &p
	default:
		panic(fmt.Sprintf("schema: unhandled operation type %T", op))
	}
	return r
}

func validKinds() string {
	names := make([]string, len(AllKinds))
	for i, k := range AllKinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
