// Package schema applies declarative schema edits to a canvas snapshot.
//
// An edit is one of a closed set of Operation types. Apply runs a batch of
// them against a deep copy of the input snapshot, in order, and reports a
// per-operation result. Failures are recorded as results and never abort the
// batch, so a caller (typically an AI tool call) can see which steps landed.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/faucetdb/sketch/internal/model"
)

// Kind is the wire discriminator of an operation.
type Kind string

const (
	KindCreateTable Kind = "create_table"
	KindDropTable   Kind = "drop_table"
	KindRenameTable Kind = "rename_table"
	KindAddColumn   Kind = "add_column"
	KindDropColumn  Kind = "drop_column"
	KindAlterColumn Kind = "alter_column"
)

// AllKinds lists every operation kind in declaration order.
var AllKinds = []Kind{
	KindCreateTable,
	KindDropTable,
	KindRenameTable,
	KindAddColumn,
	KindDropColumn,
	KindAlterColumn,
}

// Operation is one declarative schema edit. The set of implementations is
// closed: only the types in this package satisfy it.
type Operation interface {
	Kind() Kind
	// Target returns the identifier of the table the operation addresses.
	Target() string
	operation()
}

// CreateTable creates (or overwrites) a table.
type CreateTable struct {
	TableID string
	Columns []ColumnInput
}

// DropTable removes a table. References to it from other tables are left
// dangling.
type DropTable struct {
	TableID string
}

// RenameTable moves a table to a new identifier. Foreign key strings in other
// tables are not rewritten.
type RenameTable struct {
	TableID    string
	NewTableID string
}

// AddColumn appends a column to a table.
type AddColumn struct {
	TableID string
	Column  ColumnInput
}

// DropColumn removes the first column with the given title.
type DropColumn struct {
	TableID string
	Column  string
}

// AlterColumn merges a partial update onto an existing column.
type AlterColumn struct {
	TableID string
	Column  string
	Patch   ColumnPatch
}

func (CreateTable) Kind() Kind { return KindCreateTable }
func (DropTable) Kind() Kind   { return KindDropTable }
func (RenameTable) Kind() Kind { return KindRenameTable }
func (AddColumn) Kind() Kind   { return KindAddColumn }
func (DropColumn) Kind() Kind  { return KindDropColumn }
func (AlterColumn) Kind() Kind { return KindAlterColumn }

func (o CreateTable) Target() string { return o.TableID }
func (o DropTable) Target() string   { return o.TableID }
func (o RenameTable) Target() string { return o.TableID }
func (o AddColumn) Target() string   { return o.TableID }
func (o DropColumn) Target() string  { return o.TableID }
func (o AlterColumn) Target() string { return o.TableID }

func (CreateTable) operation() {}
func (DropTable) operation()   {}
func (RenameTable) operation() {}
func (AddColumn) operation()   {}
func (DropColumn) operation()  {}
func (AlterColumn) operation() {}

// ColumnInput is a column definition as submitted by a caller. Type and
// Format are both optional; see Column for how the missing one is filled.
type ColumnInput struct {
	Title        string   `json:"title"`
	Type         string   `json:"type,omitempty"`
	Format       string   `json:"format,omitempty"`
	Default      *string  `json:"default,omitempty"`
	Required     bool     `json:"required,omitempty"`
	PK           bool     `json:"pk,omitempty"`
	FK           string   `json:"fk,omitempty"`
	EnumValues   []string `json:"enumValues,omitempty"`
	EnumTypeName string   `json:"enumTypeName,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// UnmarshalJSON accepts a JSON number or boolean for Default as well as a
// string; the literal text becomes the default expression.
func (in *ColumnInput) UnmarshalJSON(data []byte) error {
	type plain ColumnInput
	var aux struct {
		plain
		Default json.RawMessage `json:"default,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	def, err := scalarDefault(aux.Default)
	if err != nil {
		return err
	}
	*in = ColumnInput(aux.plain)
	in.Default = def
	return nil
}

// Column returns the normalized model column. When only one of Type and
// Format is given the other mirrors it; when neither is given both default
// to "string".
func (in ColumnInput) Column() model.Column {
	typ, format := normalizeTypeFormat(in.Type, in.Format)
	c := model.Column{
		Title:        in.Title,
		Type:         typ,
		Format:       format,
		Required:     in.Required,
		PK:           in.PK,
		FK:           in.FK,
		EnumTypeName: in.EnumTypeName,
		Comment:      in.Comment,
	}
	if in.Default != nil {
		d := *in.Default
		c.Default = &d
	}
	if in.EnumValues != nil {
		c.EnumValues = append([]string(nil), in.EnumValues...)
	}
	return c
}

// ColumnPatch is a partial column update. Nil fields are left unchanged. A
// non-nil empty Default clears the default; a non-nil empty EnumValues
// clears the value set.
type ColumnPatch struct {
	Title        *string  `json:"title,omitempty"`
	Type         *string  `json:"type,omitempty"`
	Format       *string  `json:"format,omitempty"`
	Default      *string  `json:"default,omitempty"`
	Required     *bool    `json:"required,omitempty"`
	PK           *bool    `json:"pk,omitempty"`
	FK           *string  `json:"fk,omitempty"`
	EnumValues   []string `json:"enumValues,omitempty"`
	EnumTypeName *string  `json:"enumTypeName,omitempty"`
	Comment      *string  `json:"comment,omitempty"`
}

// UnmarshalJSON accepts the same Default forms as ColumnInput.
func (p *ColumnPatch) UnmarshalJSON(data []byte) error {
	type plain ColumnPatch
	var aux struct {
		plain
		Default json.RawMessage `json:"default,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	def, err := scalarDefault(aux.Default)
	if err != nil {
		return err
	}
	*p = ColumnPatch(aux.plain)
	p.Default = def
	return nil
}

// scalarDefault converts a raw JSON default to its expression text. Absent
// and null give nil.
func scalarDefault(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case '{', '[':
		return nil, fmt.Errorf("default must be a string, number or boolean, got %s", raw)
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		s := string(raw)
		return &s, nil
	}
}

// IsEmpty reports whether the patch sets no field at all.
func (p ColumnPatch) IsEmpty() bool {
	return p.Title == nil && p.Type == nil && p.Format == nil && p.Default == nil &&
		p.Required == nil && p.PK == nil && p.FK == nil && p.EnumValues == nil &&
		p.EnumTypeName == nil && p.Comment == nil
}

// merge returns c with the patch applied. Type and Format go through the
// same fill-in as ColumnInput.Column, so a patch never leaves them empty.
func (p ColumnPatch) merge(c model.Column) model.Column {
	out := c.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	switch {
	case p.Type != nil && p.Format != nil:
		out.Type, out.Format = normalizeTypeFormat(*p.Type, *p.Format)
	case p.Type != nil:
		out.Type, out.Format = normalizeTypeFormat(*p.Type, "")
	case p.Format != nil:
		out.Type, out.Format = normalizeTypeFormat("", *p.Format)
	}
	if p.Default != nil {
		if *p.Default == "" {
			out.Default = nil
		} else {
			d := *p.Default
			out.Default = &d
		}
	}
	if p.Required != nil {
		out.Required = *p.Required
	}
	if p.PK != nil {
		out.PK = *p.PK
	}
	if p.FK != nil {
		out.FK = *p.FK
	}
	if p.EnumValues != nil {
		if len(p.EnumValues) == 0 {
			out.EnumValues = nil
		} else {
			out.EnumValues = append([]string(nil), p.EnumValues...)
		}
	}
	if p.EnumTypeName != nil {
		out.EnumTypeName = *p.EnumTypeName
	}
	if p.Comment != nil {
		out.Comment = *p.Comment
	}
	return out
}

func normalizeTypeFormat(typ, format string) (string, string) {
	switch {
	case typ == "" && format == "":
		return "string", "string"
	case typ == "":
		return format, format
	case format == "":
		return typ, typ
	default:
		return typ, format
	}
}
