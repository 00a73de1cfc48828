package model

import (
	"sort"
	"strings"
)

// Snapshot is the complete schema state of a canvas at one instant, keyed by
// table identifier. The key doubles as the table's display title.
type Snapshot map[string]Table

// Table describes one node on the canvas: a table or a view with its ordered
// columns. Position, Color and Comment belong to the renderer and are carried
// through edits untouched.
type Table struct {
	ID       string    `json:"id"`
	Schema   string    `json:"schema,omitempty"`
	Columns  []Column  `json:"columns"`
	IsView   bool      `json:"isView,omitempty"`
	Position *Position `json:"position,omitempty"`
	Color    string    `json:"color,omitempty"`
	Comment  string    `json:"comment,omitempty"`
}

// Position is the location of a table node on the canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Column describes a single column of a table. Type is the semantic type
// (e.g. "integer" or a custom enum type name); Format is how the column is
// displayed and may differ from Type (e.g. "enum").
type Column struct {
	Title        string   `json:"title"`
	Type         string   `json:"type"`
	Format       string   `json:"format"`
	Required     bool     `json:"required,omitempty"`
	PK           bool     `json:"pk,omitempty"`
	FK           string   `json:"fk,omitempty"` // "schema.table.column" or "table.column"
	Default      *string  `json:"default,omitempty"`
	EnumValues   []string `json:"enumValues,omitempty"`
	EnumTypeName string   `json:"enumTypeName,omitempty"`
	Comment      string   `json:"comment,omitempty"`
}

// Clone returns a deep copy of the column.
func (c Column) Clone() Column {
	out := c
	if c.Default != nil {
		d := *c.Default
		out.Default = &d
	}
	if c.EnumValues != nil {
		out.EnumValues = append([]string(nil), c.EnumValues...)
	}
	return out
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := t
	if t.Columns != nil {
		out.Columns = make([]Column, len(t.Columns))
		for i, c := range t.Columns {
			out.Columns[i] = c.Clone()
		}
	}
	if t.Position != nil {
		p := *t.Position
		out.Position = &p
	}
	return out
}

// ColumnIndex returns the index of the first column whose title matches
// exactly, or -1.
func (t Table) ColumnIndex(title string) int {
	for i, c := range t.Columns {
		if c.Title == title {
			return i
		}
	}
	return -1
}

// PrimaryKey returns the titles of the primary key columns in column order.
func (t Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PK {
			pk = append(pk, c.Title)
		}
	}
	return pk
}

// Name returns the table identifier without its namespace.
func (t Table) Name() string {
	if i := strings.LastIndex(t.ID, "."); i >= 0 {
		return t.ID[i+1:]
	}
	return t.ID
}

// Clone returns a fully independent deep copy of the snapshot. Mutating the
// copy (or any table or column in it) never affects the receiver.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, t := range s {
		out[k] = t.Clone()
	}
	return out
}

// Keys returns the table identifiers in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tables returns the tables sorted by identifier.
func (s Snapshot) Tables() []Table {
	out := make([]Table, 0, len(s))
	for _, k := range s.Keys() {
		out = append(out, s[k])
	}
	return out
}

// Resolve maps a foreign key reference to the identifier of the table it
// points at. Qualified references are tried as written first, then by bare
// table name; unqualified references also match the "public" namespace.
func (s Snapshot) Resolve(ref Ref) (string, bool) {
	candidates := make([]string, 0, 3)
	if ref.Schema != "" {
		candidates = append(candidates, ref.Schema+"."+ref.Table)
	}
	candidates = append(candidates, ref.Table)
	if ref.Schema == "" {
		candidates = append(candidates, "public."+ref.Table)
	}
	for _, key := range candidates {
		if _, ok := s[key]; ok {
			return key, true
		}
	}
	return "", false
}

// Namespace returns the schema part of a table identifier: the text before
// the last ".", or "" when the identifier is unqualified.
func Namespace(id string) string {
	if i := strings.LastIndex(id, "."); i >= 0 {
		return id[:i]
	}
	return ""
}

// Ref is a parsed foreign key target.
type Ref struct {
	Schema string
	Table  string
	Column string
}

// String renders the reference in the same dotted form it was parsed from.
func (r Ref) String() string {
	if r.Schema != "" {
		return r.Schema + "." + r.Table + "." + r.Column
	}
	return r.Table + "." + r.Column
}

// ParseRef parses "schema.table.column" or "table.column". Any other shape,
// including empty segments, is rejected.
func ParseRef(s string) (Ref, bool) {
	parts := strings.Split(s, ".")
	for _, p := range parts {
		if p == "" {
			return Ref{}, false
		}
	}
	switch len(parts) {
	case 2:
		return Ref{Table: parts[0], Column: parts[1]}, true
	case 3:
		return Ref{Schema: parts[0], Table: parts[1], Column: parts[2]}, true
	default:
		return Ref{}, false
	}
}
