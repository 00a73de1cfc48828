// Package ddl renders a canvas snapshot as Postgres DDL.
package ddl

import (
	"fmt"
	"strings"

	"github.com/faucetdb/sketch/internal/model"
)

// Generate returns Postgres DDL for snap: enum types first, then tables in
// foreign key dependency order, then primary and foreign key constraints per
// table, then a placeholder comment for each view. Reference cycles do not
// fail generation; the tables involved are emitted in key order. Foreign keys
// that do not resolve to a table are emitted as written.
func Generate(snap model.Snapshot) string {
	var b strings.Builder

	for _, e := range collectEnums(snap) {
		fmt.Fprintf(&b, "CREATE TYPE %s AS ENUM (%s);\n", QuoteIdentifier(e.name), quoteLiterals(e.values))
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}

	ord := sortTables(snap)
	if len(ord.Cyclic) > 0 {
		fmt.Fprintf(&b, "-- Reference cycle among: %s\n\n", strings.Join(ord.Cyclic, ", "))
	}
	for _, key := range ord.Keys {
		writeCreateTable(&b, snap[key])
	}

	var constraints strings.Builder
	for _, key := range ord.Keys {
		writeConstraints(&constraints, snap, snap[key])
	}
	if constraints.Len() > 0 {
		b.WriteString(constraints.String())
		b.WriteString("\n")
	}

	for _, t := range snap.Tables() {
		if t.IsView {
			fmt.Fprintf(&b, "-- View %s: definition not available\n", QuoteIdentifier(t.ID))
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

func writeCreateTable(b *strings.Builder, t model.Table) {
	b.WriteString("CREATE TABLE ")
	b.WriteString(QualifiedName(t.ID))
	b.WriteString(" (")
	for i, col := range t.Columns {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n  ")
		b.WriteString(QuoteIdentifier(col.Title))
		b.WriteString(" ")
		b.WriteString(ColumnType(col))
		if col.Required {
			b.WriteString(" NOT NULL")
		}
		if col.Default != nil && *col.Default != "" {
			b.WriteString(" DEFAULT ")
			b.WriteString(*col.Default)
		}
	}
	if len(t.Columns) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(");\n\n")
}

func writeConstraints(b *strings.Builder, snap model.Snapshot, t model.Table) {
	table := QualifiedName(t.ID)

	if pk := t.PrimaryKey(); len(pk) > 0 {
		fmt.Fprintf(b, "ALTER TABLE %s ADD PRIMARY KEY (%s);\n", table, quoteList(pk))
	}

	for _, col := range t.Columns {
		if col.FK == "" {
			continue
		}
		target, column := referenceTarget(snap, col.FK)
		fmt.Fprintf(b, "ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s);\n",
			table,
			QuoteIdentifier("fk_"+t.Name()+"_"+col.Title),
			QuoteIdentifier(col.Title),
			target,
			QuoteIdentifier(column),
		)
	}
}

// referenceTarget returns the quoted table and bare column a foreign key
// points at. A reference that does not resolve is used as written.
func referenceTarget(snap model.Snapshot, fk string) (string, string) {
	ref, ok := model.ParseRef(fk)
	if !ok {
		i := strings.LastIndex(fk, ".")
		if i < 0 {
			return QuoteIdentifier(fk), "id"
		}
		return QualifiedName(fk[:i]), fk[i+1:]
	}
	if key, ok := snap.Resolve(ref); ok {
		return QualifiedName(key), ref.Column
	}
	if ref.Schema != "" {
		return QuoteIdentifier(ref.Schema) + "." + QuoteIdentifier(ref.Table), ref.Column
	}
	return QuoteIdentifier(ref.Table), ref.Column
}

type enumType struct {
	name   string
	values []string
}

// collectEnums returns each distinct enum type in table-then-column order.
// The first definition of a name wins.
func collectEnums(snap model.Snapshot) []enumType {
	var out []enumType
	seen := make(map[string]bool)
	for _, t := range snap.Tables() {
		for _, col := range t.Columns {
			name := enumName(col)
			if name == "" || len(col.EnumValues) == 0 || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, enumType{name: name, values: col.EnumValues})
		}
	}
	return out
}

// enumName returns the enum type a column uses, or "" if it is not an enum.
func enumName(col model.Column) string {
	if col.EnumTypeName != "" && (col.Format == "enum" || len(col.EnumValues) > 0) {
		return col.EnumTypeName
	}
	if col.Format == "enum" && col.Type != "" && col.Type != "enum" && col.Type != "string" {
		return col.Type
	}
	return ""
}

// typeNames maps JSON-schema style type and format names to Postgres types.
// Anything not listed is assumed to already be a Postgres type name.
var typeNames = map[string]string{
	"string":    "text",
	"text":      "text",
	"email":     "text",
	"uri":       "text",
	"hostname":  "text",
	"password":  "text",
	"integer":   "integer",
	"int":       "integer",
	"int32":     "integer",
	"int64":     "bigint",
	"number":    "numeric",
	"float":     "real",
	"double":    "double precision",
	"boolean":   "boolean",
	"bool":      "boolean",
	"date-time": "timestamp with time zone",
	"datetime":  "timestamp with time zone",
	"date":      "date",
	"time":      "time",
	"uuid":      "uuid",
	"object":    "jsonb",
	"array":     "jsonb",
	"binary":    "bytea",
	"byte":      "bytea",
	"enum":      "text",
}

// ColumnType returns the Postgres type for a column. Enum columns use their
// quoted type name; otherwise Format is preferred over Type.
func ColumnType(col model.Column) string {
	if name := enumName(col); name != "" {
		return QuoteIdentifier(name)
	}
	name := col.Format
	if name == "" || name == "enum" {
		name = col.Type
	}
	if name == "" {
		return "text"
	}
	if pg, ok := typeNames[strings.ToLower(name)]; ok {
		return pg
	}
	return name
}

// QuoteIdentifier double-quotes a Postgres identifier.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QualifiedName quotes a table identifier, splitting off its namespace.
func QualifiedName(id string) string {
	ns := model.Namespace(id)
	if ns == "" {
		return QuoteIdentifier(id)
	}
	return QuoteIdentifier(ns) + "." + QuoteIdentifier(id[len(ns)+1:])
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = QuoteIdentifier(n)
	}
	return strings.Join(quoted, ", ")
}

func quoteLiterals(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return strings.Join(quoted, ", ")
}
