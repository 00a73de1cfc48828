package openapi

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/faucetdb/sketch/internal/model"
)

// Canvas grid used to place imported tables.
const (
	gridOriginX = 40
	gridOriginY = 40
	gridCellW   = 320
	gridCellH   = 360
)

// FromDocument converts an introspection document into a canvas snapshot.
// Column order follows the property order of each definition. Primary and
// foreign keys and comments are parsed out of property descriptions, and
// every table is placed on a grid in key order.
func FromDocument(doc model.Document) model.Snapshot {
	snap := make(model.Snapshot, len(doc.Definitions))
	for key, def := range doc.Definitions {
		snap[key] = tableFromDefinition(key, def)
	}
	Layout(snap)
	return snap
}

func tableFromDefinition(key string, def model.Definition) model.Table {
	required := make(map[string]bool, len(def.Required))
	for _, r := range def.Required {
		required[r] = true
	}

	t := model.Table{
		ID:      key,
		Schema:  model.Namespace(key),
		Columns: []model.Column{},
		IsView:  def.View,
		Comment: def.Description,
	}
	if def.Properties == nil {
		return t
	}
	for pair := def.Properties.Oldest(); pair != nil; pair = pair.Next() {
		col := columnFromProperty(pair.Key, pair.Value)
		col.Required = required[pair.Key]
		t.Columns = append(t.Columns, col)
	}
	return t
}

func columnFromProperty(name string, p model.Property) model.Column {
	comment, pk, fk := ParseDescription(p.Description)
	col := model.Column{
		Title:   name,
		PK:      pk,
		FK:      fk,
		Comment: comment,
		Default: defaultString(p.Default),
	}

	if len(p.Enum) > 0 {
		typeName := enumTypeName(p.Format, name)
		col.Type = typeName
		col.Format = "enum"
		col.EnumTypeName = typeName
		col.EnumValues = append([]string(nil), p.Enum...)
		return col
	}

	col.Type, col.Format = p.Type, p.Format
	switch {
	case col.Type == "" && col.Format == "":
		col.Type, col.Format = "string", "string"
	case col.Type == "":
		col.Type = col.Format
	case col.Format == "":
		col.Format = col.Type
	}
	return col
}

// enumTypeName strips the default namespace from an enum's type name.
func enumTypeName(format, column string) string {
	name := strings.TrimPrefix(format, "public.")
	if name == "" || name == "string" {
		return column + "_enum"
	}
	return name
}

func defaultString(v any) *string {
	var s string
	switch d := v.(type) {
	case nil:
		return nil
	case string:
		s = d
	case float64:
		if d == math.Trunc(d) && math.Abs(d) < 1e15 {
			s = fmt.Sprintf("%d", int64(d))
		} else {
			s = fmt.Sprint(d)
		}
	default:
		s = fmt.Sprint(d)
	}
	return &s
}

// Layout assigns grid positions to every table in snap, in key order, on a
// roughly square grid.
func Layout(snap model.Snapshot) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := int(math.Ceil(math.Sqrt(float64(len(keys)))))
	if cols == 0 {
		return
	}
	for i, k := range keys {
		t := snap[k]
		t.Position = &model.Position{
			X: float64(gridOriginX + (i%cols)*gridCellW),
			Y: float64(gridOriginY + (i/cols)*gridCellH),
		}
		snap[k] = t
	}
}
