// Package openapi converts between canvas snapshots and schema documents:
// the Swagger-style introspection document, and OpenAPI 3 specs with one
// component schema per table.
package openapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/faucetdb/sketch/internal/model"
)

// Vendor extensions carried on exported component schemas.
const (
	extView    = "x-view"
	extColumns = "x-columns"
)

// ErrUnknownFormat is returned by Decode when the input is neither an
// introspection document nor an OpenAPI 3 spec.
var ErrUnknownFormat = errors.New("unrecognized schema document: expected \"definitions\" or \"openapi\"")

// Generate builds an OpenAPI 3.1 spec describing snap. Each table becomes a
// component schema whose properties are its columns; keys and comments are
// written into property descriptions so the document can be imported again.
func Generate(snap model.Snapshot, title string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       title,
			Description: "Schema exported from a sketch canvas.",
			Version:     "1.0.0",
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	for _, t := range snap.Tables() {
		doc.Components.Schemas[t.ID] = tableSchema(t)

		ref := "#/components/schemas/" + t.ID
		doc.Paths.Set("/"+t.ID, &openapi3.PathItem{
			Get: listOperation(t, ref),
		})
	}
	return doc
}

func tableSchema(t model.Table) *openapi3.SchemaRef {
	props := openapi3.Schemas{}
	order := make([]string, 0, len(t.Columns))
	var required []string

	for _, col := range t.Columns {
		if _, dup := props[col.Title]; dup {
			continue
		}
		props[col.Title] = &openapi3.SchemaRef{Value: columnSchema(col)}
		order = append(order, col.Title)
		if col.Required {
			required = append(required, col.Title)
		}
	}

	s := &openapi3.Schema{
		Type:        &openapi3.Types{"object"},
		Description: t.Comment,
		Properties:  props,
		Required:    required,
		Extensions:  map[string]any{extColumns: order},
	}
	if t.IsView {
		s.Extensions[extView] = true
	}
	return &openapi3.SchemaRef{Value: s}
}

func columnSchema(col model.Column) *openapi3.Schema {
	s := &openapi3.Schema{
		Description: Describe(col.Comment, col.PK, col.FK),
	}
	if col.Default != nil {
		s.Default = *col.Default
	}

	if col.Format == "enum" || len(col.EnumValues) > 0 {
		s.Type = &openapi3.Types{"string"}
		s.Format = col.EnumTypeName
		if s.Format == "" {
			s.Format = col.Type
		}
		for _, v := range col.EnumValues {
			s.Enum = append(s.Enum, v)
		}
		return s
	}

	pgType := col.Format
	if pgType == "" {
		pgType = col.Type
	}
	s.Type = &openapi3.Types{MapDBType(pgType).Type}
	s.Format = pgType
	if s.Type.Is("array") {
		s.Items = &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
	return s
}

func listOperation(t model.Table, ref string) *openapi3.Operation {
	desc := fmt.Sprintf("Rows of %s", t.ID)
	responses := openapi3.NewResponses()
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &desc,
			Content: openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: openapi3.NewSchemaRef(ref, nil),
				},
			}),
		},
	})
	return &openapi3.Operation{
		Tags:        []string{t.ID},
		Summary:     fmt.Sprintf("List %s", t.ID),
		OperationID: "get_" + t.ID,
		Responses:   responses,
	}
}

// FromOpenAPI loads an OpenAPI 3 spec and converts its component schemas to
// a canvas snapshot. Column order follows the x-columns extension when the
// spec was exported by Generate, and property name order otherwise.
func FromOpenAPI(data []byte) (model.Snapshot, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	doc := model.Document{
		Definitions: make(map[string]model.Definition),
		Paths:       make(map[string]any),
	}
	if spec.Components != nil {
		for name, ref := range spec.Components.Schemas {
			if ref == nil || ref.Value == nil {
				continue
			}
			doc.Definitions[name] = definitionFromSchema(ref.Value)
		}
	}
	if spec.Paths != nil {
		for path := range spec.Paths.Map() {
			doc.Paths[path] = map[string]any{}
		}
	}
	return FromDocument(doc), nil
}

func definitionFromSchema(s *openapi3.Schema) model.Definition {
	def := model.NewDefinition()
	def.Description = s.Description
	def.Required = append([]string(nil), s.Required...)
	if v, ok := s.Extensions[extView].(bool); ok {
		def.View = v
	}

	for _, name := range propertyOrder(s) {
		ref := s.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		def.Properties.Set(name, propertyFromSchema(ref.Value))
	}
	return def
}

// propertyOrder lists property names in x-columns order, followed by any
// remaining properties sorted by name.
func propertyOrder(s *openapi3.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	var order []string
	if cols, ok := s.Extensions[extColumns].([]any); ok {
		for _, c := range cols {
			name, ok := c.(string)
			if !ok || seen[name] {
				continue
			}
			if _, exists := s.Properties[name]; exists {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func propertyFromSchema(s *openapi3.Schema) model.Property {
	p := model.Property{
		Format:      s.Format,
		Default:     s.Default,
		Description: s.Description,
	}
	if types := s.Type.Slice(); len(types) > 0 {
		p.Type = types[0]
	}
	for _, v := range s.Enum {
		p.Enum = append(p.Enum, fmt.Sprint(v))
	}
	if s.MaxLength != nil {
		n := int64(*s.MaxLength)
		p.MaxLength = &n
	}
	return p
}

// Decode converts either an introspection document or an OpenAPI 3 spec to
// a snapshot, choosing by the document's top-level keys.
func Decode(data []byte) (model.Snapshot, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(data), &probe); err != nil {
		return nil, fmt.Errorf("decode schema document: %w", err)
	}

	switch {
	case probe["openapi"] != nil:
		return FromOpenAPI(data)
	case probe["definitions"] != nil:
		var doc model.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode introspection document: %w", err)
		}
		return FromDocument(doc), nil
	default:
		return nil, ErrUnknownFormat
	}
}

// ToDocument renders snap in the introspection document layout, the inverse
// of FromDocument up to canvas positions.
func ToDocument(snap model.Snapshot) model.Document {
	doc := model.Document{
		Definitions: make(map[string]model.Definition, len(snap)),
		Paths:       make(map[string]any, len(snap)),
	}
	for _, t := range snap.Tables() {
		def := model.NewDefinition()
		def.Description = t.Comment
		def.View = t.IsView
		for _, col := range t.Columns {
			if _, dup := def.Properties.Get(col.Title); dup {
				continue
			}
			def.Properties.Set(col.Title, documentProperty(col))
			if col.Required {
				def.Required = append(def.Required, col.Title)
			}
		}
		doc.Definitions[t.ID] = def
		doc.Paths["/"+t.ID] = map[string]any{}
	}
	return doc
}

func documentProperty(col model.Column) model.Property {
	s := columnSchema(col)
	p := model.Property{
		Format:      s.Format,
		Description: s.Description,
		Enum:        col.EnumValues,
	}
	if types := s.Type.Slice(); len(types) > 0 {
		p.Type = types[0]
	}
	if col.Default != nil {
		p.Default = *col.Default
	}
	return p
}
