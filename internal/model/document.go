package model

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is the schema description produced by introspection. It follows
// the Swagger 2 "definitions" layout: one object definition per table whose
// properties are the columns, in ordinal order.
type Document struct {
	Definitions map[string]Definition `json:"definitions"`
	Paths       map[string]any        `json:"paths"`
}

// Definition describes one table or view.
type Definition struct {
	Type        string                                    `json:"type"`
	Description string                                    `json:"description,omitempty"`
	Properties  *orderedmap.OrderedMap[string, Property] `json:"properties"`
	Required    []string                                  `json:"required,omitempty"`
	View        bool                                      `json:"x-view,omitempty"`
}

// Property describes one column. Description may embed a "<pk/>" marker and a
// backtick-quoted foreign key target such as `public.users.id`.
type Property struct {
	Type        string   `json:"type"`
	Format      string   `json:"format,omitempty"`
	Default     any      `json:"default,omitempty"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	MaxLength   *int64   `json:"maxLength,omitempty"`
}

// NewDefinition returns an object definition with an empty ordered property set.
func NewDefinition() Definition {
	return Definition{
		Type:       "object",
		Properties: orderedmap.New[string, Property](),
	}
}
