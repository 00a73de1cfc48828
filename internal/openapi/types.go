package openapi

import "strings"

// TypeMapping maps a Postgres column type to an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean, object, array
	Format string // OpenAPI format: int32, int64, float, double, date, date-time, uuid, byte
}

// pgTypeToOpenAPI maps Postgres type names (as reported by format_type or
// udt_name) and the JSON-schema style names used on the canvas.
var pgTypeToOpenAPI = map[string]TypeMapping{
	"int2":      {"integer", "int32"},
	"int4":      {"integer", "int32"},
	"int8":      {"integer", "int64"},
	"int":       {"integer", "int32"},
	"integer":   {"integer", "int32"},
	"smallint":  {"integer", "int32"},
	"bigint":    {"integer", "int64"},
	"serial":    {"integer", "int32"},
	"bigserial": {"integer", "int64"},
	"oid":       {"integer", "int64"},

	"float4":           {"number", "float"},
	"float8":           {"number", "double"},
	"real":             {"number", "float"},
	"double precision": {"number", "double"},
	"numeric":          {"number", "double"},
	"decimal":          {"number", "double"},
	"money":            {"number", "double"},
	"number":           {"number", "double"},

	"text":              {"string", ""},
	"string":            {"string", ""},
	"varchar":           {"string", ""},
	"character varying": {"string", ""},
	"char":              {"string", ""},
	"character":         {"string", ""},
	"bpchar":            {"string", ""},
	"citext":            {"string", ""},
	"name":              {"string", ""},
	"xml":               {"string", ""},
	"enum":              {"string", ""},
	"interval":          {"string", ""},
	"inet":              {"string", ""},
	"cidr":              {"string", ""},
	"macaddr":           {"string", ""},
	"tsvector":          {"string", ""},

	"date":                        {"string", "date"},
	"timestamp":                   {"string", "date-time"},
	"timestamptz":                 {"string", "date-time"},
	"timestamp with time zone":    {"string", "date-time"},
	"timestamp without time zone": {"string", "date-time"},
	"date-time":                   {"string", "date-time"},
	"time":                        {"string", "time"},
	"timetz":                      {"string", "time"},
	"time with time zone":         {"string", "time"},
	"time without time zone":      {"string", "time"},

	"boolean": {"boolean", ""},
	"bool":    {"boolean", ""},

	"bytea": {"string", "byte"},
	"uuid":  {"string", "uuid"},

	"json":   {"object", ""},
	"jsonb":  {"object", ""},
	"object": {"object", ""},
	"array":  {"array", ""},
}

// MapDBType converts a Postgres column type to an OpenAPI type mapping.
// Falls back to {"string", ""} for unknown types, which covers enum and
// other user-defined types.
func MapDBType(dbType string) TypeMapping {
	normalized := strings.ToLower(strings.TrimSpace(dbType))

	// "character varying(255)" -> "character varying"
	if idx := strings.IndexByte(normalized, '('); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}

	if strings.HasSuffix(normalized, "[]") || strings.HasPrefix(normalized, "_") {
		return TypeMapping{"array", ""}
	}

	if m, ok := pgTypeToOpenAPI[normalized]; ok {
		return m
	}
	return TypeMapping{"string", ""}
}
