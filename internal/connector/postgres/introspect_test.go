package postgres

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/openapi"
)

func strPtr(s string) *string { return &s }
func int64Ptr(n int64) *int64 { return &n }

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

// testCatalog mirrors what the catalog queries return for a small shop
// database with one non-public namespace and one system table.
func testCatalog() catalog {
	return catalog{
		tables: []tableRow{
			{Schema: "public", Name: "users", Kind: "r", Comment: strPtr("Accounts")},
			{Schema: "public", Name: "orders", Kind: "r"},
			{Schema: "public", Name: "active_users", Kind: "v"},
			{Schema: "billing", Name: "invoices", Kind: "p"},
			{Schema: "pg_catalog", Name: "pg_class", Kind: "r"},
		},
		columns: []columnRow{
			// Deliberately out of ordinal order.
			{Schema: "public", Table: "users", Name: "email", Position: 2, DataType: "character varying(255)", TypeSchema: "pg_catalog", TypeName: "varchar", TypeKind: "b", NotNull: true, MaxLength: int64Ptr(255), Comment: strPtr("Login address")},
			{Schema: "public", Table: "users", Name: "id", Position: 1, DataType: "integer", TypeSchema: "pg_catalog", TypeName: "int4", TypeKind: "b", NotNull: true, Default: strPtr("nextval('users_id_seq'::regclass)")},
			{Schema: "public", Table: "orders", Name: "id", Position: 1, DataType: "bigint", TypeSchema: "pg_catalog", TypeName: "int8", TypeKind: "b", NotNull: true},
			{Schema: "public", Table: "orders", Name: "user_id", Position: 2, DataType: "integer", TypeSchema: "pg_catalog", TypeName: "int4", TypeKind: "b"},
			{Schema: "public", Table: "orders", Name: "status", Position: 3, DataType: "order_status", TypeSchema: "public", TypeName: "order_status", TypeKind: "e", Default: strPtr("'pending'::order_status")},
			{Schema: "public", Table: "active_users", Name: "id", Position: 1, DataType: "integer", TypeSchema: "pg_catalog", TypeName: "int4", TypeKind: "b"},
			{Schema: "billing", Table: "invoices", Name: "id", Position: 1, DataType: "uuid", TypeSchema: "pg_catalog", TypeName: "uuid", TypeKind: "b", NotNull: true},
			{Schema: "billing", Table: "invoices", Name: "order_id", Position: 2, DataType: "bigint", TypeSchema: "pg_catalog", TypeName: "int8", TypeKind: "b"},
			{Schema: "pg_catalog", Table: "pg_class", Name: "oid", Position: 1, DataType: "oid", TypeSchema: "pg_catalog", TypeName: "oid", TypeKind: "b"},
		},
		pks: []pkRow{
			{Schema: "public", Table: "users", Column: "id"},
			{Schema: "public", Table: "orders", Column: "id"},
			{Schema: "billing", Table: "invoices", Column: "id"},
		},
		fks: []fkRow{
			{Schema: "public", Table: "orders", Column: "user_id", RefSchema: "public", RefTable: "users", RefColumn: "id"},
			{Schema: "billing", Table: "invoices", Column: "order_id", RefSchema: "public", RefTable: "orders", RefColumn: "id"},
		},
		enums: []enumRow{
			{Schema: "public", Type: "order_status", Label: "pending"},
			{Schema: "public", Type: "order_status", Label: "shipped"},
		},
	}
}

// ---------------------------------------------------------------------------
// buildDocument tests
// ---------------------------------------------------------------------------

func TestBuildDocumentDefinitions(t *testing.T) {
	doc, err := buildDocument(connector.ConnectionConfig{}, testCatalog())
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}

	for _, key := range []string{"users", "orders", "active_users", "billing.invoices"} {
		if _, ok := doc.Definitions[key]; !ok {
			t.Errorf("missing definition %q", key)
		}
		if _, ok := doc.Paths["/"+key]; !ok {
			t.Errorf("missing path /%s", key)
		}
	}
	if _, ok := doc.Definitions["pg_catalog.pg_class"]; ok {
		t.Error("system table should be skipped")
	}
	if len(doc.Definitions) != 4 {
		t.Errorf("expected 4 definitions, got %d", len(doc.Definitions))
	}

	users := doc.Definitions["users"]
	if users.Description != "Accounts" {
		t.Errorf("users description = %q", users.Description)
	}
	if !reflect.DeepEqual(users.Required, []string{"id", "email"}) {
		t.Errorf("users required = %v", users.Required)
	}

	var order []string
	for pair := users.Properties.Oldest(); pair != nil; pair = pair.Next() {
		order = append(order, pair.Key)
	}
	if strings.Join(order, ",") != "id,email" {
		t.Errorf("users property order = %v, want ordinal order", order)
	}

	id, _ := users.Properties.Get("id")
	if id.Type != "integer" || id.Format != "integer" {
		t.Errorf("users.id = %+v", id)
	}
	if _, pk, _ := openapi.ParseDescription(id.Description); !pk {
		t.Errorf("users.id description %q lacks the primary key marker", id.Description)
	}
	if id.Default != "nextval('users_id_seq'::regclass)" {
		t.Errorf("users.id default = %v", id.Default)
	}

	email, _ := users.Properties.Get("email")
	if email.Type != "string" || email.Format != "character varying(255)" {
		t.Errorf("users.email = %+v", email)
	}
	if email.MaxLength == nil || *email.MaxLength != 255 {
		t.Errorf("users.email maxLength = %v", email.MaxLength)
	}
	if email.Description != "Login address" {
		t.Errorf("users.email description = %q", email.Description)
	}

	if !doc.Definitions["active_users"].View {
		t.Error("active_users should be a view")
	}
	if doc.Definitions["billing.invoices"].View {
		t.Error("partitioned table should not be a view")
	}
}

func TestBuildDocumentForeignKeys(t *testing.T) {
	doc, err := buildDocument(connector.ConnectionConfig{}, testCatalog())
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}

	tests := []struct {
		table, column, want string
	}{
		{"orders", "user_id", "public.users.id"},
		{"billing.invoices", "order_id", "public.orders.id"},
		{"orders", "id", ""},
	}
	for _, tt := range tests {
		p, ok := doc.Definitions[tt.table].Properties.Get(tt.column)
		if !ok {
			t.Fatalf("%s.%s missing", tt.table, tt.column)
		}
		if _, _, fk := openapi.ParseDescription(p.Description); fk != tt.want {
			t.Errorf("%s.%s fk = %q, want %q", tt.table, tt.column, fk, tt.want)
		}
	}
}

func TestBuildDocumentEnum(t *testing.T) {
	doc, err := buildDocument(connector.ConnectionConfig{}, testCatalog())
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}
	status, _ := doc.Definitions["orders"].Properties.Get("status")
	if status.Type != "string" || status.Format != "public.order_status" {
		t.Errorf("status = %+v", status)
	}
	if !reflect.DeepEqual(status.Enum, []string{"pending", "shipped"}) {
		t.Errorf("status enum = %v", status.Enum)
	}

	snap := openapi.FromDocument(doc)
	col := snap["orders"].Columns[2]
	if col.Format != "enum" || col.EnumTypeName != "order_status" {
		t.Errorf("imported status column = %+v", col)
	}
}

func TestBuildDocumentSchemaFilters(t *testing.T) {
	doc, err := buildDocument(connector.ConnectionConfig{Schemas: []string{"billing"}}, testCatalog())
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}
	if len(doc.Definitions) != 1 {
		t.Fatalf("expected only billing tables, got %d definitions", len(doc.Definitions))
	}
	inv := doc.Definitions["billing.invoices"]
	p, _ := inv.Properties.Get("order_id")
	if _, _, fk := openapi.ParseDescription(p.Description); fk != "" {
		t.Errorf("foreign key into an excluded schema should be dropped, got %q", fk)
	}

	doc, err = buildDocument(connector.ConnectionConfig{ExcludeSchemas: []string{"billing"}}, testCatalog())
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}
	if _, ok := doc.Definitions["billing.invoices"]; ok {
		t.Error("excluded schema should be skipped")
	}
}

func TestBuildDocumentEmpty(t *testing.T) {
	cat := catalog{tables: []tableRow{{Schema: "information_schema", Name: "tables", Kind: "v"}}}
	if _, err := buildDocument(connector.ConnectionConfig{}, cat); !errors.Is(err, connector.ErrEmptySchema) {
		t.Errorf("err = %v, want ErrEmptySchema", err)
	}
	if _, err := buildDocument(connector.ConnectionConfig{}, catalog{}); !errors.Is(err, connector.ErrEmptySchema) {
		t.Errorf("err = %v, want ErrEmptySchema", err)
	}
}

func TestNewReturnsIntrospector(t *testing.T) {
	var _ connector.Introspector = New()
}
