package postgres

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/faucetdb/sketch/internal/connector"
	"github.com/faucetdb/sketch/internal/model"
	"github.com/faucetdb/sketch/internal/openapi"
)

// tableRow is one relation from pg_class.
type tableRow struct {
	Schema  string  `db:"schema_name"`
	Name    string  `db:"table_name"`
	Kind    string  `db:"relkind"`
	Comment *string `db:"comment"`
}

// columnRow is one attribute from pg_attribute.
type columnRow struct {
	Schema     string  `db:"schema_name"`
	Table      string  `db:"table_name"`
	Name       string  `db:"column_name"`
	Position   int     `db:"ordinal_position"`
	DataType   string  `db:"data_type"`
	TypeSchema string  `db:"type_schema"`
	TypeName   string  `db:"type_name"`
	TypeKind   string  `db:"type_kind"`
	NotNull    bool    `db:"not_null"`
	Default    *string `db:"column_default"`
	MaxLength  *int64  `db:"max_length"`
	Comment    *string `db:"comment"`
}

// pkRow holds a primary key column.
type pkRow struct {
	Schema string `db:"schema_name"`
	Table  string `db:"table_name"`
	Column string `db:"column_name"`
}

// fkRow holds one column of a foreign key constraint.
type fkRow struct {
	Schema    string `db:"schema_name"`
	Table     string `db:"table_name"`
	Column    string `db:"column_name"`
	RefSchema string `db:"referenced_schema"`
	RefTable  string `db:"referenced_table"`
	RefColumn string `db:"referenced_column"`
}

// enumRow is one label of an enum type.
type enumRow struct {
	Schema string `db:"schema_name"`
	Type   string `db:"type_name"`
	Label  string `db:"label"`
}

const tablesQuery = `SELECT n.nspname AS schema_name,
		c.relname AS table_name,
		c.relkind::text AS relkind,
		obj_description(c.oid, 'pg_class') AS comment
	FROM pg_class c
	JOIN pg_namespace n ON n.oid = c.relnamespace
	WHERE c.relkind IN ('r', 'p', 'v', 'm', 'f')
		AND NOT c.relispartition
	ORDER BY n.nspname, c.relname`

const columnsQuery = `SELECT n.nspname AS schema_name,
		c.relname AS table_name,
		a.attname AS column_name,
		a.attnum::int AS ordinal_position,
		format_type(a.atttypid, a.atttypmod) AS data_type,
		tn.nspname AS type_schema,
		t.typname AS type_name,
		t.typtype::text AS type_kind,
		a.attnotnull AS not_null,
		pg_get_expr(d.adbin, d.adrelid) AS column_default,
		CASE WHEN t.typname IN ('varchar', 'bpchar') AND a.atttypmod > 4
			THEN (a.atttypmod - 4)::bigint END AS max_length,
		col_description(c.oid, a.attnum) AS comment
	FROM pg_attribute a
	JOIN pg_class c ON c.oid = a.attrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_type t ON t.oid = a.atttypid
	JOIN pg_namespace tn ON tn.oid = t.typnamespace
	LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
	WHERE c.relkind IN ('r', 'p', 'v', 'm', 'f')
		AND a.attnum > 0
		AND NOT a.attisdropped
	ORDER BY n.nspname, c.relname, a.attnum`

const primaryKeysQuery = `SELECT n.nspname AS schema_name,
		c.relname AS table_name,
		a.attname AS column_name
	FROM pg_constraint con
	JOIN pg_class c ON c.oid = con.conrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey) AS k(attnum)
	JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
	WHERE con.contype = 'p'`

const foreignKeysQuery = `SELECT n.nspname AS schema_name,
		c.relname AS table_name,
		a.attname AS column_name,
		rn.nspname AS referenced_schema,
		rc.relname AS referenced_table,
		ra.attname AS referenced_column
	FROM pg_constraint con
	JOIN pg_class c ON c.oid = con.conrelid
	JOIN pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_class rc ON rc.oid = con.confrelid
	JOIN pg_namespace rn ON rn.oid = rc.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(attnum, refnum)
	JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = k.attnum
	JOIN pg_attribute ra ON ra.attrelid = rc.oid AND ra.attnum = k.refnum
	WHERE con.contype = 'f'
	ORDER BY n.nspname, c.relname, con.conname`

const enumsQuery = `SELECT n.nspname AS schema_name,
		t.typname AS type_name,
		e.enumlabel AS label
	FROM pg_enum e
	JOIN pg_type t ON t.oid = e.enumtypid
	JOIN pg_namespace n ON n.oid = t.typnamespace
	ORDER BY n.nspname, t.typname, e.enumsortorder`

// catalog is the raw result of the catalog queries.
type catalog struct {
	tables  []tableRow
	columns []columnRow
	pks     []pkRow
	fks     []fkRow
	enums   []enumRow
}

// Introspect reads every user table and view visible under cfg and returns
// them as an introspection document. The catalog queries run concurrently
// on a single short-lived pool.
func (i *Introspector) Introspect(ctx context.Context, cfg connector.ConnectionConfig) (model.Document, error) {
	db, err := connect(ctx, cfg)
	if err != nil {
		return model.Document{}, err
	}
	defer db.Close()

	var cat catalog
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := db.SelectContext(gctx, &cat.tables, tablesQuery); err != nil {
			return fmt.Errorf("introspect tables: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := db.SelectContext(gctx, &cat.columns, columnsQuery); err != nil {
			return fmt.Errorf("introspect columns: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := db.SelectContext(gctx, &cat.pks, primaryKeysQuery); err != nil {
			return fmt.Errorf("introspect primary keys: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := db.SelectContext(gctx, &cat.fks, foreignKeysQuery); err != nil {
			return fmt.Errorf("introspect foreign keys: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := db.SelectContext(gctx, &cat.enums, enumsQuery); err != nil {
			return fmt.Errorf("introspect enums: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Document{}, err
	}

	return buildDocument(cfg, cat)
}

// buildDocument assembles the catalog rows into a Document. Relations in
// excluded namespaces are dropped, as are foreign keys pointing into them.
func buildDocument(cfg connector.ConnectionConfig, cat catalog) (model.Document, error) {
	type relKey struct{ schema, table string }
	type colKey struct{ schema, table, column string }

	pks := make(map[colKey]bool, len(cat.pks))
	for _, pk := range cat.pks {
		pks[colKey{pk.Schema, pk.Table, pk.Column}] = true
	}

	// A column in a composite foreign key keeps its first target.
	fks := make(map[colKey]string, len(cat.fks))
	for _, fk := range cat.fks {
		k := colKey{fk.Schema, fk.Table, fk.Column}
		if _, seen := fks[k]; seen || !cfg.IncludeSchema(fk.RefSchema) {
			continue
		}
		fks[k] = model.Ref{Schema: fk.RefSchema, Table: fk.RefTable, Column: fk.RefColumn}.String()
	}

	enums := make(map[relKey][]string)
	for _, e := range cat.enums {
		k := relKey{e.Schema, e.Type}
		enums[k] = append(enums[k], e.Label)
	}

	columns := make(map[relKey][]columnRow)
	for _, c := range cat.columns {
		k := relKey{c.Schema, c.Table}
		columns[k] = append(columns[k], c)
	}

	doc := model.Document{
		Definitions: make(map[string]model.Definition),
		Paths:       make(map[string]any),
	}
	for _, t := range cat.tables {
		if !cfg.IncludeSchema(t.Schema) {
			continue
		}
		key := connector.TableKey(t.Schema, t.Name)

		def := model.NewDefinition()
		def.View = t.Kind == "v" || t.Kind == "m"
		if t.Comment != nil {
			def.Description = *t.Comment
		}

		cols := columns[relKey{t.Schema, t.Name}]
		sort.SliceStable(cols, func(a, b int) bool { return cols[a].Position < cols[b].Position })
		for _, c := range cols {
			ck := colKey{t.Schema, t.Name, c.Name}
			def.Properties.Set(c.Name, columnProperty(c, pks[ck], fks[ck], enums[relKey{c.TypeSchema, c.TypeName}]))
			if c.NotNull {
				def.Required = append(def.Required, c.Name)
			}
		}

		doc.Definitions[key] = def
		doc.Paths["/"+key] = map[string]any{}
	}

	if len(doc.Definitions) == 0 {
		return model.Document{}, connector.ErrEmptySchema
	}
	return doc, nil
}

// columnProperty renders one column. Enum columns report the qualified type
// name as their format and list their labels; other columns carry the JSON
// type and the Postgres type text.
func columnProperty(c columnRow, pk bool, fk string, labels []string) model.Property {
	var comment string
	if c.Comment != nil {
		comment = *c.Comment
	}
	p := model.Property{
		Description: openapi.Describe(comment, pk, fk),
		MaxLength:   c.MaxLength,
	}
	if c.Default != nil {
		p.Default = *c.Default
	}

	if c.TypeKind == "e" && len(labels) > 0 {
		p.Type = "string"
		p.Format = c.TypeSchema + "." + c.TypeName
		p.Enum = append([]string(nil), labels...)
		return p
	}

	p.Type = openapi.MapDBType(c.DataType).Type
	p.Format = c.DataType
	return p
}
