package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) DefaultSchema() string { return "public" }

func (d *PostgresDialect) SchemaExistsQuery() string {
	return `SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`
}

func (d *PostgresDialect) ListSchemasQuery() string {
	return `SELECT s.schema_name, COUNT(t.table_name)
FROM information_schema.schemata s
LEFT JOIN information_schema.tables t
    ON t.table_schema = s.schema_name AND t.table_type = 'BASE TABLE'
WHERE s.schema_name NOT IN ('information_schema', 'pg_catalog', 'pg_toast')
    AND s.schema_name NOT LIKE 'pg\_%'
GROUP BY s.schema_name
ORDER BY s.schema_name`
}

func (d *PostgresDialect) GetTablesQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`
}

// GetColumnsQuery reads pg_catalog directly so the declared type keeps its
// modifiers (varchar(40), numeric(8,2)) exactly as format_type prints them.
func (d *PostgresDialect) GetColumnsQuery() string {
	return `SELECT
    c.relname,
    a.attname,
    pg_catalog.format_type(a.atttypid, a.atttypmod),
    CASE WHEN a.attnotnull THEN 'NO' ELSE 'YES' END,
    pg_catalog.pg_get_expr(ad.adbin, ad.adrelid),
    CASE WHEN a.attidentity <> '' OR COALESCE(pg_catalog.pg_get_expr(ad.adbin, ad.adrelid), '') LIKE 'nextval(%' THEN 'YES' ELSE 'NO' END,
    CASE WHEN a.attgenerated <> '' THEN 'YES' ELSE 'NO' END
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
WHERE n.nspname = $1 AND c.relkind IN ('r', 'p') AND a.attnum > 0 AND NOT a.attisdropped
ORDER BY c.relname, a.attnum`
}

func (d *PostgresDialect) GetPrimaryKeysQuery() string {
	return d.keyConstraintQuery("PRIMARY KEY")
}

func (d *PostgresDialect) GetUniqueConstraintsQuery() string {
	return d.keyConstraintQuery("UNIQUE")
}

func (d *PostgresDialect) keyConstraintQuery(kind string) string {
	return `SELECT tc.table_name, tc.constraint_name, kcu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
    ON kcu.constraint_name = tc.constraint_name
    AND kcu.table_schema = tc.table_schema
    AND kcu.table_name = tc.table_name
WHERE tc.constraint_type = '` + kind + `' AND tc.table_schema = $1
ORDER BY tc.table_name, tc.constraint_name, kcu.ordinal_position`
}

// GetForeignKeysQuery pairs conkey/confkey positionally so composite keys
// keep their column correspondence.
func (d *PostgresDialect) GetForeignKeysQuery() string {
	return `SELECT
    cl.relname,
    con.conname,
    a.attname,
    rn.nspname,
    rcl.relname,
    ra.attname,
    CASE con.confupdtype WHEN 'r' THEN 'RESTRICT' WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' ELSE 'NO ACTION' END,
    CASE con.confdeltype WHEN 'r' THEN 'RESTRICT' WHEN 'c' THEN 'CASCADE' WHEN 'n' THEN 'SET NULL' WHEN 'd' THEN 'SET DEFAULT' ELSE 'NO ACTION' END
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class cl ON cl.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = cl.relnamespace
JOIN pg_catalog.pg_class rcl ON rcl.oid = con.confrelid
JOIN pg_catalog.pg_namespace rn ON rn.oid = rcl.relnamespace
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
JOIN pg_catalog.pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refattnum
WHERE con.contype = 'f' AND n.nspname = $1
ORDER BY cl.relname, con.conname, k.ord`
}

func (d *PostgresDialect) GetCheckConstraintsQuery() string {
	return `SELECT cl.relname, con.conname, pg_catalog.pg_get_constraintdef(con.oid)
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class cl ON cl.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = cl.relnamespace
WHERE con.contype = 'c' AND n.nspname = $1
ORDER BY cl.relname, con.conname`
}

// GetIndexesQuery skips primary keys, constraint-backed indexes, partial
// indexes and expression indexes; only plain column indexes are re-created.
func (d *PostgresDialect) GetIndexesQuery() string {
	return `SELECT t.relname, i.relname, a.attname, CASE WHEN ix.indisunique THEN 'YES' ELSE 'NO' END
FROM pg_catalog.pg_index ix
JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1
    AND NOT ix.indisprimary
    AND ix.indpred IS NULL
    AND NOT (0 = ANY(ix.indkey::int2[]))
    AND NOT EXISTS (SELECT 1 FROM pg_catalog.pg_constraint c WHERE c.conindid = ix.indexrelid)
ORDER BY t.relname, i.relname, k.ord`
}

func (d *PostgresDialect) LockSchema(ctx context.Context, tx *sql.Tx, schema string) error {
	_, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "db-merge:"+schema)
	return err
}

func (d *PostgresDialect) QuoteIdent(name string) string {
	return quoteWith(name, '"', '"')
}

func (d *PostgresDialect) Qualify(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (d *PostgresDialect) ColumnDefinition(col ColumnDef) string {
	def := d.QuoteIdent(col.Name) + " " + col.Type
	switch {
	case col.Generated:
		def += fmt.Sprintf(" GENERATED ALWAYS AS (%s) STORED", col.Expression)
	case col.AutoInc:
		// serial defaults point at a sequence in the source schema; an identity
		// column gives the target its own sequence
		def += " GENERATED BY DEFAULT AS IDENTITY"
	case col.Default != nil && *col.Default != "":
		def += " DEFAULT " + *col.Default
	}
	if !col.Nullable && !col.AutoInc {
		def += " NOT NULL"
	}
	return def
}

func (d *PostgresDialect) CreateSchemaQuery(schema string) string {
	return "CREATE SCHEMA IF NOT EXISTS " + d.QuoteIdent(schema)
}

func (d *PostgresDialect) CreateTableQuery(qualified string, defs []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", qualified, strings.Join(defs, ",\n    "))
}

func (d *PostgresDialect) PrimaryKeyClause(name string, cols []string) string {
	return d.constraintPrefix(name) + "PRIMARY KEY (" + joinIdents(cols, d.QuoteIdent) + ")"
}

func (d *PostgresDialect) UniqueClause(name string, cols []string) string {
	return d.constraintPrefix(name) + "UNIQUE (" + joinIdents(cols, d.QuoteIdent) + ")"
}

func (d *PostgresDialect) CheckClause(name, definition string) string {
	return d.constraintPrefix(name) + definition
}

func (d *PostgresDialect) ForeignKeyClause(fk ForeignKeyDef) string {
	return d.constraintPrefix(fk.Name) +
		"FOREIGN KEY (" + joinIdents(fk.Columns, d.QuoteIdent) + ") REFERENCES " +
		d.Qualify(fk.RefSchema, fk.RefTable) + " (" + joinIdents(fk.RefColumns, d.QuoteIdent) + ")" +
		referentialAction("UPDATE", fk.OnUpdate) + referentialAction("DELETE", fk.OnDelete)
}

func (d *PostgresDialect) constraintPrefix(name string) string {
	if name == "" {
		return ""
	}
	return "CONSTRAINT " + d.QuoteIdent(name) + " "
}

func (d *PostgresDialect) AddConstraintQuery(qualified, clause string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", qualified, clause)
}

func (d *PostgresDialect) CreateIndexQuery(schema, table, name string, cols []string, unique bool) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)",
		kind, d.QuoteIdent(name), d.Qualify(schema, table), joinIdents(cols, d.QuoteIdent))
}

func (d *PostgresDialect) MergeHistoryTableQuery(qualified string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id             BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    target_schema  TEXT NOT NULL,
    source_schemas TEXT NOT NULL,
    merge_strategy TEXT NOT NULL,
    table_count    INTEGER NOT NULL,
    total_rows     BIGINT NOT NULL,
    merged_at      TIMESTAMPTZ NOT NULL
)`, qualified)
}

func (d *PostgresDialect) DropConstraintQuery(qualified, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", qualified, d.QuoteIdent(name))
}

func (d *PostgresDialect) DropTableQuery(qualified string) string {
	return "DROP TABLE IF EXISTS " + qualified
}

// DropSchemaQuery cascades to views, sequences and functions the catalog
// reads never list.
func (d *PostgresDialect) DropSchemaQuery(schema string) string {
	return "DROP SCHEMA IF EXISTS " + d.QuoteIdent(schema) + " CASCADE"
}

func (d *PostgresDialect) BeforeTable(ctx context.Context, tx *sql.Tx, qualified string, hasIdentity bool) error {
	return nil
}

func (d *PostgresDialect) AfterTable(ctx context.Context, tx *sql.Tx, qualified string, hasIdentity bool) error {
	return nil
}

// ResyncIdentity moves the column's sequence past the largest copied value.
func (d *PostgresDialect) ResyncIdentity(ctx context.Context, tx *sql.Tx, schema, table, column string) error {
	query := fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence($1, $2), COALESCE(MAX(%s), 0) + 1, false) FROM %s",
		d.QuoteIdent(column), d.Qualify(schema, table))
	_, err := tx.ExecContext(ctx, query, d.Qualify(schema, table), column)
	return err
}

// UpsertSelectQuery copies source into target. With overwrite the incoming
// row replaces every non-key column of a conflicting row; without it the
// existing row is kept. Tables without a key are appended.
func (d *PostgresDialect) UpsertSelectQuery(target, source string, cols, pk []string, overwrite bool) string {
	colList := joinIdents(cols, d.QuoteIdent)
	query := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", target, colList, colList, source)
	if len(pk) == 0 {
		return query
	}

	rest := nonKeyColumns(cols, pk)
	conflict := " ON CONFLICT (" + joinIdents(pk, d.QuoteIdent) + ")"
	if !overwrite || len(rest) == 0 {
		return query + conflict + " DO NOTHING"
	}

	sets := make([]string, len(rest))
	for i, c := range rest {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", d.QuoteIdent(c), d.QuoteIdent(c))
	}
	return query + conflict + " DO UPDATE SET " + strings.Join(sets, ", ")
}

func (d *PostgresDialect) InsertQuery(qualified string, cols []string) string {
	// Generate placeholders ($1, $2, ...)
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING", qualified, joinIdents(cols, d.QuoteIdent), vals)
}

func (d *PostgresDialect) CountQuery(qualified string) string {
	return "SELECT COUNT(*) FROM " + qualified
}

func (d *PostgresDialect) TruncateQuery(qualified string) string {
	return fmt.Sprintf("TRUNCATE TABLE %s CASCADE", qualified)
}

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index+1)
}
