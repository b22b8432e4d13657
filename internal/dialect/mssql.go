package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type MSSQLDialect struct{}

// go-mssqldb binds @p1, @p2 ... positionally.

func (d *MSSQLDialect) Name() string { return "sqlserver" }

func (d *MSSQLDialect) DefaultSchema() string { return "dbo" }

func (d *MSSQLDialect) SchemaExistsQuery() string {
	return `SELECT CAST(CASE WHEN EXISTS (SELECT 1 FROM sys.schemas WHERE name = @p1) THEN 1 ELSE 0 END AS BIT)`
}

func (d *MSSQLDialect) ListSchemasQuery() string {
	return `SELECT s.name, COUNT(t.object_id)
FROM sys.schemas s
LEFT JOIN sys.tables t ON t.schema_id = s.schema_id
WHERE s.schema_id < 16384 AND s.name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
GROUP BY s.name
ORDER BY s.name`
}

func (d *MSSQLDialect) GetTablesQuery() string {
	return `SELECT t.name FROM sys.tables t JOIN sys.schemas s ON s.schema_id = t.schema_id WHERE s.name = @p1 ORDER BY t.name`
}

// GetColumnsQuery rebuilds the declared type from sys.types because
// INFORMATION_SCHEMA drops the length of nvarchar(max) and friends.
func (d *MSSQLDialect) GetColumnsQuery() string {
	return `SELECT
    t.name,
    c.name,
    CASE
        WHEN ty.name IN ('varchar', 'char', 'varbinary', 'binary')
            THEN ty.name + '(' + CASE WHEN c.max_length = -1 THEN 'max' ELSE CAST(c.max_length AS VARCHAR(10)) END + ')'
        WHEN ty.name IN ('nvarchar', 'nchar')
            THEN ty.name + '(' + CASE WHEN c.max_length = -1 THEN 'max' ELSE CAST(c.max_length / 2 AS VARCHAR(10)) END + ')'
        WHEN ty.name IN ('decimal', 'numeric')
            THEN ty.name + '(' + CAST(c.precision AS VARCHAR(10)) + ',' + CAST(c.scale AS VARCHAR(10)) + ')'
        WHEN ty.name IN ('datetime2', 'time', 'datetimeoffset')
            THEN ty.name + '(' + CAST(c.scale AS VARCHAR(10)) + ')'
        ELSE ty.name
    END,
    CASE WHEN c.is_nullable = 1 THEN 'YES' ELSE 'NO' END,
    COALESCE(cc.definition, dc.definition),
    CASE WHEN c.is_identity = 1 THEN 'YES' ELSE 'NO' END,
    CASE WHEN c.is_computed = 1 THEN 'YES' ELSE 'NO' END
FROM sys.columns c
JOIN sys.tables t ON t.object_id = c.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.types ty ON ty.user_type_id = c.user_type_id
LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
LEFT JOIN sys.computed_columns cc ON cc.object_id = c.object_id AND cc.column_id = c.column_id
WHERE s.name = @p1
ORDER BY t.name, c.column_id`
}

func (d *MSSQLDialect) GetPrimaryKeysQuery() string {
	return d.keyConstraintQuery("PK")
}

func (d *MSSQLDialect) GetUniqueConstraintsQuery() string {
	return d.keyConstraintQuery("UQ")
}

func (d *MSSQLDialect) keyConstraintQuery(kind string) string {
	return `SELECT t.name, kc.name, c.name
FROM sys.key_constraints kc
JOIN sys.tables t ON t.object_id = kc.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE kc.type = '` + kind + `' AND s.name = @p1
ORDER BY t.name, kc.name, ic.key_ordinal`
}

func (d *MSSQLDialect) GetForeignKeysQuery() string {
	return `SELECT
    t.name,
    fk.name,
    c.name,
    rs.name,
    rt.name,
    rc.name,
    REPLACE(fk.update_referential_action_desc, '_', ' '),
    REPLACE(fk.delete_referential_action_desc, '_', ' ')
FROM sys.foreign_keys fk
JOIN sys.tables t ON t.object_id = fk.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.columns c ON c.object_id = fkc.parent_object_id AND c.column_id = fkc.parent_column_id
JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
WHERE s.name = @p1
ORDER BY t.name, fk.name, fkc.constraint_column_id`
}

func (d *MSSQLDialect) GetCheckConstraintsQuery() string {
	return `SELECT t.name, cc.name, 'CHECK ' + cc.definition
FROM sys.check_constraints cc
JOIN sys.tables t ON t.object_id = cc.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
WHERE s.name = @p1
ORDER BY t.name, cc.name`
}

func (d *MSSQLDialect) GetIndexesQuery() string {
	return `SELECT t.name, i.name, c.name, CASE WHEN i.is_unique = 1 THEN 'YES' ELSE 'NO' END
FROM sys.indexes i
JOIN sys.tables t ON t.object_id = i.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE s.name = @p1
    AND i.type IN (1, 2)
    AND i.is_primary_key = 0
    AND i.is_unique_constraint = 0
    AND i.has_filter = 0
    AND ic.is_included_column = 0
ORDER BY t.name, i.name, ic.key_ordinal`
}

// LockSchema takes a transaction-owned application lock on the target name.
func (d *MSSQLDialect) LockSchema(ctx context.Context, tx *sql.Tx, schema string) error {
	const q = `DECLARE @r INT;
EXEC @r = sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Transaction';
SELECT @r;`
	var status int
	if err := tx.QueryRowContext(ctx, q, "db-merge:"+schema).Scan(&status); err != nil {
		return err
	}
	if status < 0 {
		return fmt.Errorf("sp_getapplock returned %d for schema %s", status, schema)
	}
	return nil
}

func (d *MSSQLDialect) QuoteIdent(name string) string {
	return quoteWith(name, '[', ']')
}

func (d *MSSQLDialect) Qualify(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (d *MSSQLDialect) ColumnDefinition(col ColumnDef) string {
	if col.Generated {
		// computed columns carry no type of their own
		return d.QuoteIdent(col.Name) + " AS " + col.Expression
	}
	def := d.QuoteIdent(col.Name) + " " + col.Type
	switch {
	case col.AutoInc:
		def += " IDENTITY(1,1)"
	case col.Default != nil && *col.Default != "":
		def += " DEFAULT " + *col.Default
	}
	if !col.Nullable {
		def += " NOT NULL"
	} else {
		def += " NULL"
	}
	return def
}

func (d *MSSQLDialect) CreateSchemaQuery(schema string) string {
	return fmt.Sprintf("IF SCHEMA_ID(N%s) IS NULL EXEC(N%s)",
		sqlString(schema), sqlString("CREATE SCHEMA "+d.QuoteIdent(schema)))
}

func (d *MSSQLDialect) CreateTableQuery(qualified string, defs []string) string {
	return fmt.Sprintf("IF OBJECT_ID(N%s, N'U') IS NULL CREATE TABLE %s (\n    %s\n)",
		sqlString(qualified), qualified, strings.Join(defs, ",\n    "))
}

func (d *MSSQLDialect) PrimaryKeyClause(name string, cols []string) string {
	return d.constraintPrefix(name) + "PRIMARY KEY (" + joinIdents(cols, d.QuoteIdent) + ")"
}

func (d *MSSQLDialect) UniqueClause(name string, cols []string) string {
	return d.constraintPrefix(name) + "UNIQUE (" + joinIdents(cols, d.QuoteIdent) + ")"
}

func (d *MSSQLDialect) CheckClause(name, definition string) string {
	return d.constraintPrefix(name) + definition
}

func (d *MSSQLDialect) ForeignKeyClause(fk ForeignKeyDef) string {
	return d.constraintPrefix(fk.Name) +
		"FOREIGN KEY (" + joinIdents(fk.Columns, d.QuoteIdent) + ") REFERENCES " +
		d.Qualify(fk.RefSchema, fk.RefTable) + " (" + joinIdents(fk.RefColumns, d.QuoteIdent) + ")" +
		referentialAction("UPDATE", fk.OnUpdate) + referentialAction("DELETE", fk.OnDelete)
}

func (d *MSSQLDialect) constraintPrefix(name string) string {
	if name == "" {
		return ""
	}
	return "CONSTRAINT " + d.QuoteIdent(name) + " "
}

func (d *MSSQLDialect) AddConstraintQuery(qualified, clause string) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", qualified, clause)
}

func (d *MSSQLDialect) CreateIndexQuery(schema, table, name string, cols []string, unique bool) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	qualified := d.Qualify(schema, table)
	return fmt.Sprintf("IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N%s AND object_id = OBJECT_ID(N%s)) CREATE %s %s ON %s (%s)",
		sqlString(name), sqlString(qualified), kind, d.QuoteIdent(name), qualified, joinIdents(cols, d.QuoteIdent))
}

func (d *MSSQLDialect) MergeHistoryTableQuery(qualified string) string {
	return fmt.Sprintf(`IF OBJECT_ID(N%s, N'U') IS NULL CREATE TABLE %s (
    id             BIGINT IDENTITY(1,1) PRIMARY KEY,
    target_schema  NVARCHAR(128) NOT NULL,
    source_schemas NVARCHAR(MAX) NOT NULL,
    merge_strategy NVARCHAR(32) NOT NULL,
    table_count    INT NOT NULL,
    total_rows     BIGINT NOT NULL,
    merged_at      DATETIME2 NOT NULL
)`, sqlString(qualified), qualified)
}

func (d *MSSQLDialect) DropConstraintQuery(qualified, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", qualified, d.QuoteIdent(name))
}

func (d *MSSQLDialect) DropTableQuery(qualified string) string {
	return "DROP TABLE IF EXISTS " + qualified
}

// DropSchemaQuery fails while the schema still owns objects; tables must be
// dropped first.
func (d *MSSQLDialect) DropSchemaQuery(schema string) string {
	return "DROP SCHEMA IF EXISTS " + d.QuoteIdent(schema)
}

// BeforeTable allows explicit values in the identity column while copying.
func (d *MSSQLDialect) BeforeTable(ctx context.Context, tx *sql.Tx, qualified string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s ON", qualified))
	return err
}

func (d *MSSQLDialect) AfterTable(ctx context.Context, tx *sql.Tx, qualified string, hasIdentity bool) error {
	if !hasIdentity {
		return nil
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET IDENTITY_INSERT %s OFF", qualified))
	return err
}

// ResyncIdentity reseeds to the current maximum; the column is implied by the table.
func (d *MSSQLDialect) ResyncIdentity(ctx context.Context, tx *sql.Tx, schema, table, column string) error {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("DBCC CHECKIDENT (N%s, RESEED) WITH NO_INFOMSGS", sqlString(d.Qualify(schema, table))))
	return err
}

// UpsertSelectQuery renders a MERGE keyed on pk. Without overwrite the
// WHEN MATCHED branch is left out so existing rows are kept.
func (d *MSSQLDialect) UpsertSelectQuery(target, source string, cols, pk []string, overwrite bool) string {
	colList := joinIdents(cols, d.QuoteIdent)
	if len(pk) == 0 {
		return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", target, colList, colList, source)
	}

	on := make([]string, len(pk))
	for i, c := range pk {
		on[i] = fmt.Sprintf("t.%s = s.%s", d.QuoteIdent(c), d.QuoteIdent(c))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "MERGE INTO %s WITH (HOLDLOCK) AS t USING %s AS s ON (%s)", target, source, strings.Join(on, " AND "))
	if rest := nonKeyColumns(cols, pk); overwrite && len(rest) > 0 {
		sets := make([]string, len(rest))
		for i, c := range rest {
			sets[i] = fmt.Sprintf("t.%s = s.%s", d.QuoteIdent(c), d.QuoteIdent(c))
		}
		b.WriteString(" WHEN MATCHED THEN UPDATE SET " + strings.Join(sets, ", "))
	}
	fmt.Fprintf(&b, " WHEN NOT MATCHED BY TARGET THEN INSERT (%s) VALUES (%s);", colList, prefixIdents("s", cols, d.QuoteIdent))
	return b.String()
}

func (d *MSSQLDialect) InsertQuery(qualified string, cols []string) string {
	vals := GeneratePlaceholders(len(cols), d.Placeholder)
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", qualified, joinIdents(cols, d.QuoteIdent), vals)
}

func (d *MSSQLDialect) CountQuery(qualified string) string {
	return "SELECT COUNT_BIG(*) FROM " + qualified
}

// TruncateQuery deletes instead of truncating; TRUNCATE is refused on
// tables referenced by a foreign key.
func (d *MSSQLDialect) TruncateQuery(qualified string) string {
	return fmt.Sprintf("DELETE FROM %s", qualified)
}

func (d *MSSQLDialect) Placeholder(index int) string {
	return fmt.Sprintf("@p%d", index+1)
}
