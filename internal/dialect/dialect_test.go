package dialect_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-merge/internal/dialect"
)

func TestGetDialect(t *testing.T) {
	for _, driver := range []string{"postgres", "pgx"} {
		d, err := dialect.GetDialect(driver)
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	}

	d, err := dialect.GetDialect("sqlserver")
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", d.Name())

	_, err = dialect.GetDialect("mysql")
	assert.ErrorContains(t, err, "not transactional")

	_, err = dialect.GetDialect("sqlite3")
	assert.ErrorContains(t, err, "unknown driver")
}

func TestPostgresQuoting(t *testing.T) {
	d := &dialect.PostgresDialect{}

	assert.Equal(t, `"plot"`, d.QuoteIdent("plot"))
	assert.Equal(t, `"we""ird"`, d.QuoteIdent(`we"ird`))
	assert.Equal(t, `"north"."stand"`, d.Qualify("north", "stand"))
}

func TestPostgresUpsert(t *testing.T) {
	d := &dialect.PostgresDialect{}
	target := d.Qualify("merged", "plot")
	source := d.Qualify("north", "plot")
	cols := []string{"id", "name", "area"}

	t.Run("last writer wins", func(t *testing.T) {
		got := d.UpsertSelectQuery(target, source, cols, []string{"id"}, true)
		assert.Equal(t,
			`INSERT INTO "merged"."plot" ("id", "name", "area") SELECT "id", "name", "area" FROM "north"."plot"`+
				` ON CONFLICT ("id") DO UPDATE SET "name" = EXCLUDED."name", "area" = EXCLUDED."area"`,
			got)
	})

	t.Run("first writer wins", func(t *testing.T) {
		got := d.UpsertSelectQuery(target, source, cols, []string{"id"}, false)
		assert.Contains(t, got, `ON CONFLICT ("id") DO NOTHING`)
	})

	t.Run("key only table", func(t *testing.T) {
		got := d.UpsertSelectQuery(target, source, []string{"a", "b"}, []string{"a", "b"}, true)
		assert.Contains(t, got, `ON CONFLICT ("a", "b") DO NOTHING`)
	})

	t.Run("no primary key", func(t *testing.T) {
		got := d.UpsertSelectQuery(target, source, cols, nil, true)
		assert.NotContains(t, got, "ON CONFLICT")
	})
}

func TestPostgresDDL(t *testing.T) {
	d := &dialect.PostgresDialect{}
	def := "0"

	cols := []string{
		d.ColumnDefinition(dialect.ColumnDef{Name: "id", Type: "integer", AutoInc: true}),
		d.ColumnDefinition(dialect.ColumnDef{Name: "count", Type: "integer", Default: &def}),
		d.ColumnDefinition(dialect.ColumnDef{Name: "double", Type: "integer", Nullable: true, Generated: true, Expression: "count * 2"}),
		d.PrimaryKeyClause("plot_pkey", []string{"id"}),
	}
	assert.Equal(t, `"id" integer GENERATED BY DEFAULT AS IDENTITY`, cols[0])
	assert.Equal(t, `"count" integer DEFAULT 0 NOT NULL`, cols[1])
	assert.Equal(t, `"double" integer GENERATED ALWAYS AS (count * 2) STORED`, cols[2])

	create := d.CreateTableQuery(d.Qualify("merged", "plot"), cols)
	assert.Contains(t, create, `CREATE TABLE IF NOT EXISTS "merged"."plot" (`)
	assert.Contains(t, create, `CONSTRAINT "plot_pkey" PRIMARY KEY ("id")`)

	fk := d.ForeignKeyClause(dialect.ForeignKeyDef{
		Name:       "tree_plot_fk",
		Columns:    []string{"plot_id"},
		RefSchema:  "merged",
		RefTable:   "plot",
		RefColumns: []string{"id"},
		OnUpdate:   "NO ACTION",
		OnDelete:   "CASCADE",
	})
	assert.Equal(t, `CONSTRAINT "tree_plot_fk" FOREIGN KEY ("plot_id") REFERENCES "merged"."plot" ("id") ON DELETE CASCADE`, fk)

	assert.Equal(t, `CREATE UNIQUE INDEX IF NOT EXISTS "plot_name_idx" ON "merged"."plot" ("name")`,
		d.CreateIndexQuery("merged", "plot", "plot_name_idx", []string{"name"}, true))
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "merged"`, d.CreateSchemaQuery("merged"))
	assert.Equal(t, "$1, $2, $3", dialect.GeneratePlaceholders(3, d.Placeholder))
}

func TestMSSQLUpsert(t *testing.T) {
	d := &dialect.MSSQLDialect{}
	target := d.Qualify("merged", "plot")
	source := d.Qualify("north", "plot")
	cols := []string{"id", "name"}

	got := d.UpsertSelectQuery(target, source, cols, []string{"id"}, true)
	assert.Equal(t,
		"MERGE INTO [merged].[plot] WITH (HOLDLOCK) AS t USING [north].[plot] AS s ON (t.[id] = s.[id])"+
			" WHEN MATCHED THEN UPDATE SET t.[name] = s.[name]"+
			" WHEN NOT MATCHED BY TARGET THEN INSERT ([id], [name]) VALUES (s.[id], s.[name]);",
		got)

	keep := d.UpsertSelectQuery(target, source, cols, []string{"id"}, false)
	assert.NotContains(t, keep, "WHEN MATCHED THEN")
	assert.Contains(t, keep, "WHEN NOT MATCHED BY TARGET")
}

func TestMSSQLDDL(t *testing.T) {
	d := &dialect.MSSQLDialect{}

	assert.Equal(t, "[a]]b]", d.QuoteIdent("a]b"))
	assert.Equal(t, "IF SCHEMA_ID(N'merged') IS NULL EXEC(N'CREATE SCHEMA [merged]')", d.CreateSchemaQuery("merged"))
	assert.Equal(t, "[id] int IDENTITY(1,1) NOT NULL",
		d.ColumnDefinition(dialect.ColumnDef{Name: "id", Type: "int", AutoInc: true}))
	assert.Equal(t, "[total] AS ([a]+[b])",
		d.ColumnDefinition(dialect.ColumnDef{Name: "total", Type: "int", Generated: true, Expression: "([a]+[b])"}))

	create := d.CreateTableQuery("[merged].[plot]", []string{"[id] int NOT NULL"})
	assert.Contains(t, create, "IF OBJECT_ID(N'[merged].[plot]', N'U') IS NULL CREATE TABLE [merged].[plot]")
	assert.Equal(t, "@p1, @p2", dialect.GeneratePlaceholders(2, d.Placeholder))
	assert.Equal(t, "DELETE FROM [merged].[plot]", d.TruncateQuery("[merged].[plot]"))
}

func TestTeardownAndHistoryDDL(t *testing.T) {
	pg := &dialect.PostgresDialect{}
	assert.Equal(t, "public", pg.DefaultSchema())
	assert.Equal(t, `ALTER TABLE "old"."tree" DROP CONSTRAINT IF EXISTS "tree_plot_fkey"`, pg.DropConstraintQuery(`"old"."tree"`, "tree_plot_fkey"))
	assert.Equal(t, `DROP TABLE IF EXISTS "old"."tree"`, pg.DropTableQuery(`"old"."tree"`))
	assert.Equal(t, `DROP SCHEMA IF EXISTS "old" CASCADE`, pg.DropSchemaQuery("old"))
	assert.Contains(t, pg.MergeHistoryTableQuery(`"public"."schema_merges"`), `CREATE TABLE IF NOT EXISTS "public"."schema_merges" (`)

	ms := &dialect.MSSQLDialect{}
	assert.Equal(t, "dbo", ms.DefaultSchema())
	assert.Equal(t, "ALTER TABLE [old].[tree] DROP CONSTRAINT IF EXISTS [tree_plot_fkey]", ms.DropConstraintQuery("[old].[tree]", "tree_plot_fkey"))
	assert.Equal(t, "DROP SCHEMA IF EXISTS [old]", ms.DropSchemaQuery("old"))
	history := ms.MergeHistoryTableQuery("[dbo].[schema_merges]")
	assert.Contains(t, history, "IF OBJECT_ID(N'[dbo].[schema_merges]', N'U') IS NULL CREATE TABLE [dbo].[schema_merges]")
	assert.Contains(t, history, "merged_at      DATETIME2 NOT NULL")
}
