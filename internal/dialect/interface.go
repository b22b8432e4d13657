package dialect

import (
	"context"
	"database/sql"
)

// ColumnDef is the engine-neutral input for a column definition.
type ColumnDef struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	AutoInc    bool
	Generated  bool
	Expression string // generated columns only
}

// ForeignKeyDef is the engine-neutral input for a foreign key clause.
type ForeignKeyDef struct {
	Name       string
	Columns    []string
	RefSchema  string
	RefTable   string
	RefColumns []string
	OnUpdate   string
	OnDelete   string
}

// Dialect abstracts database-specific operations.
// Every catalog query takes the schema name as its only bind argument.
type Dialect interface {
	Name() string
	// Schema every connection starts in (public, dbo). Merge history lives here.
	DefaultSchema() string

	// Metadata Queries (Schema Introspection)
	SchemaExistsQuery() string
	ListSchemasQuery() string
	GetTablesQuery() string
	GetColumnsQuery() string
	GetPrimaryKeysQuery() string
	GetForeignKeysQuery() string
	GetUniqueConstraintsQuery() string
	GetCheckConstraintsQuery() string
	GetIndexesQuery() string

	// Serialises concurrent merges into the same target until tx ends.
	LockSchema(ctx context.Context, tx *sql.Tx, schema string) error

	// DDL Generation
	QuoteIdent(name string) string
	Qualify(schema, table string) string
	ColumnDefinition(col ColumnDef) string
	CreateSchemaQuery(schema string) string
	CreateTableQuery(qualified string, defs []string) string
	PrimaryKeyClause(name string, cols []string) string
	UniqueClause(name string, cols []string) string
	CheckClause(name, definition string) string
	ForeignKeyClause(fk ForeignKeyDef) string
	AddConstraintQuery(qualified, clause string) string
	CreateIndexQuery(schema, table, name string, cols []string, unique bool) string
	MergeHistoryTableQuery(qualified string) string

	// Teardown
	DropConstraintQuery(qualified, name string) string
	DropTableQuery(qualified string) string
	DropSchemaQuery(schema string) string

	// Execution Hooks (Table Level) - For IDENTITY_INSERT etc.
	BeforeTable(ctx context.Context, tx *sql.Tx, qualified string, hasIdentity bool) error
	AfterTable(ctx context.Context, tx *sql.Tx, qualified string, hasIdentity bool) error
	ResyncIdentity(ctx context.Context, tx *sql.Tx, schema, table, column string) error

	// Query Generation
	UpsertSelectQuery(target, source string, cols, pk []string, overwrite bool) string
	InsertQuery(qualified string, cols []string) string
	CountQuery(qualified string) string
	TruncateQuery(qualified string) string
	Placeholder(index int) string // Returns $1, @p1, etc.
}
