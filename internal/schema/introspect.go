package schema

import (
	"context"
	"database/sql"
	"fmt"

	"db-merge/internal/dialect"
	"db-merge/internal/mergeerr"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Introspect reads the full structure of a source schema.
// A schema that does not exist or holds no tables is a SchemaNotFoundError.
func Introspect(ctx context.Context, q Querier, d dialect.Dialect, name string) (*Schema, error) {
	s, err := read(ctx, q, d, name)
	if err != nil {
		return nil, err
	}
	if len(s.Tables) == 0 {
		return nil, &mergeerr.SchemaNotFoundError{Schema: name}
	}
	return s, nil
}

// Load is Introspect without the emptiness check; a missing schema comes
// back with no tables.
func Load(ctx context.Context, q Querier, d dialect.Dialect, name string) (*Schema, error) {
	return read(ctx, q, d, name)
}

// Exists reports whether the schema is present in the catalog.
func Exists(ctx context.Context, q Querier, d dialect.Dialect, name string) (bool, error) {
	var ok bool
	if err := q.QueryRowContext(ctx, d.SchemaExistsQuery(), name).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check schema %s: %w", name, err)
	}
	return ok, nil
}

// ListSchemas returns every non-system schema with its base table count.
func ListSchemas(ctx context.Context, q Querier, d dialect.Dialect) ([]SchemaInfo, error) {
	rows, err := q.QueryContext(ctx, d.ListSchemasQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer rows.Close()

	var out []SchemaInfo
	for rows.Next() {
		var info SchemaInfo
		if err := rows.Scan(&info.Name, &info.TableCount); err != nil {
			return nil, fmt.Errorf("failed to scan schema row: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// ListTables returns the base table names of a schema, sorted.
func ListTables(ctx context.Context, q Querier, d dialect.Dialect, name string) ([]string, error) {
	tables := []string{}
	err := each(ctx, q, d.GetTablesQuery(), name, "tables", func(rows *sql.Rows) error {
		var tName string
		if err := rows.Scan(&tName); err != nil {
			return err
		}
		tables = append(tables, tName)
		return nil
	})
	return tables, err
}

func read(ctx context.Context, q Querier, d dialect.Dialect, name string) (*Schema, error) {
	s := &Schema{Name: name, Tables: make(map[string]*Table)}

	// --- Step 1: Tables ---
	err := each(ctx, q, d.GetTablesQuery(), name, "tables", func(rows *sql.Rows) error {
		var tName string
		if err := rows.Scan(&tName); err != nil {
			return err
		}
		s.Tables[tName] = &Table{Name: tName}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(s.Tables) == 0 {
		return s, nil
	}

	// --- Step 2: Columns ---
	err = each(ctx, q, d.GetColumnsQuery(), name, "columns", func(rows *sql.Rows) error {
		var tName, cName, dType, isNull, isIdent, isGen string
		var def sql.NullString
		if err := rows.Scan(&tName, &cName, &dType, &isNull, &def, &isIdent, &isGen); err != nil {
			return err
		}
		t, ok := s.Tables[tName]
		if !ok {
			return nil
		}
		col := &Column{
			Name:        cName,
			DataType:    dType,
			IsNullable:  isNull == "YES",
			IsAutoInc:   isIdent == "YES",
			IsGenerated: isGen == "YES",
		}
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		t.Columns = append(t.Columns, col)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --- Step 3: Primary keys ---
	err = each(ctx, q, d.GetPrimaryKeysQuery(), name, "primary keys", func(rows *sql.Rows) error {
		var tName, conName, cName string
		if err := rows.Scan(&tName, &conName, &cName); err != nil {
			return err
		}
		if t, ok := s.Tables[tName]; ok {
			t.PrimaryKeyName = conName
			t.PrimaryKey = append(t.PrimaryKey, cName)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --- Step 4: Foreign keys, one row per column pair ---
	err = each(ctx, q, d.GetForeignKeysQuery(), name, "foreign keys", func(rows *sql.Rows) error {
		var tName, conName, cName, refSchema, refTable, refCol, onUpdate, onDelete string
		if err := rows.Scan(&tName, &conName, &cName, &refSchema, &refTable, &refCol, &onUpdate, &onDelete); err != nil {
			return err
		}
		t, ok := s.Tables[tName]
		if !ok {
			return nil
		}
		if n := len(t.ForeignKeys); n > 0 && t.ForeignKeys[n-1].Name == conName {
			fk := t.ForeignKeys[n-1]
			fk.Columns = append(fk.Columns, cName)
			fk.RefColumns = append(fk.RefColumns, refCol)
			return nil
		}
		t.ForeignKeys = append(t.ForeignKeys, &ForeignKey{
			Name:       conName,
			Table:      tName,
			Columns:    []string{cName},
			RefSchema:  refSchema,
			RefTable:   refTable,
			RefColumns: []string{refCol},
			OnUpdate:   onUpdate,
			OnDelete:   onDelete,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --- Step 5: Unique constraints ---
	err = each(ctx, q, d.GetUniqueConstraintsQuery(), name, "unique constraints", func(rows *sql.Rows) error {
		var tName, conName, cName string
		if err := rows.Scan(&tName, &conName, &cName); err != nil {
			return err
		}
		t, ok := s.Tables[tName]
		if !ok {
			return nil
		}
		if n := len(t.Uniques); n > 0 && t.Uniques[n-1].Name == conName {
			t.Uniques[n-1].Columns = append(t.Uniques[n-1].Columns, cName)
			return nil
		}
		t.Uniques = append(t.Uniques, &UniqueConstraint{Name: conName, Columns: []string{cName}})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --- Step 6: Check constraints ---
	err = each(ctx, q, d.GetCheckConstraintsQuery(), name, "check constraints", func(rows *sql.Rows) error {
		var tName, conName, def string
		if err := rows.Scan(&tName, &conName, &def); err != nil {
			return err
		}
		if t, ok := s.Tables[tName]; ok {
			t.Checks = append(t.Checks, &CheckConstraint{Name: conName, Definition: def})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// --- Step 7: Secondary indexes ---
	err = each(ctx, q, d.GetIndexesQuery(), name, "indexes", func(rows *sql.Rows) error {
		var tName, idxName, cName, unique string
		if err := rows.Scan(&tName, &idxName, &cName, &unique); err != nil {
			return err
		}
		t, ok := s.Tables[tName]
		if !ok {
			return nil
		}
		if n := len(t.Indexes); n > 0 && t.Indexes[n-1].Name == idxName {
			t.Indexes[n-1].Columns = append(t.Indexes[n-1].Columns, cName)
			return nil
		}
		t.Indexes = append(t.Indexes, &Index{Name: idxName, Columns: []string{cName}, IsUnique: unique == "YES"})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}

// each runs a catalog query bound to the schema name and hands every row to fn.
func each(ctx context.Context, q Querier, query, schemaName, what string, fn func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query, schemaName)
	if err != nil {
		return fmt.Errorf("failed to query %s of %s: %w", what, schemaName, err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return fmt.Errorf("failed to scan %s of %s: %w", what, schemaName, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating %s of %s: %w", what, schemaName, err)
	}
	return nil
}
