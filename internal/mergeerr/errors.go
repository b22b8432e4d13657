// Package mergeerr holds the typed failures a merge can end with.
// Every error carries a machine-readable Kind and a structured Detail so the
// caller can diagnose a failure without querying the database again.
package mergeerr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindSchemaNotFound       Kind = "schema_not_found"
	KindTargetSchemaNotFound Kind = "target_schema_not_found"
	KindStructureMismatch    Kind = "structure_mismatch"
	KindCircularDependency   Kind = "circular_dependency"
	KindConstraintViolation  Kind = "constraint_violation"
	KindDatabaseConnectivity Kind = "database_connectivity"
)

// Typed is implemented by every error in this package.
type Typed interface {
	error
	Kind() Kind
	Detail() any
}

// KindOf reports the Kind of the first typed error in err's chain.
func KindOf(err error) (Kind, bool) {
	var t Typed
	if errors.As(err, &t) {
		return t.Kind(), true
	}
	return "", false
}

// AsTyped returns the first typed error in err's chain.
func AsTyped(err error) (Typed, bool) {
	var t Typed
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

// SchemaNotFoundError: a source schema is missing or has no tables.
type SchemaNotFoundError struct {
	Schema string
}

func (e *SchemaNotFoundError) Error() string {
	return fmt.Sprintf("schema %q does not exist or has no tables", e.Schema)
}

func (e *SchemaNotFoundError) Kind() Kind { return KindSchemaNotFound }

func (e *SchemaNotFoundError) Detail() any {
	return map[string]string{"schema": e.Schema}
}

// TargetSchemaNotFoundError: the target is missing and creation was not requested.
type TargetSchemaNotFoundError struct {
	Schema string
}

func (e *TargetSchemaNotFoundError) Error() string {
	return fmt.Sprintf("target schema %q does not exist and create_new_schema is false", e.Schema)
}

func (e *TargetSchemaNotFoundError) Kind() Kind { return KindTargetSchemaNotFound }

func (e *TargetSchemaNotFoundError) Detail() any {
	return map[string]string{"schema": e.Schema}
}

// ColumnMismatch describes one column that differs between two same-named tables.
// An empty type means the column is absent on that side.
type ColumnMismatch struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Schema1Type string `json:"schema1_type,omitempty"`
	Schema2Type string `json:"schema2_type,omitempty"`
}

// StructureMismatchError carries the three-way table diff verbatim.
type StructureMismatchError struct {
	Schema1            string           `json:"schema1"`
	Schema2            string           `json:"schema2"`
	OnlyInSchema1      []string         `json:"only_in_schema1"`
	OnlyInSchema2      []string         `json:"only_in_schema2"`
	Common             []string         `json:"common"`
	Columns            []ColumnMismatch `json:"columns,omitempty"`
	ExternalReferences []string         `json:"external_references,omitempty"`
}

func (e *StructureMismatchError) Error() string {
	var parts []string
	if len(e.OnlyInSchema1) > 0 {
		parts = append(parts, fmt.Sprintf("only in %s: %s", e.Schema1, strings.Join(e.OnlyInSchema1, ", ")))
	}
	if len(e.OnlyInSchema2) > 0 {
		parts = append(parts, fmt.Sprintf("only in %s: %s", e.Schema2, strings.Join(e.OnlyInSchema2, ", ")))
	}
	if len(e.Columns) > 0 {
		parts = append(parts, fmt.Sprintf("%d column differences", len(e.Columns)))
	}
	if len(e.ExternalReferences) > 0 {
		parts = append(parts, "foreign keys leave the schema: "+strings.Join(e.ExternalReferences, ", "))
	}
	if len(parts) == 0 {
		return "schemas have different table structures"
	}
	return "schemas have different table structures (" + strings.Join(parts, "; ") + ")"
}

func (e *StructureMismatchError) Kind() Kind { return KindStructureMismatch }

func (e *StructureMismatchError) Detail() any { return e }

// CircularDependencyError lists the tables whose foreign keys form a cycle.
// Unresolved additionally holds every table that could not be ordered,
// including tables that only depend on a cycle or sit between two.
// Self-references never appear here.
type CircularDependencyError struct {
	Tables     []string `json:"tables"`
	Unresolved []string `json:"unresolved,omitempty"`
}

func (e *CircularDependencyError) Error() string {
	return "circular foreign key dependency between tables: " + strings.Join(e.Tables, ", ")
}

func (e *CircularDependencyError) Kind() Kind { return KindCircularDependency }

func (e *CircularDependencyError) Detail() any { return e }

// ConstraintViolationError: the database rejected a DDL or DML statement.
// Despite the name this covers every rejection that is not a connectivity
// failure, including permission and syntax errors. Class tells them apart:
// on PostgreSQL it is the SQLSTATE class (23 integrity constraint, 42 syntax
// or access, 22 bad data), on SQL Server "integrity" or "other".
type ConstraintViolationError struct {
	Stage     string `json:"stage"`
	Table     string `json:"table,omitempty"`
	Code      string `json:"code,omitempty"`
	Class     string `json:"class,omitempty"`
	Statement string `json:"statement,omitempty"`
	Err       error  `json:"-"`
}

func (e *ConstraintViolationError) Error() string {
	where := e.Stage
	if e.Table != "" {
		where += " " + e.Table
	}
	return fmt.Sprintf("database rejected statement during %s: %v", where, e.Err)
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

func (e *ConstraintViolationError) Kind() Kind { return KindConstraintViolation }

func (e *ConstraintViolationError) Detail() any {
	return map[string]string{
		"stage":     e.Stage,
		"table":     e.Table,
		"code":      e.Code,
		"class":     e.Class,
		"statement": e.Statement,
		"cause":     errString(e.Err),
	}
}

// DatabaseConnectivityError: the connection was lost or the caller gave up.
type DatabaseConnectivityError struct {
	Stage string `json:"stage"`
	Err   error  `json:"-"`
}

func (e *DatabaseConnectivityError) Error() string {
	return fmt.Sprintf("database connectivity lost during %s: %v", e.Stage, e.Err)
}

func (e *DatabaseConnectivityError) Unwrap() error { return e.Err }

func (e *DatabaseConnectivityError) Kind() Kind { return KindDatabaseConnectivity }

func (e *DatabaseConnectivityError) Detail() any {
	return map[string]string{"stage": e.Stage, "cause": errString(e.Err)}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
