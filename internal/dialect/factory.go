package dialect

import "fmt"

// GetDialect returns the Dialect implementation for a database/sql driver name.
// Engines whose DDL commits implicitly cannot roll a merge back and are refused.
func GetDialect(driver string) (Dialect, error) {
	switch driver {
	case "postgres", "pgx":
		return &PostgresDialect{}, nil
	case "sqlserver", "mssql":
		return &MSSQLDialect{}, nil
	case "mysql", "oracle":
		return nil, fmt.Errorf("driver %q is not supported: DDL is not transactional on this engine", driver)
	default:
		return nil, fmt.Errorf("unknown driver %q", driver)
	}
}

// Ensure interface implementation
var _ Dialect = (*PostgresDialect)(nil)
var _ Dialect = (*MSSQLDialect)(nil)
