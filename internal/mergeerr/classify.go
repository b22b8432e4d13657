package mergeerr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
)

// SQL Server error numbers that mean the server refused the statement itself.
var mssqlConstraintNumbers = map[int32]bool{
	515:  true, // NULL into NOT NULL
	547:  true, // FK / CHECK conflict
	2601: true, // duplicate key in unique index
	2627: true, // PK / UNIQUE violation
	245:  true, // conversion failed
	8152: true, // string would be truncated
}

// Classify turns a raw driver error into ConstraintViolationError or
// DatabaseConnectivityError. Errors that are already typed, and nil, pass
// through untouched. stage and table describe where the statement ran.
func Classify(err error, stage, table, statement string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsTyped(err); ok {
		return err
	}
	if isConnectivity(err) {
		return &DatabaseConnectivityError{Stage: stage, Err: err}
	}
	return &ConstraintViolationError{
		Stage:     stage,
		Table:     table,
		Code:      Code(err),
		Class:     class(err),
		Statement: statement,
		Err:       err,
	}
}

// class is the SQLSTATE class of a PostgreSQL error, or "integrity" and
// "other" for SQL Server, which has no SQLSTATE on its errors.
func class(err error) string {
	if code := sqlState(err); len(code) == 5 {
		return code[:2]
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		if mssqlConstraintNumbers[msErr.Number] {
			return "integrity"
		}
		return "other"
	}
	return ""
}

// Code extracts the SQLSTATE (PostgreSQL) or error number (SQL Server).
func Code(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return strconv.Itoa(int(msErr.Number))
	}
	return ""
}

// sqlState returns the SQLSTATE of a PostgreSQL error, or "".
func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	// SQLSTATE class 08 is connection exception, 57P01..03 admin shutdown.
	if code := sqlState(err); len(code) == 5 {
		if code[:2] == "08" || code == "57P01" || code == "57P02" || code == "57P03" {
			return true
		}
		return false
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return !mssqlConstraintNumbers[msErr.Number] && msErr.Class >= 20
	}
	return false
}
