package crud

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Common row error types
var (
	// ErrNotFound is returned when a row is not found
	ErrNotFound = errors.New("row not found")

	// ErrStoreIntegrity is returned when a write would violate a store constraint
	ErrStoreIntegrity = errors.New("store integrity violation")

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = fmt.Errorf("%w: unique constraint violation", ErrStoreIntegrity)

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = fmt.Errorf("%w: foreign key constraint violation", ErrStoreIntegrity)

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = fmt.Errorf("%w: check constraint violation", ErrStoreIntegrity)

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = fmt.Errorf("%w: not null constraint violation", ErrStoreIntegrity)

	// ErrUnknownColumn is returned when a value names a column the class does not have
	ErrUnknownColumn = errors.New("unknown column")
)

// ConvertDBError converts driver-specific errors (pgx, lib/pq, go-sqlite3) to row errors
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return convertSQLState(err, pgErr.Code, pgErr.Detail, pgErr.ColumnName)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return convertSQLState(err, string(pqErr.Code), pqErr.Detail, pqErr.Column)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.Code == sqlite3.ErrConstraint {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %s", ErrUniqueViolation, liteErr.Error())
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %s", ErrForeignKeyViolation, liteErr.Error())
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %s", ErrNotNullViolation, liteErr.Error())
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %s", ErrCheckViolation, liteErr.Error())
		default:
			return fmt.Errorf("%w: %s", ErrStoreIntegrity, liteErr.Error())
		}
	}

	return err
}

// convertSQLState maps PostgreSQL integrity SQLSTATE codes (class 23)
func convertSQLState(err error, code, detail, column string) error {
	switch code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %s", ErrUniqueViolation, detail)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %s", ErrForeignKeyViolation, detail)
	case "23514": // check_violation
		return fmt.Errorf("%w: %s", ErrCheckViolation, detail)
	case "23502": // not_null_violation
		return fmt.Errorf("%w: column %s", ErrNotNullViolation, column)
	}
	return err
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStoreIntegrity returns true if the error is any store constraint violation
func IsStoreIntegrity(err error) bool {
	return errors.Is(err, ErrStoreIntegrity)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}
