// Package codegen provides DDL generation for the object store.
// It transforms registered class schemas into CREATE TABLE statements for PostgreSQL or SQLite.
package codegen

import (
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// TypeMapper maps field types to column types for one dialect
type TypeMapper struct {
	dialect string
}

// NewTypeMapper creates a new TypeMapper for a dialect name ("postgres" or "sqlite")
func NewTypeMapper(dialect string) *TypeMapper {
	return &TypeMapper{dialect: dialect}
}

// MapType converts a TypeSpec to a column type
func (tm *TypeMapper) MapType(typeSpec *schema.TypeSpec) (string, error) {
	if typeSpec == nil {
		return "", fmt.Errorf("type spec cannot be nil")
	}

	switch typeSpec.BaseType {
	case schema.TypeString:
		if typeSpec.Length != nil {
			return fmt.Sprintf("VARCHAR(%d)", *typeSpec.Length), nil
		}
		return "VARCHAR(255)", nil // Default length

	case schema.TypeText:
		return "TEXT", nil

	case schema.TypeInt:
		return "INTEGER", nil

	case schema.TypeBigInt:
		return "BIGINT", nil

	case schema.TypeFloat:
		if tm.dialect == "sqlite" {
			return "REAL", nil
		}
		return "DOUBLE PRECISION", nil

	case schema.TypeDecimal:
		if typeSpec.Precision != nil && typeSpec.Scale != nil {
			return fmt.Sprintf("NUMERIC(%d,%d)", *typeSpec.Precision, *typeSpec.Scale), nil
		}
		return "NUMERIC", nil

	case schema.TypeBool:
		return "BOOLEAN", nil

	case schema.TypeTimestamp:
		if tm.dialect == "sqlite" {
			return "TIMESTAMP", nil
		}
		return "TIMESTAMP WITH TIME ZONE", nil

	case schema.TypeDate:
		return "DATE", nil

	case schema.TypeTime:
		return "TIME", nil

	case schema.TypeUUID:
		if tm.dialect == "sqlite" {
			return "TEXT", nil
		}
		return "UUID", nil

	case schema.TypeJSON:
		if tm.dialect == "sqlite" {
			return "TEXT", nil
		}
		return "JSONB", nil

	default:
		return "", fmt.Errorf("unsupported type: %s", typeSpec.BaseType)
	}
}

// MapNullability returns the NULL/NOT NULL constraint for a type
func (tm *TypeMapper) MapNullability(typeSpec *schema.TypeSpec) string {
	if typeSpec.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// IdentityColumn returns the column definition of a class identity.
// Identities are never reused after deletion.
func (tm *TypeMapper) IdentityColumn() string {
	if tm.dialect == "sqlite" {
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
}
