// Package crud provides row-level reads and writes for registered classes.
// Rows never decide whether a row should be written; the skeleton merger and the
// graph writer make that decision and call into this package.
package crud

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Querier is the subset of *sql.DB, *sql.Conn and *sql.Tx used for row access
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Rows performs row operations over one connection or transaction
type Rows struct {
	db      Querier
	dialect dialect.Dialect
	logger  *zap.Logger
}

// NewRows creates row operations for a querier
func NewRows(db Querier, d dialect.Dialect, logger *zap.Logger) *Rows {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rows{db: db, dialect: d, logger: logger}
}

// column is one persistent column of a class
type column struct {
	name string
	spec *schema.TypeSpec
}

var identitySpec = &schema.TypeSpec{BaseType: schema.TypeBigInt}

// columns returns the identity, field and reference columns of a class in declaration order
func columns(class *schema.ClassSchema) []column {
	cols := make([]column, 0, 1+len(class.Fields)+len(class.References))
	cols = append(cols, column{name: class.IdentityColumn(), spec: identitySpec})
	for _, f := range class.Fields {
		cols = append(cols, column{name: f.Column, spec: f.Type})
	}
	for _, ref := range class.References {
		cols = append(cols, column{name: ref.Column, spec: identitySpec})
	}
	return cols
}

// orderedValues returns the columns present in values, in declaration order, with their
// values. The identity column is never written.
func orderedValues(class *schema.ClassSchema, values map[string]interface{}) ([]string, []interface{}, error) {
	known := make(map[string]bool, len(values))
	var names []string
	var args []interface{}

	for _, col := range columns(class)[1:] {
		if v, ok := values[col.name]; ok {
			names = append(names, col.name)
			args = append(args, v)
			known[col.name] = true
		}
	}
	for name := range values {
		if !known[name] {
			return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, class.Name, name)
		}
	}
	return names, args, nil
}
