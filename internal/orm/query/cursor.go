package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/object"
)

// Cursor iterates the rows of an executed statement. Columns correspond one-to-one,
// by position, with the statement's select list. The caller must Close it.
type Cursor struct {
	ctx     context.Context
	rows    *sql.Rows
	columns []Column
	cancel  context.CancelFunc

	current []interface{}
	scanned bool
	closed  bool
	err     error
}

func newCursor(ctx context.Context, rows *sql.Rows, columns []Column, cancel context.CancelFunc) *Cursor {
	return &Cursor{ctx: ctx, rows: rows, columns: columns, cancel: cancel}
}

// ColumnCount returns the number of result columns
func (c *Cursor) ColumnCount() int {
	return len(c.columns)
}

// ColumnName returns the name of the column at a 0-based position
func (c *Cursor) ColumnName(i int) string {
	return c.columns[i].Name
}

// ColumnType returns the relational type of the column at a 0-based position
func (c *Cursor) ColumnType(i int) ColumnType {
	return c.columns[i].Type
}

// Columns returns the result column descriptors
func (c *Cursor) Columns() []Column {
	return append([]Column(nil), c.columns...)
}

// Next advances to the next row
func (c *Cursor) Next() bool {
	if c.closed || c.err != nil {
		return false
	}
	c.current = nil
	c.scanned = false
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			c.err = executionError(c.ctx, "next", err)
		}
		return false
	}
	return true
}

// Values returns the current row with each value normalized to its column's field type.
// NULL columns are nil.
func (c *Cursor) Values() ([]interface{}, error) {
	if c.scanned {
		return c.current, nil
	}
	raw := make([]interface{}, len(c.columns))
	ptrs := make([]interface{}, len(c.columns))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, executionError(c.ctx, "scan", err)
	}

	for i, col := range c.columns {
		v, err := object.Normalize(col.Spec, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%w: column %s: %v", ErrExecution, col.Name, err)
		}
		raw[i] = v
	}
	c.current = raw
	c.scanned = true
	return raw, nil
}

// Scan copies the current row into dest, as sql.Rows.Scan does
func (c *Cursor) Scan(dest ...interface{}) error {
	if err := c.rows.Scan(dest...); err != nil {
		return executionError(c.ctx, "scan", err)
	}
	return nil
}

// CountRemaining advances to the end and returns how many rows were left.
// Rows are skipped without being scanned.
func (c *Cursor) CountRemaining() (int, error) {
	n := 0
	for c.Next() {
		n++
	}
	return n, c.Err()
}

// Err returns the error, if any, encountered during iteration
func (c *Cursor) Err() error {
	return c.err
}

// Close releases the cursor. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.rows.Close()
	if c.cancel != nil {
		c.cancel()
	}
	return err
}
