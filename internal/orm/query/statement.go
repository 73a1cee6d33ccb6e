package query

import (
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Unbounded is the documented maxRows sentinel meaning "no row limit"
const Unbounded = dialect.Unbounded

// ColumnType is the relational type of a result column
type ColumnType string

const (
	ColumnVarchar   ColumnType = "VARCHAR"
	ColumnText      ColumnType = "TEXT"
	ColumnInteger   ColumnType = "INTEGER"
	ColumnBigInt    ColumnType = "BIGINT"
	ColumnDouble    ColumnType = "DOUBLE"
	ColumnNumeric   ColumnType = "NUMERIC"
	ColumnBoolean   ColumnType = "BOOLEAN"
	ColumnTimestamp ColumnType = "TIMESTAMP"
	ColumnDate      ColumnType = "DATE"
	ColumnTime      ColumnType = "TIME"
	ColumnUUID      ColumnType = "UUID"
	ColumnJSON      ColumnType = "JSON"
)

// ColumnTypeOf maps a primitive field type to its result column type
func ColumnTypeOf(p schema.PrimitiveType) ColumnType {
	switch p {
	case schema.TypeString:
		return ColumnVarchar
	case schema.TypeText:
		return ColumnText
	case schema.TypeInt:
		return ColumnInteger
	case schema.TypeBigInt:
		return ColumnBigInt
	case schema.TypeFloat:
		return ColumnDouble
	case schema.TypeDecimal:
		return ColumnNumeric
	case schema.TypeBool:
		return ColumnBoolean
	case schema.TypeTimestamp:
		return ColumnTimestamp
	case schema.TypeDate:
		return ColumnDate
	case schema.TypeTime:
		return ColumnTime
	case schema.TypeUUID:
		return ColumnUUID
	case schema.TypeJSON:
		return ColumnJSON
	default:
		return ColumnVarchar
	}
}

// identitySpec is the type of identity and foreign key columns
var identitySpec = &schema.TypeSpec{BaseType: schema.TypeBigInt}

// Column describes one select-list position of a compiled statement
type Column struct {
	// Name is the result column alias, the source alias followed by the column name (a1_id)
	Name string
	// Alias is the FROM alias of the owning source
	Alias string
	Class string
	// Member is the field, reference or identity name the column reads
	Member string
	Kind   ColumnKind
	Type   ColumnType
	Spec   *schema.TypeSpec
}

// ColumnKind tells what a column holds
type ColumnKind int

const (
	IdentityColumn ColumnKind = iota
	FieldColumn
	ReferenceColumn
)

// Source is one FROM entry of a compiled statement
type Source struct {
	Alias string
	Table string
	Class string
}

// Join is an equality join predicate between two sources
type Join struct {
	LeftAlias   string
	LeftColumn  string
	RightAlias  string
	RightColumn string
}

// String renders the join predicate
func (j Join) String() string {
	return fmt.Sprintf("%s.%s = %s.%s", j.LeftAlias, j.LeftColumn, j.RightAlias, j.RightColumn)
}

// Statement is a compiled, parameterized SELECT without its row window
type Statement struct {
	SQL     string
	Args    []interface{}
	Columns []Column
	Sources []Source
	Joins   []Join

	dialect dialect.Dialect
}

// Dialect returns the dialect the statement was rendered for
func (s *Statement) Dialect() dialect.Dialect {
	return s.dialect
}

// Windowed renders the statement with a LIMIT/OFFSET window appended.
// maxRows must be positive or Unbounded; startRow must not be negative.
func (s *Statement) Windowed(startRow, maxRows int) (string, []interface{}, error) {
	if startRow < 0 {
		return "", nil, fmt.Errorf("%w: start row %d is negative", ErrInvalidWindow, startRow)
	}
	if maxRows == 0 || maxRows < Unbounded {
		return "", nil, fmt.Errorf("%w: max rows %d (use a positive limit or Unbounded)", ErrInvalidWindow, maxRows)
	}

	args := make([]interface{}, len(s.Args), len(s.Args)+2)
	copy(args, s.Args)
	window := s.dialect.Window(startRow, maxRows, func(v interface{}) string {
		args = append(args, v)
		return s.dialect.Placeholder(len(args))
	})
	return s.SQL + " " + window, args, nil
}

// ColumnIndex returns the position of a named result column, or -1
func (s *Statement) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}
