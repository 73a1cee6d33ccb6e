// Package query provides the object query model and its compiler and executor.
//
// A query names the classes it reads (FROM), the classes, fields and references it
// projects (SELECT), and a constraint tree. Construction never validates; every rule
// is checked by Compiler.Compile, which reports violations as ErrQueryCompile.
package query

import (
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Operand is a node that can be projected or compared: *QueryClass, *QueryField,
// *QueryObjectReference or QueryValue
type Operand interface {
	operand()
}

// QueryClass is one occurrence of a class in the FROM set. Two QueryClass values
// over the same schema are distinct sources (a self join).
type QueryClass struct {
	class *schema.ClassSchema
}

// NewQueryClass creates a query class for a class schema
func NewQueryClass(class *schema.ClassSchema) *QueryClass {
	return &QueryClass{class: class}
}

// Schema returns the class schema
func (c *QueryClass) Schema() *schema.ClassSchema {
	return c.class
}

// Field returns a projection of a scalar field (or the identity field) of this class
func (c *QueryClass) Field(name string) *QueryField {
	return &QueryField{Class: c, Name: name}
}

// Ref returns a single-valued object reference rooted at this class
func (c *QueryClass) Ref(name string) *QueryObjectReference {
	return &QueryObjectReference{Class: c, Name: name}
}

// QueryField is a scalar field rooted at a query class
type QueryField struct {
	Class *QueryClass
	Name  string
}

// QueryObjectReference is a single-valued reference rooted at a query class
type QueryObjectReference struct {
	Class *QueryClass
	Name  string
}

// QueryValue is a literal. It is always bound as a statement parameter.
type QueryValue struct {
	Value interface{}
}

// Value wraps a literal
func Value(v interface{}) QueryValue {
	return QueryValue{Value: v}
}

func (*QueryClass) operand()           {}
func (*QueryField) operand()           {}
func (*QueryObjectReference) operand() {}
func (QueryValue) operand()            {}

// Query is an immutable object query produced by Builder.Build
type Query struct {
	selects  []Operand
	from     []*QueryClass
	where    Constraint
	orderBy  []Operand
	distinct bool
}

// Select returns the projection list
func (q *Query) Select() []Operand {
	return append([]Operand(nil), q.selects...)
}

// From returns the FROM classes in order
func (q *Query) From() []*QueryClass {
	return append([]*QueryClass(nil), q.from...)
}

// Where returns the constraint tree, or nil
func (q *Query) Where() Constraint {
	return q.where
}

// OrderBy returns the explicit ordering
func (q *Query) OrderBy() []Operand {
	return append([]Operand(nil), q.orderBy...)
}

// IsDistinct returns true if duplicate rows are eliminated
func (q *Query) IsDistinct() bool {
	return q.distinct
}

// Builder provides a fluent API for building queries
type Builder struct {
	selects  []Operand
	from     []*QueryClass
	where    []Constraint
	orderBy  []Operand
	distinct bool
}

// NewBuilder creates an empty query builder
func NewBuilder() *Builder {
	return &Builder{}
}

// Select appends projections
func (b *Builder) Select(items ...Operand) *Builder {
	b.selects = append(b.selects, items...)
	return b
}

// From appends FROM classes
func (b *Builder) From(classes ...*QueryClass) *Builder {
	b.from = append(b.from, classes...)
	return b
}

// Where adds a constraint. Multiple calls are combined with AND.
func (b *Builder) Where(c Constraint) *Builder {
	b.where = append(b.where, c)
	return b
}

// OrderBy appends ordering items
func (b *Builder) OrderBy(items ...Operand) *Builder {
	b.orderBy = append(b.orderBy, items...)
	return b
}

// Distinct eliminates duplicate rows
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// Build returns an immutable snapshot of the builder
func (b *Builder) Build() *Query {
	q := &Query{
		selects:  append([]Operand(nil), b.selects...),
		from:     append([]*QueryClass(nil), b.from...),
		orderBy:  append([]Operand(nil), b.orderBy...),
		distinct: b.distinct,
	}
	switch len(b.where) {
	case 0:
	case 1:
		q.where = b.where[0]
	default:
		q.where = And(b.where...)
	}
	return q
}
