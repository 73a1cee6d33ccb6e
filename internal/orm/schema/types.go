// Package schema provides the business-object type system consumed by the object store.
// It describes, per class, the scalar fields, single-valued references, collections and
// identity column, so that no component ever hard-codes the shape of a type.
package schema

import (
	"fmt"
	"strings"
)

// PrimitiveType represents the built-in scalar types a field can hold
type PrimitiveType int

const (
	// Text types
	TypeString PrimitiveType = iota
	TypeText

	// Numeric types
	TypeInt
	TypeBigInt
	TypeFloat
	TypeDecimal

	// Boolean
	TypeBool

	// Time types
	TypeTimestamp
	TypeDate
	TypeTime

	// Unique identifiers
	TypeUUID

	// JSON documents
	TypeJSON
)

// String returns the string representation of the primitive type
func (p PrimitiveType) String() string {
	switch p {
	case TypeString:
		return "string"
	case TypeText:
		return "text"
	case TypeInt:
		return "int"
	case TypeBigInt:
		return "bigint"
	case TypeFloat:
		return "float"
	case TypeDecimal:
		return "decimal"
	case TypeBool:
		return "bool"
	case TypeTimestamp:
		return "timestamp"
	case TypeDate:
		return "date"
	case TypeTime:
		return "time"
	case TypeUUID:
		return "uuid"
	case TypeJSON:
		return "json"
	default:
		return "unknown"
	}
}

// ParsePrimitiveType converts a string to a PrimitiveType
func ParsePrimitiveType(s string) (PrimitiveType, error) {
	switch strings.ToLower(s) {
	case "string", "varchar":
		return TypeString, nil
	case "text":
		return TypeText, nil
	case "int", "integer":
		return TypeInt, nil
	case "bigint", "long":
		return TypeBigInt, nil
	case "float", "double":
		return TypeFloat, nil
	case "decimal", "numeric":
		return TypeDecimal, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "timestamp":
		return TypeTimestamp, nil
	case "date":
		return TypeDate, nil
	case "time":
		return TypeTime, nil
	case "uuid":
		return TypeUUID, nil
	case "json":
		return TypeJSON, nil
	default:
		return 0, fmt.Errorf("unknown primitive type: %s", s)
	}
}

// TypeSpec represents a field type with nullability and sizing parameters
type TypeSpec struct {
	BaseType PrimitiveType
	Nullable bool

	// Type parameters (e.g., string(50), decimal(10,2))
	Length    *int
	Precision *int
	Scale     *int
}

// String returns a string representation of the TypeSpec
func (t *TypeSpec) String() string {
	s := t.BaseType.String()
	if t.Length != nil {
		s = fmt.Sprintf("%s(%d)", s, *t.Length)
	}
	if t.Precision != nil && t.Scale != nil {
		s = fmt.Sprintf("%s(%d,%d)", s, *t.Precision, *t.Scale)
	}
	if t.Nullable {
		s += "?"
	} else {
		s += "!"
	}
	return s
}

// IsNumeric returns true if the type is a numeric type
func (t *TypeSpec) IsNumeric() bool {
	return t.BaseType == TypeInt ||
		t.BaseType == TypeBigInt ||
		t.BaseType == TypeFloat ||
		t.BaseType == TypeDecimal
}

// IsText returns true if the type is a text type
func (t *TypeSpec) IsText() bool {
	return t.BaseType == TypeString || t.BaseType == TypeText
}

// Field represents a scalar field of a class
type Field struct {
	Name   string
	Column string
	Type   *TypeSpec
	Unique bool
}

// Reference represents a single-valued object reference stored as a foreign key column
type Reference struct {
	Name        string
	TargetClass string
	Column      string
	Nullable    bool
}

// CollectionKind distinguishes one-to-many collections from join-table collections
type CollectionKind int

const (
	// OneToMany collections are backed by a reference on the element class
	OneToMany CollectionKind = iota
	// ManyToMany collections are backed by a join table
	ManyToMany
)

// String returns the string representation of the collection kind
func (k CollectionKind) String() string {
	switch k {
	case OneToMany:
		return "one_to_many"
	case ManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ParseCollectionKind converts a string to a CollectionKind
func ParseCollectionKind(s string) (CollectionKind, error) {
	switch s {
	case "one_to_many", "has_many":
		return OneToMany, nil
	case "many_to_many", "has_many_through":
		return ManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown collection kind: %s", s)
	}
}

// Collection represents a collection-valued reference
type Collection struct {
	Name        string
	Kind        CollectionKind
	TargetClass string

	// Reverse names the field on the element class that points back to the owner.
	// Required for one-to-many, optional for many-to-many.
	Reverse string

	// Join table configuration for many-to-many
	JoinTable      string
	ForeignKey     string // join column holding the owner identity
	AssociationKey string // join column holding the element identity
}

// ClassSchema describes the persistent shape of a business-object class
type ClassSchema struct {
	Name          string
	TableName     string
	IdentityField string
	Implements    []string

	Fields      []*Field
	References  []*Reference
	Collections []*Collection

	fieldIndex map[string]*Field
	refIndex   map[string]*Reference
	collIndex  map[string]*Collection
}

// NewClassSchema creates a new ClassSchema with default table and identity names
func NewClassSchema(name string) *ClassSchema {
	return &ClassSchema{
		Name:          name,
		TableName:     toTableName(name),
		IdentityField: "id",
		fieldIndex:    make(map[string]*Field),
		refIndex:      make(map[string]*Reference),
		collIndex:     make(map[string]*Collection),
	}
}

// AddField appends a scalar field, deriving its column name when empty
func (c *ClassSchema) AddField(f *Field) *ClassSchema {
	if f.Column == "" {
		f.Column = ColumnName(f.Name)
	}
	if f.Type == nil {
		f.Type = &TypeSpec{BaseType: TypeString, Nullable: true}
	}
	c.Fields = append(c.Fields, f)
	c.fieldIndex[f.Name] = f
	return c
}

// AddReference appends a single-valued reference, deriving its foreign key column when empty
func (c *ClassSchema) AddReference(r *Reference) *ClassSchema {
	if r.Column == "" {
		r.Column = ForeignKeyColumn(r.Name)
	}
	c.References = append(c.References, r)
	c.refIndex[r.Name] = r
	return c
}

// AddCollection appends a collection, filling join-table defaults for many-to-many
func (c *ClassSchema) AddCollection(coll *Collection) *ClassSchema {
	if coll.Kind == ManyToMany {
		if coll.JoinTable == "" {
			coll.JoinTable = DefaultJoinTable(c.Name, coll.TargetClass)
		}
		if coll.ForeignKey == "" {
			coll.ForeignKey = ForeignKeyColumn(c.Name)
		}
		if coll.AssociationKey == "" {
			coll.AssociationKey = ForeignKeyColumn(coll.TargetClass)
		}
	}
	c.Collections = append(c.Collections, coll)
	c.collIndex[coll.Name] = coll
	return c
}

// Field returns the scalar field with the given name
func (c *ClassSchema) Field(name string) (*Field, bool) {
	f, ok := c.fieldIndex[name]
	return f, ok
}

// Reference returns the reference with the given name
func (c *ClassSchema) Reference(name string) (*Reference, bool) {
	r, ok := c.refIndex[name]
	return r, ok
}

// Collection returns the collection with the given name
func (c *ClassSchema) Collection(name string) (*Collection, bool) {
	coll, ok := c.collIndex[name]
	return coll, ok
}

// HasField returns true if the class has a scalar field with the given name
func (c *ClassSchema) HasField(name string) bool {
	_, ok := c.fieldIndex[name]
	return ok
}

// HasReference returns true if the class has a reference with the given name
func (c *ClassSchema) HasReference(name string) bool {
	_, ok := c.refIndex[name]
	return ok
}

// HasCollection returns true if the class has a collection with the given name
func (c *ClassSchema) HasCollection(name string) bool {
	_, ok := c.collIndex[name]
	return ok
}

// IdentityColumn returns the column holding the class identity
func (c *ClassSchema) IdentityColumn() string {
	return ColumnName(c.IdentityField)
}

// Covers reports whether the class is, or declares that it implements, the named type
func (c *ClassSchema) Covers(name string) bool {
	if c.Name == name {
		return true
	}
	for _, iface := range c.Implements {
		if iface == name {
			return true
		}
	}
	return false
}

// ColumnName returns the column name for a field name
func ColumnName(field string) string {
	return strings.ToLower(field)
}

// ForeignKeyColumn returns the foreign key column name for a reference or class name
func ForeignKeyColumn(name string) string {
	return strings.ToLower(name) + "id"
}

// DefaultJoinTable returns the join table shared by both sides of a many-to-many pair
func DefaultJoinTable(a, b string) string {
	ta, tb := toTableName(a), toTableName(b)
	if tb < ta {
		ta, tb = tb, ta
	}
	return ta + "_" + tb
}

// toTableName converts a class name to a table name (snake_case plural)
func toTableName(className string) string {
	return pluralize(toSnakeCase(className))
}

// toSnakeCase converts a string to snake_case
func toSnakeCase(s string) string {
	var result []rune
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := runes[i-1]
			// Add underscore on a camelCase boundary or at the end of an acronym
			if prev >= 'a' && prev <= 'z' {
				result = append(result, '_')
			} else if i+1 < len(runes) && runes[i+1] >= 'a' && runes[i+1] <= 'z' {
				result = append(result, '_')
			}
		}
		if r >= 'A' && r <= 'Z' {
			result = append(result, r+('a'-'A'))
		} else {
			result = append(result, r)
		}
	}
	return string(result)
}

// pluralize adds simple pluralization
func pluralize(s string) string {
	if strings.HasSuffix(s, "s") ||
		strings.HasSuffix(s, "x") ||
		strings.HasSuffix(s, "z") {
		return s + "es"
	}
	if strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsAny(s[len(s)-2:len(s)-1], "aeiou") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
