// Package object provides the in-memory business object persisted by the object store.
//
// An Object is bound to exactly one registered class at construction time. Dynamic or
// union-typed records are resolved to their concrete class through schema.Registry.Resolve
// before an Object is created, so field access never has to discover the shape at runtime.
package object

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

var (
	// ErrUnknownField is returned when a member does not exist on the object's class
	ErrUnknownField = errors.New("unknown field")

	// ErrWrongKind is returned when a member is accessed as the wrong kind (scalar, reference, collection)
	ErrWrongKind = errors.New("field accessed as the wrong kind")

	// ErrClassMismatch is returned when a referenced object is not of the declared target class
	ErrClassMismatch = errors.New("class mismatch")

	// ErrIdentityReassigned is returned when an identity would be replaced by a different one
	ErrIdentityReassigned = errors.New("identity already assigned")
)

// Object is a business object: a class, an optional identity, and its field values
type Object struct {
	class       *schema.ClassSchema
	key         uuid.UUID
	id          *int64
	fields      map[string]interface{}
	refs        map[string]*Object
	collections map[string][]*Object
}

// New creates an empty object of the given class
func New(class *schema.ClassSchema) *Object {
	return &Object{
		class:       class,
		key:         uuid.New(),
		fields:      make(map[string]interface{}),
		refs:        make(map[string]*Object),
		collections: make(map[string][]*Object),
	}
}

// NewDynamic creates an object whose class is the single registered class covering every type name
func NewDynamic(registry *schema.Registry, typeNames ...string) (*Object, error) {
	class, err := registry.Resolve(typeNames...)
	if err != nil {
		return nil, err
	}
	return New(class), nil
}

// Class returns the object's class schema
func (o *Object) Class() *schema.ClassSchema {
	return o.class
}

// Key returns the temporary key naming this in-memory instance
func (o *Object) Key() uuid.UUID {
	return o.key
}

// Identity returns the store-assigned identity, if any
func (o *Object) Identity() (int64, bool) {
	if o.id == nil {
		return 0, false
	}
	return *o.id, true
}

// HasIdentity returns true once the object has been persisted
func (o *Object) HasIdentity() bool {
	return o.id != nil
}

// SetIdentity assigns the store identity. Re-assigning the same value is a no-op.
func (o *Object) SetIdentity(id int64) error {
	if o.id != nil {
		if *o.id == id {
			return nil
		}
		return fmt.Errorf("%w: %s has %d, refusing %d", ErrIdentityReassigned, o.class.Name, *o.id, id)
	}
	o.id = &id
	return nil
}

// ClearIdentity removes an identity assigned by a write that was rolled back
func (o *Object) ClearIdentity() {
	o.id = nil
}

// Set assigns a scalar field. Setting nil unsets the field.
func (o *Object) Set(field string, value interface{}) error {
	f, ok := o.class.Field(field)
	if !ok {
		return o.memberError(field)
	}
	if value == nil {
		delete(o.fields, field)
		return nil
	}
	normalized, err := Normalize(f.Type, value)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", o.class.Name, field, err)
	}
	o.fields[field] = normalized
	return nil
}

// MustSet is Set for fixtures and tests, panicking on error
func (o *Object) MustSet(field string, value interface{}) *Object {
	if err := o.Set(field, value); err != nil {
		panic(err)
	}
	return o
}

// Get returns a scalar field value and whether it is set
func (o *Object) Get(field string) (interface{}, bool) {
	v, ok := o.fields[field]
	return v, ok
}

// Unset clears a scalar field or reference
func (o *Object) Unset(field string) {
	delete(o.fields, field)
	delete(o.refs, field)
}

// SetRef assigns a single-valued reference. A nil target unsets it.
func (o *Object) SetRef(field string, target *Object) error {
	ref, ok := o.class.Reference(field)
	if !ok {
		return o.memberError(field)
	}
	if target == nil {
		delete(o.refs, field)
		return nil
	}
	if !target.class.Covers(ref.TargetClass) {
		return fmt.Errorf("%w: %s.%s expects %s, got %s",
			ErrClassMismatch, o.class.Name, field, ref.TargetClass, target.class.Name)
	}
	o.refs[field] = target
	return nil
}

// MustSetRef is SetRef for fixtures and tests, panicking on error
func (o *Object) MustSetRef(field string, target *Object) *Object {
	if err := o.SetRef(field, target); err != nil {
		panic(err)
	}
	return o
}

// Ref returns the object a reference points to, or nil
func (o *Object) Ref(field string) *Object {
	return o.refs[field]
}

// Add appends elements to a collection, ignoring elements already present
func (o *Object) Add(collection string, elems ...*Object) error {
	coll, ok := o.class.Collection(collection)
	if !ok {
		return o.memberError(collection)
	}
	for _, elem := range elems {
		if elem == nil {
			continue
		}
		if !elem.class.Covers(coll.TargetClass) {
			return fmt.Errorf("%w: %s.%s expects %s, got %s",
				ErrClassMismatch, o.class.Name, collection, coll.TargetClass, elem.class.Name)
		}
		if o.contains(collection, elem) {
			continue
		}
		o.collections[collection] = append(o.collections[collection], elem)
	}
	return nil
}

// MustAdd is Add for fixtures and tests, panicking on error
func (o *Object) MustAdd(collection string, elems ...*Object) *Object {
	if err := o.Add(collection, elems...); err != nil {
		panic(err)
	}
	return o
}

// Collection returns the elements of a collection
func (o *Object) Collection(name string) []*Object {
	return o.collections[name]
}

// Values returns the column values of every set scalar field and every reference
// whose target already holds an identity, keyed by column name.
func (o *Object) Values() map[string]interface{} {
	values := make(map[string]interface{}, len(o.fields)+len(o.refs))
	for _, f := range o.class.Fields {
		if v, ok := o.fields[f.Name]; ok {
			values[f.Column] = v
		}
	}
	for _, ref := range o.class.References {
		if target, ok := o.refs[ref.Name]; ok {
			if id, ok := target.Identity(); ok {
				values[ref.Column] = id
			}
		}
	}
	return values
}

// SetFields returns the names of set scalar fields and references, sorted
func (o *Object) SetFields() []string {
	names := make([]string, 0, len(o.fields)+len(o.refs))
	for name := range o.fields {
		names = append(names, name)
	}
	for name := range o.refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String returns a short description for logs and errors
func (o *Object) String() string {
	if id, ok := o.Identity(); ok {
		return fmt.Sprintf("%s#%d", o.class.Name, id)
	}
	return fmt.Sprintf("%s(%s)", o.class.Name, o.key.String()[:8])
}

func (o *Object) contains(collection string, elem *Object) bool {
	for _, existing := range o.collections[collection] {
		if existing == elem {
			return true
		}
	}
	return false
}

func (o *Object) memberError(name string) error {
	switch {
	case o.class.HasField(name), o.class.HasReference(name), o.class.HasCollection(name):
		return fmt.Errorf("%w: %s.%s", ErrWrongKind, o.class.Name, name)
	default:
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, o.class.Name, name)
	}
}
