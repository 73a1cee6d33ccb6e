package object

import (
	"fmt"
	"reflect"
	"time"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// ExampleFields names the fields used to decide whether two objects are equal-by-example.
// Members may be scalar fields or single-valued references, never collections.
type ExampleFields []string

// Validate checks that every example field is a scalar field or reference of the class
func (e ExampleFields) Validate(class *schema.ClassSchema) error {
	if len(e) == 0 {
		return fmt.Errorf("empty example field set for %s", class.Name)
	}
	for _, name := range e {
		switch {
		case class.HasField(name), class.HasReference(name):
		case class.HasCollection(name):
			return fmt.Errorf("%w: collection %s.%s cannot be an example field", ErrWrongKind, class.Name, name)
		default:
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, class.Name, name)
		}
	}
	return nil
}

// Policy maps class (or implemented type) names to their distinguishing example fields
type Policy map[string]ExampleFields

// For returns the example fields declared for a class, trying the class name first
// and then each implemented type name in declaration order.
func (p Policy) For(class *schema.ClassSchema) (ExampleFields, bool) {
	if fields, ok := p[class.Name]; ok {
		return fields, true
	}
	for _, iface := range class.Implements {
		if fields, ok := p[iface]; ok {
			return fields, true
		}
	}
	return nil, false
}

// EqualByExample compares two objects on the example fields only, ignoring identity.
// References compare by identity when both targets hold one, otherwise by instance.
func EqualByExample(a, b *Object, fields ExampleFields) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.class.Name != b.class.Name {
		return false
	}
	for _, name := range fields {
		if a.class.HasReference(name) {
			if !sameTarget(a.refs[name], b.refs[name]) {
				return false
			}
			continue
		}
		if !valuesEqual(a.fields[name], b.fields[name]) {
			return false
		}
	}
	return true
}

// Equal reports value equality: same class, same identity, equal scalar fields and
// references to the same identities. An unset field equals a NULL one.
func Equal(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.class.Name != b.class.Name {
		return false
	}
	aid, aok := a.Identity()
	bid, bok := b.Identity()
	if aok != bok || aid != bid {
		return false
	}
	for _, f := range a.class.Fields {
		if !valuesEqual(a.fields[f.Name], b.fields[f.Name]) {
			return false
		}
	}
	for _, ref := range a.class.References {
		if !sameTarget(a.refs[ref.Name], b.refs[ref.Name]) {
			return false
		}
	}
	return true
}

func sameTarget(a, b *Object) bool {
	if a == nil || b == nil {
		return a == b
	}
	aid, aok := a.Identity()
	bid, bok := b.Identity()
	if aok && bok {
		return aid == bid && a.class.Name == b.class.Name
	}
	return a == b
}

func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}
