package session

import (
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/relationships"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Materializer converts one result row into business objects
type Materializer interface {
	Materialize(stmt *query.Statement, values []interface{}) ([]*object.Object, error)
}

// AliasMaterializer builds one object per FROM source whose identity column is
// selected, in FROM order. Selected fields are set; selected reference columns become
// identity-only proxies.
type AliasMaterializer struct {
	registry *schema.Registry
}

// NewAliasMaterializer creates the default materializer
func NewAliasMaterializer(registry *schema.Registry) *AliasMaterializer {
	return &AliasMaterializer{registry: registry}
}

// Materialize implements Materializer
func (m *AliasMaterializer) Materialize(stmt *query.Statement, values []interface{}) ([]*object.Object, error) {
	if len(values) != len(stmt.Columns) {
		return nil, fmt.Errorf("row has %d values, statement selects %d columns", len(values), len(stmt.Columns))
	}

	var objs []*object.Object
	for _, src := range stmt.Sources {
		class, ok := m.registry.Get(src.Class)
		if !ok {
			return nil, fmt.Errorf("unknown class %s", src.Class)
		}

		var obj *object.Object
		for i, col := range stmt.Columns {
			if col.Alias == src.Alias && col.Kind == query.IdentityColumn {
				if id, ok := values[i].(int64); ok {
					obj = relationships.Proxy(class, id)
				}
				break
			}
		}
		if obj == nil {
			continue
		}

		for i, col := range stmt.Columns {
			if col.Alias != src.Alias || values[i] == nil {
				continue
			}
			switch col.Kind {
			case query.FieldColumn:
				if err := obj.Set(col.Member, values[i]); err != nil {
					return nil, err
				}
			case query.ReferenceColumn:
				if err := m.setProxy(obj, class, col.Member, values[i]); err != nil {
					return nil, err
				}
			}
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func (m *AliasMaterializer) setProxy(obj *object.Object, class *schema.ClassSchema, name string, value interface{}) error {
	ref, ok := class.Reference(name)
	if !ok {
		return fmt.Errorf("%s has no reference %s", class.Name, name)
	}
	target, ok := m.registry.Get(ref.TargetClass)
	if !ok {
		return fmt.Errorf("unknown class %s", ref.TargetClass)
	}
	id, ok := value.(int64)
	if !ok {
		return fmt.Errorf("%s.%s holds %T, want an identity", class.Name, name, value)
	}
	return obj.SetRef(name, relationships.Proxy(target, id))
}
