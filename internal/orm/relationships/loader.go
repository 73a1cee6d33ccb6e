package relationships

import (
	"context"
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Load materializes the row of class with the given identity. References are loaded
// recursively up to the context's depth and as proxies beyond it. Collections are
// left empty; see LoadCollection.
func (l *Loader) Load(ctx context.Context, class *schema.ClassSchema, id int64, lc *LoadContext) (*object.Object, error) {
	if obj, ok := lc.Lookup(class.Name, id); ok {
		return obj, nil
	}

	stored, err := l.rows.Load(ctx, class, id)
	if err != nil {
		return nil, err
	}

	obj := Proxy(class, id)
	if err := lc.Remember(obj); err != nil {
		return nil, err
	}

	for _, f := range class.Fields {
		v := stored[f.Column]
		if v == nil {
			continue
		}
		if err := obj.Set(f.Name, v); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", obj, err)
		}
	}

	for _, ref := range class.References {
		targetID, ok := stored[ref.Column].(int64)
		if !ok {
			continue
		}
		target, err := l.loadReference(ctx, ref, targetID, lc)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s.%s: %w", obj, ref.Name, err)
		}
		if err := obj.SetRef(ref.Name, target); err != nil {
			return nil, err
		}
	}
	return obj, nil
}

func (l *Loader) loadReference(ctx context.Context, ref *schema.Reference, id int64, lc *LoadContext) (*object.Object, error) {
	target, ok := l.registry.Get(ref.TargetClass)
	if !ok {
		return nil, fmt.Errorf("%w: unknown class %s", ErrUnknownRelationship, ref.TargetClass)
	}
	if obj, ok := lc.Lookup(target.Name, id); ok {
		return obj, nil
	}

	if !lc.descend() {
		return Proxy(target, id), nil
	}
	defer lc.ascend()
	return l.Load(ctx, target, id, lc)
}

// LoadCollection reads the stored members of an owner's collection and adds them to
// the owner. One-to-many members are the rows whose reverse reference holds the owner;
// many-to-many members come from the join table.
func (l *Loader) LoadCollection(ctx context.Context, owner *object.Object, name string, lc *LoadContext) ([]*object.Object, error) {
	ownerID, ok := owner.Identity()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnpersistedOwner, owner)
	}
	coll, ok := owner.Class().Collection(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, owner.Class().Name, name)
	}
	target, ok := l.registry.Get(coll.TargetClass)
	if !ok {
		return nil, fmt.Errorf("%w: unknown class %s", ErrUnknownRelationship, coll.TargetClass)
	}
	if _, known := lc.Lookup(owner.Class().Name, ownerID); !known {
		if err := lc.Remember(owner); err != nil {
			return nil, err
		}
	}

	var ids []int64
	var err error
	switch coll.Kind {
	case schema.OneToMany:
		reverse, ok := target.Reference(coll.Reverse)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, target.Name, coll.Reverse)
		}
		ids, err = l.rows.Referencing(ctx, target, reverse, ownerID)
	default:
		ids, err = l.rows.Linked(ctx, coll, ownerID)
	}
	if err != nil {
		return nil, err
	}

	elems := make([]*object.Object, 0, len(ids))
	for _, id := range ids {
		elem, err := l.Load(ctx, target, id, lc)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s.%s: %w", owner, name, err)
		}
		elems = append(elems, elem)
	}
	if err := owner.Add(name, elems...); err != nil {
		return nil, err
	}
	return elems, nil
}
