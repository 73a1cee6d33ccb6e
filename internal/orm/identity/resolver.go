// Package identity finds the stored row that is equal-by-example to an in-memory object.
package identity

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/query"
)

// ErrAmbiguousMatch is returned when more than one stored row matches an example
var ErrAmbiguousMatch = errors.New("ambiguous match")

// IsAmbiguousMatch checks if an error reports duplicate rows for an example
func IsAmbiguousMatch(err error) bool {
	return errors.Is(err, ErrAmbiguousMatch)
}

// Resolver looks up identities by example. It never writes.
type Resolver struct {
	compiler *query.Compiler
	executor *query.Executor
	logger   *zap.Logger
}

// NewResolver creates a resolver. Run the executor on a transaction to see that
// transaction's own uncommitted rows.
func NewResolver(compiler *query.Compiler, executor *query.Executor, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{compiler: compiler, executor: executor, logger: logger}
}

// ExampleQuery builds the query selecting the identity of every row equal-by-example
// to obj. An unset example field matches NULL. ok is false when no stored row can match,
// which happens when an example reference points to an object without identity.
func ExampleQuery(obj *object.Object, fields object.ExampleFields) (q *query.Query, ok bool, err error) {
	class := obj.Class()
	if err := fields.Validate(class); err != nil {
		return nil, false, fmt.Errorf("%w: %w", query.ErrQueryCompile, err)
	}

	qc := query.NewQueryClass(class)
	b := query.NewBuilder().Select(qc.Field(class.IdentityField)).From(qc)

	for _, name := range fields {
		if class.HasReference(name) {
			target := obj.Ref(name)
			if target == nil {
				b.Where(query.IsNull(qc.Ref(name)))
				continue
			}
			id, identified := target.Identity()
			if !identified {
				return nil, false, nil
			}
			b.Where(query.HasIdentity(qc.Ref(name), id))
			continue
		}

		if v, set := obj.Get(name); set {
			b.Where(query.Eq(qc.Field(name), query.Value(v)))
		} else {
			b.Where(query.IsNull(qc.Field(name)))
		}
	}
	return b.Build(), true, nil
}

// FindByExample returns the identity of the single stored row equal-by-example to obj.
// found is false when no row matches. More than one match is ErrAmbiguousMatch.
func (r *Resolver) FindByExample(ctx context.Context, obj *object.Object, fields object.ExampleFields) (id int64, found bool, err error) {
	q, ok, err := ExampleQuery(obj, fields)
	if err != nil || !ok {
		return 0, false, err
	}

	stmt, err := r.compiler.Compile(q)
	if err != nil {
		return 0, false, err
	}

	cursor, err := r.executor.Execute(ctx, stmt, 0, 2)
	if err != nil {
		return 0, false, err
	}
	defer cursor.Close()

	var ids []int64
	for cursor.Next() {
		values, err := cursor.Values()
		if err != nil {
			return 0, false, err
		}
		ids = append(ids, values[0].(int64))
	}
	if err := cursor.Err(); err != nil {
		return 0, false, err
	}

	switch len(ids) {
	case 0:
		r.logger.Debug("no example match", zap.Stringer("object", obj), zap.Strings("fields", fields))
		return 0, false, nil
	case 1:
		r.logger.Debug("example match",
			zap.Stringer("object", obj),
			zap.Strings("fields", fields),
			zap.Int64("id", ids[0]))
		return ids[0], true, nil
	default:
		return 0, false, fmt.Errorf("%w: %s matches rows %d and %d on %v",
			ErrAmbiguousMatch, obj.Class().Name, ids[0], ids[1], []string(fields))
	}
}
