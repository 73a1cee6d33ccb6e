// Package writer stores object graphs.
//
// Store walks a root object depth first. Referenced objects are written before the
// rows that point to them, collection elements after their owner, and join rows
// last, once both ends hold identities. Every object except the root is reconciled
// against the store by example, so storing equal graphs twice adds no rows.
package writer

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
	"github.com/conduit-lang/objectstore/internal/orm/identity"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/query"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/skeleton"
	"github.com/conduit-lang/objectstore/internal/orm/transaction"
)

// Options configures one Store call
type Options struct {
	// Examples gives the distinguishing fields per class for every non-root object
	Examples object.Policy
	// DedupRoot reconciles the root by example too, instead of always writing it
	DedupRoot bool
}

// Result summarizes one Store call
type Result struct {
	Inserted  int
	Updated   int
	Merged    int
	Untouched int
	Links     int
	// Objects lists every object written, in write order
	Objects []*object.Object
}

// Writer stores object graphs through a transaction manager
type Writer struct {
	registry  *schema.Registry
	dialect   dialect.Dialect
	compiler  *query.Compiler
	txManager *transaction.Manager
	logger    *zap.Logger
	queryOpts []query.ExecutorOption
}

// Option configures a Writer
type Option func(*Writer)

// WithExecutorOptions applies options to the executor used for example lookups
func WithExecutorOptions(opts ...query.ExecutorOption) Option {
	return func(w *Writer) { w.queryOpts = append(w.queryOpts, opts...) }
}

// New creates a writer
func New(registry *schema.Registry, d dialect.Dialect, txManager *transaction.Manager, logger *zap.Logger, opts ...Option) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Writer{
		registry:  registry,
		dialect:   d,
		compiler:  query.NewCompiler(d, registry, logger),
		txManager: txManager,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Store writes root and every object reachable from it in one transaction.
// On failure nothing is written and identities assigned during the call are cleared.
func (w *Writer) Store(ctx context.Context, root *object.Object, opts Options) (Result, error) {
	return w.StoreAll(ctx, []*object.Object{root}, opts)
}

// StoreAll writes several roots in one transaction, each as Store would
func (w *Writer) StoreAll(ctx context.Context, roots []*object.Object, opts Options) (Result, error) {
	var call *storeCall

	err := w.txManager.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx) error {
		call = w.newCall(tx, opts)
		for _, root := range roots {
			if root == nil {
				return fmt.Errorf("cannot store a nil object")
			}
			if err := call.ensure(ctx, root, true); err != nil {
				return err
			}
		}
		if err := call.flushDeferred(ctx); err != nil {
			return err
		}
		return call.flushLinks(ctx)
	})
	if err != nil {
		if call != nil {
			call.clearAssigned()
		}
		return Result{}, query.ContextError(err)
	}

	w.logger.Debug("stored graph",
		zap.Int("roots", len(roots)),
		zap.Int("inserted", call.result.Inserted),
		zap.Int("updated", call.result.Updated),
		zap.Int("merged", call.result.Merged),
		zap.Int("untouched", call.result.Untouched),
		zap.Int("links", call.result.Links))
	return call.result, nil
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	written
)

// deferredRef is a reference whose target had no identity when its owner was written
type deferredRef struct {
	owner  *object.Object
	ref    *schema.Reference
	target *object.Object
}

type pendingLink struct {
	owner *object.Object
	coll  *schema.Collection
	elem  *object.Object
}

// storeCall is the state of one Store call. Objects are tracked by temporary key.
type storeCall struct {
	opts     Options
	rows     *crud.Rows
	merger   *skeleton.Merger
	logger   *zap.Logger
	state    map[uuid.UUID]visitState
	assigned []*object.Object
	deferred []deferredRef
	links    []pendingLink
	result   Result
}

func (w *Writer) newCall(tx *sql.Tx, opts Options) *storeCall {
	rows := crud.NewRows(tx, w.dialect, w.logger)
	resolver := identity.NewResolver(w.compiler, query.NewExecutor(tx, w.logger, w.queryOpts...), w.logger)
	return &storeCall{
		opts:   opts,
		rows:   rows,
		merger: skeleton.NewMerger(resolver, rows, w.logger),
		logger: w.logger,
		state:  make(map[uuid.UUID]visitState),
	}
}

// ensure writes obj after its references and before its collections. An object already
// being written further up the stack is left to that frame.
func (c *storeCall) ensure(ctx context.Context, obj *object.Object, isRoot bool) error {
	if c.state[obj.Key()] != unvisited {
		return nil
	}
	c.state[obj.Key()] = visiting

	class := obj.Class()
	for _, ref := range class.References {
		target := obj.Ref(ref.Name)
		if target == nil {
			continue
		}
		if err := c.ensure(ctx, target, false); err != nil {
			return err
		}
		if !target.HasIdentity() {
			c.deferred = append(c.deferred, deferredRef{owner: obj, ref: ref, target: target})
		}
	}

	hadIdentity := obj.HasIdentity()
	if err := c.write(ctx, obj, isRoot); err != nil {
		return err
	}
	if !hadIdentity {
		c.assigned = append(c.assigned, obj)
	}
	c.state[obj.Key()] = written
	c.result.Objects = append(c.result.Objects, obj)

	for _, coll := range class.Collections {
		for _, elem := range obj.Collection(coll.Name) {
			if err := c.collect(ctx, obj, coll, elem); err != nil {
				return err
			}
		}
	}
	return nil
}

// collect writes one collection element of an owner that already holds an identity
func (c *storeCall) collect(ctx context.Context, owner *object.Object, coll *schema.Collection, elem *object.Object) error {
	if coll.Kind == schema.ManyToMany {
		if err := c.ensure(ctx, elem, false); err != nil {
			return err
		}
		c.links = append(c.links, pendingLink{owner: owner, coll: coll, elem: elem})
		return nil
	}

	if elem.Ref(coll.Reverse) == nil {
		if err := elem.SetRef(coll.Reverse, owner); err != nil {
			return fmt.Errorf("failed to point %s back to %s: %w", elem, owner, err)
		}
		if c.state[elem.Key()] == written {
			reverse, _ := elem.Class().Reference(coll.Reverse)
			c.deferred = append(c.deferred, deferredRef{owner: elem, ref: reverse, target: owner})
		}
	}
	return c.ensure(ctx, elem, false)
}

// write stores a single row. The root is authoritative unless DedupRoot is set;
// every other object is merged into its equal-by-example row.
func (c *storeCall) write(ctx context.Context, obj *object.Object, isRoot bool) error {
	class := obj.Class()

	if isRoot && !c.opts.DedupRoot {
		if id, ok := obj.Identity(); ok {
			if err := c.rows.UpdateColumns(ctx, class, id, obj.Values()); err != nil {
				return err
			}
			c.result.Updated++
			return nil
		}
		if _, err := c.merger.Insert(ctx, obj); err != nil {
			return err
		}
		c.result.Inserted++
		return nil
	}

	var outcome skeleton.Outcome
	var err error
	if obj.HasIdentity() {
		outcome, err = c.merger.FillByIdentity(ctx, obj)
	} else {
		fields, ok := c.opts.Examples.For(class)
		if !ok {
			return fmt.Errorf("%w: no example fields for class %s, needed to store %s",
				query.ErrQueryCompile, class.Name, obj)
		}
		outcome, err = c.merger.Reconcile(ctx, obj, fields)
	}
	if err != nil {
		return err
	}

	switch {
	case outcome.IsNewRow:
		c.result.Inserted++
	case len(outcome.Filled) > 0:
		c.result.Merged++
	default:
		c.result.Untouched++
	}
	c.logger.Debug("reconciled object",
		zap.Stringer("object", obj),
		zap.Bool("new_row", outcome.IsNewRow),
		zap.Strings("filled", outcome.Filled))
	return nil
}

// flushDeferred fills the foreign keys left NULL for targets that were in flight
func (c *storeCall) flushDeferred(ctx context.Context) error {
	for _, d := range c.deferred {
		if d.owner.Ref(d.ref.Name) != d.target {
			continue
		}
		ownerID, ok := d.owner.Identity()
		if !ok {
			return fmt.Errorf("%s was never written", d.owner)
		}
		targetID, ok := d.target.Identity()
		if !ok {
			return fmt.Errorf("%s.%s points to %s, which was never written", d.owner, d.ref.Name, d.target)
		}
		err := c.rows.FillNulls(ctx, d.owner.Class(), ownerID, map[string]interface{}{d.ref.Column: targetID})
		if err != nil {
			return err
		}
	}
	return nil
}

// flushLinks writes each distinct join row once, skipping pairs already stored
func (c *storeCall) flushLinks(ctx context.Context) error {
	seen := make(map[string]bool, len(c.links))
	for _, l := range c.links {
		ownerID, _ := l.owner.Identity()
		elemID, _ := l.elem.Identity()

		key := linkKey(l.coll, ownerID, elemID)
		if seen[key] {
			continue
		}
		seen[key] = true

		exists, err := c.rows.LinkExists(ctx, l.coll, ownerID, elemID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if err := c.rows.InsertLink(ctx, l.coll, ownerID, elemID); err != nil {
			return err
		}
		c.result.Links++
	}
	return nil
}

// linkKey names a join row independently of which side declared the link
func linkKey(coll *schema.Collection, ownerID, elemID int64) string {
	a := fmt.Sprintf("%s=%d", coll.ForeignKey, ownerID)
	b := fmt.Sprintf("%s=%d", coll.AssociationKey, elemID)
	if b < a {
		a, b = b, a
	}
	return coll.JoinTable + "|" + a + "|" + b
}

func (c *storeCall) clearAssigned() {
	for _, obj := range c.assigned {
		obj.ClearIdentity()
	}
}
