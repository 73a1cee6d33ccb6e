// Package skeleton reconciles an object with the store before it is written for
// the sake of an object that references it.
//
// An object with no equal-by-example row is inserted with just the fields it has,
// possibly as a skeleton. An object matching a stored row fills that row's NULL
// columns and never overwrites a stored value: the first write of a field wins.
package skeleton

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/crud"
	"github.com/conduit-lang/objectstore/internal/orm/identity"
	"github.com/conduit-lang/objectstore/internal/orm/object"
	"github.com/conduit-lang/objectstore/internal/orm/schema"
	"github.com/conduit-lang/objectstore/internal/orm/tracking"
)

// Outcome reports what reconciling one object did
type Outcome struct {
	ID       int64
	IsNewRow bool
	// Filled names the fields written into NULL columns of an existing row
	Filled []string
	// Kept names the fields whose stored value differed and was kept
	Kept []string
}

// Merger reconciles objects against stored rows
type Merger struct {
	resolver *identity.Resolver
	rows     *crud.Rows
	logger   *zap.Logger
}

// NewMerger creates a merger. Resolver and rows must share a transaction.
func NewMerger(resolver *identity.Resolver, rows *crud.Rows, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{resolver: resolver, rows: rows, logger: logger}
}

// Reconcile finds the row equal-by-example to candidate, filling its NULL columns, or
// inserts a new row. The candidate is given the resulting identity.
func (m *Merger) Reconcile(ctx context.Context, candidate *object.Object, fields object.ExampleFields) (Outcome, error) {
	id, found, err := m.resolver.FindByExample(ctx, candidate, fields)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		return m.Insert(ctx, candidate)
	}
	return m.merge(ctx, candidate, id)
}

// Insert writes candidate as a new row holding only its set fields
func (m *Merger) Insert(ctx context.Context, candidate *object.Object) (Outcome, error) {
	class := candidate.Class()
	id, err := m.rows.Insert(ctx, class, candidate.Values())
	if err != nil {
		return Outcome{}, err
	}
	if err := candidate.SetIdentity(id); err != nil {
		return Outcome{}, err
	}
	return Outcome{ID: id, IsNewRow: true}, nil
}

// FillByIdentity merges a candidate that already holds an identity into its row
func (m *Merger) FillByIdentity(ctx context.Context, candidate *object.Object) (Outcome, error) {
	id, ok := candidate.Identity()
	if !ok {
		return Outcome{}, fmt.Errorf("%s has no identity", candidate)
	}
	return m.merge(ctx, candidate, id)
}

func (m *Merger) merge(ctx context.Context, candidate *object.Object, id int64) (Outcome, error) {
	class := candidate.Class()
	stored, err := m.rows.Load(ctx, class, id)
	if err != nil {
		return Outcome{}, err
	}

	tracker := tracking.NewChangeTracker(stored, candidate.Values())
	fill := tracker.FillSet()
	if len(fill) > 0 {
		if err := m.rows.FillNulls(ctx, class, id, fill); err != nil {
			return Outcome{}, err
		}
		tracker.Reset()
	}
	if err := candidate.SetIdentity(id); err != nil {
		return Outcome{}, err
	}

	outcome := Outcome{
		ID:     id,
		Filled: memberNames(class, keys(fill)),
		Kept:   memberNames(class, tracker.Conflicts()),
	}
	if len(outcome.Kept) > 0 {
		m.logger.Debug("kept stored values",
			zap.Stringer("object", candidate),
			zap.Strings("fields", outcome.Kept))
	}
	return outcome, nil
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// memberNames maps column names back to field and reference names in declaration order
func memberNames(class *schema.ClassSchema, columns []string) []string {
	if len(columns) == 0 {
		return nil
	}
	want := make(map[string]bool, len(columns))
	for _, c := range columns {
		want[c] = true
	}

	var names []string
	for _, f := range class.Fields {
		if want[f.Column] {
			names = append(names, f.Name)
		}
	}
	for _, ref := range class.References {
		if want[ref.Column] {
			names = append(names, ref.Name)
		}
	}
	return names
}
