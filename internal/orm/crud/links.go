package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// LinkExists returns true if the join table of a many-to-many collection already
// holds the (owner, element) pair
func (r *Rows) LinkExists(ctx context.Context, coll *schema.Collection, ownerID, elemID int64) (bool, error) {
	q := r.dialect.Quote
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = %s AND %s = %s",
		q(coll.JoinTable),
		q(coll.ForeignKey), r.dialect.Placeholder(1),
		q(coll.AssociationKey), r.dialect.Placeholder(2),
	)

	var n int64
	if err := r.db.QueryRowContext(ctx, query, ownerID, elemID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to probe %s: %w", coll.JoinTable, ConvertDBError(err))
	}
	return n > 0, nil
}

// InsertLink writes one join row of a many-to-many collection
func (r *Rows) InsertLink(ctx context.Context, coll *schema.Collection, ownerID, elemID int64) error {
	q := r.dialect.Quote
	query := fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (%s, %s)",
		q(coll.JoinTable),
		q(coll.ForeignKey), q(coll.AssociationKey),
		r.dialect.Placeholder(1), r.dialect.Placeholder(2),
	)

	if _, err := r.db.ExecContext(ctx, query, ownerID, elemID); err != nil {
		return fmt.Errorf("failed to link %s: %w", coll.JoinTable, ConvertDBError(err))
	}

	r.logger.Debug("linked rows",
		zap.String("join_table", coll.JoinTable),
		zap.Int64(coll.ForeignKey, ownerID),
		zap.Int64(coll.AssociationKey, elemID))
	return nil
}

// Linked returns the element identities a many-to-many collection holds for an owner
func (r *Rows) Linked(ctx context.Context, coll *schema.Collection, ownerID int64) ([]int64, error) {
	q := r.dialect.Quote
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		q(coll.AssociationKey),
		q(coll.JoinTable),
		q(coll.ForeignKey), r.dialect.Placeholder(1),
		q(coll.AssociationKey),
	)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", coll.JoinTable, ConvertDBError(err))
	}
	ids, err := scanIdentities(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", coll.JoinTable, err)
	}
	return ids, nil
}

// Referencing returns the identities of rows whose reference column holds the owner identity.
// It reads the elements of a one-to-many collection.
func (r *Rows) Referencing(ctx context.Context, class *schema.ClassSchema, ref *schema.Reference, ownerID int64) ([]int64, error) {
	q := r.dialect.Quote
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s ORDER BY %s",
		q(class.IdentityColumn()),
		q(class.TableName),
		q(ref.Column), r.dialect.Placeholder(1),
		q(class.IdentityColumn()),
	)

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", class.Name, ref.Name, ConvertDBError(err))
	}
	ids, err := scanIdentities(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s.%s: %w", class.Name, ref.Name, err)
	}
	return ids, nil
}
