package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Delete removes the row with the given identity and every join row naming it.
// joins is the registry's join table list; tables not involving the class are skipped.
// Rows of other classes still referencing the row make this fail with ErrForeignKeyViolation.
func (r *Rows) Delete(ctx context.Context, class *schema.ClassSchema, id int64, joins []schema.JoinTable) error {
	q := r.dialect.Quote

	for _, jt := range joins {
		var cols []string
		if class.Covers(jt.OwnerClass) {
			cols = append(cols, jt.OwnerColumn)
		}
		if class.Covers(jt.TargetClass) {
			cols = append(cols, jt.TargetColumn)
		}
		for _, col := range cols {
			query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", q(jt.Name), q(col), r.dialect.Placeholder(1))
			if _, err := r.db.ExecContext(ctx, query, id); err != nil {
				return fmt.Errorf("failed to delete %s links of %s#%d: %w", jt.Name, class.Name, id, ConvertDBError(err))
			}
		}
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		q(class.TableName), q(class.IdentityColumn()), r.dialect.Placeholder(1))

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s#%d: %w", class.Name, id, ConvertDBError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s#%d", ErrNotFound, class.Name, id)
	}

	r.logger.Debug("deleted row", zap.String("class", class.Name), zap.Int64("id", id))
	return nil
}
