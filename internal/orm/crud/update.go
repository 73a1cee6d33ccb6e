package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// UpdateColumns overwrites the given columns of the row with the given identity
func (r *Rows) UpdateColumns(ctx context.Context, class *schema.ClassSchema, id int64, values map[string]interface{}) error {
	return r.update(ctx, class, id, values, false)
}

// FillNulls sets the given columns only where the stored value is NULL.
// Columns that already hold a value are left as they are.
func (r *Rows) FillNulls(ctx context.Context, class *schema.ClassSchema, id int64, values map[string]interface{}) error {
	return r.update(ctx, class, id, values, true)
}

func (r *Rows) update(ctx context.Context, class *schema.ClassSchema, id int64, values map[string]interface{}, fill bool) error {
	names, args, err := orderedValues(class, values)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return nil
	}

	q := r.dialect.Quote
	setClauses := make([]string, len(names))
	for i, name := range names {
		placeholder := r.dialect.Placeholder(i + 1)
		if fill {
			setClauses[i] = fmt.Sprintf("%s = COALESCE(%s, %s)", q(name), q(name), placeholder)
		} else {
			setClauses[i] = fmt.Sprintf("%s = %s", q(name), placeholder)
		}
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		q(class.TableName),
		strings.Join(setClauses, ", "),
		q(class.IdentityColumn()),
		r.dialect.Placeholder(len(args)),
	)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s#%d: %w", class.Name, id, ConvertDBError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s#%d", ErrNotFound, class.Name, id)
	}

	r.logger.Debug("updated row",
		zap.String("class", class.Name),
		zap.Int64("id", id),
		zap.Strings("columns", names),
		zap.Bool("fill_nulls", fill))
	return nil
}
