package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Insert writes a new row holding exactly the given column values and returns the
// identity the store assigned to it
func (r *Rows) Insert(ctx context.Context, class *schema.ClassSchema, values map[string]interface{}) (int64, error) {
	names, args, err := orderedValues(class, values)
	if err != nil {
		return 0, err
	}

	q := r.dialect.Quote
	var query string
	if len(names) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s",
			q(class.TableName), q(class.IdentityColumn()))
	} else {
		quoted := make([]string, len(names))
		placeholders := make([]string, len(names))
		for i, name := range names {
			quoted[i] = q(name)
			placeholders[i] = r.dialect.Placeholder(i + 1)
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			q(class.TableName),
			strings.Join(quoted, ", "),
			strings.Join(placeholders, ", "),
			q(class.IdentityColumn()),
		)
	}

	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", class.Name, ConvertDBError(err))
	}

	r.logger.Debug("inserted row",
		zap.String("class", class.Name),
		zap.Int64("id", id),
		zap.Strings("columns", names))
	return id, nil
}
