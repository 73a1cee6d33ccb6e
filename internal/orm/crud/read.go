package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/objectstore/internal/orm/schema"
)

// Load reads the row with the given identity. The result holds every column,
// NULL columns with a nil value.
func (r *Rows) Load(ctx context.Context, class *schema.ClassSchema, id int64) (map[string]interface{}, error) {
	cols := columns(class)
	quoted := make([]string, len(cols))
	for i, col := range cols {
		quoted[i] = r.dialect.Quote(col.name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(quoted, ", "),
		r.dialect.Quote(class.TableName),
		r.dialect.Quote(class.IdentityColumn()),
		r.dialect.Placeholder(1),
	)

	record, err := scanRowWithColumns(r.db.QueryRowContext(ctx, query, id), cols)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s#%d: %w", class.Name, id, ConvertDBError(err))
	}
	return record, nil
}

// Exists returns true if a row with the given identity exists
func (r *Rows) Exists(ctx context.Context, class *schema.ClassSchema, id int64) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s",
		r.dialect.Quote(class.TableName),
		r.dialect.Quote(class.IdentityColumn()),
		r.dialect.Placeholder(1),
	)

	var one int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&one)
	if err != nil {
		if IsNotFound(ConvertDBError(err)) {
			return false, nil
		}
		return false, fmt.Errorf("failed to probe %s#%d: %w", class.Name, id, err)
	}
	return true, nil
}
