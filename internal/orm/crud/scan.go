package crud

import (
	"database/sql"
	"fmt"

	"github.com/conduit-lang/objectstore/internal/orm/object"
)

// scanRowWithColumns scans a single row with known column order, normalizing each
// value to its column type. NULL columns are present with a nil value.
func scanRowWithColumns(row *sql.Row, cols []column) (map[string]interface{}, error) {
	values := make([]interface{}, len(cols))
	valuePtrs := make([]interface{}, len(cols))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := row.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	record := make(map[string]interface{}, len(cols))
	for i, col := range cols {
		v, err := object.Normalize(col.spec, values[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.name, err)
		}
		record[col.name] = v
	}
	return record, nil
}

// scanIdentities scans a single-column result of identities
func scanIdentities(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
