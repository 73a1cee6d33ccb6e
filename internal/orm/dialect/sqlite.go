package dialect

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
)

// SQLite renders statements for SQLite
type SQLite struct{}

var (
	sqliteScanLine  = regexp.MustCompile(`^(SCAN|SEARCH)\s+(?:TABLE\s+)?(\S+)(?:\s+AS\s+(\S+))?(?:\s+USING\s+(.*))?`)
	sqliteIndexName = regexp.MustCompile(`INDEX\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// Name returns "sqlite"
func (SQLite) Name() string { return "sqlite" }

// Placeholder returns ?
func (SQLite) Placeholder(int) string { return "?" }

// Quote quotes an identifier with double quotes
func (SQLite) Quote(identifier string) string { return quoteDouble(identifier) }

// Window renders LIMIT/OFFSET. SQLite has no LIMIT ALL, a negative limit means no limit.
func (SQLite) Window(startRow, maxRows int, bind func(interface{}) string) string {
	limit := bind(maxRows)
	return fmt.Sprintf("LIMIT %s OFFSET %s", limit, bind(startRow))
}

// ExplainSQL returns EXPLAIN QUERY PLAN, which plans without executing
func (SQLite) ExplainSQL(query string) string {
	return "EXPLAIN QUERY PLAN " + query
}

// ParsePlan reads EXPLAIN QUERY PLAN rows (id, parent, notused, detail).
// SQLite gives no row estimates, so EstimatedRows is -1 throughout.
func (SQLite) ParsePlan(rows *sql.Rows) (*Plan, error) {
	plan := &Plan{EstimatedRows: -1}
	var raw []string

	for rows.Next() {
		var id, parent, notused int64
		var detail string
		if err := rows.Scan(&id, &parent, &notused, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		raw = append(raw, detail)

		m := sqliteScanLine.FindStringSubmatch(detail)
		if m == nil {
			continue
		}
		access := SourceAccess{
			Alias:         m[2],
			Table:         m[2],
			Method:        m[1],
			EstimatedRows: -1,
		}
		if m[3] != "" {
			access.Alias = m[3]
		}
		if m[4] != "" {
			access.Method += " USING " + m[4]
			if idx := sqliteIndexName.FindStringSubmatch(m[4]); idx != nil {
				access.Index = idx[1]
			}
		}
		plan.Sources = append(plan.Sources, access)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("engine returned an empty plan")
	}

	plan.Raw = strings.Join(raw, "\n")
	return plan, nil
}
