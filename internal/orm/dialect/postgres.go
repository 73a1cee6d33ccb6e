package dialect

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// Postgres renders statements for PostgreSQL
type Postgres struct{}

// Name returns "postgres"
func (Postgres) Name() string { return "postgres" }

// Placeholder returns $n
func (Postgres) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

// Quote quotes an identifier with pq.QuoteIdentifier
func (Postgres) Quote(identifier string) string { return pq.QuoteIdentifier(identifier) }

// Window renders LIMIT/OFFSET, using LIMIT ALL for an unbounded window
func (Postgres) Window(startRow, maxRows int, bind func(interface{}) string) string {
	if maxRows == Unbounded {
		return "LIMIT ALL OFFSET " + bind(startRow)
	}
	limit := bind(maxRows)
	return fmt.Sprintf("LIMIT %s OFFSET %s", limit, bind(startRow))
}

// ExplainSQL returns EXPLAIN (FORMAT JSON), which plans without executing
func (Postgres) ExplainSQL(query string) string {
	return "EXPLAIN (FORMAT JSON) " + query
}

// ParsePlan decodes the single JSON document returned by EXPLAIN (FORMAT JSON)
func (Postgres) ParsePlan(rows *sql.Rows) (*Plan, error) {
	var raw string
	for rows.Next() {
		var chunk string
		if err := rows.Scan(&chunk); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		raw += chunk
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, fmt.Errorf("engine returned an empty plan")
	}

	var doc []struct {
		Plan map[string]interface{} `json:"Plan"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if len(doc) == 0 || doc[0].Plan == nil {
		return nil, fmt.Errorf("plan document has no root node")
	}

	root := doc[0].Plan
	plan := &Plan{
		EstimatedRows: int64(number(root["Plan Rows"])),
		StartupCost:   number(root["Startup Cost"]),
		TotalCost:     number(root["Total Cost"]),
		Raw:           raw,
	}
	walkPostgresNode(root, plan)
	return plan, nil
}

func walkPostgresNode(node map[string]interface{}, plan *Plan) {
	if alias, ok := node["Alias"].(string); ok {
		table, _ := node["Relation Name"].(string)
		method, _ := node["Node Type"].(string)
		index, _ := node["Index Name"].(string)
		plan.Sources = append(plan.Sources, SourceAccess{
			Alias:         alias,
			Table:         table,
			Method:        method,
			Index:         index,
			EstimatedRows: int64(number(node["Plan Rows"])),
		})
	}
	children, _ := node["Plans"].([]interface{})
	for _, child := range children {
		if m, ok := child.(map[string]interface{}); ok {
			walkPostgresNode(m, plan)
		}
	}
}

func number(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
