// Package dialect isolates the few engine differences the object store depends on:
// parameter placeholders, identifier quoting, row windows and explain plans.
// Only PostgreSQL and SQLite are supported.
package dialect

import (
	"database/sql"
	"fmt"
	"strings"
)

// Unbounded is the row window sentinel meaning "no row limit"
const Unbounded = -1

// Dialect describes how statements are rendered and explained for one engine
type Dialect interface {
	// Name returns the dialect name ("postgres" or "sqlite")
	Name() string

	// Placeholder returns the parameter marker for the n-th (1-based) argument
	Placeholder(n int) string

	// Quote quotes an identifier
	Quote(identifier string) string

	// Window renders a LIMIT/OFFSET clause. bind appends an argument and returns its placeholder.
	Window(startRow, maxRows int, bind func(interface{}) string) string

	// ExplainSQL wraps a SELECT statement in the engine's non-executing plan statement
	ExplainSQL(query string) string

	// ParsePlan reads the rows produced by ExplainSQL
	ParsePlan(rows *sql.Rows) (*Plan, error)
}

// ForDriver returns the dialect for a database/sql driver name
func ForDriver(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "pgx", "pgx/v5":
		return Postgres{}, nil
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Plan is a structured, non-executing description of how a statement would be evaluated
type Plan struct {
	// EstimatedRows is the engine's row estimate for the whole statement, -1 when unknown
	EstimatedRows int64
	StartupCost   float64
	TotalCost     float64

	// Sources lists the access method chosen for each relational source
	Sources []SourceAccess

	// Raw is the engine's plan output, unparsed
	Raw string
}

// SourceAccess describes how one source (table alias) is read
type SourceAccess struct {
	Alias         string
	Table         string
	Method        string
	Index         string
	EstimatedRows int64
}

// Source returns the access entry for an alias
func (p *Plan) Source(alias string) (SourceAccess, bool) {
	for _, s := range p.Sources {
		if strings.EqualFold(s.Alias, alias) {
			return s, true
		}
	}
	return SourceAccess{}, false
}

func quoteDouble(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
