package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/objectstore/internal/orm/dialect"
)

// Plan is a structured explain report
type Plan = dialect.Plan

// SourceAccess is the access method of one plan source
type SourceAccess = dialect.SourceAccess

// Querier is an interface for executing queries.
// *sql.DB, *sql.Conn and *sql.Tx all implement it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Observer receives the outcome of every execute and explain call
type Observer interface {
	ObserveQuery(op string, duration time.Duration, err error)
}

// Executor runs compiled statements against a store connection
type Executor struct {
	db       Querier
	logger   *zap.Logger
	observer Observer
	timeout  time.Duration
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithObserver reports execution outcomes to an observer
func WithObserver(o Observer) ExecutorOption {
	return func(e *Executor) { e.observer = o }
}

// WithTimeout applies a deadline to calls whose context has none
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an executor over a querier
func NewExecutor(db Querier, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{db: db, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		if _, ok := ctx.Deadline(); !ok {
			return context.WithTimeout(ctx, e.timeout)
		}
	}
	return ctx, func() {}
}

func (e *Executor) observe(op string, start time.Time, err error) {
	if e.observer != nil {
		e.observer.ObserveQuery(op, time.Since(start), err)
	}
}

// Execute runs a statement over the row window [startRow, startRow+maxRows) and returns
// an open cursor the caller must close. On error no cursor is left open.
func (e *Executor) Execute(ctx context.Context, stmt *Statement, startRow, maxRows int) (cursor *Cursor, err error) {
	start := time.Now()
	defer func() { e.observe("execute", start, err) }()

	if stmt == nil {
		return nil, compileError("nil statement")
	}
	query, args, err := stmt.Windowed(startRow, maxRows)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withDeadline(ctx)

	e.logger.Debug("executing query",
		zap.String("sql", query),
		zap.Int("start_row", startRow),
		zap.Int("max_rows", maxRows))

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = executionError(ctx, "query", err)
		cancel()
		return nil, err
	}

	columns, err := rows.Columns()
	if err != nil {
		err = executionError(ctx, "columns", err)
		rows.Close()
		cancel()
		return nil, err
	}
	if len(columns) != len(stmt.Columns) {
		rows.Close()
		cancel()
		return nil, fmt.Errorf("%w: engine returned %d columns, statement selects %d",
			ErrExecution, len(columns), len(stmt.Columns))
	}

	return newCursor(ctx, rows, stmt.Columns, cancel), nil
}

// Explain returns the engine's plan for a statement and window. The statement is
// planned, never executed. One source entry is reported per FROM alias.
func (e *Executor) Explain(ctx context.Context, stmt *Statement, startRow, maxRows int) (plan *Plan, err error) {
	start := time.Now()
	defer func() { e.observe("explain", start, err) }()

	if stmt == nil {
		return nil, compileError("nil statement")
	}
	if !strings.HasPrefix(strings.TrimSpace(strings.ToUpper(stmt.SQL)), "SELECT") {
		return nil, fmt.Errorf("%w: only SELECT statements can be explained", ErrExplainUnavailable)
	}
	query, args, err := stmt.Windowed(startRow, maxRows)
	if err != nil {
		return nil, err
	}

	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	explain := stmt.dialect.ExplainSQL(query)
	e.logger.Debug("explaining query", zap.String("sql", explain))

	rows, err := e.db.QueryContext(ctx, explain, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, executionError(ctx, "explain", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExplainUnavailable, err)
	}
	defer rows.Close()

	raw, err := stmt.dialect.ParsePlan(rows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, executionError(ctx, "explain", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrExplainUnavailable, err)
	}

	return alignSources(stmt, raw)
}

// alignSources orders the plan's sources by FROM alias, one entry per source
func alignSources(stmt *Statement, raw *Plan) (*Plan, error) {
	plan := *raw
	plan.Sources = make([]SourceAccess, 0, len(stmt.Sources))

	matched := 0
	for _, src := range stmt.Sources {
		access, ok := raw.Source(src.Alias)
		if ok {
			matched++
		} else {
			access = SourceAccess{Alias: src.Alias, Method: "UNKNOWN", EstimatedRows: -1}
		}
		access.Table = src.Table
		plan.Sources = append(plan.Sources, access)
	}
	if matched == 0 {
		return nil, fmt.Errorf("%w: plan names none of the statement's sources", ErrExplainUnavailable)
	}
	return &plan, nil
}
