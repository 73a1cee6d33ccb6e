package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectstore/internal/cli/document"
	"github.com/conduit-lang/objectstore/internal/cli/ui"
	"github.com/conduit-lang/objectstore/internal/orm/query"
)

var (
	queryFileFlag  string
	queryStartFlag int
	queryLimitFlag int
	querySQLFlag   bool
)

// NewQueryCommand creates the query command
func NewQueryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a query document and print a window of rows",
		Example: `  # Rows 10-19
  objectstore query --model model.yml --query departments.yml --start 10 --limit 10

  # Every row
  objectstore query --query departments.yml --limit -1`,
		RunE: withEnvironment(runQuery),
	}
	addQueryFlags(cmd)
	cmd.Flags().BoolVar(&querySQLFlag, "sql", false, "print the compiled SQL and arguments before the rows")
	return cmd
}

// NewExplainCommand creates the explain command
func NewExplainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "explain",
		Short:   "Show how the engine would evaluate a query document",
		Long:    `Print the plan of a query document for the given row window. The query is not executed.`,
		Example: `  objectstore explain --model model.yml --query departments.yml`,
		RunE:    withEnvironment(runExplain),
	}
	addQueryFlags(cmd)
	return cmd
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&queryFileFlag, "query", "", "query document (required)")
	cmd.Flags().IntVar(&queryStartFlag, "start", 0, "first row of the window, 0-based")
	cmd.Flags().IntVar(&queryLimitFlag, "limit", 0, "rows in the window, -1 for all (default query.default_max_rows)")
	cmd.MarkFlagRequired("query")
}

func (e *environment) window() (int, int) {
	limit := queryLimitFlag
	if limit == 0 {
		limit = e.cfg.Query.DefaultMaxRows
	}
	return queryStartFlag, limit
}

func loadQuery(env *environment) (*query.Query, error) {
	f, err := os.Open(queryFileFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to open query: %w", err)
	}
	defer f.Close()

	doc, err := document.DecodeQuery(f)
	if err != nil {
		return nil, err
	}
	return doc.Build(env.registry)
}

func runQuery(cmd *cobra.Command, env *environment) error {
	q, err := loadQuery(env)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, closeFn, err := env.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	stmt, err := s.Compile(q)
	if err != nil {
		return err
	}
	start, limit := env.window()

	out := cmd.OutOrStdout()
	if querySQLFlag {
		sql, args, err := stmt.Windowed(start, limit)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n%v\n", sql, args)
	}

	cursor, err := s.Execute(ctx, stmt, start, limit)
	if err != nil {
		return err
	}
	defer cursor.Close()

	n, err := ui.RenderRows(out, cursor)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d rows\n", n)
	return nil
}

func runExplain(cmd *cobra.Command, env *environment) error {
	q, err := loadQuery(env)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	s, closeFn, err := env.openSession(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	stmt, err := s.Compile(q)
	if err != nil {
		return err
	}
	start, limit := env.window()

	plan, err := s.Explain(ctx, stmt, start, limit)
	if err != nil {
		return err
	}
	return ui.RenderPlan(cmd.OutOrStdout(), plan)
}
