package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/conduit-lang/objectstore/internal/orm/query"
)

// NullText is how a NULL cell is rendered
const NullText = "NULL"

// FormatValue renders one result value as a table cell
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return NullText
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}

// RenderRows drains a cursor into a table headed by the column names.
// It returns the number of rows rendered.
func RenderRows(w io.Writer, cursor *query.Cursor) (int, error) {
	table := tablewriter.NewWriter(w)
	headers := make([]interface{}, cursor.ColumnCount())
	for i := range headers {
		headers[i] = cursor.ColumnName(i)
	}
	table.Header(headers...)

	n := 0
	for cursor.Next() {
		values, err := cursor.Values()
		if err != nil {
			return n, err
		}
		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = FormatValue(v)
		}
		if err := table.Append(cells...); err != nil {
			return n, err
		}
		n++
	}
	if err := cursor.Err(); err != nil {
		return n, err
	}
	return n, table.Render()
}

// RenderPlan writes one table row per source of a plan
func RenderPlan(w io.Writer, plan *query.Plan) error {
	table := tablewriter.NewWriter(w)
	table.Header("Alias", "Table", "Method", "Index", "Rows")
	for _, src := range plan.Sources {
		rows := "?"
		if src.EstimatedRows >= 0 {
			rows = fmt.Sprint(src.EstimatedRows)
		}
		if err := table.Append(src.Alias, src.Table, src.Method, src.Index, rows); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	if plan.EstimatedRows >= 0 {
		fmt.Fprintf(w, "estimated rows: %d, cost: %.2f..%.2f\n", plan.EstimatedRows, plan.StartupCost, plan.TotalCost)
	}
	return nil
}

// RenderKeyValues renders a two-column key-value table
func RenderKeyValues(w io.Writer, pairs [][2]string) error {
	table := tablewriter.NewWriter(w)
	table.Header("Key", "Value")
	for _, pair := range pairs {
		if err := table.Append(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return table.Render()
}
