package analytics

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
)

// Scope restricts what the agent may see: one table plus a few sample rows
// for schema context.
type Scope struct {
	Table      string
	SampleRows int
	// Notes are extra facts about the table handed to the model.
	Notes string
}

// Column is one column of a table description.
type Column struct {
	Name string
	Type string
}

// TableInfo describes a table for the model.
type TableInfo struct {
	Name    string
	Columns []Column
	Sample  Table
}

// String renders the description as a CREATE TABLE statement followed by
// the sample rows.
func (ti TableInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", ti.Name)
	for i, c := range ti.Columns {
		sep := ","
		if i == len(ti.Columns)-1 {
			sep = ""
		}
		fmt.Fprintf(&b, "\t%s %s%s\n", c.Name, c.Type, sep)
	}
	b.WriteString(")\n")
	if len(ti.Sample.Rows) > 0 {
		fmt.Fprintf(&b, "\n/*\n%d rows from %s table:\n%s*/\n", len(ti.Sample.Rows), ti.Name, ti.Sample.String())
	}
	return b.String()
}

// Table is a query result with every value rendered as text.
type Table struct {
	Columns   []string
	Rows      [][]string
	Truncated bool
}

// String renders the table as tab-aligned text.
func (t Table) String() string {
	if len(t.Columns) == 0 {
		return ""
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
	if t.Truncated {
		fmt.Fprintf(&b, "(showing first %d rows)\n", len(t.Rows))
	}
	return b.String()
}

// Source is read-only access to the datastore for the agent.
type Source interface {
	// Dialect names the SQL dialect, e.g. "sqlite" or "postgres".
	Dialect() string
	TableInfo(ctx context.Context, table string, sampleRows int) (TableInfo, error)
	// QueryReadOnly runs query on a connection that cannot write, returning
	// at most maxRows rows.
	QueryReadOnly(ctx context.Context, query string, maxRows int) (Table, error)
}
