package store

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"smartlibrary/internal/analytics"
	"smartlibrary/internal/catalog"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdent(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("store: invalid table name %q", name)
	}
	return nil
}

// likePattern builds a case-folded substring pattern for LIKE ... ESCAPE '\'.
func likePattern(filter string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(filter)) + "%"
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseLoanDates(l *catalog.Loan, borrowedAt, dueDate string) {
	if t, err := time.Parse(time.RFC3339, borrowedAt); err == nil {
		l.BorrowedAt = t
	}
	if t, err := time.Parse(catalog.DateLayout, dueDate); err == nil {
		l.DueDate = t
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

func scanTable(rows *sql.Rows, maxRows int) (analytics.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return analytics.Table{}, err
	}
	out := analytics.Table{Columns: cols}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if maxRows > 0 && len(out.Rows) == maxRows {
			out.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return analytics.Table{}, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}
