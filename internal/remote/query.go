package remote

import (
	"context"
	"fmt"
	"strings"
)

// QueryResult holds the rows returned by a read-only query, in column order.
type QueryResult struct {
	Columns []string
	Rows    [][]interface{}
}

// RowCount returns the number of result rows.
func (r *QueryResult) RowCount() int {
	return len(r.Rows)
}

// Query executes a read-only SELECT statement against the store and returns
// the result set. Anything other than a SELECT is rejected before reaching
// the database.
func (db *DB) Query(ctx context.Context, stmt string) (*QueryResult, error) {
	trimmed := strings.TrimSpace(stmt)
	if !strings.HasPrefix(strings.ToLower(trimmed), "select") {
		return nil, fmt.Errorf("only SELECT statements are allowed (got %q)", firstWord(trimmed))
	}

	rows, err := db.conn.QueryContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	result := &QueryResult{Columns: cols}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result.Rows = append(result.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

func firstWord(s string) string {
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i]
	}
	return s
}
