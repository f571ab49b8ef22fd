package session

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/boardpilot/boardpilot/internal/remote"
)

// EncodeCSV renders a query result as CSV with a header row.
func EncodeCSV(result *remote.QueryResult) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(result.Columns); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(result.Columns))
	for _, row := range result.Rows {
		for i, v := range row {
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = fmt.Sprint(v)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}

	return buf.String(), nil
}
