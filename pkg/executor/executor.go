// Package executor runs validated SQL against the read-only business store
// and exposes schema metadata for prompt construction.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Result holds the outcome of one SQL execution. It is never mutated after
// creation.
type Result struct {
	SQL       string           `json:"sql"`
	Success   bool             `json:"success"`
	Columns   []string         `json:"columns,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
	Count     int              `json:"count"`
	Truncated bool             `json:"truncated,omitempty"`
	Error     string           `json:"error,omitempty"`
	Duration  time.Duration    `json:"duration"`
}

// Querier executes SQL queries against the underlying store.
type Querier interface {
	// Query executes a single SQL statement. Store-level failures (bad
	// identifier, type mismatch, timeout) are reported inside the Result,
	// not as an error; the error return is reserved for context
	// cancellation.
	Query(ctx context.Context, sql string) (Result, error)
}

// SchemaFetcher retrieves a formatted description of the database schema.
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) (string, error)
}

// FormatResult renders a result for inclusion in a prompt. Output is capped
// at maxDisplayRows rows; floats are rounded so the model does not choke on
// long decimals.
func FormatResult(res Result) string {
	if !res.Success {
		return fmt.Sprintf("Error: %s", res.Error)
	}
	if res.Count == 0 {
		return "Query returned no results."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Columns: %s\n", strings.Join(res.Columns, ", ")))
	sb.WriteString(fmt.Sprintf("Rows (%d total):\n", res.Count))

	display := min(res.Count, maxDisplayRows)
	for i := 0; i < display && i < len(res.Rows); i++ {
		values := make([]string, len(res.Columns))
		for j, col := range res.Columns {
			values[j] = formatValue(res.Rows[i][col])
		}
		sb.WriteString(strings.Join(values, " | ") + "\n")
	}
	if res.Count > maxDisplayRows {
		sb.WriteString(fmt.Sprintf("... and %d more rows\n", res.Count-maxDisplayRows))
	}
	if res.Truncated {
		sb.WriteString("(result truncated at the row ceiling)\n")
	}
	return sb.String()
}

const maxDisplayRows = 50

// formatValue renders a single cell for prompt display.
func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%.2f", val)
	case float32:
		if val == float32(int32(val)) {
			return fmt.Sprintf("%.0f", val)
		}
		return fmt.Sprintf("%.2f", val)
	case nil:
		return ""
	default:
		s := fmt.Sprintf("%v", v)
		if len(s) > 100 {
			s = s[:97] + "..."
		}
		return s
	}
}
