package answer

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
)

var orderByRe = regexp.MustCompile(`(?i)ORDER\s+BY\s+([\w.]+)`)

// rankedRow pairs a display label with the ordering metric.
type rankedRow struct {
	label  string
	metric float64
	raw    map[string]any
}

// rankedListing recomputes the "top N" listing from the result rows. Rows
// are sorted by the metric descending; the walk fills N distinct rank
// positions and then keeps going while rows remain tied at the boundary
// value, so the listing may exceed N rows but never cuts a tie. Returns ""
// when the result does not support a ranking reading.
func rankedListing(in Input) string {
	n := analyzer.RequestedN(in.Question)
	if n <= 0 {
		n = 1 // "highest", "most" and similar superlatives
	}

	metricCol := metricColumn(in.SQL, in.Result)
	if metricCol == "" {
		return ""
	}
	labelCol := labelColumn(in.Result, metricCol)

	rows := make([]rankedRow, 0, len(in.Result.Rows))
	for _, r := range in.Result.Rows {
		v, ok := numeric(r[metricCol])
		if !ok {
			return ""
		}
		label := fmt.Sprintf("%v", r[labelCol])
		if labelCol == metricCol {
			label = ""
		}
		rows = append(rows, rankedRow{label: label, metric: v, raw: r})
	}
	if len(rows) == 0 {
		return ""
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].metric > rows[j].metric })

	// Walk distinct metric values until N rank positions are filled, then
	// absorb every row still tied at the boundary value.
	var selected []rankedRow
	positions := 0
	var lastMetric float64
	for i, r := range rows {
		if i == 0 || r.metric != lastMetric {
			if positions == n {
				break
			}
			positions++
			lastMetric = r.metric
		}
		selected = append(selected, r)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Top %d by %s", n, metricCol))
	if len(selected) > n {
		sb.WriteString(fmt.Sprintf(" (%d entries — ties at the boundary are included)", len(selected)))
	}
	sb.WriteString(":\n")

	rank := 0
	for i, r := range selected {
		if i == 0 || r.metric != selected[i-1].metric {
			rank = i + 1
		}
		if r.label != "" {
			sb.WriteString(fmt.Sprintf("%d. %s — %s\n", rank, r.label, formatMetric(r.metric)))
		} else {
			sb.WriteString(fmt.Sprintf("%d. %s\n", rank, formatMetric(r.metric)))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// metricColumn resolves the ordering column: the ORDER BY column when it is
// present in the result, otherwise the last numeric column.
func metricColumn(sql string, res *executor.Result) string {
	if m := orderByRe.FindStringSubmatch(sql); m != nil {
		col := m[1]
		if i := strings.LastIndex(col, "."); i >= 0 {
			col = col[i+1:]
		}
		for _, c := range res.Columns {
			if strings.EqualFold(c, col) {
				return c
			}
		}
	}
	for i := len(res.Columns) - 1; i >= 0; i-- {
		col := res.Columns[i]
		if len(res.Rows) > 0 {
			if _, ok := numeric(res.Rows[0][col]); ok {
				return col
			}
		}
	}
	return ""
}

// labelColumn picks the column used to name each ranked entry: the first
// column that is not the metric.
func labelColumn(res *executor.Result, metricCol string) string {
	for _, c := range res.Columns {
		if c != metricCol {
			return c
		}
	}
	return metricCol
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func formatMetric(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}
