package sqlcheck

import (
	"fmt"
	"regexp"
	"strings"
)

// Diagnosis is a structured reading of a store error message. It is folded
// into the error feedback for the next generation turn so the model gets a
// fix strategy instead of a raw driver string.
type Diagnosis struct {
	ErrorType   string
	Summary     string
	RootCause   string
	FixStrategy string
	NextStep    string
}

// Feedback renders the diagnosis as error feedback for the model.
func (d Diagnosis) Feedback(sql string) string {
	var sb strings.Builder
	sb.WriteString("The previous SQL failed to execute.\n")
	sb.WriteString(fmt.Sprintf("SQL: %s\n", sql))
	sb.WriteString(fmt.Sprintf("Problem: %s\n", d.Summary))
	sb.WriteString(fmt.Sprintf("Likely cause: %s\n", d.RootCause))
	sb.WriteString(fmt.Sprintf("Fix: %s\n", d.FixStrategy))
	sb.WriteString(d.NextStep)
	return sb.String()
}

var (
	relationRe = regexp.MustCompile(`relation "(\w+)" does not exist`)
	columnRe   = regexp.MustCompile(`column "?([\w.]+)"? does not exist`)
)

// DiagnoseExecutionError classifies a database error message and suggests a
// recovery strategy for the next generated query.
func DiagnoseExecutionError(sql, dbError string) Diagnosis {
	lower := strings.ToLower(dbError)

	switch {
	case strings.Contains(lower, "set-returning functions are not allowed in where"):
		return Diagnosis{
			ErrorType:   "set_returning_in_where",
			Summary:     "a set-returning function such as generate_series was used directly in WHERE",
			RootCause:   "Postgres forbids set-returning functions in WHERE and HAVING clauses",
			FixStrategy: "move the function into a CTE (WITH clause) or the FROM clause and reference its output",
			NextStep:    "Regenerate the SQL with the set-returning function moved into a CTE.",
		}
	case strings.Contains(lower, "relation") && strings.Contains(lower, "does not exist"):
		table := "unknown"
		if m := relationRe.FindStringSubmatch(dbError); m != nil {
			table = m[1]
		}
		return Diagnosis{
			ErrorType:   "table_not_found",
			Summary:     fmt.Sprintf("table %q does not exist", table),
			RootCause:   "the table name does not match the schema",
			FixStrategy: "check the schema description and use the exact table name",
			NextStep:    fmt.Sprintf("Regenerate the SQL with a table name from the schema (you used %q).", table),
		}
	case strings.Contains(lower, "column") && strings.Contains(lower, "does not exist"):
		column := "unknown"
		if m := columnRe.FindStringSubmatch(dbError); m != nil {
			column = m[1]
		}
		return Diagnosis{
			ErrorType:   "column_not_found",
			Summary:     fmt.Sprintf("column %q does not exist", column),
			RootCause:   "the column name does not match the table definition",
			FixStrategy: "check the schema description and use the exact column name",
			NextStep:    fmt.Sprintf("Regenerate the SQL with a column name from the schema (you used %q).", column),
		}
	case strings.Contains(lower, "syntax error"):
		return Diagnosis{
			ErrorType:   "syntax_error",
			Summary:     "the statement is not valid Postgres SQL",
			RootCause:   "keyword spelling, parenthesis matching, or comma placement is wrong",
			FixStrategy: "re-read the statement and correct the syntax",
			NextStep:    "Regenerate the SQL with the syntax corrected.",
		}
	case strings.Contains(lower, "must appear in the group by"):
		return Diagnosis{
			ErrorType:   "group_by_error",
			Summary:     "a selected column is missing from GROUP BY",
			RootCause:   "every non-aggregated column in SELECT must appear in GROUP BY",
			FixStrategy: "add the column to GROUP BY or wrap it in an aggregate function",
			NextStep:    "Regenerate the SQL with a consistent GROUP BY clause.",
		}
	case strings.Contains(lower, "timed out") || strings.Contains(lower, "canceling statement"):
		return Diagnosis{
			ErrorType:   "timeout",
			Summary:     "the query exceeded the statement timeout",
			RootCause:   "the query scans or joins too much data",
			FixStrategy: "narrow the time range or add a more selective filter",
			NextStep:    "Regenerate a cheaper query that answers the same question.",
		}
	default:
		return Diagnosis{
			ErrorType:   "unknown_error",
			Summary:     "the database rejected the statement",
			RootCause:   dbError,
			FixStrategy: "analyze the error message and correct the SQL",
			NextStep:    "Regenerate the SQL taking the error message into account.",
		}
	}
}
