package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiagnoseExecutionError(t *testing.T) {
	tests := []struct {
		name      string
		dbError   string
		errorType string
		summary   string
	}{
		{
			name:      "table not found",
			dbError:   `ERROR: relation "employes" does not exist (SQLSTATE 42P01)`,
			errorType: "table_not_found",
			summary:   `table "employes" does not exist`,
		},
		{
			name:      "column not found",
			dbError:   `ERROR: column "salery" does not exist (SQLSTATE 42703)`,
			errorType: "column_not_found",
			summary:   `column "salery" does not exist`,
		},
		{
			name:      "syntax error",
			dbError:   `ERROR: syntax error at or near "FORM" (SQLSTATE 42601)`,
			errorType: "syntax_error",
		},
		{
			name:      "group by",
			dbError:   `ERROR: column "employees.name" must appear in the GROUP BY clause or be used in an aggregate function`,
			errorType: "group_by_error",
		},
		{
			name:      "set returning in where",
			dbError:   `ERROR: set-returning functions are not allowed in WHERE (SQLSTATE 0A000)`,
			errorType: "set_returning_in_where",
		},
		{
			name:      "timeout",
			dbError:   "ERROR: canceling statement due to statement timeout",
			errorType: "timeout",
		},
		{
			name:      "unknown",
			dbError:   "ERROR: out of memory",
			errorType: "unknown_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DiagnoseExecutionError("SELECT 1", tt.dbError)
			assert.Equal(t, tt.errorType, d.ErrorType)
			if tt.summary != "" {
				assert.Equal(t, tt.summary, d.Summary)
			}
			assert.NotEmpty(t, d.FixStrategy)
			assert.NotEmpty(t, d.NextStep)
		})
	}
}

func TestDiagnosisFeedbackCarriesSQLAndStrategy(t *testing.T) {
	sql := "SELECT salery FROM employees"
	d := DiagnoseExecutionError(sql, `ERROR: column "salery" does not exist`)
	fb := d.Feedback(sql)

	assert.Contains(t, fb, sql)
	assert.Contains(t, fb, d.Summary)
	assert.Contains(t, fb, d.FixStrategy)
	assert.Contains(t, fb, d.NextStep)
}
