package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parallaxlabs/erpquery/pkg/executor"
)

func newTestAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(Config{})
	require.NoError(t, err)
	return a
}

func successResult(columns []string, rows []map[string]any) executor.Result {
	return executor.Result{
		Success: true,
		Columns: columns,
		Rows:    rows,
		Count:   len(rows),
	}
}

func TestAnalyze_IsDeterministic(t *testing.T) {
	a := newTestAnalyzer(t)
	question := "Who are the top 10 earners this year?"
	sql := "SELECT name, salary FROM salaries ORDER BY salary DESC LIMIT 10"
	res := successResult([]string{"name", "salary"}, []map[string]any{
		{"name": "a", "salary": 100.0},
		{"name": "b", "salary": 90.0},
	})

	first := a.Analyze(question, sql, res)
	second := a.Analyze(question, sql, res)
	assert.Equal(t, first, second)
}

func TestAnalyze_ExecutionFailure(t *testing.T) {
	a := newTestAnalyzer(t)
	res := executor.Result{Success: false, Error: `relation "nope" does not exist`}

	an := a.Analyze("How many employees are there?", "SELECT count(*) FROM nope", res)
	assert.Zero(t, an.Completeness)
	assert.False(t, an.IsSufficient)
	assert.True(t, an.NeedsMoreData)
	assert.Contains(t, an.Anomalies, AnomalyExecutionError)
}

func TestAnalyze_EmptyResultForExistenceQuestionIsSufficient(t *testing.T) {
	a := newTestAnalyzer(t)
	res := successResult([]string{"name"}, nil)

	an := a.Analyze("Has anyone ever been paid twice in one month?", "SELECT name FROM payments", res)
	assert.True(t, an.IsSufficient)
	assert.False(t, an.NeedsMoreData)
	assert.Equal(t, 1.0, an.Completeness)
	assert.Empty(t, an.Anomalies)
	assert.Contains(t, an.ReasoningTags, "empty_result_is_negative_finding")
}

func TestAnalyze_EmptyResultForStatisticalQuestionIsNot(t *testing.T) {
	a := newTestAnalyzer(t)
	res := successResult([]string{"avg"}, nil)

	an := a.Analyze("What is the average salary?", "SELECT avg(salary) FROM salaries WHERE year = 1890", res)
	assert.False(t, an.IsSufficient)
	assert.True(t, an.NeedsMoreData)
	assert.Contains(t, an.Anomalies, AnomalyEmptyResultUnexpected)
	assert.NotEmpty(t, an.SuggestedFollowup)
}

func TestAnalyze_RankingWithBareLimitForcesContinuation(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := make([]map[string]any, 10)
	for i := range rows {
		rows[i] = map[string]any{"name": "p", "salary": float64(100 - i)}
	}
	res := successResult([]string{"name", "salary"}, rows)

	an := a.Analyze(
		"Who are the top 10 earners?",
		"SELECT name, salary FROM salaries ORDER BY salary DESC LIMIT 10",
		res,
	)
	assert.False(t, an.IsSufficient)
	assert.True(t, an.NeedsMoreData)
	assert.Contains(t, an.Anomalies, AnomalyRankingTruncationRisk)
	assert.Contains(t, an.SuggestedFollowup, "LIMIT 10")
}

// A year in the question must not leak into the truncation follow-up as a
// rank position; with no explicit count the LIMIT is the requested N.
func TestAnalyze_RankingWithYearUsesLimitAsN(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := make([]map[string]any, 5)
	for i := range rows {
		rows[i] = map[string]any{"name": "p", "salary": float64(100 - i)}
	}
	res := successResult([]string{"name", "salary"}, rows)

	an := a.Analyze(
		"Who were the highest earners in 2024?",
		"SELECT name, salary FROM salaries WHERE year = 2024 ORDER BY salary DESC LIMIT 5",
		res,
	)
	assert.True(t, an.NeedsMoreData)
	assert.Contains(t, an.SuggestedFollowup, "position 5")
	assert.NotContains(t, an.SuggestedFollowup, "2024")
}

func TestAnalyze_RankingWithExpandedTiesIsSufficient(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := make([]map[string]any, 12)
	for i := range rows {
		rows[i] = map[string]any{"name": "p", "salary": float64(100 - i/2)}
	}
	res := successResult([]string{"name", "salary"}, rows)

	// 12 rows back for a top-10 question: the query already expanded ties.
	an := a.Analyze(
		"Who are the top 10 earners?",
		"SELECT name, salary FROM salaries ORDER BY salary DESC LIMIT 20",
		res,
	)
	assert.True(t, an.IsSufficient)
	assert.False(t, an.NeedsMoreData)
	assert.NotContains(t, an.Anomalies, AnomalyRankingTruncationRisk)
	assert.Contains(t, an.ReasoningTags, "ties_already_expanded")
}

func TestAnalyze_RankingWithRankFunctionIsSufficient(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := []map[string]any{
		{"name": "a", "salary": 100.0},
		{"name": "b", "salary": 90.0},
	}
	res := successResult([]string{"name", "salary"}, rows)

	an := a.Analyze(
		"Who are the top 2 earners?",
		"SELECT name, salary FROM (SELECT name, salary, RANK() OVER (ORDER BY salary DESC) r FROM salaries) t WHERE r <= 2 LIMIT 50",
		res,
	)
	assert.True(t, an.IsSufficient)
	assert.NotContains(t, an.Anomalies, AnomalyRankingTruncationRisk)
}

func TestAnalyze_NullProliferation(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := []map[string]any{
		{"name": "a", "department": nil},
		{"name": "b", "department": nil},
		{"name": "c", "department": "ops"},
	}
	res := successResult([]string{"name", "department"}, rows)

	an := a.Analyze("List all employees", "SELECT name, department FROM employees", res)
	assert.Contains(t, an.Anomalies, AnomalyNullProliferation)
	assert.InDelta(t, 0.7, an.Completeness, 0.001)
}

func TestAnalyze_NullableLookingColumnsAreExempt(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := []map[string]any{
		{"name": "a", "leave_date": nil},
		{"name": "b", "leave_date": nil},
	}
	res := successResult([]string{"name", "leave_date"}, rows)

	an := a.Analyze("List all employees", "SELECT name, leave_date FROM employees", res)
	assert.NotContains(t, an.Anomalies, AnomalyNullProliferation)
	assert.True(t, an.IsSufficient)
}

func TestAnalyze_OutOfRangeValues(t *testing.T) {
	a := newTestAnalyzer(t)

	t.Run("negative salary", func(t *testing.T) {
		res := successResult([]string{"name", "salary"}, []map[string]any{
			{"name": "a", "salary": -500.0},
		})
		an := a.Analyze("List all employees", "SELECT name, salary FROM salaries", res)
		assert.Contains(t, an.Anomalies, AnomalyOutOfRangeValue)
	})

	t.Run("level outside range", func(t *testing.T) {
		res := successResult([]string{"name", "level"}, []map[string]any{
			{"name": "a", "level": 99},
		})
		an := a.Analyze("List all employees", "SELECT name, level FROM employees", res)
		assert.Contains(t, an.Anomalies, AnomalyOutOfRangeValue)
	})

	t.Run("valid values", func(t *testing.T) {
		res := successResult([]string{"name", "salary", "level"}, []map[string]any{
			{"name": "a", "salary": 85000.0, "level": 7},
		})
		an := a.Analyze("List all employees", "SELECT name, salary, level FROM employees", res)
		assert.NotContains(t, an.Anomalies, AnomalyOutOfRangeValue)
	})
}

func TestAnalyze_TruncatedResultLowersCompleteness(t *testing.T) {
	a := newTestAnalyzer(t)
	res := successResult([]string{"name"}, []map[string]any{{"name": "a"}})
	res.Truncated = true

	an := a.Analyze("List all employees", "SELECT name FROM employees", res)
	assert.InDelta(t, 0.9, an.Completeness, 0.001)
	assert.Contains(t, an.ReasoningTags, "result_truncated")
}

func TestAnalyze_AnomaliesAndTagsAreSorted(t *testing.T) {
	a := newTestAnalyzer(t)
	rows := []map[string]any{
		{"name": nil, "salary": -1.0},
		{"name": nil, "salary": -2.0},
	}
	res := successResult([]string{"name", "salary"}, rows)

	an := a.Analyze("List all employees", "SELECT name, salary FROM salaries", res)
	require.Len(t, an.Anomalies, 2)
	assert.IsIncreasing(t, an.Anomalies)
	assert.IsIncreasing(t, an.ReasoningTags)
}
