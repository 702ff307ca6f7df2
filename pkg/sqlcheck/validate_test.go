package sqlcheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsReadOnlyStatements(t *testing.T) {
	for _, sql := range []string{
		"SELECT * FROM employees",
		"select name, salary from salaries where year = 2024",
		"WITH latest AS (SELECT * FROM salaries) SELECT * FROM latest",
		"SELECT 1;",
		"  SELECT count(*) FROM payments  ",
		"-- most recent month\nSELECT max(month) FROM payments",
		"/* sanity check */ SELECT 1",
	} {
		assert.NoError(t, Validate(sql), "sql: %s", sql)
	}
}

func TestValidate_RejectsMutationStatements(t *testing.T) {
	cases := map[string]string{
		"DROP TABLE employees":                   "DROP",
		"DELETE FROM salaries WHERE year = 2020": "DELETE",
		"UPDATE employees SET salary = 0":        "UPDATE",
		"INSERT INTO employees VALUES (1)":       "INSERT",
		"ALTER TABLE employees ADD COLUMN x int": "ALTER",
		"TRUNCATE employees":                     "TRUNCATE",
		"GRANT ALL ON employees TO public":       "GRANT",
		"REVOKE ALL ON employees FROM public":    "REVOKE",
		"CREATE TABLE tmp AS SELECT 1":           "CREATE",
	}
	for sql, keyword := range cases {
		err := Validate(sql)
		require.Error(t, err, "sql: %s", sql)

		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Contains(t, rej.Reason, keyword, "sql: %s", sql)
	}
}

// Mutation hidden past the head token is caught by the keyword scan.
func TestValidate_RejectsForbiddenKeywordsAnywhere(t *testing.T) {
	cases := map[string]string{
		"WITH x AS (DELETE FROM salaries RETURNING *) SELECT * FROM x": "DELETE",
		"SELECT * FROM employees; DROP TABLE employees":                "", // multi-statement fires first
		"WITH t AS (INSERT INTO log VALUES (1) RETURNING *) SELECT * FROM t": "INSERT",
	}
	for sql, keyword := range cases {
		err := Validate(sql)
		require.Error(t, err, "sql: %s", sql)
		if keyword != "" {
			assert.Contains(t, err.Error(), "forbidden keyword detected: "+keyword, "sql: %s", sql)
		}
	}
}

// Forbidden keywords match whole tokens only; identifiers that merely
// contain one must pass.
func TestValidate_KeywordsAreStandaloneTokens(t *testing.T) {
	for _, sql := range []string{
		"SELECT deleted_at FROM employees",
		"SELECT * FROM salary_updates",
		"SELECT created_by FROM payments",
		"SELECT dropout_rate FROM cohorts",
		"SELECT is_granted FROM permissions",
	} {
		assert.NoError(t, Validate(sql), "sql: %s", sql)
	}
}

func TestValidate_KeywordInsideStringLiteralIsFine(t *testing.T) {
	assert.NoError(t, Validate(`SELECT 'DROP TABLE employees' AS note`))
	assert.NoError(t, Validate(`SELECT * FROM events WHERE action = 'delete'`))
}

func TestValidate_RejectsNonSelectHead(t *testing.T) {
	err := Validate("EXPLAIN SELECT * FROM employees")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only SELECT queries")
	assert.Contains(t, err.Error(), "EXPLAIN")
}

func TestValidate_RejectsMultipleStatements(t *testing.T) {
	err := Validate("SELECT 1; SELECT 2")
	require.Error(t, err)
	assert.Equal(t, "multiple SQL statements are not allowed", err.Error())

	// A semicolon hidden in a literal does not split the statement.
	assert.NoError(t, Validate(`SELECT * FROM notes WHERE body = 'a;b'`))
}

func TestValidate_RejectsEmpty(t *testing.T) {
	for _, sql := range []string{"", "   ", "-- just a comment", "/* nothing */"} {
		err := Validate(sql)
		require.Error(t, err, "sql: %q", sql)
		assert.Equal(t, "SQL must not be empty", err.Error())
	}
}

// Each rejection class carries a distinct reason so the model's feedback is
// actionable.
func TestValidate_ReasonsAreDistinct(t *testing.T) {
	reasons := map[string]bool{}
	for _, sql := range []string{
		"",
		"DELETE FROM salaries",
		"EXPLAIN SELECT 1",
		"SELECT 1; SELECT 2",
	} {
		err := Validate(sql)
		require.Error(t, err)
		reasons[err.Error()] = true
	}
	assert.Len(t, reasons, 4)
}

func TestValidate_IsIdempotent(t *testing.T) {
	sql := "DELETE FROM salaries"
	first := Validate(sql)
	second := Validate(sql)
	require.Error(t, first)
	require.Error(t, second)
	assert.Equal(t, first.Error(), second.Error())
}
