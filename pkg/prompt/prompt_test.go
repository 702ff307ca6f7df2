package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSystemPromptCarriesSchemaAndRules(t *testing.T) {
	cfg := &Config{
		SchemaText:  "employees(id, name, salary)",
		SafetyRules: DefaultSafetyRules,
		Examples: []Example{
			{Question: "How many employees?", SQL: "SELECT count(*) FROM employees"},
		},
	}
	out := cfg.SystemPrompt()
	assert.Contains(t, out, "employees(id, name, salary)")
	assert.Contains(t, out, "Only SELECT queries")
	assert.Contains(t, out, "SELECT count(*) FROM employees")
}

func TestRenderUserIncludesHistoryAndDirective(t *testing.T) {
	c := Context{
		Question: "What is the average salary?",
		Turns: []TurnSummary{
			{SQL: "SELECT avg(salary) FROM salaries", ResultText: "Rows (1 total):\n85400"},
			{SQL: "SELECT bad", ErrorFeedback: "syntax error"},
		},
		Directive: "Answer now.",
	}
	out := c.RenderUser()
	assert.Contains(t, out, "Question: What is the average salary?")
	assert.Contains(t, out, "Iteration 1")
	assert.Contains(t, out, "85400")
	assert.Contains(t, out, "Feedback: syntax error")
	assert.Contains(t, out, "Answer now.")
}
