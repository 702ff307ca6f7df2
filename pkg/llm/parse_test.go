package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction_FencedJSON(t *testing.T) {
	text := "Here is my plan.\n```json\n{\"thought\": \"check salaries\", \"action\": \"execute_sql\", \"sql\": \"SELECT * FROM salaries;\"}\n```"
	a, err := ParseAction(text)
	require.NoError(t, err)
	assert.Equal(t, ActionExecuteSQL, a.Kind)
	assert.Equal(t, "check salaries", a.Thought)
	assert.Equal(t, "SELECT * FROM salaries", a.SQL, "trailing semicolon is trimmed")
	assert.False(t, a.Final)
}

func TestParseAction_BareJSONWithSurroundingText(t *testing.T) {
	text := `Sure. {"action": "answer", "answer": "There are 42 employees.", "is_final": true} Hope that helps.`
	a, err := ParseAction(text)
	require.NoError(t, err)
	assert.Equal(t, ActionAnswer, a.Kind)
	assert.Equal(t, "There are 42 employees.", a.Answer)
	assert.True(t, a.Final)
}

func TestParseAction_ToleratesTrailingComma(t *testing.T) {
	text := `{"action": "execute_sql", "sql": "SELECT 1",}`
	a, err := ParseAction(text)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", a.SQL)
}

func TestParseAction_Malformed(t *testing.T) {
	cases := map[string]string{
		"no json at all":          "I think we should look at the salaries table.",
		"execute_sql without sql": `{"action": "execute_sql", "thought": "hm"}`,
		"answer without text":     `{"action": "answer", "is_final": true}`,
		"unknown action":          `{"action": "drop_table", "sql": "DROP TABLE x"}`,
		"broken json":             `{"action": "answer", "answer": `,
	}
	for name, text := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAction(text)
			assert.ErrorIs(t, err, ErrMalformedAction)
		})
	}
}
