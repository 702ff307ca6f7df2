// Package prompt holds the immutable configuration handed to the generation
// adapter (schema text, few-shot examples, safety rules) and serializes the
// per-session conversation context. Nothing here is ambient state, so
// concurrent sessions cannot cross-talk.
package prompt

import (
	"fmt"
	"strings"
)

// Config is the static prompt material for one deployment. Construct once
// at startup and share read-only.
type Config struct {
	// SchemaText describes the queryable tables. Usually produced by the
	// executor's schema fetcher; may be overridden from a file.
	SchemaText string
	// Examples are few-shot question/SQL pairs.
	Examples []Example
	// SafetyRules are appended verbatim to the system prompt.
	SafetyRules string
}

// Example is one few-shot question/SQL pair.
type Example struct {
	Question string
	SQL      string
}

// DefaultSafetyRules forbid everything the validator would reject anyway,
// which saves iterations.
const DefaultSafetyRules = `Rules:
- Generate exactly one SQL statement per action.
- Only SELECT queries (WITH ... SELECT is fine). Never modify data or schema.
- For "top N" questions, account for ties at the boundary: either avoid LIMIT
  or use RANK() so tied rows are not cut off.
- Respond with a single JSON object:
  {"thought": "...", "action": "execute_sql"|"answer", "sql": "...", "answer": "...", "is_final": true|false}`

// SystemPrompt renders the static system prompt.
func (c *Config) SystemPrompt() string {
	var sb strings.Builder
	sb.WriteString("You answer business questions by writing SQL against the database below, ")
	sb.WriteString("observing the results, and iterating until you can answer.\n\n")
	sb.WriteString("## Database Schema\n\n```\n")
	sb.WriteString(c.SchemaText)
	sb.WriteString("\n```\n")
	if len(c.Examples) > 0 {
		sb.WriteString("\n## Examples\n")
		for _, ex := range c.Examples {
			sb.WriteString(fmt.Sprintf("\nQ: %s\nSQL: %s\n", ex.Question, ex.SQL))
		}
	}
	sb.WriteString("\n")
	rules := c.SafetyRules
	if rules == "" {
		rules = DefaultSafetyRules
	}
	sb.WriteString(rules)
	return sb.String()
}

// TurnSummary is the per-turn material carried into the next prompt.
type TurnSummary struct {
	Thought       string
	SQL           string
	ResultText    string
	ErrorFeedback string
}

// Context is the serialized conversation state for one generation call.
type Context struct {
	Question  string
	Turns     []TurnSummary
	Directive string
}

// RenderUser renders the user-side prompt for a generation call.
func (c Context) RenderUser() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Question: %s\n", c.Question))

	for i, t := range c.Turns {
		sb.WriteString(fmt.Sprintf("\n--- Iteration %d ---\n", i+1))
		if t.Thought != "" {
			sb.WriteString(fmt.Sprintf("Thought: %s\n", t.Thought))
		}
		if t.SQL != "" {
			sb.WriteString(fmt.Sprintf("SQL: %s\n", t.SQL))
		}
		if t.ResultText != "" {
			sb.WriteString(fmt.Sprintf("Result:\n%s\n", t.ResultText))
		}
		if t.ErrorFeedback != "" {
			sb.WriteString(fmt.Sprintf("Feedback: %s\n", t.ErrorFeedback))
		}
	}

	if c.Directive != "" {
		sb.WriteString(fmt.Sprintf("\n%s\n", c.Directive))
	}
	return sb.String()
}
