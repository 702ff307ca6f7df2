package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// wirePayload mirrors the JSON shape the model is instructed to produce.
type wirePayload struct {
	Thought string `json:"thought"`
	Action  string `json:"action"`
	SQL     string `json:"sql"`
	Answer  string `json:"answer"`
	IsFinal bool   `json:"is_final"`
}

// ParseAction maps raw model output onto the Action variant. Anything that
// does not carry a usable action is rejected with ErrMalformedAction.
func ParseAction(text string) (Action, error) {
	jsonStr := extractJSON(text)
	if jsonStr == "" {
		return Action{}, fmt.Errorf("%w: no JSON object found", ErrMalformedAction)
	}

	var p wirePayload
	if err := json.Unmarshal([]byte(jsonStr), &p); err != nil {
		// Common model slip: trailing commas. One cleanup pass, then give up.
		cleaned := strings.NewReplacer(",}", "}", ",]", "]").Replace(jsonStr)
		if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
			return Action{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
		}
	}

	switch p.Action {
	case string(ActionExecuteSQL):
		if strings.TrimSpace(p.SQL) == "" {
			return Action{}, fmt.Errorf("%w: execute_sql without sql", ErrMalformedAction)
		}
		return Action{
			Kind:    ActionExecuteSQL,
			Thought: p.Thought,
			SQL:     cleanSQL(p.SQL),
			Final:   p.IsFinal,
		}, nil
	case string(ActionAnswer):
		if strings.TrimSpace(p.Answer) == "" {
			return Action{}, fmt.Errorf("%w: answer without answer text", ErrMalformedAction)
		}
		return Action{
			Kind:    ActionAnswer,
			Thought: p.Thought,
			Answer:  strings.TrimSpace(p.Answer),
			Final:   p.IsFinal,
		}, nil
	default:
		return Action{}, fmt.Errorf("%w: unknown action %q", ErrMalformedAction, p.Action)
	}
}

// extractJSON pulls the first JSON object out of the response, preferring a
// ```json fenced block.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)

	if start := strings.Index(text, "```json"); start != -1 {
		start += len("```json")
		if end := strings.Index(text[start:], "```"); end != -1 {
			return strings.TrimSpace(text[start : start+end])
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return ""
}

// cleanSQL trims whitespace and a trailing semicolon.
func cleanSQL(sql string) string {
	return strings.TrimSuffix(strings.TrimSpace(sql), ";")
}
