// Package llm adapts a language model into the structured action interface
// the iteration controller consumes.
package llm

import (
	"context"
	"errors"

	"github.com/parallaxlabs/erpquery/pkg/prompt"
)

// ActionKind discriminates the model's structured response.
type ActionKind string

const (
	ActionExecuteSQL ActionKind = "execute_sql"
	ActionAnswer     ActionKind = "answer"
)

// Action is the tagged variant produced by one generation turn.
type Action struct {
	Kind    ActionKind
	Thought string
	SQL     string // set for ActionExecuteSQL
	Answer  string // set for ActionAnswer
	Final   bool
}

// ErrMalformedAction marks a model payload that cannot be mapped onto the
// Action variant. The controller treats it as a generation failure and
// retries; it is never silently accepted.
var ErrMalformedAction = errors.New("llm: response does not map onto a known action")

// Generator produces the next structured action for a session. A Generator
// must be safe for use from concurrent sessions.
type Generator interface {
	Next(ctx context.Context, pc prompt.Context) (Action, error)
}
