package agent

import (
	"github.com/google/uuid"

	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
	"github.com/parallaxlabs/erpquery/pkg/llm"
)

// Status is the session state machine position.
type Status string

const (
	StatusRunning   Status = "running"
	StatusAnswered  Status = "answered"
	StatusFailed    Status = "failed"
	StatusExhausted Status = "exhausted"
)

// Turn records one iteration. Immutable once appended to the history.
type Turn struct {
	Iteration     int                `json:"iteration"`
	Thought       string             `json:"thought,omitempty"`
	Action        llm.ActionKind     `json:"action"`
	SQL           string             `json:"sql,omitempty"`
	Execution     *executor.Result   `json:"execution,omitempty"`
	Analysis      *analyzer.Analysis `json:"analysis,omitempty"`
	ErrorFeedback string             `json:"error_feedback,omitempty"`
	Answer        string             `json:"answer,omitempty"`
}

// Session is the lifetime of one question. It is owned by a single
// controller loop and discarded once a terminal status is reached; nothing
// is shared across sessions.
type Session struct {
	ID            string `json:"id"`
	Question      string `json:"question"`
	Iterations    int    `json:"iterations"`
	MaxIterations int    `json:"max_iterations"`
	History       []Turn `json:"history"`
	Answer        string `json:"answer,omitempty"`
	Degraded      bool   `json:"degraded,omitempty"`
	Status        Status `json:"status"`

	// answerDirective is set when the analyzer judged the latest result
	// sufficient; the next prompt instructs the model to answer from the
	// accumulated data instead of querying again.
	answerDirective bool
}

func newSession(question string, maxIterations int) *Session {
	return &Session{
		ID:            uuid.NewString(),
		Question:      question,
		MaxIterations: maxIterations,
		Status:        StatusRunning,
	}
}

// append records a finished turn. History is append-only; there is never
// more than one in-flight turn.
func (s *Session) append(t Turn) {
	t.Iteration = s.Iterations
	s.History = append(s.History, t)
}

// lastSufficient returns the most recent turn whose analysis judged the
// result sufficient, or nil.
func (s *Session) lastSufficient() *Turn {
	for i := len(s.History) - 1; i >= 0; i-- {
		t := &s.History[i]
		if t.Analysis != nil && t.Analysis.IsSufficient {
			return t
		}
	}
	return nil
}

// bestAnalyzed returns the most recent turn with a successful execution,
// preferring sufficient ones. Used for best-effort answers.
func (s *Session) bestAnalyzed() *Turn {
	if t := s.lastSufficient(); t != nil {
		return t
	}
	for i := len(s.History) - 1; i >= 0; i-- {
		t := &s.History[i]
		if t.Execution != nil && t.Execution.Success {
			return t
		}
	}
	return nil
}
