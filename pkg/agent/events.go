package agent

import (
	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
)

// EventType labels a streamed turn-transition event.
type EventType string

const (
	EventIterationStart EventType = "iteration_start"
	EventThought        EventType = "thought"
	EventSQLExecuting   EventType = "sql_executing"
	EventSQLResult      EventType = "sql_result"
	EventAnalyzing      EventType = "analyzing"
	EventAnswer         EventType = "answer"
	EventFinal          EventType = "final"
	EventError          EventType = "error"
)

// Event is one streamed update. Events are emitted in the exact order the
// controller produces them; within a session they are totally ordered.
type Event struct {
	Type      EventType          `json:"type"`
	Iteration int                `json:"iteration"`
	Status    Status             `json:"status"`
	Thought   string             `json:"thought,omitempty"`
	SQL       string             `json:"sql,omitempty"`
	Result    *executor.Result   `json:"result,omitempty"`
	Analysis  *analyzer.Analysis `json:"analysis,omitempty"`
	Answer    string             `json:"answer,omitempty"`
	Degraded  bool               `json:"degraded,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// EventSink receives events during a streamed run. A nil sink is valid.
type EventSink func(Event)

func (s EventSink) emit(ev Event) {
	if s != nil {
		s(ev)
	}
}
