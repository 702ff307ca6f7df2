// Package agent implements the iteration controller: the think-act-observe
// loop that turns one business question into SQL executions and, finally, a
// natural-language answer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/parallaxlabs/erpquery/pkg/analyzer"
	"github.com/parallaxlabs/erpquery/pkg/answer"
	"github.com/parallaxlabs/erpquery/pkg/executor"
	"github.com/parallaxlabs/erpquery/pkg/llm"
	"github.com/parallaxlabs/erpquery/pkg/prompt"
	"github.com/parallaxlabs/erpquery/pkg/sqlcheck"
)

const (
	defaultMaxIterations     = 5
	defaultGenerationRetries = 3
	defaultGenerationTimeout = 60 * time.Second
	defaultExecutionTimeout  = 30 * time.Second

	answerDirective = "The data already gathered is sufficient to answer the question. " +
		"Respond with the answer action now, based only on the results above."
)

// Config is the controller configuration.
type Config struct {
	Logger    *slog.Logger
	Generator llm.Generator
	Querier   executor.Querier
	Analyzer  *analyzer.Analyzer

	MaxIterations     int
	GenerationRetries int
	GenerationTimeout time.Duration
	ExecutionTimeout  time.Duration
}

func (cfg *Config) Validate() error {
	if cfg.Generator == nil {
		return errors.New("generator is required")
	}
	if cfg.Querier == nil {
		return errors.New("querier is required")
	}
	if cfg.Analyzer == nil {
		return errors.New("analyzer is required")
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	if cfg.MaxIterations < 0 {
		return errors.New("max iterations must be greater than 0")
	}
	if cfg.GenerationRetries == 0 {
		cfg.GenerationRetries = defaultGenerationRetries
	}
	if cfg.GenerationTimeout == 0 {
		cfg.GenerationTimeout = defaultGenerationTimeout
	}
	if cfg.ExecutionTimeout == 0 {
		cfg.ExecutionTimeout = defaultExecutionTimeout
	}
	return nil
}

// Agent drives sessions. Safe for concurrent use; each Run owns its own
// Session and shares nothing with other runs.
type Agent struct {
	log *slog.Logger
	cfg *Config
}

// New creates an Agent.
func New(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{log: cfg.Logger, cfg: cfg}, nil
}

// Outcome is what the caller receives for one question.
type Outcome struct {
	Answer     string `json:"answer"`
	Iterations int    `json:"iterations"`
	Status     Status `json:"status"`
	Degraded   bool   `json:"degraded,omitempty"`
	History    []Turn `json:"history"`
	Error      string `json:"error,omitempty"`
}

// Run processes one question to completion.
func (a *Agent) Run(ctx context.Context, question string) (*Outcome, error) {
	return a.RunStream(ctx, question, nil)
}

// RunStream processes one question, emitting an event per turn transition.
// The returned error is non-nil only for caller cancellation; generation
// failures surface in the Outcome with status "failed".
func (a *Agent) RunStream(ctx context.Context, question string, sink EventSink) (*Outcome, error) {
	sess := newSession(question, a.cfg.MaxIterations)
	if a.log != nil {
		a.log.Info("agent: session started", "session", sess.ID, "question", question)
	}

	for sess.Status == StatusRunning {
		if err := ctx.Err(); err != nil {
			// Caller went away: abandon without touching other sessions.
			if a.log != nil {
				a.log.Info("agent: session cancelled", "session", sess.ID, "iteration", sess.Iterations)
			}
			return nil, err
		}

		if err := a.runTurn(ctx, sess, sink); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			sess.Status = StatusFailed
			msg := fmt.Sprintf("generation failed: %v", err)
			sink.emit(Event{Type: EventError, Iteration: sess.Iterations, Status: sess.Status, Error: msg})
			sink.emit(Event{Type: EventFinal, Iteration: sess.Iterations, Status: sess.Status, Error: msg})
			if a.log != nil {
				a.log.Error("agent: session failed", "session", sess.ID, "error", err)
			}
			return &Outcome{
				Iterations: sess.Iterations,
				Status:     sess.Status,
				History:    sess.History,
				Error:      msg,
			}, nil
		}

		if sess.Status == StatusRunning && sess.Iterations >= sess.MaxIterations {
			sess.Status = StatusExhausted
		}
	}

	if sess.Status == StatusExhausted {
		a.finishExhausted(sess, sink)
	}

	if a.log != nil {
		a.log.Info("agent: session finished",
			"session", sess.ID,
			"status", sess.Status,
			"iterations", sess.Iterations,
			"degraded", sess.Degraded)
	}

	return &Outcome{
		Answer:     sess.Answer,
		Iterations: sess.Iterations,
		Status:     sess.Status,
		Degraded:   sess.Degraded,
		History:    sess.History,
	}, nil
}

// runTurn executes a single pass of the loop: generate, route, observe.
// A non-nil error means generation is unusable: the retry budget is spent
// or the generator produced an action the router cannot place.
func (a *Agent) runTurn(ctx context.Context, sess *Session, sink EventSink) error {
	sess.Iterations++
	sink.emit(Event{Type: EventIterationStart, Iteration: sess.Iterations, Status: sess.Status})
	if a.log != nil {
		a.log.Info("agent: iteration", "session", sess.ID, "n", sess.Iterations, "max", sess.MaxIterations)
	}

	action, err := a.generate(ctx, sess)
	if err != nil {
		return err
	}

	if action.Thought != "" {
		sink.emit(Event{Type: EventThought, Iteration: sess.Iterations, Status: sess.Status, Thought: action.Thought})
	}

	switch action.Kind {
	case llm.ActionExecuteSQL:
		a.handleExecuteSQL(ctx, sess, action, sink)
	case llm.ActionAnswer:
		a.handleAnswer(sess, action, sink)
	default:
		// The retry loop only vouches for the Anthropic adapter; any other
		// Generator can hand back a kind the router has no arm for.
		return fmt.Errorf("%w: generator returned action kind %q", llm.ErrMalformedAction, action.Kind)
	}
	return nil
}

// handleExecuteSQL routes an execute_sql action through the validator, the
// executor, and the analyzer.
func (a *Agent) handleExecuteSQL(ctx context.Context, sess *Session, action llm.Action, sink EventSink) {
	if rerr := sqlcheck.Validate(action.SQL); rerr != nil {
		feedback := fmt.Sprintf(
			"Your SQL was rejected before execution.\nSQL: %s\nReason: %s\nGenerate a corrected single SELECT statement.",
			action.SQL, rerr.Error())
		sess.append(Turn{
			Thought:       action.Thought,
			Action:        action.Kind,
			SQL:           action.SQL,
			ErrorFeedback: feedback,
		})
		sink.emit(Event{Type: EventError, Iteration: sess.Iterations, Status: sess.Status, SQL: action.SQL, Error: rerr.Error()})
		if a.log != nil {
			a.log.Warn("agent: sql rejected", "session", sess.ID, "reason", rerr.Error())
		}
		return
	}

	sink.emit(Event{Type: EventSQLExecuting, Iteration: sess.Iterations, Status: sess.Status, SQL: action.SQL})

	execCtx, cancel := context.WithTimeout(ctx, a.cfg.ExecutionTimeout)
	res, err := a.cfg.Querier.Query(execCtx, action.SQL)
	cancel()
	if err != nil {
		// Only cancellation reaches here; the outer loop notices ctx.Err.
		return
	}

	sink.emit(Event{Type: EventSQLResult, Iteration: sess.Iterations, Status: sess.Status, SQL: action.SQL, Result: &res})

	turn := Turn{
		Thought:   action.Thought,
		Action:    action.Kind,
		SQL:       action.SQL,
		Execution: &res,
	}

	if !res.Success {
		diag := sqlcheck.DiagnoseExecutionError(action.SQL, res.Error)
		turn.ErrorFeedback = diag.Feedback(action.SQL)
		sess.append(turn)
		if a.log != nil {
			a.log.Warn("agent: sql failed", "session", sess.ID, "errorType", diag.ErrorType, "error", res.Error)
		}
		return
	}

	an := a.cfg.Analyzer.Analyze(sess.Question, action.SQL, res)
	turn.Analysis = &an
	sess.append(turn)
	sink.emit(Event{Type: EventAnalyzing, Iteration: sess.Iterations, Status: sess.Status, Analysis: &an})

	if a.log != nil {
		a.log.Info("agent: result analyzed",
			"session", sess.ID,
			"rows", res.Count,
			"completeness", an.Completeness,
			"sufficient", an.IsSufficient,
			"needsMore", an.NeedsMoreData)
	}

	if an.NeedsMoreData {
		// The analyzer outranks an optimistic model signal; this is what
		// keeps a ranking answer from being cut mid-tie.
		return
	}

	if an.IsSufficient {
		sess.answerDirective = true
		if action.Final {
			// The model considers the work done and the analyzer agrees:
			// synthesize directly instead of spending an iteration asking
			// the model to restate the data.
			a.finishAnswered(sess, "", sink)
		}
	}
}

// handleAnswer routes an answer action. A non-final draft is recorded and
// the loop continues; a final one terminates the session.
func (a *Agent) handleAnswer(sess *Session, action llm.Action, sink EventSink) {
	if !action.Final {
		sess.append(Turn{
			Thought: action.Thought,
			Action:  action.Kind,
			Answer:  action.Answer,
		})
		sess.answerDirective = true
		return
	}
	sess.append(Turn{
		Thought: action.Thought,
		Action:  action.Kind,
		Answer:  action.Answer,
	})
	a.finishAnswered(sess, action.Answer, sink)
}

// finishAnswered synthesizes the final answer and terminates the session.
func (a *Agent) finishAnswered(sess *Session, draft string, sink EventSink) {
	in := answer.Input{Question: sess.Question, Draft: draft}
	if t := sess.lastSufficient(); t != nil {
		in.SQL = t.SQL
		in.Result = t.Execution
	}
	sess.Answer = answer.Synthesize(in)
	sess.Status = StatusAnswered

	sink.emit(Event{Type: EventAnswer, Iteration: sess.Iterations, Status: sess.Status, Answer: sess.Answer})
	sink.emit(Event{Type: EventFinal, Iteration: sess.Iterations, Status: sess.Status, Answer: sess.Answer})
}

// finishExhausted produces the explicitly degraded best-effort answer.
func (a *Agent) finishExhausted(sess *Session, sink EventSink) {
	in := answer.Input{Question: sess.Question}
	if t := sess.bestAnalyzed(); t != nil {
		in.SQL = t.SQL
		in.Result = t.Execution
	}
	sess.Answer = answer.BestEffort(in)
	sess.Degraded = true
	sess.Status = StatusAnswered

	if a.log != nil {
		a.log.Warn("agent: iteration budget exhausted, returning best-effort answer", "session", sess.ID)
	}
	sink.emit(Event{Type: EventAnswer, Iteration: sess.Iterations, Status: sess.Status, Answer: sess.Answer, Degraded: true})
	sink.emit(Event{Type: EventFinal, Iteration: sess.Iterations, Status: sess.Status, Answer: sess.Answer, Degraded: true})
}

// generate calls the generation adapter with a bounded retry budget and
// exponential backoff. Malformed payloads count as generation failures.
func (a *Agent) generate(ctx context.Context, sess *Session) (llm.Action, error) {
	pc := a.buildContext(sess)

	var action llm.Action
	operation := func() error {
		genCtx, cancel := context.WithTimeout(ctx, a.cfg.GenerationTimeout)
		defer cancel()

		var err error
		action, err = a.cfg.Generator.Next(genCtx, pc)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if a.log != nil {
			a.log.Warn("agent: generation attempt failed", "session", sess.ID, "error", err)
		}
		return err
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(a.cfg.GenerationRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return llm.Action{}, fmt.Errorf("retry budget of %d spent: %w", a.cfg.GenerationRetries, err)
	}
	return action, nil
}

// buildContext serializes the session history for the generation adapter.
func (a *Agent) buildContext(sess *Session) prompt.Context {
	pc := prompt.Context{Question: sess.Question}
	for _, t := range sess.History {
		ts := prompt.TurnSummary{
			Thought:       t.Thought,
			SQL:           t.SQL,
			ErrorFeedback: t.ErrorFeedback,
		}
		if t.Execution != nil && t.Execution.Success {
			ts.ResultText = executor.FormatResult(*t.Execution)
		}
		pc.Turns = append(pc.Turns, ts)
	}
	if sess.answerDirective {
		pc.Directive = answerDirective
	}
	return pc
}
