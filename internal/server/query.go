package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parallaxlabs/erpquery/internal/metrics"
	"github.com/parallaxlabs/erpquery/pkg/agent"
)

// QueryRequest is the incoming question.
type QueryRequest struct {
	Question string `json:"question"`
}

// Query runs one session to completion and returns the full outcome,
// history included, as a single JSON document.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	out, err := s.agent.RunStream(r.Context(), req.Question, s.observe)
	if err != nil {
		// Only cancellation; the client is gone.
		if s.log != nil {
			s.log.Info("server: query abandoned", "error", err)
		}
		return
	}
	s.record(out, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil && s.log != nil {
		s.log.Error("server: failed to encode response", "error", err)
	}
}

// QueryStream runs one session, relaying each controller event as an SSE
// message. Event types mirror the controller's event names.
func (s *Server) QueryStream(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		http.Error(w, "Question is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	sendEvent := func(eventType string, data any) {
		jsonData, err := json.Marshal(data)
		if err != nil {
			if s.log != nil {
				s.log.Error("server: failed to marshal SSE event", "eventType", eventType, "error", err)
			}
			errorData, _ := json.Marshal(map[string]string{"error": "Failed to serialize event"})
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", string(errorData))
			flusher.Flush()
			return
		}
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, string(jsonData))
		flusher.Flush()
	}

	start := time.Now()
	out, err := s.agent.RunStream(r.Context(), req.Question, func(ev agent.Event) {
		s.observe(ev)
		sendEvent(string(ev.Type), ev)
	})
	if err != nil {
		return
	}
	s.record(out, time.Since(start))
}

// observe feeds per-event metrics.
func (s *Server) observe(ev agent.Event) {
	switch ev.Type {
	case agent.EventSQLResult:
		if ev.Result != nil && ev.Result.Success {
			metrics.SQLExecutions.WithLabelValues("success").Inc()
		} else {
			metrics.SQLExecutions.WithLabelValues("error").Inc()
		}
	case agent.EventError:
		if ev.SQL != "" && ev.Result == nil {
			metrics.SQLRejections.Inc()
		}
	}
}

// record feeds per-session metrics.
func (s *Server) record(out *agent.Outcome, elapsed time.Duration) {
	metrics.SessionsTotal.WithLabelValues(string(out.Status)).Inc()
	metrics.SessionIterations.Observe(float64(out.Iterations))
	metrics.SessionDuration.Observe(elapsed.Seconds())
	if out.Degraded {
		metrics.SessionsDegraded.Inc()
	}
}
