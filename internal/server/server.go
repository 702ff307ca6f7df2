// Package server exposes the agent over HTTP: a blocking query endpoint,
// a server-sent-events streaming variant, and a health probe.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/parallaxlabs/erpquery/pkg/agent"
)

// Server holds the handler dependencies.
type Server struct {
	log   *slog.Logger
	agent *agent.Agent
}

func New(log *slog.Logger, ag *agent.Agent) *Server {
	return &Server{log: log, agent: ag}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.Health)
	r.Post("/api/query", s.Query)
	r.Post("/api/query/stream", s.QueryStream)

	return r
}

func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
