package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "erpquery_build_info",
		Help: "Build information of the query daemon",
	}, []string{"version", "commit", "date"})

	SessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erpquery_sessions_total", Help: "Completed sessions by terminal status.",
	}, []string{"status"})
	SessionsDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erpquery_sessions_degraded_total", Help: "Sessions answered best-effort after the iteration budget ran out.",
	})
	SessionIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "erpquery_session_iterations",
		Help:    "Iterations spent per session.",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
	})
	SessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "erpquery_session_duration_seconds",
		Help:    "Wall time per session.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	SQLExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "erpquery_sql_executions_total", Help: "SQL executions by result.",
	}, []string{"result"})
	SQLRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "erpquery_sql_rejections_total", Help: "Statements rejected before execution.",
	})
)
