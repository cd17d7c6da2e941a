// Package metrics holds the Prometheus collectors for the voting and
// moderation pipelines. Collectors register on the default registry and are
// exposed through the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// VotesProcessed tracks vote operations by result (created/switched/unchanged).
	VotesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "votes_processed_total",
			Help: "Total number of votes processed, by result.",
		},
		[]string{"result"},
	)

	// VoteDuration tracks end-to-end vote operation latency.
	VoteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vote_processing_duration_seconds",
			Help:    "Duration of vote processing in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// VotesRateLimited counts vote attempts refused by the rate limiter.
	VotesRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "votes_rate_limited_total",
			Help: "Total vote attempts refused by the rate limiter.",
		},
	)

	// ReportsDispatched tracks report notifications by sink and status.
	ReportsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_dispatched_total",
			Help: "Total moderation report dispatches, by sink and status.",
		},
		[]string{"sink", "status"},
	)

	// QuestionsCreated counts successfully created questions.
	QuestionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "questions_created_total",
			Help: "Total questions created.",
		},
	)

	// ReputationGateRejections counts actions refused by the reputation gate.
	ReputationGateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_gate_rejections_total",
			Help: "Total actions refused by the reputation gate, by action.",
		},
		[]string{"action"},
	)
)
