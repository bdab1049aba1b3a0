// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntakeRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_intake_runs_total",
			Help: "Intake workflow runs by outcome",
		},
		[]string{"outcome"},
	)

	IntakeStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dealdesk_intake_stage_duration_seconds",
			Help:    "Duration of intake stages in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "status"},
	)

	IntakeStagesActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dealdesk_intake_stages_active",
			Help: "Intake stages currently in progress",
		},
		[]string{"stage"},
	)

	LLMTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_llm_tokens_total",
			Help: "LLM tokens consumed by operation and direction",
		},
		[]string{"operation", "direction"},
	)

	PositionsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_positions_reconciled_total",
			Help: "Funding positions produced by reconciliation, by inferred frequency",
		},
		[]string{"frequency"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_api_requests_total",
			Help: "HTTP API requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "dealdesk_api_request_duration_seconds",
			Help: "HTTP API request latency in seconds",
		},
		[]string{"method", "route"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealdesk_events_published_total",
			Help: "Realtime events published by type and result",
		},
		[]string{"type", "result"},
	)
)
