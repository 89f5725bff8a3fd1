// Package metrics declares the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// GenerationRequests counts generation requests by outcome
	// (accepted, already_generating, insufficient_credits, error)
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webforge_generation_requests_total",
		Help: "Generation requests by outcome",
	}, []string{"outcome"})

	// GenerationResults counts finished jobs by terminal status and who finished them
	GenerationResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webforge_generation_results_total",
		Help: "Finished generation jobs by status and finisher",
	}, []string{"status", "finisher"})

	// GenerationDuration tracks generator call latency
	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webforge_generation_duration_seconds",
		Help:    "Generator call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4m
	}, []string{"provider"})

	// GenerationsInFlight is the number of generator calls currently running
	GenerationsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webforge_generations_in_flight",
		Help: "Generator calls currently running",
	})

	// RevisionsAppended counts revisions by origin
	RevisionsAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webforge_revisions_appended_total",
		Help: "Revisions appended by origin",
	}, []string{"origin"})

	// RevisionConflicts counts rejected optimistic writes
	RevisionConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webforge_revision_conflicts_total",
		Help: "Revision appends rejected by the version check",
	})

	// CreditsMoved counts ledger credits moved by direction (debit, refund)
	CreditsMoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webforge_credits_total",
		Help: "Credits debited or refunded by the generation pipeline",
	}, []string{"direction"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
