// Package metrics provides the Prometheus collectors shared across the
// API server, dispatcher, and orchestrator binaries, plus an HTTP
// middleware that records request count and latency by request path and
// status code.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the counters and histograms this service exposes.
// One Registry is built at process start and shared by every component
// that needs to record a measurement.
type Registry struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	JobsDispatchedTotal *prometheus.CounterVec
	TaskLaunchFailures  *prometheus.CounterVec

	StageDuration   *prometheus.HistogramVec
	StageFailures   *prometheus.CounterVec
	EmbeddingBatches *prometheus.CounterVec

	SearchQueriesTotal *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
}

// New registers every collector against its own prometheus.Registry
// and returns the handle. Each binary calls New once at startup.
func New() *Registry {
	return &Registry{
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifestream",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled, by route and status code.",
		}, []string{"route", "method", "status"}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lifestream",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds, by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),

		JobsDispatchedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifestream",
			Subsystem: "dispatcher",
			Name:      "jobs_dispatched_total",
			Help:      "Jobs for which a processing task was launched, by launch outcome.",
		}, []string{"outcome"}),

		TaskLaunchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifestream",
			Subsystem: "dispatcher",
			Name:      "task_launch_failures_total",
			Help:      "Task launch attempts that returned an error, by launcher type.",
		}, []string{"launcher"}),

		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lifestream",
			Subsystem: "orchestrator",
			Name:      "stage_duration_seconds",
			Help:      "Per-stage pipeline duration in seconds, by stage name.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage"}),

		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifestream",
			Subsystem: "orchestrator",
			Name:      "stage_failures_total",
			Help:      "Pipeline stage failures, by stage name and whether the failure was fatal.",
		}, []string{"stage", "fatal"}),

		EmbeddingBatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifestream",
			Subsystem: "indexer",
			Name:      "embedding_batches_total",
			Help:      "Embedding batches submitted to the embedding model, by outcome.",
		}, []string{"outcome"}),

		SearchQueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lifestream",
			Subsystem: "search",
			Name:      "queries_total",
			Help:      "Search queries served, by whether synthesis was available.",
		}, []string{"synthesized"}),

		SearchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lifestream",
			Subsystem: "search",
			Name:      "query_duration_seconds",
			Help:      "End-to-end search query latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns the /metrics scrape endpoint.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStage records a pipeline stage's duration and, on failure,
// increments the failure counter tagged with whether it was fatal.
func (r *Registry) ObserveStage(stage string, d time.Duration, err error, fatal bool) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		r.StageFailures.WithLabelValues(stage, strconv.FormatBool(fatal)).Inc()
	}
}
