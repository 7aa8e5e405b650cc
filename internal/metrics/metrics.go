// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts served requests by method, chi route pattern and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpress_http_requests_total",
		Help: "HTTP requests served.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by method and route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkpress_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// Reactions counts like/dislike changes that altered state.
	Reactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpress_reactions_total",
		Help: "Reaction changes by target, kind and action.",
	}, []string{"target", "kind", "action"})

	// Jobs counts processed background jobs by type and outcome.
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpress_jobs_total",
		Help: "Background jobs processed.",
	}, []string{"type", "status"})

	// Events counts published domain events by type and outcome.
	Events = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpress_events_published_total",
		Help: "Domain events published to the broker.",
	}, []string{"type", "status"})

	// Reconnects counts broker connections re-established after a loss.
	Reconnects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkpress_broker_reconnects_total",
		Help: "Broker connections re-established after a loss.",
	}, []string{"broker"})
)
