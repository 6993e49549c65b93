// Package metrics declares the prometheus collectors shared by the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kelp"

var (
	VenueSearches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "venue_searches_total",
		Help:      "Venue searches by outcome (ok, empty, error, cached).",
	}, []string{"outcome"})

	VenueSearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "venue_search_duration_seconds",
		Help:      "Latency of venue provider calls.",
		Buckets:   prometheus.DefBuckets,
	})

	Completions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completions_total",
		Help:      "Completion calls by purpose and outcome.",
	}, []string{"purpose", "outcome"})

	Decompositions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plan_decompositions_total",
		Help:      "Plans produced, by the strategy that produced them.",
	}, []string{"strategy"})

	FlowsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flows_generated_total",
		Help:      "Generated flows, split into venue-backed and fallback flows.",
	}, []string{"source"})

	ChatTurns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "chat_turns_total",
		Help:      "Chat turns by outcome.",
	}, []string{"outcome"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
