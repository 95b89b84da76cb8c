package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "homematch"

var (
	// Recommendation path
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recommend_requests_total",
			Help:      "Recommendation requests by outcome.",
		},
		[]string{"outcome"}, // "hit", "miss", "invalid", "canceled"
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "recommend_duration_seconds",
			Help:      "Time spent producing a ranked recommendation list.",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"cache"},
	)

	CandidatesScored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recommend_candidates_scored_total",
			Help:      "Candidate properties scored on cache misses.",
		},
	)

	CandidatesExcluded = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recommend_candidates_excluded_total",
			Help:      "Candidate properties dropped as structurally invalid.",
		},
	)

	// HTTP layer
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Price estimator client
	EstimatorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "estimator_calls_total",
			Help:      "Calls to the remote price estimator by result.",
		},
		[]string{"result"}, // "ok", "error", "open"
	)
)
