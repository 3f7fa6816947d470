package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_cache_hits_total",
			Help: "Total number of link cache hits",
		},
		[]string{"kind"}, // "positive" or "negative"
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "link_cache_misses_total",
			Help: "Total number of link cache misses",
		},
	)

	// Redirect metrics
	RedirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_redirects_total",
			Help: "Total number of redirect decisions by outcome",
		},
		[]string{"outcome"},
	)

	// Request metrics
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "link_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "status"},
	)

	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "link_requests_total",
			Help: "Total number of requests",
		},
		[]string{"method", "status"},
	)

	// Rate limit metrics
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "link_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// Click pipeline metrics
	ClicksRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "link_clicks_recorded_total",
			Help: "Total number of click events emitted",
		},
	)

	ClicksDeduplicated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "link_clicks_deduplicated_total",
			Help: "Total number of clicks suppressed by the dedup guard",
		},
	)
)
