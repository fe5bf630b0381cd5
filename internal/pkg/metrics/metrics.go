package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "review_engine"

var (
	// RecomputeTotal counts aggregate recomputations by result (success, failure, skipped)
	RecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_recompute_total",
			Help:      "Total number of product rating recomputations",
		},
		[]string{"result"},
	)

	// RecomputeDuration observes the wall time of a single recompute attempt
	RecomputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rating_recompute_duration_seconds",
			Help:      "Duration of a single rating recompute attempt",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PendingRetries tracks products waiting for a background recompute retry
	PendingRetries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rating_recompute_pending_retries",
			Help:      "Products with a scheduled rating recompute retry",
		},
	)

	// ReconcileRepaired counts products repaired by the reconciliation sweep
	ReconcileRepaired = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_reconcile_repaired_total",
			Help:      "Products whose stale rating aggregate was repaired by reconciliation",
		},
	)

	// VotesTotal counts vote toggles by action
	VotesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_votes_total",
			Help:      "Total number of review vote toggles",
		},
		[]string{"action"},
	)

	// ReviewMutationsTotal counts review store mutations by operation
	ReviewMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_mutations_total",
			Help:      "Total number of review mutations",
		},
		[]string{"operation"},
	)

	// EventsPublished counts review events by outcome
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_events_published_total",
			Help:      "Review events handed to the broker",
		},
		[]string{"result"},
	)

	// PublisherBreakerState reports the event publisher circuit breaker state (0=closed, 1=half-open, 2=open)
	PublisherBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_publisher_breaker_state",
			Help:      "State of the review event publisher circuit breaker",
		},
	)

	// ReconcileSweeps counts reconciliation sweeps by result
	ReconcileSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_reconcile_sweeps_total",
			Help:      "Rating reconciliation sweeps by result",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration observes HTTP request latency by method and route
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)
