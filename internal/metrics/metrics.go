package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration tracks API latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phasetrack_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phasetrack_rate_limit_rejections_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	// RateLimitStoreErrors counts limiter lookups that failed open.
	RateLimitStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phasetrack_rate_limit_store_errors_total",
			Help: "Rate limit counter store failures",
		},
	)

	ProgressSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasetrack_progress_saves_total",
			Help: "Phase progress saves by resulting status",
		},
		[]string{"status"},
	)

	ProjectSeedFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phasetrack_project_seed_failures_total",
			Help: "Projects whose phase records could not be seeded",
		},
	)

	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasetrack_event_publish_failures_total",
			Help: "Domain events that could not be published",
		},
		[]string{"routing_key"},
	)

	// SlowQueries counts database statements over the slow threshold.
	SlowQueries = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phasetrack_db_slow_query_seconds",
			Help:    "Duration of database statements that exceeded the slow threshold",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
		[]string{"backend"},
	)
)

// RecordHTTPRequest observes one finished HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordProgressSave counts a saved phase record.
func RecordProgressSave(status string) {
	ProgressSaves.WithLabelValues(status).Inc()
}

// RecordEventPublishFailure counts an event that was dropped.
func RecordEventPublishFailure(routingKey string) {
	EventPublishFailures.WithLabelValues(routingKey).Inc()
}

// RecordSlowQuery observes a slow database statement.
func RecordSlowQuery(backend string, duration time.Duration) {
	SlowQueries.WithLabelValues(backend).Observe(duration.Seconds())
}
