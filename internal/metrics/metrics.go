// Package metrics holds the Prometheus instruments of the service.
// Everything registers on the default registry and is exposed by promhttp.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialibrary_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medialibrary_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialibrary_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Import job metrics
	ImportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialibrary_import_runs_total",
			Help: "Total number of feed import runs by outcome",
		},
		[]string{"status"},
	)

	ImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medialibrary_import_duration_seconds",
			Help:    "Duration of feed import runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		},
	)

	ImportRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialibrary_import_records_total",
			Help: "Media records reconciled by the importer, by outcome",
		},
		[]string{"outcome"}, // created, updated, unchanged
	)

	ImportLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialibrary_import_last_success_timestamp_seconds",
			Help: "Unix time of the last successful import",
		},
	)

	ImportRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medialibrary_import_running",
			Help: "1 while an import run is in progress",
		},
	)

	FeedDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medialibrary_feed_downloads_total",
			Help: "External feed downloads by feed and result",
		},
		[]string{"feed", "result"}, // success, failure, rejected
	)

	FeedBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "medialibrary_feed_circuit_breaker_state",
			Help: "Feed circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Auth metrics
	PasswordResetRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "medialibrary_password_reset_rate_limited_total",
			Help: "Password reset requests rejected by the rate limiter",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordImportStarted flags an import as running
func RecordImportStarted() {
	ImportRunning.Set(1)
}

// RecordImportFinished records the outcome of an import run
func RecordImportFinished(duration time.Duration, created, updated, unchanged int, err error) {
	ImportRunning.Set(0)
	ImportDuration.Observe(duration.Seconds())
	if err != nil {
		ImportRunsTotal.WithLabelValues("failed").Inc()
		return
	}
	ImportRunsTotal.WithLabelValues("succeeded").Inc()
	ImportRecords.WithLabelValues("created").Add(float64(created))
	ImportRecords.WithLabelValues("updated").Add(float64(updated))
	ImportRecords.WithLabelValues("unchanged").Add(float64(unchanged))
	ImportLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordFeedDownload counts one feed download attempt
func RecordFeedDownload(feed, result string) {
	FeedDownloads.WithLabelValues(feed, result).Inc()
}
