// Package metrics exposes Prometheus collectors for the menu service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	menuRefreshTotal           *prometheus.CounterVec
	menuStrategyAttemptsTotal  *prometheus.CounterVec
	menuItemsExtractedTotal    *prometheus.CounterVec
	menuFetchDurationSeconds   *prometheus.HistogramVec
	menuRobotsFallbackTotal    prometheus.Counter
	menuSnapshotItems          prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		menuRefreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menu_refresh_total",
				Help: "Total number of refresh runs, labeled by winning strategy and status.",
			},
			[]string{"strategy", "status"},
		)

		menuStrategyAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menu_strategy_attempts_total",
				Help: "Total strategy attempts, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		menuItemsExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "menu_items_extracted_total",
				Help: "Total accepted menu items, labeled by category.",
			},
			[]string{"category"},
		)

		menuFetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "menu_fetch_duration_seconds",
				Help:    "Histogram of page fetch latencies, labeled by fetch mode.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"mode"},
		)

		menuRobotsFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "menu_robots_fallback_total",
				Help: "Total robots.txt probes answered with a synthetic allow-all after transient errors.",
			},
		)

		menuSnapshotItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "menu_snapshot_items",
				Help: "Number of items in the current snapshot.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRefresh counts one completed refresh run.
func ObserveRefresh(strategy string, status string) {
	menuRefreshTotal.WithLabelValues(strategy, status).Inc()
}

// ObserveStrategyAttempt counts one strategy attempt with its outcome
// (hit, empty or error).
func ObserveStrategyAttempt(strategy string, outcome string) {
	menuStrategyAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
}

// ObserveItemsExtracted adds accepted items for a category.
func ObserveItemsExtracted(category string, count int) {
	if count > 0 {
		menuItemsExtractedTotal.WithLabelValues(category).Add(float64(count))
	}
}

// ObserveFetch records a page fetch latency for the given mode
// (static or headless).
func ObserveFetch(mode string, duration time.Duration) {
	menuFetchDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// ObserveRobotsFallback counts one robots.txt probe that fell back to a
// synthetic allow-all response.
func ObserveRobotsFallback() {
	menuRobotsFallbackTotal.Inc()
}

// SetSnapshotItems updates the current snapshot size gauge.
func SetSnapshotItems(count int) {
	menuSnapshotItems.Set(float64(count))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
