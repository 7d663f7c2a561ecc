// Package metrics exposes Prometheus collectors for the element crawler.
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

// Page outcomes recorded by ObservePage.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerElementsTotal       *prometheus.CounterVec
	crawlerPageDuration        prometheus.Histogram
	crawlerSessionRestarts     prometheus.Counter
	crawlerActiveWorkers       prometheus.Gauge
	crawlerSinkFailuresTotal   *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerElementsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_elements_total",
				Help: "Total number of elements recorded, labeled by type.",
			},
			[]string{"type"},
		)

		crawlerPageDuration = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_page_duration_seconds",
				Help:    "Histogram of per-page processing time from navigation to flushed output.",
				Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
			},
		)

		crawlerSessionRestarts = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_session_restarts_total",
				Help: "Total number of browser session restarts.",
			},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently holding a browser session.",
			},
		)

		crawlerSinkFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_sink_failures_total",
				Help: "Total number of failed optional sink writes, labeled by sink.",
			},
			[]string{"sink"},
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

// ObservePage records one processed URL.
func ObservePage(status string, duration time.Duration) {
	crawlerPagesTotal.WithLabelValues(status).Inc()
	crawlerPageDuration.Observe(duration.Seconds())
}

// ObserveElements adds n recorded elements of the given type.
func ObserveElements(kind string, n int) {
	if n > 0 {
		crawlerElementsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// ObserveSessionRestart increments the restart counter.
func ObserveSessionRestart() {
	crawlerSessionRestarts.Inc()
}

// ObserveSinkFailure increments the failure counter of an optional sink.
func ObserveSinkFailure(sink string) {
	crawlerSinkFailuresTotal.WithLabelValues(sink).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	crawlerActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	crawlerActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
