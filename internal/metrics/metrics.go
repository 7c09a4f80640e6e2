// Package metrics exposes Prometheus collectors for the webscout service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scoutSearchesTotal           *prometheus.CounterVec
	scoutPagesTotal              *prometheus.CounterVec
	scoutJobsTotal               *prometheus.CounterVec
	scoutActiveWorkers           prometheus.Gauge
	scoutQueueDepth              prometheus.Gauge
	scoutRateLimitDelaysSeconds  *prometheus.HistogramVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		scoutSearchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_searches_total",
				Help: "Total number of search provider calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		scoutPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_pages_total",
				Help: "Total number of pages fetched, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		scoutJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scout_jobs_total",
				Help: "Total number of jobs reaching a terminal state, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		scoutActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_active_workers",
				Help: "Number of workers currently running a pipeline.",
			},
		)

		scoutQueueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scout_queue_depth",
				Help: "Number of child jobs waiting for a worker slot.",
			},
		)

		scoutRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scout_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by capability.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"capability"},
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

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearch increments the search counter for the given provider/outcome.
func ObserveSearch(provider, outcome string) {
	Init()
	scoutSearchesTotal.WithLabelValues(provider, outcome).Inc()
}

// ObserveFetch increments the page counter for the given site and outcome.
func ObserveFetch(site, outcome string) {
	Init()
	scoutPagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObserveJob increments the terminal job counter.
func ObserveJob(kind, status string) {
	Init()
	scoutJobsTotal.WithLabelValues(kind, status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	scoutActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	scoutActiveWorkers.Dec()
}

// SetQueueDepth records the current admission queue depth.
func SetQueueDepth(depth int) {
	Init()
	scoutQueueDepth.Set(float64(depth))
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(capability string, duration time.Duration) {
	Init()
	scoutRateLimitDelaysSeconds.WithLabelValues(capability).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
