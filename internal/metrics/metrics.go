// Package metrics exposes Prometheus collectors for the refresh agent.
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
	refreshEntriesTotal    *prometheus.CounterVec
	refreshCyclesTotal     *prometheus.CounterVec
	probeDurationSeconds   *prometheus.HistogramVec
	probesInFlight         prometheus.Gauge
	rateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		refreshEntriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapfresh_entries_total",
				Help: "Total catalog entries processed, labeled by domain and final status.",
			},
			[]string{"domain", "status"},
		)

		refreshCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapfresh_cycles_total",
				Help: "Total refresh cycles run, labeled by domain and outcome.",
			},
			[]string{"domain", "outcome"},
		)

		probeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapfresh_probe_duration_seconds",
				Help:    "Histogram of reachability probe latencies, labeled by host and status code.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"host", "code"},
		)

		probesInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "snapfresh_probes_in_flight",
				Help: "Number of reachability probes currently in flight.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "snapfresh_rate_limit_delays_seconds",
				Help:    "Histogram of per-host rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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

// ObserveEntry increments the per-entry counter for a domain/status pair.
func ObserveEntry(domain, status string) {
	refreshEntriesTotal.WithLabelValues(domain, status).Inc()
}

// ObserveCycle increments the cycle counter for the given outcome.
func ObserveCycle(domain, outcome string) {
	refreshCyclesTotal.WithLabelValues(domain, outcome).Inc()
}

// ObserveProbe records the latency of one probe attempt.
func ObserveProbe(rawURL string, code int, duration time.Duration) {
	probeDurationSeconds.
		WithLabelValues(SanitizeHost(rawURL), strconv.Itoa(code)).
		Observe(duration.Seconds())
}

// IncProbesInFlight increments the in-flight probe gauge.
func IncProbesInFlight() {
	probesInFlight.Inc()
}

// DecProbesInFlight decrements the in-flight probe gauge.
func DecProbesInFlight() {
	probesInFlight.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(rawURL string, duration time.Duration) {
	rateLimitDelaysSeconds.WithLabelValues(SanitizeHost(rawURL)).Observe(duration.Seconds())
}
