// Package metrics exposes the Prometheus instrumentation shared by the
// analysis pipeline and the serve mode.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors on their own registry, keeping process
// defaults (go_*, promhttp_*) out of the scrape.
type Metrics struct {
	registry *prometheus.Registry

	runsTotal           *prometheus.CounterVec
	documentsClassified *prometheus.CounterVec
	matchesTotal        *prometheus.CounterVec
	llmRequestsTotal    *prometheus.CounterVec
	llmDuration         *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// Default is the process-wide instance. The pipeline and the LLM layer
// record into it; the serve command exposes it on /metrics.
var Default = New()

// New builds an independent metrics set. Tests use their own instance so
// counters do not bleed between cases.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "runs_total",
			Help:      "Completed analysis runs by final status.",
		},
		[]string{"status"},
	)
	documentsClassified := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "documents_classified_total",
			Help:      "Classified documents by category and method.",
		},
		[]string{"category", "method"},
	)
	matchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "compliance",
			Name:      "matches_total",
			Help:      "Requirement match outcomes by status.",
		},
		[]string{"status"},
	)
	llmRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "llm",
			Name:      "requests_total",
			Help:      "LLM backend requests by outcome.",
		},
		[]string{"backend", "outcome"},
	)
	llmDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM request duration in seconds, retries included.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		},
		[]string{"backend"},
	)
	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"path", "code"},
	)
	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	registry.MustRegister(
		runsTotal,
		documentsClassified,
		matchesTotal,
		llmRequestsTotal,
		llmDuration,
		httpRequestsTotal,
		httpDuration,
	)

	return &Metrics{
		registry:            registry,
		runsTotal:           runsTotal,
		documentsClassified: documentsClassified,
		matchesTotal:        matchesTotal,
		llmRequestsTotal:    llmRequestsTotal,
		llmDuration:         llmDuration,
		httpRequestsTotal:   httpRequestsTotal,
		httpDuration:        httpDuration,
	}
}

// Handler returns the scrape endpoint for this metrics set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRun counts a finished analysis run.
func (m *Metrics) RecordRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// RecordClassification counts one classified document.
func (m *Metrics) RecordClassification(category, method string) {
	m.documentsClassified.WithLabelValues(category, method).Inc()
}

// RecordMatch counts one requirement match outcome.
func (m *Metrics) RecordMatch(status string) {
	m.matchesTotal.WithLabelValues(status).Inc()
}

// RecordLLMRequest counts a backend call and observes its duration.
func (m *Metrics) RecordLLMRequest(backend, outcome string, duration time.Duration) {
	m.llmRequestsTotal.WithLabelValues(backend, outcome).Inc()
	m.llmDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// Middleware instruments an HTTP handler with request counts and durations.
// Run identifiers are collapsed into a {id} placeholder to keep label
// cardinality bounded.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
		m.httpDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/runs/"):
		return "/api/v1/runs/{id}"
	default:
		return path
	}
}
