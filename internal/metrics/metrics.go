// Package metrics exposes Prometheus metrics for the playground server.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for CodeAndo.
type Metrics struct {
	// Evaluation metrics
	Evaluations        *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	ChallengesPassed   *prometheus.CounterVec

	// Progress metrics
	ProgressSaves    *prometheus.CounterVec
	ProgressResets   *prometheus.CounterVec
	ManualToggles    *prometheus.CounterVec
	RetentionDeleted *prometheus.CounterVec

	// Catalog metrics
	CatalogEntries *prometheus.GaugeVec
	CatalogReloads *prometheus.CounterVec

	// Playground metrics
	PlaygroundSessions prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			Evaluations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_evaluations_total",
					Help: "Total number of buffer evaluations",
				},
				[]string{"kind", "source"}, // source: http, playground
			),
			EvaluationDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "codeando_evaluation_duration_seconds",
					Help:    "Time spent evaluating all challenges of one lesson or project",
					Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8), // 100µs to 1.6s
				},
				[]string{"kind"},
			),
			ChallengesPassed: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_challenges_passed_total",
					Help: "Total number of challenges passing on evaluation",
				},
				[]string{"kind"},
			),

			ProgressSaves: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_progress_saves_total",
					Help: "Total number of saved playground snapshots",
				},
				[]string{"kind", "result"},
			),
			ProgressResets: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_progress_resets_total",
					Help: "Total number of resets to starter code or solution",
				},
				[]string{"kind", "target"}, // target: starter, solution
			),
			ManualToggles: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_manual_toggles_total",
					Help: "Total number of teacher-mode challenge toggles",
				},
				[]string{"kind"},
			),
			RetentionDeleted: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_retention_deleted_total",
					Help: "Rows removed by the retention worker",
				},
				[]string{"table"},
			),

			CatalogEntries: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "codeando_catalog_entries",
					Help: "Number of loaded lessons and projects",
				},
				[]string{"kind"},
			),
			CatalogReloads: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_catalog_reloads_total",
					Help: "Total number of catalog loads",
				},
				[]string{"result"},
			),

			PlaygroundSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "codeando_playground_sessions",
					Help: "Number of open live playground connections",
				},
			),

			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "codeando_http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "codeando_http_request_duration_seconds",
					Help:    "HTTP request duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method", "path"},
			),
		}
	})

	return sharedMetrics
}

// RecordEvaluation records one evaluation of a lesson or project.
func (m *Metrics) RecordEvaluation(kind, source string, passed int, duration time.Duration) {
	m.Evaluations.WithLabelValues(kind, source).Inc()
	m.EvaluationDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if passed > 0 {
		m.ChallengesPassed.WithLabelValues(kind).Add(float64(passed))
	}
}

// RecordSave records a progress write.
func (m *Metrics) RecordSave(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ProgressSaves.WithLabelValues(kind, result).Inc()
}

// RecordCatalog records a catalog load and its size.
func (m *Metrics) RecordCatalog(lessons, projects int, err error) {
	if err != nil {
		m.CatalogReloads.WithLabelValues("error").Inc()
		return
	}
	m.CatalogReloads.WithLabelValues("ok").Inc()
	m.CatalogEntries.WithLabelValues("lesson").Set(float64(lessons))
	m.CatalogEntries.WithLabelValues("project").Set(float64(projects))
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// Middleware records request counts and latency labelled by chi route pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RecordHTTPRequest(r.Method, path, strconv.Itoa(status), time.Since(start).Seconds())
	})
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
