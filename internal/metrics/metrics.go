package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studycal"

// Gesture outcome labels.
const (
	OutcomeCommitted = "committed"
	OutcomeCancelled = "cancelled"
	OutcomeRejected  = "rejected"
)

// Metrics holds Prometheus metrics for the server. Each instance owns its
// registry so servers built in tests do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	RequestCounter   *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	GestureOutcomes  *prometheus.CounterVec
	ImportedEvents   *prometheus.CounterVec
	Workspaces       prometheus.Gauge
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		RequestCounter: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		GestureOutcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gesture_outcomes_total",
				Help:      "Drag and resize outcomes",
			},
			[]string{"gesture", "outcome"}, // outcome: committed, cancelled, rejected
		),
		ImportedEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imported_events_total",
				Help:      "Events added by bulk imports",
			},
			[]string{"source"}, // source: class, study, ics
		),
		Workspaces: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workspaces",
				Help:      "Live workspaces",
			},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordGesture counts one gesture outcome.
func (m *Metrics) RecordGesture(gesture, outcome string) {
	if m == nil {
		return
	}
	m.GestureOutcomes.WithLabelValues(gesture, outcome).Inc()
}

// RecordImport counts n events added from source.
func (m *Metrics) RecordImport(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ImportedEvents.WithLabelValues(source).Add(float64(n))
}

// SetWorkspaces reports the live workspace count.
func (m *Metrics) SetWorkspaces(n int) {
	if m == nil {
		return
	}
	m.Workspaces.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records count, duration and in-flight requests. Requests are
// labelled with the ServeMux pattern that matched, so path parameters do not
// explode cardinality.
func Middleware(m *Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.RequestCounter.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}
