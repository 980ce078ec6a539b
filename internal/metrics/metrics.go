// Package metrics exports Prometheus instrumentation for analyses and the
// HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/zoning-cli/internal/model"
	"github.com/sells-group/zoning-cli/internal/resilience"
)

const namespace = "zoning"

// Outcome labels for successful analyses.
const (
	OutcomeApproved = "approved"
	OutcomeRejected = "rejected"
)

// Metrics holds the collectors. The zero value is not usable; call New.
type Metrics struct {
	gatherer prometheus.Gatherer

	analysesTotal    *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	stageErrors      *prometheus.CounterVec
	overlapping      prometheus.Counter
	defaultLimits    prometheus.Counter
	breakerState     prometheus.Gauge
	inFlight         prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		analysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "total",
			Help:      "Analyses finished, by outcome or error kind",
		}, []string{"outcome"}),

		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis latency in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),

		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		stageErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "stage_errors_total",
			Help:      "Pipeline stage failures",
		}, []string{"stage", "kind"}),

		overlapping: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "overlapping_zones_total",
			Help:      "Analyses whose point intersected more than one zone",
		}),

		defaultLimits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "default_limits_total",
			Help:      "Analyses evaluated against the fallback parameter set",
		}),

		breakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "zone_service",
			Name:      "circuit_state",
			Help:      "Zone service breaker state (0 closed, 1 open, 2 half-open)",
		}),

		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "analyses_in_flight",
			Help:      "Analyses currently running for HTTP requests",
		}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed",
		}, []string{"method", "route", "status"}),

		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"method", "route"}),
	}
}

// StageDone records one pipeline stage.
func (m *Metrics) StageDone(stage string, d time.Duration, err error) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	if err != nil {
		m.stageErrors.WithLabelValues(stage, model.Kind(err)).Inc()
	}
}

// AnalysisDone records one finished analysis.
func (m *Metrics) AnalysisDone(report *model.ComplianceReport, d time.Duration, err error) {
	m.analysisDuration.Observe(d.Seconds())
	switch {
	case err != nil:
		m.analysesTotal.WithLabelValues(model.Kind(err)).Inc()
		return
	case report.Approved:
		m.analysesTotal.WithLabelValues(OutcomeApproved).Inc()
	default:
		m.analysesTotal.WithLabelValues(OutcomeRejected).Inc()
	}
	if report.Zone.Overlapping() {
		m.overlapping.Inc()
	}
	if report.Parameters.Matched == model.MatchDefault {
		m.defaultLimits.Inc()
	}
}

// BreakerChanged is a resilience.BreakerConfig.OnChange callback.
func (m *Metrics) BreakerChanged(_, to resilience.State) {
	m.breakerState.Set(float64(to))
}

// InFlight returns the gauge tracking running HTTP analyses.
func (m *Metrics) InFlight() prometheus.Gauge { return m.inFlight }

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
