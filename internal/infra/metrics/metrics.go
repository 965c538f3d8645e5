package metrics

import (
	"net/http"
	"strconv"
	"time"

	"bizzshort/internal/domain"
	"bizzshort/internal/usecase"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bizzshort"

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AdInteractions  *prometheus.CounterVec
	RateLimited     prometheus.Counter
	StorageFailures *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AdInteractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_interactions_total",
			Help:      "Ad hide and unhide requests by outcome",
		}, []string{"action", "outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_interactions_rate_limited_total",
			Help:      "Ad interactions rejected by the interaction limiter",
		}),
		StorageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "preference_storage_failures_total",
			Help:      "Preference store failures by operation",
		}, []string{"op"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "page_sessions_active",
			Help:      "Live page sessions",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.AdInteractions,
		m.RateLimited,
		m.StorageFailures,
		m.ActiveSessions,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) AdInteraction(action string, outcome domain.AdOutcome) {
	m.AdInteractions.WithLabelValues(action, string(outcome)).Inc()
	if outcome == domain.OutcomeRateLimited {
		m.RateLimited.Inc()
	}
}

func (m *Metrics) StorageFailure(op string) {
	m.StorageFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) SessionsActive(count int) {
	m.ActiveSessions.Set(float64(count))
}

var _ usecase.Metrics = (*Metrics)(nil)
