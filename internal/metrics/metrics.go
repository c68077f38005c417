// Package metrics holds the Prometheus collectors the servers report to. Every
// method is safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sprt"

type Metrics struct {
	registry *prometheus.Registry

	sessions    *prometheus.CounterVec
	connections *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	responses   *prometheus.CounterVec
	queries     *prometheus.CounterVec
	handling    *prometheus.HistogramVec
}

// New registers every collector on a registry of its own, so that several
// servers can live in one process (and one test binary).
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_started_total",
				Help:      "Sessions started, by application",
			},
			[]string{"app"},
		),

		connections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connections_total",
				Help:      "Connections accepted, by driver",
			},
			[]string{"driver"},
		),

		timeouts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "timeouts_total",
				Help:      "Connections closed for being idle, by driver",
			},
			[]string{"driver"},
		),

		responses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "responses_total",
				Help:      "Responses written, by status",
			},
			[]string{"status"},
		),

		queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "n4m_queries_total",
				Help:      "N4M datagrams answered, by error code",
			},
			[]string{"code"},
		),

		handling: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_handling_seconds",
				Help:      "Time spent producing a response, by driver",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
			[]string{"driver"},
		),
	}

	m.registry.MustRegister(
		m.sessions,
		m.connections,
		m.timeouts,
		m.responses,
		m.queries,
		m.handling,
		collectors.NewGoCollector(),
	)

	return m
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	if m == nil {
		return prometheus.NewRegistry()
	}

	return m.registry
}

// Handler serves the collected metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Gatherer(), promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted(app string) {
	if m == nil {
		return
	}

	m.sessions.WithLabelValues(app).Inc()
}

func (m *Metrics) ConnectionAccepted(driver string) {
	if m == nil {
		return
	}

	m.connections.WithLabelValues(driver).Inc()
}

func (m *Metrics) IdleTimeout(driver string) {
	if m == nil {
		return
	}

	m.timeouts.WithLabelValues(driver).Inc()
}

func (m *Metrics) ResponseSent(status string) {
	if m == nil {
		return
	}

	m.responses.WithLabelValues(status).Inc()
}

func (m *Metrics) QueryAnswered(code string) {
	if m == nil {
		return
	}

	m.queries.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveHandling(driver string, d time.Duration) {
	if m == nil {
		return
	}

	m.handling.WithLabelValues(driver).Observe(d.Seconds())
}
