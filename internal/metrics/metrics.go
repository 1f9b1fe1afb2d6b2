// Package metrics holds the Prometheus collectors for the engines and the
// HTTP layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	transitions     *prometheus.CounterVec
	ledgerAppends   *prometheus.CounterVec
	sweepRuns       prometheus.Counter
	sweepResets     prometheus.Counter
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	wsClients       prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starboard_task_transitions_total",
			Help: "Task status transitions by operation and outcome",
		}, []string{"op", "outcome"}),
		ledgerAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "starboard_ledger_appends_total",
			Help: "History entries appended by status",
		}, []string{"status"}),
		sweepRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starboard_recurrence_sweeps_total",
			Help: "Recurrence sweeps run",
		}),
		sweepResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "starboard_recurrence_resets_total",
			Help: "Tasks reset to pending by the recurrence sweep",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "starboard_websocket_clients",
			Help: "Connected websocket clients",
		}),
	}
	registry.MustRegister(m.transitions, m.ledgerAppends, m.sweepRuns, m.sweepResets,
		m.requestsTotal, m.requestDuration, m.wsClients)
	return m
}

// Transition counts a lifecycle operation. outcome is "ok" or an error kind.
func (m *Metrics) Transition(op, outcome string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) LedgerAppend(status string) {
	if m == nil {
		return
	}
	m.ledgerAppends.WithLabelValues(status).Inc()
}

func (m *Metrics) Sweep(resets int) {
	if m == nil {
		return
	}
	m.sweepRuns.Inc()
	m.sweepResets.Add(float64(resets))
}

func (m *Metrics) Request(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) SetClients(n int) {
	if m == nil {
		return
	}
	m.wsClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
