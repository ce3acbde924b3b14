package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "calculator"

// Metrics collects request, initialization and stream metrics on a private
// registry. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal     *prometheus.CounterVec
	initializations   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	openStreams       prometheus.Gauge
}

// NewMetrics creates and registers the calculator metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "Requests handled by the MCP endpoint, by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),
		initializations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "session_initializations_total",
				Help:      "Session initialization attempts, by result",
			},
			[]string{"result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operation invocations in seconds",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"operation", "outcome"},
		),
		openStreams: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "open_streams",
				Help:      "Server-push streams currently open",
			},
		),
	}
	m.registry.MustRegister(m.requestsTotal, m.initializations, m.operationDuration, m.openStreams)
	return m
}

// Handler exposes the metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeRequest(transport, outcome string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(transport, outcome).Inc()
}

func (m *Metrics) observeInitialization(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.initializations.WithLabelValues(result).Inc()
}

func (m *Metrics) observeOperation(name, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(name, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) streamOpened() {
	if m == nil {
		return
	}
	m.openStreams.Inc()
}

func (m *Metrics) streamClosed() {
	if m == nil {
		return
	}
	m.openStreams.Dec()
}
