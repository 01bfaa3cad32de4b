package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ticketera"

// Metrics holds the collectors of one process on a private registry.
// A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scans           *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	failures        *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	journalWrites   *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "QR scans by result (full, limited, malformed, error).",
		}, []string{"result"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliations_total",
			Help:      "Successful remote operations by operation and applied path.",
		}, []string{"operation", "applied"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Failed operations by operation and error code.",
		}, []string{"operation", "code"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Local API requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Local API latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		journalWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "journal_writes_total",
			Help:      "Journal inserts by operation and result.",
		}, []string{"operation", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.scans,
		m.reconciliations,
		m.failures,
		m.httpRequests,
		m.httpDuration,
		m.journalWrites,
	)
	return m
}

func (m *Metrics) Scan(result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(result).Inc()
}

func (m *Metrics) Reconciled(operation, applied string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(operation, applied).Inc()
}

func (m *Metrics) Failed(operation, code string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) JournalWrite(operation, result string) {
	if m == nil {
		return
	}
	m.journalWrites.WithLabelValues(operation, result).Inc()
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
