package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nova_relay"

// Metrics holds all Prometheus metrics. Each instance owns its registry so
// several relays (or tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Relay metrics
	RelayRequests  *prometheus.CounterVec
	IntentInferred *prometheus.CounterVec

	// Backend metrics
	BackendCalls    *prometheus.CounterVec
	BackendDuration *prometheus.HistogramVec
	BackendErrors   *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec

	// Session metrics
	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsExpired prometheus.Counter
	SessionsEvicted prometheus.Counter
	SessionsRenewed prometheus.Counter
	PersistErrors   prometheus.Counter
	WindowTurns     prometheus.Histogram

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for the JSON health endpoint
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint.
type Snapshot struct {
	TotalRequests  int64            `json:"total_requests"`
	TotalErrors    int64            `json:"total_errors"`
	RelaysByKind   map[string]int64 `json:"relays_by_kind"`
	BackendErrors  int64            `json:"backend_errors"`
	ActiveSessions int64            `json:"active_sessions"`
	AvgLatencyMS   float64          `json:"avg_latency_ms"`
	UptimeSeconds  float64          `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a new metrics collector with its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		snapshot:  Snapshot{RelaysByKind: make(map[string]int64)},

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 150},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_size_bytes",
				Help:      "HTTP request size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Relay metrics
		RelayRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_requests_total",
				Help:      "Relay requests by resolved kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		IntentInferred: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "intent_inferred_total",
				Help:      "Kinds resolved by intent inference",
			},
			[]string{"kind"},
		),

		// Backend metrics
		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_calls_total",
				Help:      "Total number of AI backend calls",
			},
			[]string{"endpoint", "status"},
		),
		BackendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_call_duration_seconds",
				Help:      "AI backend call duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90, 150},
			},
			[]string{"endpoint"},
		),
		BackendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_errors_total",
				Help:      "AI backend failures by error kind",
			},
			[]string{"endpoint", "kind"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "breaker_state",
				Help:      "Circuit breaker state per backend endpoint (0 closed, 1 half-open, 2 open)",
			},
			[]string{"endpoint"},
		),

		// Session metrics
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of live sessions",
			},
		),
		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_created_total",
				Help:      "Total number of sessions created",
			},
		),
		SessionsExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_expired_total",
				Help:      "Total number of sessions removed after inactivity",
			},
		),
		SessionsEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_evicted_total",
				Help:      "Total number of sessions evicted at capacity",
			},
		),
		SessionsRenewed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_renewed_total",
				Help:      "Expired session IDs that were reused with a fresh context",
			},
		),
		PersistErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_persist_errors_total",
				Help:      "Failed session snapshot writes",
			},
		),
		WindowTurns: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "context_window_turns",
				Help:      "Turns sent as context with each chat request",
				Buckets:   []float64{0, 2, 4, 6, 8, 10, 14, 20, 30},
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Relay uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordRelay records a completed relay request.
func (m *Metrics) RecordRelay(kind, outcome string) {
	m.RelayRequests.WithLabelValues(kind, outcome).Inc()

	m.mu.Lock()
	m.snapshot.RelaysByKind[kind]++
	m.mu.Unlock()
}

// RecordInferred records a kind chosen by intent inference.
func (m *Metrics) RecordInferred(kind string) {
	m.IntentInferred.WithLabelValues(kind).Inc()
}

// RecordBackendCall records a backend call
func (m *Metrics) RecordBackendCall(endpoint, status string, duration time.Duration) {
	m.BackendCalls.WithLabelValues(endpoint, status).Inc()
	m.BackendDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordBackendError records a backend failure
func (m *Metrics) RecordBackendError(endpoint, kind string) {
	m.BackendErrors.WithLabelValues(endpoint, kind).Inc()

	m.mu.Lock()
	m.snapshot.BackendErrors++
	m.mu.Unlock()
}

// SetBreakerState records a breaker transition.
func (m *Metrics) SetBreakerState(endpoint string, state int) {
	m.BreakerState.WithLabelValues(endpoint).Set(float64(state))
}

// SetSessionsActive sets the number of live sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))

	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsCreated increments the sessions created counter
func (m *Metrics) IncSessionsCreated() {
	m.SessionsCreated.Inc()
}

// AddSessionsExpired counts sessions dropped by a sweep
func (m *Metrics) AddSessionsExpired(n int) {
	m.SessionsExpired.Add(float64(n))
}

// IncSessionsEvicted increments the sessions evicted counter
func (m *Metrics) IncSessionsEvicted() {
	m.SessionsEvicted.Inc()
}

// IncSessionsRenewed increments the sessions renewed counter
func (m *Metrics) IncSessionsRenewed() {
	m.SessionsRenewed.Inc()
}

// ObserveWindow records the context window size of a chat request
func (m *Metrics) ObserveWindow(turns int) {
	m.WindowTurns.Observe(float64(turns))
}

// IncPersistErrors increments the persist failure counter
func (m *Metrics) IncPersistErrors() {
	m.PersistErrors.Inc()
}
