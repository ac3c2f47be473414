package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studydesk"

var (
	latencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	sizeBuckets    = prometheus.ExponentialBuckets(128, 8, 6)
	callBuckets    = []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
)

// Metrics is the backend's collector set
type Metrics struct {
	registry *prometheus.Registry
	started  time.Time

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	WorkspacesActive prometheus.Gauge
	PanelOps         *prometheus.CounterVec
	LockTransitions  *prometheus.CounterVec
	Sessions         *prometheus.CounterVec
	SnapshotsSaved   prometheus.Counter
	SnapshotsLoaded  prometheus.Counter

	GatewayWrites  *prometheus.CounterVec
	GatewayPending *prometheus.GaugeVec
	Reconciled     *prometheus.CounterVec
	RemoteDuration *prometheus.HistogramVec
	BreakerState   *prometheus.GaugeVec

	// Calls are notes, study, auth and generation operations
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	CallErrors   *prometheus.CounterVec

	StreamClients prometheus.Gauge
	StreamFrames  *prometheus.CounterVec

	Uptime prometheus.Gauge

	mu      sync.RWMutex
	summary Summary
}

// Summary holds the running totals served by the JSON metrics endpoint
type Summary struct {
	TotalRequests     int64
	TotalErrors       int64
	ActiveWorkspaces  int64
	ActiveConnections int64
	LocalFallbacks    int64
	// TotalDuration and RequestCount exclude long-lived routes
	TotalDuration     float64
	RequestCount      int64
}

type factory struct{ promauto.Factory }

func (f factory) counter(name, help string, labels ...string) *prometheus.CounterVec {
	return f.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func (f factory) gauge(name, help string, labels ...string) *prometheus.GaugeVec {
	return f.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func (f factory) histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: name, Help: help, Buckets: buckets}, labels)
}

// NewMetrics creates a collector set on a private registry that also
// carries the Go runtime and process collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := factory{promauto.With(reg)}
	single := func(name, help string) prometheus.Gauge {
		return f.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}
	count := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}

	return &Metrics{
		registry: reg,
		started:  time.Now(),

		RequestsTotal:   f.counter("http_requests_total", "API requests by route and status", "method", "path", "status"),
		RequestDuration: f.histogram("http_request_duration_seconds", "API request latency", latencyBuckets, "method", "path"),
		RequestSize:     f.histogram("http_request_size_bytes", "API request body size", sizeBuckets, "method", "path"),
		ResponseSize:    f.histogram("http_response_size_bytes", "API response body size", sizeBuckets, "method", "path"),

		WorkspacesActive: single("workspaces_active", "Open workspaces"),
		PanelOps:         f.counter("panel_operations_total", "Window manager operations by outcome", "op", "outcome"),
		LockTransitions:  f.counter("focus_lock_transitions_total", "Focus lock transitions", "to"),
		Sessions:         f.counter("sessions_total", "Timer sessions by mode and outcome", "mode", "outcome"),
		SnapshotsSaved:   count("snapshots_saved_total", "Workspace snapshots written to the local tier"),
		SnapshotsLoaded:  count("snapshots_loaded_total", "Workspace snapshots restored from the local tier"),

		GatewayWrites:  f.counter("gateway_writes_total", "Gateway mutations by entity kind and the tier that took them", "kind", "op", "tier"),
		GatewayPending: f.gauge("gateway_pending", "Entities held only by the local tier", "kind"),
		Reconciled:     f.counter("gateway_reconciled_total", "Local-only entities replayed to the remote tier", "kind", "outcome"),
		RemoteDuration: f.histogram("remote_duration_seconds", "Remote store call latency", latencyBuckets[:10], "op"),
		BreakerState:   f.gauge("breaker_state", "Circuit breaker state (0 closed, 1 half-open, 2 open)", "name"),

		Calls:        f.counter("calls_total", "Component operations by outcome", "component", "op", "status"),
		CallDuration: f.histogram("call_duration_seconds", "Component operation latency", callBuckets, "component", "op"),
		CallErrors:   f.counter("call_errors_total", "Failed component operations by error kind", "component", "op", "kind"),

		StreamClients: single("ws_connections", "Connected event stream clients"),
		StreamFrames:  f.counter("ws_messages_total", "Event stream frames", "direction", "type"),

		Uptime: single("uptime_seconds", "Seconds since the backend started"),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordHTTPRequest observes one finished API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, elapsed time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	failed := status != "" && status[0] >= '4'
	m.update(func(s *Summary) {
		s.TotalRequests++
		s.RequestCount++
		s.TotalDuration += elapsed.Seconds()
		if failed {
			s.TotalErrors++
		}
	})
}

// RecordPanelOp counts a window manager operation; applied is false when
// focus lock or a no-op suppressed it
func (m *Metrics) RecordPanelOp(op string, applied bool) {
	m.PanelOps.WithLabelValues(op, choose(applied, "applied", "suppressed")).Inc()
}

func (m *Metrics) RecordLockTransition(locked bool) {
	m.LockTransitions.WithLabelValues(choose(locked, "locked", "unlocked")).Inc()
}

func (m *Metrics) RecordSession(mode, outcome string) {
	m.Sessions.WithLabelValues(mode, outcome).Inc()
}

// RecordGatewayWrite counts which tier absorbed a mutation
func (m *Metrics) RecordGatewayWrite(kind, op, tier string) {
	m.GatewayWrites.WithLabelValues(kind, op, tier).Inc()
	if tier == "local" {
		m.update(func(s *Summary) { s.LocalFallbacks++ })
	}
}

func (m *Metrics) SetGatewayPending(kind string, n int) {
	m.GatewayPending.WithLabelValues(kind).Set(float64(n))
}

func (m *Metrics) RecordReconciled(kind, outcome string) {
	m.Reconciled.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveRemote(op string, elapsed time.Duration) {
	m.RemoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordCall observes one component operation
func (m *Metrics) RecordCall(component, op, status string, elapsed time.Duration) {
	m.Calls.WithLabelValues(component, op, status).Inc()
	m.CallDuration.WithLabelValues(component, op).Observe(elapsed.Seconds())
}

// RecordCallError counts a failed component operation by error kind
func (m *Metrics) RecordCallError(component, op, kind string) {
	m.CallErrors.WithLabelValues(component, op, kind).Inc()
}

func (m *Metrics) RecordWSMessage(direction, frameType string) {
	m.StreamFrames.WithLabelValues(direction, frameType).Inc()
}

func (m *Metrics) SetWorkspacesActive(n int) {
	m.WorkspacesActive.Set(float64(n))
	m.update(func(s *Summary) { s.ActiveWorkspaces = int64(n) })
}

func (m *Metrics) IncSnapshotsSaved()  { m.SnapshotsSaved.Inc() }
func (m *Metrics) IncSnapshotsLoaded() { m.SnapshotsLoaded.Inc() }

func (m *Metrics) IncWSConnections() {
	m.StreamClients.Inc()
	m.update(func(s *Summary) { s.ActiveConnections++ })
}

func (m *Metrics) DecWSConnections() {
	m.StreamClients.Dec()
	m.update(func(s *Summary) { s.ActiveConnections-- })
}

// UpdateUptime refreshes the uptime gauge
func (m *Metrics) UpdateUptime() {
	m.Uptime.Set(m.UptimeSeconds())
}

func (m *Metrics) UptimeSeconds() float64 {
	return time.Since(m.started).Seconds()
}

// Snapshot returns a copy of the running totals
func (m *Metrics) Snapshot() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.summary
}

func (m *Metrics) update(fn func(*Summary)) {
	m.mu.Lock()
	fn(&m.summary)
	m.mu.Unlock()
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}
