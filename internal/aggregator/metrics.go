package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "mcpstudio"
	metricsSubsystem = "mcp"

	resultSuccess = "success"
	resultFailure = "failure"
)

// Metrics holds the Prometheus collectors of the connection manager.
//
// A nil *Metrics is valid and records nothing, so the manager can run
// without a registry in tests and CLI commands.
type Metrics struct {
	connectAttempts *prometheus.CounterVec
	connectDuration *prometheus.HistogramVec
	readyServers    prometheus.Gauge
	toolCalls       *prometheus.CounterVec
	resourceReads   *prometheus.CounterVec
}

// NewMetrics creates the manager's collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts to MCP servers by transport and result.",
		}, []string{"transport", "result"}),
		connectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connect_duration_seconds",
			Help:      "Time to spawn or dial an MCP server and complete the handshake.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"transport"}),
		readyServers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "ready_connections",
			Help:      "Number of MCP server connections in the ready state.",
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "tool_calls_total",
			Help:      "Tool calls routed to MCP servers by result.",
		}, []string{"result"}),
		resourceReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "resource_reads_total",
			Help:      "Resource reads routed to MCP servers by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.connectAttempts, m.connectDuration, m.readyServers, m.toolCalls, m.resourceReads)
	return m
}

func resultLabel(err error) string {
	if err != nil {
		return resultFailure
	}
	return resultSuccess
}

func (m *Metrics) observeConnect(transport string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(transport, resultLabel(err)).Inc()
	m.connectDuration.WithLabelValues(transport).Observe(seconds)
}

func (m *Metrics) readyInc() {
	if m == nil {
		return
	}
	m.readyServers.Inc()
}

func (m *Metrics) readyDec() {
	if m == nil {
		return
	}
	m.readyServers.Dec()
}

func (m *Metrics) observeToolCall(err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(resultLabel(err)).Inc()
}

func (m *Metrics) observeResourceRead(err error) {
	if m == nil {
		return
	}
	m.resourceReads.WithLabelValues(resultLabel(err)).Inc()
}
