package observability

import "time"

// LatencyBuckets are the upper bounds, in seconds, of the tool latency
// histogram. Platform calls are dominated by network round trips.
var LatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// ServerMetrics is the metric set of one MCP server.
type ServerMetrics struct {
	Registry *MetricsRegistry

	ToolCalls    *Counter
	ToolErrors   *Counter
	ToolRejects  *Counter
	ToolFailures *Counter
	ToolLatency  *Histogram
	InFlight     *Gauge
}

// NewServerMetrics creates the metric set, labelled with the server name.
func NewServerMetrics(server string) *ServerMetrics {
	r := NewMetricsRegistry(map[string]string{"server": server})
	return &ServerMetrics{
		Registry:     r,
		ToolCalls:    r.GetCounter("platform_mcp_tool_calls_total", "Tool invocations received"),
		ToolErrors:   r.GetCounter("platform_mcp_tool_errors_total", "Invocations answered with a platform error result"),
		ToolRejects:  r.GetCounter("platform_mcp_tool_rejects_total", "Invocations rejected for an unknown tool or invalid parameters"),
		ToolFailures: r.GetCounter("platform_mcp_tool_failures_total", "Invocations that failed with an internal error"),
		ToolLatency:  r.GetHistogram("platform_mcp_tool_latency_seconds", "Tool invocation latency", LatencyBuckets),
		InFlight:     r.GetGauge("platform_mcp_tool_calls_in_flight", "Tool invocations currently running"),
	}
}

// Outcome classifies a finished invocation.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomeRejected
	OutcomeFailed
)

// Begin records the start of an invocation and returns the function that
// records its end.
func (m *ServerMetrics) Begin() func(Outcome) {
	start := time.Now()
	m.ToolCalls.Inc()
	m.InFlight.Inc()
	return func(o Outcome) {
		m.InFlight.Dec()
		m.ToolLatency.Observe(time.Since(start).Seconds())
		switch o {
		case OutcomeError:
			m.ToolErrors.Inc()
		case OutcomeRejected:
			m.ToolRejects.Inc()
		case OutcomeFailed:
			m.ToolFailures.Inc()
		}
	}
}
