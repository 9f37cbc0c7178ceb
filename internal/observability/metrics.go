package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Tool store search and CRUD activity
//   - Sandboxed tool execution outcomes and latency
//   - Oracle (LLM provider) request performance and failover behavior
//   - Reasoning agent iterations and terminal outcomes
//   - HTTP/websocket API traffic
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordSearch("hit", 0.042)
//	defer metrics.ToolExecutionDuration.WithLabelValues("add").Observe(time.Since(start).Seconds())
type Metrics struct {
	// ToolStoreSearchCounter counts search calls by outcome (hit|miss).
	ToolStoreSearchCounter *prometheus.CounterVec

	// ToolStoreSearchDuration measures search latency in seconds.
	ToolStoreSearchDuration prometheus.Histogram

	// ToolStoreBugReports counts report_bug calls by tool name.
	// Labels: tool_name
	ToolStoreBugReports *prometheus.CounterVec

	// ToolStoreMutations counts create/update/delete/deactivate calls.
	// Labels: operation (create|update|delete|deactivate|clear_bugs), status (ok|error)
	ToolStoreMutations *prometheus.CounterVec

	// SandboxExecutions counts sandboxed tool runs by outcome.
	// Labels: tool_name, outcome (ok|bugged|inactive|bad_arguments|compile_error|runtime_error|timeout|resource_denied)
	SandboxExecutions *prometheus.CounterVec

	// SandboxExecutionDuration measures sandboxed execution latency in seconds.
	// Labels: tool_name
	SandboxExecutionDuration *prometheus.HistogramVec

	// SandboxPoolWarm tracks currently warm sandbox instances by language/backend.
	SandboxPoolWarm *prometheus.GaugeVec

	// OracleRequests counts oracle calls by provider and status.
	// Labels: provider, model, status (success|retry|error)
	OracleRequests *prometheus.CounterVec

	// OracleRequestDuration measures oracle round-trip latency in seconds.
	// Labels: provider, model
	OracleRequestDuration *prometheus.HistogramVec

	// OracleCredentialRotations counts ring failovers by reason.
	// Labels: reason (rate_limited|auth_error|quota_exceeded)
	OracleCredentialRotations *prometheus.CounterVec

	// AgentIterations counts FSM iterations by state.
	// Labels: state
	AgentIterations *prometheus.CounterVec

	// AgentOutcomes counts terminated questions by terminal event.
	// Labels: outcome (final|timeout|error)
	AgentOutcomes *prometheus.CounterVec

	// AgentIterationDuration measures wall-clock time per question in seconds.
	AgentIterationDuration prometheus.Histogram

	// HTTPRequestDuration measures HTTP API request latency.
	// Labels: method, path, status_code
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestCounter counts HTTP requests.
	// Labels: method, path, status_code
	HTTPRequestCounter *prometheus.CounterVec

	// StreamingConnections tracks currently open orchestrator event streams.
	StreamingConnections prometheus.Gauge

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (toolstore|sandbox|oracle|agent|orchestrator), error_type
	ErrorCounter *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at application startup.
func NewMetrics() *Metrics {
	return &Metrics{
		ToolStoreSearchCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_toolstore_search_total",
				Help: "Total number of tool store search calls by outcome",
			},
			[]string{"outcome"},
		),

		ToolStoreSearchDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolmind_toolstore_search_duration_seconds",
				Help:    "Duration of tool store search calls in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),

		ToolStoreBugReports: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_toolstore_bug_reports_total",
				Help: "Total number of bug reports recorded by tool name",
			},
			[]string{"tool_name"},
		),

		ToolStoreMutations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_toolstore_mutations_total",
				Help: "Total number of tool store mutating calls by operation and status",
			},
			[]string{"operation", "status"},
		),

		SandboxExecutions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_sandbox_executions_total",
				Help: "Total number of sandboxed tool executions by outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		SandboxExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolmind_sandbox_execution_duration_seconds",
				Help:    "Duration of sandboxed tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		SandboxPoolWarm: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "toolmind_sandbox_pool_warm_instances",
				Help: "Current number of warm sandbox instances by backend",
			},
			[]string{"backend"},
		),

		OracleRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_oracle_requests_total",
				Help: "Total number of oracle requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		OracleRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolmind_oracle_request_duration_seconds",
				Help:    "Duration of oracle requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		OracleCredentialRotations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_oracle_credential_rotations_total",
				Help: "Total number of oracle credential ring rotations by reason",
			},
			[]string{"reason"},
		),

		AgentIterations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_agent_iterations_total",
				Help: "Total number of reasoning agent iterations by state",
			},
			[]string{"state"},
		),

		AgentOutcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_agent_outcomes_total",
				Help: "Total number of terminated questions by outcome",
			},
			[]string{"outcome"},
		),

		AgentIterationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "toolmind_agent_question_duration_seconds",
				Help:    "Wall-clock duration of a question from start to terminal event",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolmind_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"method", "path", "status_code"},
		),

		HTTPRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),

		StreamingConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolmind_streaming_connections",
				Help: "Current number of open orchestrator event streams",
			},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolmind_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),
	}
}

// RecordSearch records a tool store search call.
func (m *Metrics) RecordSearch(outcome string, durationSeconds float64) {
	m.ToolStoreSearchCounter.WithLabelValues(outcome).Inc()
	m.ToolStoreSearchDuration.Observe(durationSeconds)
}

// RecordBugReport records a bug report against a tool.
func (m *Metrics) RecordBugReport(toolName string) {
	m.ToolStoreBugReports.WithLabelValues(toolName).Inc()
}

// RecordMutation records a tool store mutating call.
func (m *Metrics) RecordMutation(operation string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ToolStoreMutations.WithLabelValues(operation, status).Inc()
}

// RecordSandboxExecution records a sandboxed tool execution.
func (m *Metrics) RecordSandboxExecution(toolName, outcome string, durationSeconds float64) {
	m.SandboxExecutions.WithLabelValues(toolName, outcome).Inc()
	m.SandboxExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// SetSandboxPoolWarm sets the warm-instance gauge for a backend.
func (m *Metrics) SetSandboxPoolWarm(backend string, count int) {
	m.SandboxPoolWarm.WithLabelValues(backend).Set(float64(count))
}

// RecordOracleRequest records an oracle API call.
func (m *Metrics) RecordOracleRequest(provider, model, status string, durationSeconds float64) {
	m.OracleRequests.WithLabelValues(provider, model, status).Inc()
	m.OracleRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
}

// RecordCredentialRotation records an oracle ring failover.
func (m *Metrics) RecordCredentialRotation(reason string) {
	m.OracleCredentialRotations.WithLabelValues(reason).Inc()
}

// RecordAgentIteration records one FSM iteration.
func (m *Metrics) RecordAgentIteration(state string) {
	m.AgentIterations.WithLabelValues(state).Inc()
}

// RecordAgentOutcome records a question's terminal event and total duration.
func (m *Metrics) RecordAgentOutcome(outcome string, durationSeconds float64) {
	m.AgentOutcomes.WithLabelValues(outcome).Inc()
	m.AgentIterationDuration.Observe(durationSeconds)
}

// RecordHTTPRequest records metrics for an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, durationSeconds float64) {
	m.HTTPRequestCounter.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationSeconds)
}

// StreamOpened increments the open-streams gauge.
func (m *Metrics) StreamOpened() {
	m.StreamingConnections.Inc()
}

// StreamClosed decrements the open-streams gauge.
func (m *Metrics) StreamClosed() {
	m.StreamingConnections.Dec()
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}
