// Package metrics exposes the Prometheus counters and histograms the
// daemon publishes for session, iteration, and tool-call activity,
// grounded on the teacher's internal/observability.Metrics (promauto
// CounterVec/HistogramVec registrations) but narrowed to the Agent
// Orchestration Core's own surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters and histograms this core publishes.
type Metrics struct {
	SessionsStarted  *prometheus.CounterVec
	SessionsFinished *prometheus.CounterVec

	IterationCounter  *prometheus.CounterVec
	IterationDuration *prometheus.HistogramVec

	ToolCallCounter  *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec

	ProviderRequestCounter  *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	HTTPRequestCounter  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers this core's metrics against reg. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_sessions_started_total",
			Help: "Agent sessions started, by agent kind.",
		}, []string{"agent_kind"}),
		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_sessions_finished_total",
			Help: "Agent sessions finished, by agent kind and outcome.",
		}, []string{"agent_kind", "outcome"}),
		IterationCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_loop_iterations_total",
			Help: "Agent Execution Loop iterations run, by agent kind.",
		}, []string{"agent_kind"}),
		IterationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manager_loop_iteration_duration_seconds",
			Help:    "Duration of one reason-tool-observe iteration.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"agent_kind"}),
		ToolCallCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_tool_calls_total",
			Help: "Tool dispatch calls, by tool name and status.",
		}, []string{"tool", "status"}),
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manager_tool_call_duration_seconds",
			Help:    "Tool dispatch latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"tool"}),
		ProviderRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_provider_requests_total",
			Help: "LLM provider requests, by provider and status.",
		}, []string{"provider", "model", "status"}),
		ProviderRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manager_provider_request_duration_seconds",
			Help:    "LLM provider request latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),
		HTTPRequestCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "manager_http_requests_total",
			Help: "HTTP API requests, by route and status code.",
		}, []string{"route", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "manager_http_request_duration_seconds",
			Help:    "HTTP API request latency.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
	}
}

// ObserveToolCall records one tool dispatch outcome.
func (m *Metrics) ObserveToolCall(tool, status string, d time.Duration) {
	m.ToolCallCounter.WithLabelValues(tool, status).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// ObserveProviderRequest records one LLM provider call outcome.
func (m *Metrics) ObserveProviderRequest(provider, model, status string, d time.Duration) {
	m.ProviderRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ProviderRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

// ObserveIteration records one Agent Execution Loop iteration.
func (m *Metrics) ObserveIteration(agentKind string, d time.Duration) {
	m.IterationCounter.WithLabelValues(agentKind).Inc()
	m.IterationDuration.WithLabelValues(agentKind).Observe(d.Seconds())
}
