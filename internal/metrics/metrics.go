// Package metrics provides Prometheus metrics for OpsCopilot.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveSessions tracks the number of open sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "opscopilot_active_sessions",
			Help: "Number of currently open sessions",
		},
	)

	// SessionsCreated tracks the total number of sessions created.
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opscopilot_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	// FlowsStarted counts flows by type.
	FlowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opscopilot_flows_started_total",
			Help: "Total number of scripted flows started",
		},
		[]string{"flow_type"},
	)

	// FlowsEnded counts finished flows by type and how they ended.
	FlowsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opscopilot_flows_ended_total",
			Help: "Total number of scripted flows torn down",
		},
		[]string{"flow_type", "reason"},
	)

	// StateTransitions tracks flow state changes.
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opscopilot_flow_state_transitions_total",
			Help: "Total number of flow state transitions",
		},
		[]string{"flow_type", "from_state", "to_state"},
	)

	// ActionsHandled counts button clicks by action and outcome.
	ActionsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opscopilot_actions_total",
			Help: "Total number of actions routed to flows",
		},
		[]string{"action", "outcome"},
	)

	// EventsDropped counts events not delivered to a full subscriber buffer.
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opscopilot_events_dropped_total",
			Help: "Total number of session events dropped for slow subscribers",
		},
	)

	// ResponderDuration tracks fallback responder latency.
	ResponderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opscopilot_responder_duration_seconds",
			Help:    "Duration of fallback responder calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)
)

// RecordSessionCreated increments session creation metrics.
func RecordSessionCreated() {
	SessionsCreated.Inc()
	ActiveSessions.Inc()
}

// RecordSessionClosed decrements the open session gauge.
func RecordSessionClosed() {
	ActiveSessions.Dec()
}

// RecordFlowStarted counts a started flow.
func RecordFlowStarted(flowType string) {
	FlowsStarted.WithLabelValues(flowType).Inc()
}

// RecordFlowEnded counts a torn-down flow.
func RecordFlowEnded(flowType, reason string) {
	FlowsEnded.WithLabelValues(flowType, reason).Inc()
}

// RecordStateTransition records a flow state change.
func RecordStateTransition(flowType, fromState, toState string) {
	StateTransitions.WithLabelValues(flowType, fromState, toState).Inc()
}

// RecordAction records the outcome of an action request.
func RecordAction(action string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	ActionsHandled.WithLabelValues(action, outcome).Inc()
}

// RecordEventDropped counts an undelivered event.
func RecordEventDropped() {
	EventsDropped.Inc()
}

// ObserveResponder records one responder call.
func ObserveResponder(seconds float64, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ResponderDuration.WithLabelValues(outcome).Observe(seconds)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
