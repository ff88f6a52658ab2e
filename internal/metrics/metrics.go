// Package metrics exposes the engine's Prometheus instrumentation: rule
// evaluation counters and phase-duration histograms from the rule engine
// core, plus control-channel command counters. Grounded on the teacher's
// infrastructure/metrics package (one file of package-level vectors, a
// single MustRegister entry point), adapted from HTTP-service metrics to
// rule-evaluation and control-channel metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RulesEvaluatedTotal counts every top-level or chained rule
	// evaluation, labeled by phase and whether the rule's targets
	// evaluated truthy or falsy.
	RulesEvaluatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ironbee_engine_rules_evaluated_total",
		Help: "Total number of rule evaluations, by phase and outcome.",
	}, []string{"phase", "outcome"})

	// PhaseDurationSeconds observes the wall-clock time spent evaluating
	// every rule registered at a phase during one EvalPhase call.
	PhaseDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ironbee_engine_phase_duration_seconds",
		Help:    "Time spent evaluating all rules registered at a phase.",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	// ControlCommandsTotal counts control-channel requests, labeled by
	// command name and outcome (ok, declined, err, unknown_command, and,
	// under command "unknown", too_large, rate_limited, empty).
	ControlCommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ironbee_engine_control_commands_total",
		Help: "Total number of control channel commands processed, by command and outcome.",
	}, []string{"command", "outcome"})
)

// MustRegister registers every collector in this package against reg. A
// host process calls this once at startup with its own Prometheus
// registry (or prometheus.DefaultRegisterer).
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(RulesEvaluatedTotal, PhaseDurationSeconds, ControlCommandsTotal)
}
