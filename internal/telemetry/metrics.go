// Package telemetry exposes the Prometheus instrumentation for the monitor
// core: watchpoint dispatch counts, trigger re-evaluation outcomes, and
// dispatch latency. Every Metrics value is backed by its own private
// registry rather than the global default: the daemon builds one and shares
// it across all Monitors and Watchers, and tests can build independent ones
// without colliding on metric registration.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the counters and histogram the watcher and monitor
// packages record against.
type Metrics struct {
	Registry *prometheus.Registry

	WatchpointEvents    *prometheus.CounterVec
	TriggerEvaluations  *prometheus.CounterVec
	DispatchLatency     *prometheus.HistogramVec
}

// New builds a Metrics bound to a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		WatchpointEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivmon_watchpoint_events_total",
			Help: "Watchpoint notifications dispatched to a module, by module name.",
		}, []string{"module"}),
		TriggerEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ivmon_trigger_evaluations_total",
			Help: "Criteria re-evaluations performed on a trigger, by module and result.",
		}, []string{"module", "result"}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ivmon_watchpoint_dispatch_seconds",
			Help:    "Time from a watchpoint line being read to its trigger evaluation completing.",
			Buckets: prometheus.DefBuckets,
		}, []string{"module"}),
	}
	reg.MustRegister(m.WatchpointEvents, m.TriggerEvaluations, m.DispatchLatency)
	return m
}
