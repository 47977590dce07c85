// Package metrics defines Prometheus metrics for the portal guard.
//
// All metrics are registered with Registry, which the server exposes on
// /metrics. Names use the portalguard_ prefix and the _total suffix for
// counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds every portal guard collector.
	Registry = prometheus.NewRegistry()

	// DecisionsTotal counts route access decisions by resulting state.
	DecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portalguard_decisions_total",
			Help: "Route access decisions by state.",
		},
		[]string{"state"},
	)

	// AuthAttemptsTotal counts authentication attempts by identity source and outcome.
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portalguard_auth_attempts_total",
			Help: "Authentication attempts by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	// GraceWindowsTotal counts grace windows by how they ended (session, timeout, closed).
	GraceWindowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portalguard_grace_windows_total",
			Help: "Hydration grace windows by result.",
		},
		[]string{"result"},
	)

	// IdleExpiriesTotal counts sessions terminated for inactivity.
	IdleExpiriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portalguard_idle_expiries_total",
			Help: "Sessions terminated by the idle monitor.",
		},
	)

	// AuditDroppedTotal counts audit entries dropped because the queue was full.
	AuditDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portalguard_audit_dropped_total",
			Help: "Audit entries dropped on a full queue.",
		},
	)

	// AuditWriteFailuresTotal counts audit entries the log rejected.
	AuditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "portalguard_audit_write_failures_total",
			Help: "Audit entries that failed to persist.",
		},
	)
)

func init() {
	Registry.MustRegister(
		DecisionsTotal,
		AuthAttemptsTotal,
		GraceWindowsTotal,
		IdleExpiriesTotal,
		AuditDroppedTotal,
		AuditWriteFailuresTotal,
		collectors.NewGoCollector(),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
