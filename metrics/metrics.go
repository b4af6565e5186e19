// Package metrics provides Prometheus metrics for church-admin-gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GuardDecisionsTotal counts access guard decisions by outcome.
	GuardDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "church_admin",
			Name:      "guard_decisions_total",
			Help:      "Total number of access guard decisions",
		},
		[]string{"outcome"},
	)

	// AuthorizationDeniedTotal counts 403 responses seen from the church API.
	AuthorizationDeniedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "church_admin",
			Name:      "authorization_denied_total",
			Help:      "Total number of 403 responses intercepted from the church API",
		},
	)

	// SessionOperationsTotal counts login, logout, register and profile updates.
	SessionOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "church_admin",
			Name:      "session_operations_total",
			Help:      "Total number of session operations",
		},
		[]string{"operation", "result"},
	)

	// SessionOperationDuration measures calls to the church API auth endpoints.
	SessionOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "church_admin",
			Name:      "session_operation_duration_seconds",
			Help:      "Duration of session operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// SessionRestoresTotal counts session restores by result.
	SessionRestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "church_admin",
			Name:      "session_restores_total",
			Help:      "Total number of session restores from the encrypted store",
		},
		[]string{"result"},
	)

	// ActiveBrowserContexts tracks browser contexts with a live session manager.
	ActiveBrowserContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "church_admin",
			Name:      "active_browser_contexts",
			Help:      "Number of browser contexts with a live session manager",
		},
	)
)

// RecordGuardDecision records an access guard decision.
func RecordGuardDecision(outcome string) {
	GuardDecisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAuthorizationDenied records an intercepted 403.
func RecordAuthorizationDenied() {
	AuthorizationDeniedTotal.Inc()
}

// RecordSessionOperation records a session operation.
func RecordSessionOperation(operation, result string, duration float64) {
	SessionOperationsTotal.WithLabelValues(operation, result).Inc()
	SessionOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRestore records the result of a session restore.
func RecordRestore(result string) {
	SessionRestoresTotal.WithLabelValues(result).Inc()
}

// BrowserContextOpened increments the live browser context gauge.
func BrowserContextOpened() {
	ActiveBrowserContexts.Inc()
}

// BrowserContextClosed decrements the live browser context gauge.
func BrowserContextClosed() {
	ActiveBrowserContexts.Dec()
}
