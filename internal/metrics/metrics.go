// Package metrics exposes Prometheus instrumentation for the crypto core.
// It generalizes the structured-logging observability already carried by
// internal/obslog into counters and histograms, using the same client
// library the rest of the stack already depends on for telemetry export.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry groups every metric the core emits. A nil *Registry is valid and
// every method on it is a safe no-op, so callers that do not wire metrics
// (most unit tests) need not construct one.
type Registry struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	auditWritesTotal  *prometheus.CounterVec
	anomaliesTotal    *prometheus.CounterVec
	activeKeysGauge   *prometheus.GaugeVec
}

// New creates a Registry and registers its collectors against reg.
func New(reg prometheus.Registerer) *Registry {
	m := &Registry{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "privacycore",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Count of encrypt/decrypt dispatches by algorithm and outcome.",
		}, []string{"algorithm", "kind", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "privacycore",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency of encrypt/decrypt dispatches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"algorithm", "kind"}),
		auditWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "privacycore",
			Subsystem: "audit",
			Name:      "writes_total",
			Help:      "Count of audit records written by action and status.",
		}, []string{"action", "status"}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "privacycore",
			Subsystem: "anomaly",
			Name:      "detected_total",
			Help:      "Count of anomalies detected by type and severity.",
		}, []string{"type", "severity"}),
		activeKeysGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "privacycore",
			Subsystem: "keyregistry",
			Name:      "active_keys",
			Help:      "Current count of active keys by algorithm.",
		}, []string{"algorithm"}),
	}

	reg.MustRegister(m.operationsTotal, m.operationDuration, m.auditWritesTotal, m.anomaliesTotal, m.activeKeysGauge)
	return m
}

// ObserveOperation records one encrypt/decrypt dispatch.
func (m *Registry) ObserveOperation(algorithm, kind, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(algorithm, kind, outcome).Inc()
	m.operationDuration.WithLabelValues(algorithm, kind).Observe(duration.Seconds())
}

// ObserveAuditWrite records one audit record write.
func (m *Registry) ObserveAuditWrite(action, status string) {
	if m == nil {
		return
	}
	m.auditWritesTotal.WithLabelValues(action, status).Inc()
}

// ObserveAnomaly records one anomaly detection hit.
func (m *Registry) ObserveAnomaly(anomalyType, severity string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(anomalyType, severity).Inc()
}

// SetActiveKeys reports the current count of active keys for algorithm.
func (m *Registry) SetActiveKeys(algorithm string, count int) {
	if m == nil {
		return
	}
	m.activeKeysGauge.WithLabelValues(algorithm).Set(float64(count))
}
