package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeApplied  = "applied"
	OutcomeRejected = "rejected"

	EscalationPromoted = "promoted"
	EscalationFlagged  = "flagged"
)

// LedgerMetrics tracks allocation adjustments and escalation sweep results.
type LedgerMetrics struct {
	adjustments    *prometheus.CounterVec
	escalations    *prometheus.CounterVec
	tenantFailures prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	adjustments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_adjustments_total",
		Help:      "Allocation ledger adjustments by outcome.",
	}, []string{"outcome"})
	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "approval_escalations_total",
		Help:      "Approval items escalated by the sweep.",
	}, []string{"result"})
	tenantFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalation_tenant_failures_total",
		Help:      "Tenant passes of the escalation sweep that ended in error.",
	})
	reg.MustRegister(adjustments, escalations, tenantFailures)
	return &LedgerMetrics{
		adjustments:    adjustments,
		escalations:    escalations,
		tenantFailures: tenantFailures,
	}
}

// IncAdjustment counts one ledger adjustment attempt.
func (m *LedgerMetrics) IncAdjustment(outcome string) {
	if m == nil || m.adjustments == nil {
		return
	}
	m.adjustments.WithLabelValues(labelValue(outcome)).Inc()
}

// AddEscalations counts escalated approval items.
func (m *LedgerMetrics) AddEscalations(result string, n int) {
	if m == nil || m.escalations == nil || n <= 0 {
		return
	}
	m.escalations.WithLabelValues(labelValue(result)).Add(float64(n))
}

// IncTenantFailure counts a failed tenant pass.
func (m *LedgerMetrics) IncTenantFailure() {
	if m == nil || m.tenantFailures == nil {
		return
	}
	m.tenantFailures.Inc()
}

// EscalationCounter exposes the escalation counter for result.
func (m *LedgerMetrics) EscalationCounter(result string) prometheus.Counter {
	return m.escalations.WithLabelValues(labelValue(result))
}

// TenantFailureCounter exposes the tenant failure counter.
func (m *LedgerMetrics) TenantFailureCounter() prometheus.Counter {
	return m.tenantFailures
}
