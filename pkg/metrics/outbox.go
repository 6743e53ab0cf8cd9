package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox failure reasons.
const (
	PublishRetryable    = "retryable"
	PublishNonRetryable = "non_retryable"
	PublishMaxAttempts  = "max_attempts"
)

// OutboxMetrics tracks the publisher loop.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failures  *prometheus.CounterVec
	lag       prometheus.Histogram
	deferred  prometheus.Counter
}

// NewOutboxMetrics registers the outbox publisher metrics.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events delivered to the broker.",
		}, []string{"event_type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Failed publish attempts by reason.",
		}, []string{"reason"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_lag_seconds",
			Help:      "Time between the ledger commit and broker acknowledgement.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 30, 120, 600, 3600},
		}),
		deferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "deferred_total",
			Help:      "Events held back behind a failed event of the same aggregate.",
		}),
	}
	reg.MustRegister(m.published, m.failures, m.lag, m.deferred)
	return m
}

// ObservePublished counts one delivered event and its commit-to-ack lag.
func (m *OutboxMetrics) ObservePublished(eventType string, createdAt time.Time) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(eventType).Inc()
	if !createdAt.IsZero() {
		m.lag.Observe(time.Since(createdAt).Seconds())
	}
}

// IncFailure counts one failed publish attempt.
func (m *OutboxMetrics) IncFailure(reason string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(reason).Inc()
}

// IncDeferred counts one event skipped for ordering.
func (m *OutboxMetrics) IncDeferred() {
	if m == nil || m.deferred == nil {
		return
	}
	m.deferred.Inc()
}
