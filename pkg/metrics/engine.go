package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics tracks the fulfillment and dispatch hot paths.
type EngineMetrics struct {
	orderTransitions *prometheus.CounterVec
	claimConflicts   *prometheus.CounterVec
	tokensConsumed   prometheus.Counter
	outboxPublished  prometheus.Counter
	outboxFailed     prometheus.Counter
	outboxLag        prometheus.Histogram
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	orderTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by source and target state.",
	}, []string{"from", "to"})
	claimConflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "claim_conflicts_total",
		Help: "Compare-and-set losses by operation (accept race, token reuse).",
	}, []string{"operation"})
	tokensConsumed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_tokens_consumed_total",
		Help: "Successfully consumed delivery tokens.",
	})
	outboxPublished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_published_total",
		Help: "Outbox rows published to the transport.",
	})
	outboxFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_failures_total",
		Help: "Outbox publish attempts that failed.",
	})
	outboxLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "outbox_publish_lag_seconds",
		Help:    "Delay between outbox row creation and publication.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})
	reg.MustRegister(orderTransitions, claimConflicts, tokensConsumed, outboxPublished, outboxFailed, outboxLag)
	return &EngineMetrics{
		orderTransitions: orderTransitions,
		claimConflicts:   claimConflicts,
		tokensConsumed:   tokensConsumed,
		outboxPublished:  outboxPublished,
		outboxFailed:     outboxFailed,
		outboxLag:        outboxLag,
	}
}

// IncOrderTransition records a completed order transition.
func (m *EngineMetrics) IncOrderTransition(from, to string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncClaimConflict records a compare-and-set loss for the named operation.
func (m *EngineMetrics) IncClaimConflict(operation string) {
	if m == nil || m.claimConflicts == nil {
		return
	}
	m.claimConflicts.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncTokenConsumed records a successful token consumption.
func (m *EngineMetrics) IncTokenConsumed() {
	if m == nil || m.tokensConsumed == nil {
		return
	}
	m.tokensConsumed.Inc()
}

// IncOutboxPublished records a published outbox row.
func (m *EngineMetrics) IncOutboxPublished() {
	if m == nil || m.outboxPublished == nil {
		return
	}
	m.outboxPublished.Inc()
}

// IncOutboxFailed records a failed publish attempt.
func (m *EngineMetrics) IncOutboxFailed() {
	if m == nil || m.outboxFailed == nil {
		return
	}
	m.outboxFailed.Inc()
}

// ObserveOutboxLag records how stale a row was when it published.
func (m *EngineMetrics) ObserveOutboxLag(lag time.Duration) {
	if m == nil || m.outboxLag == nil {
		return
	}
	m.outboxLag.Observe(lag.Seconds())
}
