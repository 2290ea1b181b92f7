// Package metrics exposes Prometheus instruments for the delivery core. All
// methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Deliveries created by path: "reuse" or "generated".
	DeliveriesCreated *prometheus.CounterVec

	// Token redemptions by outcome: "ok", "invalid_token", "blocked", ...
	Resolves *prometheus.CounterVec

	// Watermark generation latency by outcome.
	WatermarkLatency *prometheus.HistogramVec

	// Abuse labels newly raised on an entry.
	FlagsRaised *prometheus.CounterVec

	// Lost compare-and-swap races on ledger updates.
	LedgerConflicts prometheus.Counter
}

// New registers all instruments with reg. Pass prometheus.NewRegistry() in
// tests to keep registrations isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DeliveriesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docdelivery_deliveries_created_total",
			Help: "Delivery grants issued, by reuse or fresh generation",
		}, []string{"path"}),

		Resolves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docdelivery_resolves_total",
			Help: "Download token redemptions by outcome",
		}, []string{"outcome"}),

		WatermarkLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docdelivery_watermark_duration_seconds",
			Help:    "Duration of watermark generation including blob read and write",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"outcome"}),

		FlagsRaised: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docdelivery_abuse_flags_total",
			Help: "Suspicious-activity labels added to ledger entries",
		}, []string{"label"}),

		LedgerConflicts: f.NewCounter(prometheus.CounterOpts{
			Name: "docdelivery_ledger_conflicts_total",
			Help: "Optimistic ledger updates retried after a version conflict",
		}),
	}
}

func (m *Metrics) IncDelivery(path string) {
	if m != nil {
		m.DeliveriesCreated.WithLabelValues(path).Inc()
	}
}

func (m *Metrics) IncResolve(outcome string) {
	if m != nil {
		m.Resolves.WithLabelValues(outcome).Inc()
	}
}

// ObserveWatermark records one generation attempt.
func (m *Metrics) ObserveWatermark(outcome string, d time.Duration) {
	if m != nil {
		m.WatermarkLatency.WithLabelValues(outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) IncFlag(label string) {
	if m != nil {
		m.FlagsRaised.WithLabelValues(label).Inc()
	}
}

func (m *Metrics) IncConflict() {
	if m != nil {
		m.LedgerConflicts.Inc()
	}
}
