// Package metrics exposes prometheus instrumentation for the
// reconciliation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	webhookEvents        *prometheus.CounterVec
	usageDebits          *prometheus.CounterVec
	refunds              *prometheus.CounterVec
	subscriptionsExpired prometheus.Counter
	invoicesOverdue      prometheus.Counter
	stuckWebhookEvents   prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		webhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lexora",
			Name:      "webhook_events_total",
			Help:      "Inbound processor webhook events by outcome.",
		}, []string{"outcome"}),
		usageDebits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lexora",
			Name:      "usage_debits_total",
			Help:      "Usage debit attempts by result.",
		}, []string{"result"}),
		refunds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lexora",
			Name:      "refunds_total",
			Help:      "Refund applications by result.",
		}, []string{"result"}),
		subscriptionsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lexora",
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions transitioned to expired by the sweep.",
		}),
		invoicesOverdue: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lexora",
			Name:      "invoices_overdue_total",
			Help:      "Invoices transitioned to overdue by the sweep.",
		}),
		stuckWebhookEvents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "lexora",
			Name:      "stuck_webhook_events",
			Help:      "Recorded webhook events without an outcome past the threshold.",
		}),
	}
}

func (m *Metrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveUsageDebit(result string) {
	if m == nil {
		return
	}
	m.usageDebits.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRefund(result string) {
	if m == nil {
		return
	}
	m.refunds.WithLabelValues(result).Inc()
}

func (m *Metrics) AddExpiredSubscriptions(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.subscriptionsExpired.Add(float64(n))
}

func (m *Metrics) AddOverdueInvoices(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.invoicesOverdue.Add(float64(n))
}

func (m *Metrics) SetStuckWebhookEvents(n int) {
	if m == nil {
		return
	}
	m.stuckWebhookEvents.Set(float64(n))
}
