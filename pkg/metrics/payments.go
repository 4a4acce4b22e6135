package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Domain groups the payment-lifecycle collectors shared by the services.
type Domain struct {
	PaymentOps      *prometheus.CounterVec
	WebhookEvents   *prometheus.CounterVec
	OrphanedEvents  *prometheus.CounterVec
	Discrepancies   *prometheus.CounterVec
	ExpiredPayments prometheus.Counter
}

func NewDomain() *Domain {
	d := &Domain{
		PaymentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payments",
			Name:      "operations_total",
			Help:      "Payment operations partitioned by op and outcome.",
		}, []string{"op", "outcome"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payments",
			Name:      "webhook_events_total",
			Help:      "Inbound webhook notifications partitioned by gateway and outcome.",
		}, []string{"gateway", "outcome"}),
		OrphanedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payments",
			Name:      "webhook_orphaned_total",
			Help:      "Webhook notifications that matched no known payment.",
		}, []string{"gateway"}),
		Discrepancies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Subsystem: "payments",
			Name:      "reconciliation_discrepancies_total",
			Help:      "Reconciliation discrepancies partitioned by kind.",
		}, []string{"kind"}),
		ExpiredPayments: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem: "payments",
			Name:      "expired_total",
			Help:      "PENDING payments demoted to FAILED by the expiry sweep.",
		}),
	}
	for _, c := range []prometheus.Collector{
		d.PaymentOps, d.WebhookEvents, d.OrphanedEvents, d.Discrepancies, d.ExpiredPayments,
	} {
		// duplicate registration is ignored
		_ = prometheus.Register(c)
	}
	return d
}

var Module = fx.Options(
	fx.Provide(NewDomain),
)
