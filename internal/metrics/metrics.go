package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciliations_total",
			Help: "Reconciliation attempts by entry point, resulting status and outcome",
		},
		[]string{"source", "status", "outcome"},
	)

	GatewayRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payments_gateway_request_duration_seconds",
			Help:    "Latency of calls to the payment gateway",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "code"},
	)

	NotificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_notification_failures_total",
			Help: "Notification sink deliveries that failed",
		},
		[]string{"sink"},
	)

	EmailDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_email_deliveries_total",
			Help: "Payment emails handled by the worker, by result",
		},
		[]string{"result"},
	)
)

func Register() {
	prometheus.MustRegister(Reconciliations, GatewayRequestDuration, NotificationFailures, EmailDeliveries)
}

// ObserveGatewayRequest records one gateway call.
func ObserveGatewayRequest(operation, code string, d time.Duration) {
	GatewayRequestDuration.WithLabelValues(operation, code).Observe(d.Seconds())
}

// ObserveReconciliation counts one reconciliation attempt.
func ObserveReconciliation(source, status, outcome string) {
	Reconciliations.WithLabelValues(source, status, outcome).Inc()
}
