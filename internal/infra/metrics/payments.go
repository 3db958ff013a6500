package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		paymentVerifyRequests,
		paymentVerifyDuration,
		paymentsReconciled,
		paymentWidgetReady,
	)
}

var (
	// kind: afa_registration|checkout
	// status: pending|succeeded|failed|abandoned|paid_unregistered
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by kind and status.",
		},
		[]string{"kind", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_minor_total",
			Help: "Value of successful payments in minor units, labeled by kind and currency.",
		},
		[]string{"kind", "currency"},
	)

	// result: paid|unpaid|error
	paymentVerifyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_requests_total",
			Help: "Gateway verification calls by provider and result.",
		},
		[]string{"provider", "result"},
	)

	paymentVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of gateway verification calls in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"provider"},
	)

	paymentsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Stale pending payments settled by the reconciler, by outcome.",
		},
		[]string{"outcome"},
	)

	paymentWidgetReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_widget_ready",
			Help: "1 when the inline payment widget script loaded, 0 otherwise.",
		},
	)
)

func IncPayment(kind, status string) {
	paymentsTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func AddPaymentRevenue(kind, currency string, amountMinor int64) {
	paymentsRevenueTotal.WithLabelValues(norm(kind), norm(currency)).Add(float64(amountMinor))
}

func ObservePaymentVerify(provider, result string, elapsed time.Duration) {
	paymentVerifyRequests.WithLabelValues(norm(provider), norm(result)).Inc()
	paymentVerifyDuration.WithLabelValues(norm(provider)).Observe(elapsed.Seconds())
}

func IncReconciled(outcome string) {
	paymentsReconciled.WithLabelValues(norm(outcome)).Inc()
}

func SetPaymentWidgetReady(ok bool) {
	if ok {
		paymentWidgetReady.Set(1)
		return
	}
	paymentWidgetReady.Set(0)
}
