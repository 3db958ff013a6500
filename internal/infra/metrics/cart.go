package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(cartOps, checkoutsTotal) }

var (
	// op: add|update|remove|clear
	cartOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_operations_total",
			Help: "Cart mutations by operation.",
		},
		[]string{"op"},
	)

	// result: initiated|invalid|empty
	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by result.",
		},
		[]string{"result"},
	)
)

func IncCartOp(op string) { cartOps.WithLabelValues(norm(op)).Inc() }

func IncCheckout(result string) { checkoutsTotal.WithLabelValues(norm(result)).Inc() }
