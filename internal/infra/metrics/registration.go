package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(registrationRequests, registrationDuration)
}

var (
	// op: check|register
	// result: ok|network|service|error
	registrationRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registration_client_requests_total",
			Help: "Calls to the AFA registration service by operation and result.",
		},
		[]string{"op", "result"},
	)

	registrationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "registration_client_duration_seconds",
			Help:    "Latency of AFA registration service calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op"},
	)
)

func ObserveRegistrationCall(op, result string, elapsed time.Duration) {
	registrationRequests.WithLabelValues(norm(op), norm(result)).Inc()
	registrationDuration.WithLabelValues(norm(op)).Observe(elapsed.Seconds())
}
