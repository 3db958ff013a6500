package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(wizardTransitions, wizardErrors)
}

var (
	// from/to are wizard step names.
	wizardTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afa_wizard_transitions_total",
			Help: "AFA wizard step changes.",
		},
		[]string{"from", "to"},
	)

	wizardErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "afa_wizard_errors_total",
			Help: "User-visible AFA wizard errors by code.",
		},
		[]string{"code"},
	)
)

func ObserveWizardTransition(from, to string) {
	if from == to {
		return
	}
	wizardTransitions.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncWizardError(code string) {
	if code == "" {
		return
	}
	wizardErrors.WithLabelValues(norm(code)).Inc()
}
