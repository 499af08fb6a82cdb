package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// SaveToggles counts ledger toggles by resulting state ("saved"/"unsaved").
	SaveToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_save_toggles_total",
			Help: "Total number of save toggles by resulting state.",
		},
		[]string{"state"},
	)

	// RecipeMutations counts recipe writes by operation and outcome.
	//   - op:     create|update|publish|delete
	//   - result: ok|rejected|error
	RecipeMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recipe_mutations_total",
			Help: "Total number of recipe mutations by operation and result.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(SaveToggles, RecipeMutations)
}

// ObserveMutation records one recipe mutation. A nil err with applied=false
// is a rejected precondition.
func ObserveMutation(op string, applied bool, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case !applied:
		result = "rejected"
	}
	RecipeMutations.WithLabelValues(op, result).Inc()
}

// ObserveToggle records the state a toggle produced.
func ObserveToggle(saved bool) {
	state := "unsaved"
	if saved {
		state = "saved"
	}
	SaveToggles.WithLabelValues(state).Inc()
}
