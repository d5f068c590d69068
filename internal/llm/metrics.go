package llm

import "github.com/prometheus/client_golang/prometheus"

var (
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutord",
			Subsystem: "engine",
			Name:      "state_transitions_total",
			Help:      "Engine state transitions by target state",
		},
		[]string{"to"},
	)

	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutord",
			Subsystem: "engine",
			Name:      "loads_total",
			Help:      "Engine constructions by result",
		},
		[]string{"runtime", "result"},
	)

	chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutord",
			Subsystem: "engine",
			Name:      "chunks_total",
			Help:      "Generated chunks delivered to stream consumers",
		},
		[]string{"runtime"},
	)
)

func init() {
	prometheus.MustRegister(stateTransitions, loadsTotal, chunksTotal)
}
