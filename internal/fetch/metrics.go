package fetch

import "github.com/prometheus/client_golang/prometheus"

var (
	fetchBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tutord",
			Subsystem: "fetch",
			Name:      "bytes_total",
			Help:      "Total model bytes written to disk",
		},
	)

	fetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutord",
			Subsystem: "fetch",
			Name:      "total",
			Help:      "Model downloads by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(fetchBytes, fetchTotal)
}
