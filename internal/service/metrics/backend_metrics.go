package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	BackendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finchat",
			Subsystem: "backend",
			Name:      "latency_seconds",
			Help:      "Latency of analytics backend endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	BackendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finchat",
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Errors by analytics backend endpoint and reason",
		},
		[]string{"endpoint", "reason"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(BackendLatency, BackendErrors)
	})
}
