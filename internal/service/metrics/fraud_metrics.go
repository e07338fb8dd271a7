package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	Latency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gavel",
			Subsystem: "fraud",
			Name:      "latency_seconds",
			Help:      "Latency of fraud screening paths",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gavel",
			Subsystem: "fraud",
			Name:      "decisions_total",
			Help:      "Detector decisions by recommended action",
		},
		[]string{"detector", "action"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(Latency, Decisions)
	})
}
