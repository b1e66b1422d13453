package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalyticsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "labpulse",
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of analytics endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalyticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labpulse",
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Errors by analytics endpoint",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labpulse",
			Subsystem: "analytics",
			Name:      "cache_lookups_total",
			Help:      "Analytics response cache lookups by result",
		},
		[]string{"endpoint", "result"},
	)

	AnomaliesFlagged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "labpulse",
			Subsystem: "analytics",
			Name:      "anomalies_flagged_total",
			Help:      "Anomaly flags returned, by severity",
		},
		[]string{"severity"},
	)
)

// Register adds the analytics collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalyticsLatency, AnalyticsErrors, CacheLookups, AnomaliesFlagged)
	})
}
