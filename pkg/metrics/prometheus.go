package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	lastValue    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default registry.
func New() *Recorder { return NewWithRegistry(prometheus.DefaultRegisterer) }

// NewWithRegistry registers the recorder's collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labpulse_readings_sent_total",
				Help: "Readings delivered to the ingest backend",
			},
			[]string{"backend", "biomarker"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "labpulse_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		lastValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "labpulse_last_value",
				Help: "Last ingested value per biomarker name",
			},
			[]string{"biomarker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "labpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordMessageSent(backend, biomarker string) {
	r.messagesSent.WithLabelValues(backend, biomarker).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLastValue(biomarker string, value float64) {
	r.lastValue.WithLabelValues(biomarker).Set(value)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
