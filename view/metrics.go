package view

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	extractionDuration *prometheus.HistogramVec
	validationFailures *prometheus.CounterVec
	protocolViolations prometheus.Counter
}

// newMetrics creates the registry metrics. A nil registerer leaves them
// unregistered.
func newMetrics(registerer prometheus.Registerer) *metrics {
	return &metrics{
		extractionDuration: promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reqbind",
			Name:      "extraction_duration_seconds",
			Help:      "Time (in seconds) spent extracting handler arguments from requests.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"handler", "outcome"}),
		validationFailures: promauto.With(registerer).NewCounterVec(prometheus.CounterOpts{
			Namespace: "reqbind",
			Name:      "validation_failures_total",
			Help:      "Total number of field errors reported to clients, by location.",
		}, []string{"location"}),
		protocolViolations: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Namespace: "reqbind",
			Name:      "protocol_violations_total",
			Help:      "Total number of requests rejected for violating the body protocol.",
		}),
	}
}

const (
	outcomeSuccess  = "success"
	outcomeInvalid  = "invalid"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

func (m *metrics) observe(handler, outcome string, start time.Time) {
	m.extractionDuration.WithLabelValues(handler, outcome).Observe(time.Since(start).Seconds())
}
