package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks the envelope lifecycle.
type Metrics struct {
	Created          prometheus.Counter
	Sent             prometheus.Counter
	Signatures       *prometheus.CounterVec
	Finished         *prometheus.CounterVec
	TimeToComplete   prometheus.Histogram
	DocumentBytes    prometheus.Histogram
	ExpirySweepFound prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Created: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_envelopes_created_total",
			Help: "Envelopes created",
		}),
		Sent: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_envelopes_sent_total",
			Help: "Envelopes sent for signature",
		}),
		Signatures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_signatures_total",
			Help: "Signatures recorded, by signer type",
		}, []string{"signer_type"}),
		Finished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_envelopes_finished_total",
			Help: "Envelopes that reached a terminal status, by status",
		}, []string{"status"}),
		TimeToComplete: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signature_envelope_time_to_complete_hours",
			Help:    "Hours from send to completion",
			Buckets: []float64{0.1, 1, 6, 24, 72, 168, 720},
		}),
		DocumentBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signature_document_upload_bytes",
			Help:    "Size of uploaded documents",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 7),
		}),
		ExpirySweepFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_expiry_sweep_expired_total",
			Help: "Envelopes moved to EXPIRED by the sweeper",
		}),
	}
}

func (m *Metrics) IncrementSignature(external bool) {
	label := "internal"
	if external {
		label = "external"
	}
	m.Signatures.WithLabelValues(label).Inc()
}

func (m *Metrics) IncrementFinished(status string) {
	m.Finished.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveCompletion(sentAt *time.Time, completedAt time.Time) {
	if sentAt == nil {
		return
	}
	m.TimeToComplete.Observe(completedAt.Sub(*sentAt).Hours())
}
