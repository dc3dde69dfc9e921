package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the outbox relay.
type Metrics struct {
	Dispatched    prometheus.Counter
	Failed        prometheus.Counter
	DeadLettered  prometheus.Counter
	PublishCalls  *prometheus.CounterVec
	FlushDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Dispatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_outbox_dispatched_total",
			Help: "Outbox events accepted by the event bus",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_outbox_failed_attempts_total",
			Help: "Outbox events that exhausted in-flush retries and were rescheduled",
		}),
		DeadLettered: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_outbox_dead_total",
			Help: "Outbox events moved to dead after exhausting all attempts",
		}),
		PublishCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_outbox_publish_calls_total",
			Help: "Publish calls made to the event bus, by result",
		}, []string{"result"}),
		FlushDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "signature_outbox_flush_duration_seconds",
			Help:    "Duration of a relay flush",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) ObserveFlush(start time.Time) {
	m.FlushDuration.Observe(time.Since(start).Seconds())
}
