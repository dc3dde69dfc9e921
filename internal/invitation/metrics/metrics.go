package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks invitation token issuance and use.
type Metrics struct {
	Issued   prometheus.Counter
	Revoked  *prometheus.CounterVec
	Resolved *prometheus.CounterVec
}

// New registers the invitation metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Issued: factory.NewCounter(prometheus.CounterOpts{
			Name: "signature_invitations_issued_total",
			Help: "Total number of invitation tokens issued",
		}),
		Revoked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_invitations_revoked_total",
			Help: "Invitation tokens revoked, by reason",
		}, []string{"reason"}),
		Resolved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "signature_invitation_resolutions_total",
			Help: "Invitation token lookups, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) IncrementIssued() {
	m.Issued.Inc()
}

func (m *Metrics) AddRevoked(reason string, n int) {
	m.Revoked.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) IncrementResolved(outcome string) {
	m.Resolved.WithLabelValues(outcome).Inc()
}
