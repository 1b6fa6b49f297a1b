package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the employer registry.
type Metrics struct {
	Registered            prometheus.Counter
	RegistrationConflicts prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_employers_registered_total",
			Help: "Total number of employers registered",
		}),
		RegistrationConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_employer_registration_conflicts_total",
			Help: "Employer registrations rejected because the registration number is taken",
		}),
	}
}

func (m *Metrics) IncRegistered() {
	m.Registered.Inc()
}

func (m *Metrics) IncRegistrationConflict() {
	m.RegistrationConflicts.Inc()
}
