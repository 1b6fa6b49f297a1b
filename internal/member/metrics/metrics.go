package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the member directory.
type Metrics struct {
	Registered     prometheus.Counter
	Deleted        prometheus.Counter
	EmailConflicts prometheus.Counter
	LookupDuration prometheus.Histogram
}

// New creates a new Metrics instance with all member metrics registered.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_members_registered_total",
			Help: "Total number of members registered",
		}),
		Deleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_members_deleted_total",
			Help: "Total number of members soft-deleted",
		}),
		EmailConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_member_email_conflicts_total",
			Help: "Registrations or updates rejected because the email is taken",
		}),
		LookupDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pension_member_lookup_duration_seconds",
			Help:    "Duration of member lookups by id",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncRegistered() {
	m.Registered.Inc()
}

func (m *Metrics) IncDeleted() {
	m.Deleted.Inc()
}

func (m *Metrics) IncEmailConflict() {
	m.EmailConflicts.Inc()
}

// ObserveLookup records the duration of a Get. Call with time.Now() at the
// start of the operation.
func (m *Metrics) ObserveLookup(start time.Time) {
	m.LookupDuration.Observe(time.Since(start).Seconds())
}
