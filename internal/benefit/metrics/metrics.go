package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks benefit calculations and eligibility refreshes.
type Metrics struct {
	Calculated      *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Calculated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_benefits_calculated_total",
			Help: "Total number of benefit calculations, by resulting status",
		}, []string{"status"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_benefit_eligibility_transitions_total",
			Help: "Eligibility status changes made by the refresh",
		}, []string{"from", "to"}),
		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pension_benefit_refresh_duration_seconds",
			Help:    "Duration of a full eligibility refresh",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

func (m *Metrics) IncCalculated(status string) {
	m.Calculated.WithLabelValues(status).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	m.Transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveRefresh(start time.Time) {
	m.RefreshDuration.Observe(time.Since(start).Seconds())
}
