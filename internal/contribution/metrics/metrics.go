package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks contribution postings and interest accrual runs.
type Metrics struct {
	Posted          *prometheus.CounterVec
	Duplicates      prometheus.Counter
	PostDuration    prometheus.Histogram
	AccrualRecords  *prometheus.CounterVec
	AccrualDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Posted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_contributions_posted_total",
			Help: "Total number of contributions recorded, by type",
		}, []string{"type"}),
		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_contributions_duplicate_period_total",
			Help: "Total number of periodic contributions rejected as duplicates for their month",
		}),
		PostDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pension_contribution_post_duration_seconds",
			Help:    "Duration of PostContribution operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		AccrualRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_interest_accrual_records_total",
			Help: "Contributions processed by interest accrual, by result",
		}, []string{"result"}),
		AccrualDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pension_interest_accrual_duration_seconds",
			Help:    "Duration of a full interest accrual batch",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
}

func (m *Metrics) IncPosted(contributionType string) {
	m.Posted.WithLabelValues(contributionType).Inc()
}

func (m *Metrics) IncDuplicate() {
	m.Duplicates.Inc()
}

// ObservePost records a PostContribution duration. Call with the start time.
func (m *Metrics) ObservePost(start time.Time) {
	m.PostDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveAccrual(start time.Time, succeeded, failed int) {
	m.AccrualDuration.Observe(time.Since(start).Seconds())
	m.AccrualRecords.WithLabelValues("succeeded").Add(float64(succeeded))
	m.AccrualRecords.WithLabelValues("failed").Add(float64(failed))
}
