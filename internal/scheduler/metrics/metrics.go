package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics tracks scheduled task executions.
type Metrics struct {
	Runs          *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	RecordsFailed *prometheus.CounterVec
	Running       *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		Runs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_scheduler_runs_total",
			Help: "Task executions by task and result",
		}, []string{"task", "result"}),
		RunDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pension_scheduler_run_duration_seconds",
			Help:    "Duration of task executions",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}, []string{"task"}),
		RecordsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_scheduler_records_failed_total",
			Help: "Records a task could not process, by task",
		}, []string{"task"}),
		Running: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pension_scheduler_running",
			Help: "1 while a task is executing on this instance",
		}, []string{"task"}),
	}
}

func (m *Metrics) IncRun(task, result string) {
	m.Runs.WithLabelValues(task, result).Inc()
}

func (m *Metrics) ObserveRun(task string, start time.Time, failedRecords int) {
	m.RunDuration.WithLabelValues(task).Observe(time.Since(start).Seconds())
	if failedRecords > 0 {
		m.RecordsFailed.WithLabelValues(task).Add(float64(failedRecords))
	}
}

func (m *Metrics) SetRunning(task string, running bool) {
	v := 0.0
	if running {
		v = 1
	}
	m.Running.WithLabelValues(task).Set(v)
}
