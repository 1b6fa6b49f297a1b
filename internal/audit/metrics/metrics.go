package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the transaction history trail and
// its Kafka stream.
type Metrics struct {
	Recorded        *prometheus.CounterVec
	StreamPublished prometheus.Counter
	StreamFailures  prometheus.Counter
	StreamDropped   prometheus.Counter
	CircuitState    prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pension_history_entries_recorded_total",
			Help: "Total number of transaction history entries appended",
		}, []string{"entity_type", "change_type"}),
		StreamPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_history_stream_published_total",
			Help: "Total number of history entries published to the stream",
		}),
		StreamFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_history_stream_failures_total",
			Help: "Total number of history entries the stream failed to publish",
		}),
		StreamDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pension_history_stream_dropped_total",
			Help: "Total number of history entries dropped because the buffer was full or the circuit was open",
		}),
		CircuitState: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pension_history_stream_circuit_state",
			Help: "Stream circuit breaker state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) IncRecorded(entityType, changeType string) {
	m.Recorded.WithLabelValues(entityType, changeType).Inc()
}

func (m *Metrics) IncPublished() { m.StreamPublished.Inc() }

func (m *Metrics) IncFailure() { m.StreamFailures.Inc() }

func (m *Metrics) IncDropped() { m.StreamDropped.Inc() }

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitState.Set(1)
		return
	}
	m.CircuitState.Set(0)
}
