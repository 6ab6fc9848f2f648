package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Store metrics
	MutationsTotal  *prometheus.CounterVec
	PersistFailures *prometheus.CounterVec
	PendingKeys     prometheus.Gauge
	Records         *prometheus.GaugeVec

	// Session metrics
	LoginAttempts *prometheus.CounterVec
}

// NewMetrics creates Prometheus metrics registered on reg.
// Pass prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_mutations_total",
				Help: "Total number of store mutations",
			},
			[]string{"collection", "operation"},
		),

		PersistFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_persist_failures_total",
				Help: "Total number of failed collection writes",
			},
			[]string{"key"},
		),

		PendingKeys: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "crm_pending_keys",
				Help: "Number of collections whose memory is ahead of storage",
			},
		),

		Records: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "crm_records",
				Help: "Number of records held in memory",
			},
			[]string{"collection"},
		),

		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"},
		),
	}
}

// ObserveMutation counts one mutation and records the collection size.
func (m *Metrics) ObserveMutation(collection, operation string, size int) {
	if m == nil {
		return
	}
	m.MutationsTotal.WithLabelValues(collection, operation).Inc()
	m.Records.WithLabelValues(collection).Set(float64(size))
}

// SetRecords records the size of a collection.
func (m *Metrics) SetRecords(collection string, size int) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(collection).Set(float64(size))
}

// ObservePersistFailure counts a failed write of key.
func (m *Metrics) ObservePersistFailure(key string) {
	if m == nil {
		return
	}
	m.PersistFailures.WithLabelValues(key).Inc()
}

// SetPending records how many keys await a successful write.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.PendingKeys.Set(float64(n))
}

// ObserveLogin counts a login attempt by result ("success", "failure", "error").
func (m *Metrics) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}
