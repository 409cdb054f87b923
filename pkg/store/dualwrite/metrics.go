package dualwrite

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the dual-write layer. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	// Mutation attempts per backend role, operation and result class.
	Writes *prometheus.CounterVec

	// Mutation latency per backend role.
	WriteLatency *prometheus.HistogramVec

	// Reads served, by backend role and whether fallback was taken.
	Reads *prometheus.CounterVec

	// Entities processed by bulk migration runs, by kind and result.
	MigrationEntities *prometheus.CounterVec

	// Outcomes appended to the reconciliation ledger, by consistency.
	LedgerOutcomes *prometheus.CounterVec

	// Current migration phase ordinal.
	PhaseGauge prometheus.Gauge
}

// NewMetrics registers all dual-write metrics on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all dual-write metrics on the given registerer.
// Tests pass a fresh registry so repeated wiring never collides.
func NewMetricsWith(r prometheus.Registerer) *Metrics {
	factory := promauto.With(r)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapp_writes_total",
			Help: "Mutation attempts by backend role, operation and result class",
		}, []string{"backend", "operation", "result"}),

		WriteLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blogapp_write_duration_seconds",
			Help:    "Mutation latency by backend role",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		}, []string{"backend"}),

		Reads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapp_reads_total",
			Help: "Reads served by backend role and fallback use",
		}, []string{"backend", "fallback"}),

		MigrationEntities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapp_migration_entities_total",
			Help: "Entities processed by bulk migration, by kind and result",
		}, []string{"kind", "result"}),

		LedgerOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "blogapp_ledger_outcomes_total",
			Help: "Write outcomes appended to the reconciliation ledger",
		}, []string{"consistent"}),

		PhaseGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "blogapp_migration_phase",
			Help: "Current migration phase ordinal (0=dual_write_primary_read, 1=dual_write_secondary_read, 2=secondary_only)",
		}),
	}
}

// ObserveWrite records one backend mutation attempt.
func (m *Metrics) ObserveWrite(backend, operation, result string, d time.Duration) {
	if m != nil {
		m.Writes.WithLabelValues(backend, operation, result).Inc()
		m.WriteLatency.WithLabelValues(backend).Observe(d.Seconds())
	}
}

// ObserveRead records one served read.
func (m *Metrics) ObserveRead(backend string, fallback bool) {
	if m != nil {
		m.Reads.WithLabelValues(backend, boolLabel(fallback)).Inc()
	}
}

// ObserveMigratedEntity records one bulk-migration entity result.
func (m *Metrics) ObserveMigratedEntity(kind, result string) {
	if m != nil {
		m.MigrationEntities.WithLabelValues(kind, result).Inc()
	}
}

// ObserveOutcome records one ledger append.
func (m *Metrics) ObserveOutcome(consistent bool) {
	if m != nil {
		m.LedgerOutcomes.WithLabelValues(boolLabel(consistent)).Inc()
	}
}

// SetPhase records the current migration phase.
func (m *Metrics) SetPhase(p Phase) {
	if m != nil {
		m.PhaseGauge.Set(float64(p))
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
