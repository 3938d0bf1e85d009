// Package metrics exposes the audit pipeline's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for audit runs.
type Metrics struct {
	// Contracts audited by the stage they stopped at and the outcome
	ContractsAudited *prometheus.CounterVec

	// Findings by failure kind
	Findings *prometheus.CounterVec

	ContractDuration prometheus.Histogram
	RunDuration      prometheus.Histogram
	BatchLoad        prometheus.Histogram
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ContractsAudited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "envelopa_audit_contracts_total",
			Help: "Contracts audited by final stage and outcome",
		}, []string{"stage", "outcome"}),

		Findings: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "envelopa_audit_findings_total",
			Help: "Audit findings by failure kind",
		}, []string{"kind"}),

		ContractDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "envelopa_audit_contract_duration_seconds",
			Help:    "Duration of a single contract audit",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),

		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "envelopa_audit_run_duration_seconds",
			Help:    "Duration of a full batch audit run",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 3600},
		}),

		BatchLoad: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "envelopa_audit_batch_load_duration_seconds",
			Help:    "Duration of loading the related data of one contract page",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveContract records one audited contract.
func (m *Metrics) ObserveContract(stage string, validated bool, kind string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "validated"
	if !validated {
		outcome = "failed"
		m.Findings.WithLabelValues(kind).Inc()
	}
	m.ContractsAudited.WithLabelValues(stage, outcome).Inc()
	m.ContractDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveBatchLoad(d time.Duration) {
	if m != nil {
		m.BatchLoad.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}
