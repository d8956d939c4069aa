package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingPassesTotal counts full pricing passes by tax mode.
	PricingPassesTotal *prometheus.CounterVec
	// ReconcileSavesTotal counts reconcile-and-save attempts by document variant and outcome.
	ReconcileSavesTotal *prometheus.CounterVec
	// ReconcileStepFailuresTotal counts failed storage steps during a save.
	ReconcileStepFailuresTotal *prometheus.CounterVec
	// ReconcileSaveLatency records save latency in milliseconds.
	ReconcileSaveLatency *prometheus.HistogramVec
	// DocumentNumbersIssued counts order and receipt numbers handed out by the server.
	DocumentNumbersIssued *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		PricingPassesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_passes_total",
			Help:      "Count of order pricing passes by tax mode.",
		}, []string{"mode"})
		ReconcileSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_saves_total",
			Help:      "Count of reconcile-and-save attempts by outcome.",
		}, []string{"variant", "result"})
		ReconcileStepFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_step_failures_total",
			Help:      "Count of storage steps that failed during a save.",
		}, []string{"variant", "step"})
		ReconcileSaveLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_save_duration_ms",
			Help:      "Latency of reconcile-and-save in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"variant", "result"})
		DocumentNumbersIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_numbers_issued_total",
			Help:      "Number of order and receipt numbers issued.",
		}, []string{"kind"})

		PricingPassesTotal = register(reg, PricingPassesTotal)
		ReconcileSavesTotal = register(reg, ReconcileSavesTotal)
		ReconcileStepFailuresTotal = register(reg, ReconcileStepFailuresTotal)
		ReconcileSaveLatency = register(reg, ReconcileSaveLatency)
		DocumentNumbersIssued = register(reg, DocumentNumbersIssued)
	})
}
