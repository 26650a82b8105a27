package prometheus

import (
	"time"

	"github.com/chris/wallet-ledger/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements metrics.Recorder for Prometheus.
type Collector struct {
	mutations       *prometheus.CounterVec
	mutationLatency *prometheus.HistogramVec
	conflictRetries *prometheus.CounterVec

	settlements       *prometheus.CounterVec
	settlementLatency *prometheus.HistogramVec

	payoutRecipients *prometheus.CounterVec

	riskEvaluations *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	circuitOpens    *prometheus.CounterVec
}

var _ metrics.Recorder = (*Collector)(nil)

// NewCollector creates a new Prometheus metrics collector.
func NewCollector(namespace string) *Collector {
	return &Collector{
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_mutations_total",
				Help:      "Total number of ledger mutations per operation and outcome",
			},
			[]string{"operation", "status"},
		),
		mutationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_mutation_duration_seconds",
				Help:      "Ledger mutation latency including conflict retries",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
			},
			[]string{"operation"},
		),
		conflictRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_conflict_retries_total",
				Help:      "Total number of optimistic-lock retries per operation",
			},
			[]string{"operation"},
		),
		settlements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Total number of settlement attempts per transaction type and resulting status",
			},
			[]string{"type", "status"},
		),
		settlementLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "settlement_duration_seconds",
				Help:      "Settlement latency per transaction type",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"type"},
		),
		payoutRecipients: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payout_recipients_total",
				Help:      "Total number of payout recipient attempts per outcome",
			},
			[]string{"status"},
		),
		riskEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_evaluations_total",
				Help:      "Total number of risk gate evaluations per outcome",
			},
			[]string{"outcome"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens",
			},
			[]string{"name"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (c *Collector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		c.mutations,
		c.mutationLatency,
		c.conflictRetries,
		c.settlements,
		c.settlementLatency,
		c.payoutRecipients,
		c.riskEvaluations,
		c.circuitState,
		c.circuitOpens,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

// RecordLedgerMutation records a ledger mutation.
func (c *Collector) RecordLedgerMutation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	c.mutations.WithLabelValues(operation, status).Inc()
	c.mutationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordConflictRetry records an optimistic-lock retry.
func (c *Collector) RecordConflictRetry(operation string) {
	c.conflictRetries.WithLabelValues(operation).Inc()
}

// RecordSettlement records a settlement attempt.
func (c *Collector) RecordSettlement(txType string, status string, duration time.Duration) {
	c.settlements.WithLabelValues(txType, status).Inc()
	c.settlementLatency.WithLabelValues(txType).Observe(duration.Seconds())
}

// RecordPayoutRecipient records the outcome of one recipient credit.
func (c *Collector) RecordPayoutRecipient(status string) {
	c.payoutRecipients.WithLabelValues(status).Inc()
}

// RecordRiskEvaluation records a risk gate outcome.
func (c *Collector) RecordRiskEvaluation(outcome string) {
	c.riskEvaluations.WithLabelValues(outcome).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (c *Collector) RecordCircuitState(name string, state metrics.CircuitState) {
	c.circuitState.WithLabelValues(name).Set(float64(state))
	if state == metrics.CircuitOpen {
		c.circuitOpens.WithLabelValues(name).Inc()
	}
}
