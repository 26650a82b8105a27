package metrics

import (
	"time"
)

// Recorder defines the interface for collecting ledger and settlement metrics.
// Implementations can export metrics to various backends (Prometheus, StatsD, etc.).
type Recorder interface {
	// Ledger
	RecordLedgerMutation(operation string, success bool, duration time.Duration)
	RecordConflictRetry(operation string)

	// Settlement
	RecordSettlement(txType string, status string, duration time.Duration)

	// Payouts
	RecordPayoutRecipient(status string)

	// Risk gate
	RecordRiskEvaluation(outcome string)
	RecordCircuitState(name string, state CircuitState)
}

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed means the circuit breaker is allowing requests through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the circuit breaker is blocking requests.
	CircuitOpen
	// CircuitHalfOpen means the circuit breaker is testing if the service has recovered.
	CircuitHalfOpen
)

// String returns the string representation of the circuit state.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// NoOp is a no-op implementation of Recorder.
// It's used as the default recorder when metrics are not needed.
type NoOp struct{}

// RecordLedgerMutation does nothing.
func (NoOp) RecordLedgerMutation(operation string, success bool, duration time.Duration) {}

// RecordConflictRetry does nothing.
func (NoOp) RecordConflictRetry(operation string) {}

// RecordSettlement does nothing.
func (NoOp) RecordSettlement(txType string, status string, duration time.Duration) {}

// RecordPayoutRecipient does nothing.
func (NoOp) RecordPayoutRecipient(status string) {}

// RecordRiskEvaluation does nothing.
func (NoOp) RecordRiskEvaluation(outcome string) {}

// RecordCircuitState does nothing.
func (NoOp) RecordCircuitState(name string, state CircuitState) {}
