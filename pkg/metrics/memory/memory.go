package memory

import (
	"sync"
	"time"

	"github.com/chris/wallet-ledger/pkg/metrics"
)

// Recorder implements metrics.Recorder for in-memory testing.
type Recorder struct {
	mu sync.RWMutex

	mutations        map[string]int64
	mutationErrors   map[string]int64
	conflictRetries  map[string]int64
	settlements      map[string]int64
	payoutRecipients map[string]int64
	riskEvaluations  map[string]int64
	circuitStates    map[string]metrics.CircuitState
}

var _ metrics.Recorder = (*Recorder)(nil)

// NewRecorder creates a new in-memory recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		mutations:        make(map[string]int64),
		mutationErrors:   make(map[string]int64),
		conflictRetries:  make(map[string]int64),
		settlements:      make(map[string]int64),
		payoutRecipients: make(map[string]int64),
		riskEvaluations:  make(map[string]int64),
		circuitStates:    make(map[string]metrics.CircuitState),
	}
}

// RecordLedgerMutation records a ledger mutation.
func (r *Recorder) RecordLedgerMutation(operation string, success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.mutations[operation]++
	} else {
		r.mutationErrors[operation]++
	}
}

// RecordConflictRetry records an optimistic-lock retry.
func (r *Recorder) RecordConflictRetry(operation string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflictRetries[operation]++
}

// RecordSettlement records a settlement attempt keyed by "type/status".
func (r *Recorder) RecordSettlement(txType string, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settlements[txType+"/"+status]++
}

// RecordPayoutRecipient records the outcome of one recipient credit.
func (r *Recorder) RecordPayoutRecipient(status string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payoutRecipients[status]++
}

// RecordRiskEvaluation records a risk gate outcome.
func (r *Recorder) RecordRiskEvaluation(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.riskEvaluations[outcome]++
}

// RecordCircuitState records the current circuit breaker state.
func (r *Recorder) RecordCircuitState(name string, state metrics.CircuitState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.circuitStates[name] = state
}

// Mutations returns the number of successful mutations for an operation.
func (r *Recorder) Mutations(operation string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mutations[operation]
}

// MutationErrors returns the number of failed mutations for an operation.
func (r *Recorder) MutationErrors(operation string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mutationErrors[operation]
}

// ConflictRetries returns the number of retries recorded for an operation.
func (r *Recorder) ConflictRetries(operation string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conflictRetries[operation]
}

// Settlements returns the count for a type and resulting status.
func (r *Recorder) Settlements(txType, status string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settlements[txType+"/"+status]
}

// PayoutRecipients returns the count for a recipient outcome.
func (r *Recorder) PayoutRecipients(status string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.payoutRecipients[status]
}

// RiskEvaluations returns the count for a risk outcome.
func (r *Recorder) RiskEvaluations(outcome string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.riskEvaluations[outcome]
}

// CircuitState returns the last recorded state of a breaker.
func (r *Recorder) CircuitState(name string) metrics.CircuitState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.circuitStates[name]
}
