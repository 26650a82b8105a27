// Package risk dispatches settled transactions to an external risk evaluator.
// Evaluation never blocks or reverses settlement: a flag is reported to the
// configured handler and remediation happens out of band.
package risk

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chris/wallet-ledger/pkg/metrics"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/sony/gobreaker"
)

// Flag is the evaluator's verdict on a suspicious transaction.
type Flag struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	Score         int    `json:"score"`
}

// Evaluator scores a settled transaction. A nil flag means the transaction is clear.
type Evaluator interface {
	Evaluate(ctx context.Context, tx *models.Transaction) (*Flag, error)
}

// Options configures a Gate.
type Options struct {
	// Concurrency bounds the number of in-flight evaluations. Submissions beyond
	// it are dropped and counted.
	Concurrency int
	Timeout     time.Duration
	// OnFlag is called for every flagged transaction.
	OnFlag func(ctx context.Context, flag Flag)

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Gate evaluates transactions asynchronously behind a circuit breaker.
type Gate struct {
	evaluator Evaluator
	cb        *gobreaker.CircuitBreaker
	slots     chan struct{}
	timeout   time.Duration
	onFlag    func(ctx context.Context, flag Flag)
	logger    *slog.Logger
	metrics   metrics.Recorder
	wg        sync.WaitGroup
}

const breakerName = "risk-gate"

// NewGate creates a Gate around evaluator.
func NewGate(evaluator Evaluator, opts Options) *Gate {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 16
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	g := &Gate{
		evaluator: evaluator,
		slots:     make(chan struct{}, opts.Concurrency),
		timeout:   opts.Timeout,
		onFlag:    opts.OnFlag,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.metrics == nil {
		g.metrics = metrics.NoOp{}
	}

	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)

			var state metrics.CircuitState
			switch to {
			case gobreaker.StateClosed:
				state = metrics.CircuitClosed
			case gobreaker.StateHalfOpen:
				state = metrics.CircuitHalfOpen
			case gobreaker.StateOpen:
				state = metrics.CircuitOpen
			}
			g.metrics.RecordCircuitState(name, state)
		},
	})
	return g
}

// Submit schedules tx for evaluation and returns immediately. It reports false
// when the gate is saturated and the evaluation was dropped.
func (g *Gate) Submit(ctx context.Context, tx *models.Transaction) bool {
	select {
	case g.slots <- struct{}{}:
	default:
		g.metrics.RecordRiskEvaluation("dropped")
		g.logger.WarnContext(ctx, "risk gate saturated, evaluation dropped", slog.String("transaction_id", tx.Id))
		return false
	}

	snapshot := tx.Clone()
	// The evaluation outlives the request that settled the transaction.
	detached := context.WithoutCancel(ctx)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() { <-g.slots }()
		g.evaluate(detached, snapshot)
	}()
	return true
}

// Evaluate runs one evaluation synchronously.
func (g *Gate) Evaluate(ctx context.Context, tx *models.Transaction) (*Flag, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.cb.Execute(func() (interface{}, error) {
		return g.evaluator.Evaluate(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	flag, _ := result.(*Flag)
	return flag, nil
}

func (g *Gate) evaluate(ctx context.Context, tx *models.Transaction) {
	flag, err := g.Evaluate(ctx, tx)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		g.metrics.RecordRiskEvaluation("rejected")
		g.logger.WarnContext(ctx, "risk gate circuit open, evaluation skipped", slog.String("transaction_id", tx.Id))
	case err != nil:
		g.metrics.RecordRiskEvaluation("error")
		g.logger.ErrorContext(ctx, "risk evaluation failed",
			slog.String("transaction_id", tx.Id),
			slog.String("error", err.Error()),
		)
	case flag != nil:
		g.metrics.RecordRiskEvaluation("flagged")
		if flag.TransactionID == "" {
			flag.TransactionID = tx.Id
		}
		g.logger.WarnContext(ctx, "transaction flagged by risk gate",
			slog.String("transaction_id", flag.TransactionID),
			slog.String("reason", flag.Reason),
			slog.Int("score", flag.Score),
		)
		if g.onFlag != nil {
			g.onFlag(ctx, *flag)
		}
	default:
		g.metrics.RecordRiskEvaluation("clear")
	}
}

// Wait blocks until every submitted evaluation has finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}
