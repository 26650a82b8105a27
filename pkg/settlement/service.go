// Package settlement drives transactions from PENDING to a terminal status. A
// settlement moves every leg of the transaction and its PROCESSING to COMPLETED
// status change in a single ledger posting, so funds are never half-moved.
package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/metrics"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/validation"
	"github.com/google/uuid"
)

// Enqueuer schedules a transaction for asynchronous settlement.
type Enqueuer interface {
	EnqueueTransaction(ctx context.Context, transactionID string) error
}

// RiskGate receives every completed transaction. Submit must not block.
type RiskGate interface {
	Submit(ctx context.Context, tx *models.Transaction) bool
}

// Options configures a Service.
type Options struct {
	// Fees prices FX conversions. Without it conversions carry no fee.
	Fees FeeCalculator
	// FeeWallets maps a currency to the wallet that collects fees charged in it.
	FeeWallets map[string]string

	Scheduler Enqueuer
	Risk      RiskGate

	Audit   audit.Logger
	Metrics metrics.Recorder
	Logger  *slog.Logger

	Clock func() time.Time
	NewID func() string
}

// Service orchestrates transactions on top of the ledger.
type Service struct {
	store      storage.TransactionStore
	ledger     *ledger.Ledger
	fees       FeeCalculator
	feeWallets map[string]string
	scheduler  Enqueuer
	risk       RiskGate
	audit      audit.Logger
	metrics    metrics.Recorder
	logger     *slog.Logger
	clock      func() time.Time
	newID      func() string
	validate   *validation.Validator
}

// New creates a Service.
func New(store storage.TransactionStore, l *ledger.Ledger, opts Options) *Service {
	s := &Service{
		store:      store,
		ledger:     l,
		fees:       opts.Fees,
		feeWallets: opts.FeeWallets,
		scheduler:  opts.Scheduler,
		risk:       opts.Risk,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		clock:      opts.Clock,
		newID:      opts.NewID,
		validate:   validation.New(),
	}
	if s.fees == nil {
		s.fees = NoFee{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NoOp{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if event.Actor == (audit.Actor{}) {
		event.Actor = audit.System
	}
	if event.At.IsZero() {
		event.At = s.now()
	}
	audit.Emit(ctx, s.audit, s.logger, event)
}
