// Package ledger owns every balance mutation. Each mutation reads the wallets it
// touches, computes their next state in memory and commits the new balances and
// the matching ledger entries in one conditional store write. A concurrent write
// to any of the wallets fails the condition, and the mutation is re-read and
// retried with exponential backoff.
package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/metrics"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/google/uuid"
)

// Store is the data access the ledger needs.
type Store interface {
	storage.WalletStore
	storage.LedgerReader
	storage.SettlementStore
}

const (
	DefaultMaxAttempts     = 10
	DefaultInitialInterval = 5 * time.Millisecond
	DefaultMaxInterval     = 250 * time.Millisecond

	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Options configures a Ledger. Zero values fall back to defaults.
type Options struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	Audit   audit.Logger
	Metrics metrics.Recorder
	Logger  *slog.Logger

	Clock func() time.Time
	NewID func() string
}

// Ledger applies balance mutations to wallets.
type Ledger struct {
	store   Store
	opts    Options
	audit   audit.Logger
	metrics metrics.Recorder
	logger  *slog.Logger
	clock   func() time.Time
	newID   func() string
}

// New creates a Ledger backed by store.
func New(store Store, opts Options) *Ledger {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultInitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultMaxInterval
	}
	l := &Ledger{
		store:   store,
		opts:    opts,
		audit:   opts.Audit,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		clock:   opts.Clock,
		newID:   opts.NewID,
	}
	if l.metrics == nil {
		l.metrics = metrics.NoOp{}
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.newID == nil {
		l.newID = uuid.NewString
	}
	return l
}

func (l *Ledger) now() time.Time {
	return l.clock().UTC()
}

// retry runs op until it succeeds, fails with anything other than a version
// conflict, or runs out of attempts. Exhaustion is reported as a DatabaseError.
func (l *Ledger) retry(ctx context.Context, operation string, op func() error) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = l.opts.InitialInterval
	expo.MaxInterval = l.opts.MaxInterval
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(l.opts.MaxAttempts-1)), ctx)

	wrapped := func() error {
		err := op()
		if err == nil || errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		l.metrics.RecordConflictRetry(operation)
		l.logger.DebugContext(ctx, "optimistic lock conflict, retrying",
			slog.String("operation", operation),
			slog.Duration("wait", wait),
		)
	}

	err := backoff.RetryNotify(wrapped, policy, notify)
	if err == nil {
		return nil
	}
	var coded apperr.Coded
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, storage.ErrVersionConflict) {
		return apperr.Database(err, "%s gave up after %d attempts", operation, l.opts.MaxAttempts)
	}
	return apperr.Database(err, "%s interrupted", operation)
}

// mapStoreError translates storage sentinels into domain errors.
func mapStoreError(err error, resource, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(resource, id)
	case errors.Is(err, storage.ErrVersionConflict):
		return err
	}
	var coded apperr.Coded
	if errors.As(err, &coded) {
		return err
	}
	return apperr.Database(err, "failed to access %s %s", resource, id)
}

func (l *Ledger) emit(ctx context.Context, event audit.Event) {
	if event.Actor == (audit.Actor{}) {
		event.Actor = audit.System
	}
	if event.At.IsZero() {
		event.At = l.now()
	}
	audit.Emit(ctx, l.audit, l.logger, event)
}

func (l *Ledger) observe(operation string, started time.Time, err error) {
	l.metrics.RecordLedgerMutation(operation, err == nil, time.Since(started))
}

