// Package payout fans a mass payout batch out to independent recipient credits.
// Each recipient is one ledger posting guarded by an idempotency key, so running
// a batch again never credits a recipient twice.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/metrics"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/chris/wallet-ledger/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 8

// Enqueuer schedules a batch for asynchronous processing.
type Enqueuer interface {
	EnqueuePayout(ctx context.Context, batchID string) error
}

// Options configures a Processor.
type Options struct {
	// Workers bounds the number of recipients credited concurrently.
	Workers   int
	Scheduler Enqueuer

	Audit   audit.Logger
	Metrics metrics.Recorder
	Logger  *slog.Logger

	Clock func() time.Time
	NewID func() string
}

// Processor creates and runs mass payout batches.
type Processor struct {
	batches   storage.BatchStore
	ledger    *ledger.Ledger
	workers   int
	scheduler Enqueuer
	locks     keyedMutex
	validate  *validation.Validator
	audit     audit.Logger
	metrics   metrics.Recorder
	logger    *slog.Logger
	clock     func() time.Time
	newID     func() string
}

// New creates a Processor.
func New(batches storage.BatchStore, l *ledger.Ledger, opts Options) *Processor {
	p := &Processor{
		batches:   batches,
		ledger:    l,
		workers:   opts.Workers,
		scheduler: opts.Scheduler,
		validate:  validation.New(),
		audit:     opts.Audit,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		clock:     opts.Clock,
		newID:     opts.NewID,
	}
	if p.workers <= 0 {
		p.workers = DefaultWorkers
	}
	if p.metrics == nil {
		p.metrics = metrics.NoOp{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.clock == nil {
		p.clock = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// CreateBatchRequest describes a batch. Amounts are in major units of Currency.
type CreateBatchRequest struct {
	Currency   string             `validate:"required,currency"`
	Reference  string             `validate:"required,max=255"`
	Recipients []RecipientRequest `validate:"required,min=1,max=1000,dive"`
}

// RecipientRequest is one credit of a batch.
type RecipientRequest struct {
	WalletID string          `validate:"required,uuid"`
	Amount   decimal.Decimal `validate:"-"`
}

// CreateBatch stores a new batch with every recipient PENDING.
func (p *Processor) CreateBatch(ctx context.Context, req CreateBatchRequest, actor audit.Actor) (*models.MassPayoutBatch, error) {
	if err := p.validate.Validate("batch", req); err != nil {
		return nil, err
	}

	recipients := make([]models.Recipient, len(req.Recipients))
	for i, r := range req.Recipients {
		amount, err := ledger.ToMinor(r.Amount, req.Currency)
		if err != nil {
			var appErr *apperr.Error
			if errors.As(err, &appErr) {
				return nil, apperr.Validation("recipient %d: %s", i, appErr.Message)
			}
			return nil, err
		}
		recipients[i] = models.Recipient{WalletId: r.WalletID, Amount: amount, Status: models.RecipientPending}
	}

	now := p.now()
	batch := &models.MassPayoutBatch{
		Id:         p.newID(),
		Currency:   req.Currency,
		Reference:  req.Reference,
		Recipients: recipients,
		Version:    1,
		CreatedBy:  actor.ID,
		CreatedAt:  now,
	}
	batch.Recompute(now)

	if err := p.batches.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperr.Conflict("batch %s already exists", batch.Id)
		}
		return nil, apperr.Database(err, "failed to create batch")
	}
	p.emit(ctx, audit.Event{Actor: actor, Action: "payout.create", Resource: "batch", ResourceID: batch.Id, After: batch, At: now})

	if p.scheduler != nil {
		if err := p.scheduler.EnqueuePayout(ctx, batch.Id); err != nil {
			p.logger.ErrorContext(ctx, "failed to enqueue payout batch",
				slog.String("batch_id", batch.Id),
				slog.String("error", err.Error()),
			)
		}
	}
	return batch, nil
}

// Get returns a batch by id.
func (p *Processor) Get(ctx context.Context, batchID string) (*models.MassPayoutBatch, error) {
	batch, err := p.batches.GetBatch(ctx, batchID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("batch", batchID)
		}
		return nil, apperr.Database(err, "failed to get batch %s", batchID)
	}
	return batch, nil
}

// Process credits every recipient that is not yet COMPLETED. Recipient failures are
// recorded on the recipient and do not fail the call.
func (p *Processor) Process(ctx context.Context, batchID string) (*models.MassPayoutBatch, error) {
	return p.run(ctx, batchID, "process", func(r models.Recipient) bool {
		return r.Status != models.RecipientCompleted
	})
}

// Retry credits only the FAILED recipients of a batch.
func (p *Processor) Retry(ctx context.Context, batchID string) (*models.MassPayoutBatch, error) {
	return p.run(ctx, batchID, "retry", func(r models.Recipient) bool {
		return r.Status == models.RecipientFailed
	})
}

func (p *Processor) run(ctx context.Context, batchID, action string, selected func(models.Recipient) bool) (*models.MassPayoutBatch, error) {
	unlock := p.locks.Lock(batchID)
	defer unlock()

	batch, err := p.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	expected := batch.Version

	// Recipients of the same wallet are credited one after the other.
	var order []string
	groups := make(map[string][]int)
	for i, r := range batch.Recipients {
		if !selected(r) {
			continue
		}
		if _, ok := groups[r.WalletId]; !ok {
			order = append(order, r.WalletId)
		}
		groups[r.WalletId] = append(groups[r.WalletId], i)
	}
	if len(order) == 0 {
		return batch, nil
	}

	started := time.Now()
	g := new(errgroup.Group)
	g.SetLimit(p.workers)
	for _, walletID := range order {
		if ctx.Err() != nil {
			break
		}
		indexes := groups[walletID]
		g.Go(func() error {
			for _, i := range indexes {
				if ctx.Err() != nil {
					return nil
				}
				p.pay(ctx, batch, i)
			}
			return nil
		})
	}
	_ = g.Wait()

	batch.Recompute(p.now())
	// Attempted results are persisted even when the caller has gone away.
	if err := p.batches.SaveBatch(context.WithoutCancel(ctx), batch, expected); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			return nil, apperr.Wrap(apperr.KindConflict, err, "batch %s was modified concurrently", batchID)
		}
		return nil, apperr.Database(err, "failed to save batch %s", batchID)
	}

	p.logger.InfoContext(ctx, "payout batch processed",
		slog.String("batch_id", batch.Id),
		slog.String("action", action),
		slog.String("status", string(batch.Status)),
		slog.Int("processed", batch.ProcessedCount),
		slog.Int("failed", batch.FailedCount),
		slog.Duration("duration", time.Since(started)),
	)
	p.emit(ctx, audit.Event{
		Actor:      audit.ActorFromContext(ctx),
		Action:     "payout." + action,
		Resource:   "batch",
		ResourceID: batch.Id,
		After:      batch,
	})

	if err := ctx.Err(); err != nil {
		return batch, fmt.Errorf("payout batch %s interrupted: %w", batchID, err)
	}
	return batch, nil
}

// pay credits recipient i. Only the goroutine owning i touches it.
func (p *Processor) pay(ctx context.Context, batch *models.MassPayoutBatch, i int) {
	r := &batch.Recipients[i]
	r.Attempts++

	result, err := p.ledger.Post(ctx, ledger.Posting{
		TransactionID: batch.Id,
		Legs: []ledger.Leg{{
			WalletID:    r.WalletId,
			Kind:        models.EntryCredit,
			Amount:      r.Amount,
			Currency:    batch.Currency,
			Description: "mass payout",
			Reference:   batch.Reference,
			EntryID:     RecipientEntryID(batch.Id, i),
		}},
		IdempotencyKey: RecipientKey(batch.Id, i),
		Actor:          audit.ActorFromContext(ctx),
	})
	switch {
	case err == nil:
		r.Status = models.RecipientCompleted
		r.ErrorMessage = ""
		r.LedgerEntryId = result.Entries[0].EntryID
	case errors.Is(err, ledger.ErrAlreadyPosted):
		// Credited by an earlier run whose batch save never landed.
		r.Status = models.RecipientCompleted
		r.ErrorMessage = ""
		r.LedgerEntryId = RecipientEntryID(batch.Id, i)
	default:
		r.Fail(err)
		p.logger.WarnContext(ctx, "payout recipient failed",
			slog.String("batch_id", batch.Id),
			slog.Int("recipient", i),
			slog.String("wallet_id", r.WalletId),
			slog.String("error", err.Error()),
		)
	}
	p.metrics.RecordPayoutRecipient(string(r.Status))
}

// RecipientKey is the idempotency key of recipient i in a batch.
func RecipientKey(batchID string, i int) string {
	return fmt.Sprintf("payout:%s:%d", batchID, i)
}

// RecipientEntryID is the ledger entry id of recipient i's credit. It is derived
// from the idempotency key so a rerun can link an earlier credit.
func RecipientEntryID(batchID string, i int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(RecipientKey(batchID, i))).String()
}

func (p *Processor) now() time.Time {
	return p.clock().UTC()
}

func (p *Processor) emit(ctx context.Context, event audit.Event) {
	if event.Actor == (audit.Actor{}) {
		event.Actor = audit.System
	}
	if event.At.IsZero() {
		event.At = p.now()
	}
	audit.Emit(ctx, p.audit, p.logger, event)
}
