package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/models"
)

// RecoveryReport summarises one recovery sweep.
type RecoveryReport struct {
	// Released holds PROCESSING transactions returned to PENDING.
	Released []string `json:"released"`
	// Requeued holds transactions handed back to the scheduler.
	Requeued []string `json:"requeued"`
	// ManualReview holds PROCESSING transactions that already have ledger entries.
	ManualReview []string `json:"manual_review"`
}

// RecoverStuck releases settlement leases older than olderThan and re-enqueues
// stale PENDING transactions. A lease is only released when the transaction has
// no ledger entries.
func (s *Service) RecoverStuck(ctx context.Context, olderThan time.Duration) (*RecoveryReport, error) {
	cutoff := s.now().Add(-olderThan)
	report := &RecoveryReport{}

	processing, err := s.store.ListTransactionsByStatus(ctx, models.PROCESSING, cutoff)
	if err != nil {
		return nil, apperr.Database(err, "failed to list %s transactions", models.PROCESSING)
	}
	for i := range processing {
		tx := &processing[i]
		entries, err := s.ledger.EntriesForTransaction(ctx, tx.Id)
		if err != nil {
			return report, err
		}
		if len(entries) > 0 {
			s.logger.ErrorContext(ctx, "stuck transaction has ledger entries, manual review required",
				slog.String("transaction_id", tx.Id),
				slog.Int("entries", len(entries)),
			)
			report.ManualReview = append(report.ManualReview, tx.Id)
			continue
		}
		if err := s.transition(ctx, tx, models.PENDING, ""); err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				// Settled or released by someone else since the listing.
				continue
			}
			return report, err
		}
		report.Released = append(report.Released, tx.Id)
		s.requeue(ctx, tx.Id, report)
	}

	pending, err := s.store.ListTransactionsByStatus(ctx, models.PENDING, cutoff)
	if err != nil {
		return report, apperr.Database(err, "failed to list %s transactions", models.PENDING)
	}
	for _, tx := range pending {
		s.requeue(ctx, tx.Id, report)
	}

	s.logger.InfoContext(ctx, "recovery sweep finished",
		slog.Int("released", len(report.Released)),
		slog.Int("requeued", len(report.Requeued)),
		slog.Int("manual_review", len(report.ManualReview)),
	)
	return report, nil
}

func (s *Service) requeue(ctx context.Context, transactionID string, report *RecoveryReport) {
	if s.scheduler == nil {
		return
	}
	if err := s.scheduler.EnqueueTransaction(ctx, transactionID); err != nil {
		s.logger.ErrorContext(ctx, "failed to requeue transaction",
			slog.String("transaction_id", transactionID),
			slog.String("error", err.Error()),
		)
		return
	}
	report.Requeued = append(report.Requeued, transactionID)
}
