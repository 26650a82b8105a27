package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/settlement"
)

type recoverer interface {
	RecoverStuck(ctx context.Context, olderThan time.Duration) (*settlement.RecoveryReport, error)
}

type handler struct {
	recoverer recoverer
	threshold time.Duration
	logger    *slog.Logger
}

// HandleRequest is triggered by an EventBridge schedule. It releases abandoned
// settlement leases and re-enqueues transactions that were never settled.
func (h *handler) HandleRequest(ctx context.Context) error {
	h.logger.InfoContext(ctx, "starting reconciliation of stuck transactions", slog.Duration("threshold", h.threshold))

	report, err := h.recoverer.RecoverStuck(ctx, h.threshold)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to recover stuck transactions", slog.Any("error", err))
		return err
	}

	h.logger.InfoContext(ctx, "reconciliation finished",
		slog.Int("released", len(report.Released)),
		slog.Int("requeued", len(report.Requeued)),
		slog.Int("manual_review", len(report.ManualReview)),
	)
	if len(report.ManualReview) > 0 {
		h.logger.WarnContext(ctx, "transactions require manual review", slog.Any("transaction_ids", report.ManualReview))
	}
	return nil
}
