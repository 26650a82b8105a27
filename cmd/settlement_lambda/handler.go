package main

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/scheduler"
)

type settler interface {
	Settle(ctx context.Context, transactionID string) (*models.Transaction, error)
}

type batchProcessor interface {
	Process(ctx context.Context, batchID string) (*models.MassPayoutBatch, error)
}

type handler struct {
	settler settler
	payouts batchProcessor
	logger  *slog.Logger
	// drain waits for background work started by the messages of one invocation.
	drain func()
}

// HandleRequest settles the transactions and runs the batches named by the queued
// messages. Only messages that may succeed on a later delivery are reported as
// failures; domain outcomes are final and are acknowledged.
func (h *handler) HandleRequest(ctx context.Context, ev events.SQSEvent) events.SQSEventResponse {
	var resp events.SQSEventResponse
	for _, record := range ev.Records {
		if err := h.handle(ctx, record); err != nil {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
	}
	if h.drain != nil {
		h.drain()
	}
	return resp
}

func (h *handler) handle(ctx context.Context, record events.SQSMessage) error {
	msg, err := scheduler.Decode(record.Body)
	if err != nil {
		// A malformed message will never succeed.
		h.logger.ErrorContext(ctx, "dropping malformed message", slog.String("message_id", record.MessageId), slog.Any("error", err))
		return nil
	}

	switch msg.Kind {
	case scheduler.KindTransaction:
		_, err = h.settler.Settle(ctx, msg.ID)
	case scheduler.KindPayout:
		_, err = h.payouts.Process(ctx, msg.ID)
	}
	if err == nil {
		h.logger.InfoContext(ctx, "message processed", slog.String("kind", string(msg.Kind)), slog.String("id", msg.ID))
		return nil
	}

	attrs := []any{
		slog.String("message_id", record.MessageId),
		slog.String("kind", string(msg.Kind)),
		slog.String("id", msg.ID),
		slog.Any("error", err),
	}
	switch {
	case apperr.RequiresManualReview(err):
		h.logger.ErrorContext(ctx, "settlement requires manual review", attrs...)
		return nil
	case apperr.IsDomain(err):
		h.logger.WarnContext(ctx, "message rejected", attrs...)
		return nil
	}
	h.logger.ErrorContext(ctx, "message failed, will retry", attrs...)
	return err
}
