package settlement

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// manualTransitions lists the status changes a caller may request directly.
// COMPLETED is only reached through Settle and REVERSED through Reverse.
var manualTransitions = map[models.TransactionStatus][]models.TransactionStatus{
	models.PENDING:    {models.PROCESSING, models.CANCELLED, models.FAILED},
	models.PROCESSING: {models.PENDING, models.FAILED},
}

// UpdateStatus moves a transaction to status. Requesting the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, transactionID string, status models.TransactionStatus, actor audit.Actor) (*models.Transaction, error) {
	if !status.Valid() {
		return nil, apperr.Validation("unknown transaction status %q", status)
	}
	tx, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status == status {
		return tx, nil
	}
	if !slices.Contains(manualTransitions[tx.Status], status) {
		return nil, apperr.Conflict("transaction %s cannot move from %s to %s", tx.Id, tx.Status, status)
	}
	if tx.Status == models.PROCESSING {
		// Funds must not have moved for the lease to be released or failed by hand.
		entries, err := s.ledger.EntriesForTransaction(ctx, tx.Id)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			return nil, apperr.ManualReview(tx.Id, nil, "%s with %d ledger entries", models.PROCESSING, len(entries))
		}
	}

	before := tx.Status
	reason := ""
	if status == models.FAILED {
		reason = fmt.Sprintf("marked failed by %s", actor.ID)
	}
	if err := s.transition(ctx, tx, status, reason); err != nil {
		return nil, err
	}
	s.emit(ctx, audit.Event{Actor: actor, Action: "transaction.status", Resource: "transaction", ResourceID: tx.Id, Before: before, After: tx, At: tx.UpdatedAt})
	return tx, nil
}

// Cancel cancels a PENDING transaction.
func (s *Service) Cancel(ctx context.Context, transactionID string, actor audit.Actor) (*models.Transaction, error) {
	tx, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.PENDING && tx.Status != models.CANCELLED {
		return nil, apperr.Conflict("transaction %s is %s and cannot be cancelled", tx.Id, tx.Status)
	}
	return s.UpdateStatus(ctx, transactionID, models.CANCELLED, actor)
}

// Reverse undoes a COMPLETED transaction. The inverse of every ledger entry and the
// COMPLETED to REVERSED change commit together; the returned transaction is the
// compensating REFUND that owns the inverse entries.
func (s *Service) Reverse(ctx context.Context, transactionID string, actor audit.Actor) (*models.Transaction, error) {
	tx, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.COMPLETED {
		return nil, apperr.Conflict("transaction %s is %s and cannot be reversed", tx.Id, tx.Status)
	}

	entries, err := s.ledger.EntriesForTransaction(ctx, tx.Id)
	if err != nil {
		return nil, err
	}
	reversalID := s.newID()
	var legs []ledger.Leg
	for _, e := range entries {
		kind := models.EntryCredit
		switch e.Type {
		case models.EntryCredit:
			kind = models.EntryDebit
		case models.EntryDebit:
		default:
			continue
		}
		legs = append(legs, ledger.Leg{
			WalletID:    e.WalletID,
			Kind:        kind,
			Amount:      e.Amount,
			Currency:    e.Currency,
			Description: "reversal of " + tx.Id,
			Reference:   tx.Reference,
		})
	}
	if len(legs) == 0 {
		return nil, apperr.ManualReview(tx.Id, nil, "%s without ledger entries", models.COMPLETED)
	}

	now := s.now()
	_, err = s.ledger.Post(audit.WithActor(ctx, actor), ledger.Posting{
		TransactionID: reversalID,
		Legs:          legs,
		Transition: &storage.TransactionTransition{
			TransactionID: tx.Id,
			From:          models.COMPLETED,
			To:            models.REVERSED,
			UpdatedAt:     now,
		},
		IdempotencyKey: "reverse:" + tx.Id,
		Actor:          actor,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyPosted) || errors.Is(err, ledger.ErrTransitionRejected) {
			return nil, apperr.Conflict("transaction %s has already been reversed", tx.Id)
		}
		return nil, err
	}

	reversal := &models.Transaction{
		Id:             reversalID,
		Type:           models.TypeRefund,
		Status:         models.COMPLETED,
		FromWalletId:   tx.ToWalletId,
		ToWalletId:     tx.FromWalletId,
		Amount:         tx.Amount,
		Currency:       tx.Currency,
		CreditedAmount: tx.Amount,
		Reference:      tx.Reference,
		Description:    "reversal of " + tx.Id,
		ReversalOf:     tx.Id,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateTransaction(context.WithoutCancel(ctx), reversal); err != nil {
		// The money has moved; the missing record is repaired by hand from the entries.
		return nil, apperr.ManualReview(tx.Id, err, "reversal %s posted but its record could not be stored", reversalID)
	}

	tx.Status = models.REVERSED
	tx.UpdatedAt = now
	s.metrics.RecordSettlement(string(tx.Type), string(models.REVERSED), 0)
	s.emit(ctx, audit.Event{Actor: actor, Action: "transaction.reverse", Resource: "transaction", ResourceID: tx.Id, Before: models.COMPLETED, After: reversal, At: now})
	return reversal, nil
}
