package settlement

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// Settle moves the funds of a PENDING transaction and marks it COMPLETED. Settling
// a COMPLETED transaction returns it unchanged.
//
// Domain failures mark the transaction FAILED with the reason. Infrastructure
// failures return it to PENDING so it can be settled again.
func (s *Service) Settle(ctx context.Context, transactionID string) (*models.Transaction, error) {
	started := time.Now()
	tx, err := s.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	switch tx.Status {
	case models.COMPLETED:
		return tx, nil
	case models.PENDING:
	case models.PROCESSING:
		return nil, s.inFlight(ctx, tx)
	default:
		return nil, apperr.Conflict("transaction %s is %s and cannot be settled", tx.Id, tx.Status)
	}

	if err := s.transition(ctx, tx, models.PROCESSING, ""); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			if current, getErr := s.Get(ctx, transactionID); getErr == nil && current.Status == models.COMPLETED {
				return current, nil
			}
		}
		return nil, err
	}

	settled, err := s.execute(ctx, tx)
	if err != nil {
		settled, err = s.resolve(ctx, tx, err)
	}
	if err != nil {
		s.observe(tx, started)
		return nil, err
	}
	s.observe(settled, started)

	s.logger.InfoContext(ctx, "transaction settled",
		slog.String("transaction_id", settled.Id),
		slog.String("type", string(settled.Type)),
		slog.Int64("amount", settled.Amount),
		slog.String("currency", settled.Currency),
	)
	s.emit(ctx, audit.Event{
		Actor:      audit.ActorFromContext(ctx),
		Action:     "transaction.settle",
		Resource:   "transaction",
		ResourceID: settled.Id,
		Before:     models.PROCESSING,
		After:      settled,
	})
	if s.risk != nil {
		s.risk.Submit(ctx, settled)
	}
	return settled, nil
}

// execute posts every leg of tx together with the PROCESSING to COMPLETED change.
func (s *Service) execute(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	plan, err := s.plan(ctx, tx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	_, err = s.ledger.Post(ctx, ledger.Posting{
		TransactionID: tx.Id,
		Legs:          plan.legs,
		Transition: &storage.TransactionTransition{
			TransactionID:    tx.Id,
			From:             models.PROCESSING,
			To:               models.COMPLETED,
			Fee:              &plan.fee,
			CreditedAmount:   &plan.credited,
			CreditedCurrency: plan.creditedCurrency,
			UpdatedAt:        now,
		},
		IdempotencyKey: settlementKey(tx.Id),
		Actor:          audit.ActorFromContext(ctx),
	})
	if err != nil {
		return nil, err
	}

	settled := tx.Clone()
	settled.Status = models.COMPLETED
	settled.Fee = plan.fee
	settled.CreditedAmount = plan.credited
	if plan.creditedCurrency != "" {
		settled.CreditedCurrency = plan.creditedCurrency
	}
	settled.UpdatedAt = now
	return settled, nil
}

func settlementKey(transactionID string) string {
	return "settle:" + transactionID
}

// resolve decides the final status of a transaction whose settlement failed.
func (s *Service) resolve(ctx context.Context, tx *models.Transaction, cause error) (*models.Transaction, error) {
	// Status writes must land even when the caller has gone away.
	cleanup := context.WithoutCancel(ctx)

	committedElsewhere := errors.Is(cause, ledger.ErrAlreadyPosted) || errors.Is(cause, ledger.ErrTransitionRejected)
	if committedElsewhere || !apperr.IsDomain(cause) {
		// The commit may have landed even though it reported an error.
		current, err := s.Get(cleanup, tx.Id)
		if err == nil && current.Status == models.COMPLETED {
			return current, nil
		}
		if err == nil && current.Status != models.PROCESSING {
			return nil, apperr.Conflict("transaction %s moved to %s during settlement", tx.Id, current.Status)
		}
	}
	if committedElsewhere {
		return nil, apperr.ManualReview(tx.Id, cause, "settlement posting exists but transaction is still %s", models.PROCESSING)
	}

	if apperr.IsDomain(cause) {
		reason := failureReason(cause)
		if err := s.transition(cleanup, tx, models.FAILED, reason); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark transaction as failed",
				slog.String("transaction_id", tx.Id),
				slog.String("error", err.Error()),
			)
		} else {
			s.emit(ctx, audit.Event{
				Actor:      audit.ActorFromContext(ctx),
				Action:     "transaction.fail",
				Resource:   "transaction",
				ResourceID: tx.Id,
				Before:     models.PROCESSING,
				After:      tx,
			})
		}
		return nil, cause
	}

	if err := s.transition(cleanup, tx, models.PENDING, ""); err != nil {
		s.logger.ErrorContext(ctx, "failed to release settlement lease",
			slog.String("transaction_id", tx.Id),
			slog.String("error", err.Error()),
		)
	}
	var coded apperr.Coded
	if errors.As(cause, &coded) {
		return nil, cause
	}
	return nil, apperr.Transaction(tx.Id, cause, "settlement failed and can be retried")
}

func failureReason(err error) string {
	msg := err.Error()
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// inFlight reports on a transaction that is already PROCESSING.
func (s *Service) inFlight(ctx context.Context, tx *models.Transaction) error {
	entries, err := s.ledger.EntriesForTransaction(ctx, tx.Id)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return apperr.ManualReview(tx.Id, nil, "%s with %d ledger entries", models.PROCESSING, len(entries))
	}
	return apperr.Conflict("transaction %s is already being settled", tx.Id)
}

type plan struct {
	legs             []ledger.Leg
	fee              int64
	credited         int64
	creditedCurrency string
}

func (s *Service) plan(ctx context.Context, tx *models.Transaction) (*plan, error) {
	description := tx.Description
	if description == "" {
		description = strings.ToLower(string(tx.Type))
	}
	leg := func(walletID string, kind models.EntryType, amount int64, currency string) ledger.Leg {
		return ledger.Leg{
			WalletID:    walletID,
			Kind:        kind,
			Amount:      amount,
			Currency:    currency,
			Description: description,
			Reference:   tx.Reference,
		}
	}

	p := &plan{}
	switch tx.Type {
	case models.TypeTransfer:
		p.legs = []ledger.Leg{
			leg(tx.FromWalletId, models.EntryDebit, tx.Amount, tx.Currency),
			leg(tx.ToWalletId, models.EntryCredit, tx.Amount, tx.Currency),
		}
		p.credited = tx.Amount
	case models.TypeDeposit, models.TypeMassPayout:
		p.legs = []ledger.Leg{leg(tx.ToWalletId, models.EntryCredit, tx.Amount, tx.Currency)}
		p.credited = tx.Amount
	case models.TypeWithdrawal:
		p.legs = []ledger.Leg{leg(tx.FromWalletId, models.EntryDebit, tx.Amount, tx.Currency)}
	case models.TypeFee:
		p.legs = []ledger.Leg{leg(tx.FromWalletId, models.EntryDebit, tx.Amount, tx.Currency)}
		p.fee = tx.Amount
		collector := tx.ToWalletId
		if collector == "" {
			collector = s.feeWallets[tx.Currency]
		}
		if collector != "" {
			p.legs = append(p.legs, leg(collector, models.EntryCredit, tx.Amount, tx.Currency))
			p.credited = tx.Amount
		}
	case models.TypeRefund:
		if tx.FromWalletId != "" {
			p.legs = append(p.legs, leg(tx.FromWalletId, models.EntryDebit, tx.Amount, tx.Currency))
		}
		p.legs = append(p.legs, leg(tx.ToWalletId, models.EntryCredit, tx.Amount, tx.Currency))
		p.credited = tx.Amount
	case models.TypeFXConversion:
		if tx.FxRate == nil || !tx.FxRate.IsPositive() {
			return nil, apperr.Validation("%s requires a positive fx rate", tx.Type)
		}
		dest, err := s.ledger.GetWallet(ctx, tx.ToWalletId)
		if err != nil {
			return nil, err
		}

		feeMajor, err := s.fees.CalculateFee(ctx, money.FromMinor(tx.Amount, tx.Currency), tx.Currency)
		if err != nil {
			return nil, apperr.Transaction(tx.Id, err, "fx fee calculation failed")
		}
		fee, err := money.ToMinor(feeMajor, tx.Currency)
		if err != nil || fee < 0 || fee > math.MaxInt64-tx.Amount {
			return nil, apperr.Validation("fx fee %s %s is not payable", feeMajor.String(), tx.Currency)
		}

		gross := money.FromMinor(tx.Amount, tx.Currency)
		credited, err := money.ToMinor(gross.Mul(tx.FxRate.Decimal), dest.Currency)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		if credited <= 0 {
			return nil, apperr.Validation("converted amount rounds to zero %s", dest.Currency)
		}

		// The fee is charged on top of the converted amount; the source debit
		// covers both.
		p.legs = append(p.legs, leg(tx.FromWalletId, models.EntryDebit, tx.Amount+fee, tx.Currency))
		if fee > 0 {
			collector, ok := s.feeWallets[tx.Currency]
			if !ok {
				return nil, apperr.Validation("no fee wallet configured for %s", tx.Currency)
			}
			feeLeg := leg(collector, models.EntryCredit, fee, tx.Currency)
			feeLeg.Description = "fx fee"
			p.legs = append(p.legs, feeLeg)
		}
		p.legs = append(p.legs, leg(tx.ToWalletId, models.EntryCredit, credited, dest.Currency))
		p.fee = fee
		p.credited = credited
		if dest.Currency != tx.Currency {
			p.creditedCurrency = dest.Currency
		}
	default:
		return nil, apperr.Validation("unknown transaction type %q", tx.Type)
	}
	return p, nil
}
