package settlement

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

// CreateTransactionRequest describes a money movement to be settled later.
// Amount is in major units of Currency.
type CreateTransactionRequest struct {
	Type         models.TransactionType `validate:"required,oneof=TRANSFER DEPOSIT WITHDRAWAL FX_CONVERSION MASS_PAYOUT FEE REFUND"`
	FromWalletID string                 `validate:"omitempty,uuid"`
	ToWalletID   string                 `validate:"omitempty,uuid"`
	Amount       decimal.Decimal        `validate:"-"`
	Currency     string                 `validate:"required,currency"`
	FxRate       *decimal.Decimal       `validate:"-"`
	Reference    string                 `validate:"required,max=255"`
	Description  string                 `validate:"max=1024"`
}

// CreateTransaction validates req and stores it as a PENDING transaction. No funds
// move until the transaction is settled.
func (s *Service) CreateTransaction(ctx context.Context, req CreateTransactionRequest, actor audit.Actor) (*models.Transaction, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	amount, err := ledger.ToMinor(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	now := s.now()
	tx := &models.Transaction{
		Id:           s.newID(),
		Type:         req.Type,
		Status:       models.PENDING,
		FromWalletId: req.FromWalletID,
		ToWalletId:   req.ToWalletID,
		Amount:       amount,
		Currency:     req.Currency,
		Reference:    req.Reference,
		Description:  req.Description,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.FxRate != nil {
		tx.FxRate = models.NewRate(*req.FxRate)
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperr.Conflict("transaction %s already exists", tx.Id)
		}
		return nil, apperr.Database(err, "failed to create transaction")
	}
	s.emit(ctx, audit.Event{Actor: actor, Action: "transaction.create", Resource: "transaction", ResourceID: tx.Id, After: tx, At: now})

	if s.scheduler != nil {
		if err := s.scheduler.EnqueueTransaction(ctx, tx.Id); err != nil {
			// The recovery sweep picks up PENDING transactions that were never enqueued.
			s.logger.ErrorContext(ctx, "failed to enqueue transaction for settlement",
				slog.String("transaction_id", tx.Id),
				slog.String("error", err.Error()),
			)
		}
	}
	return tx, nil
}

func (s *Service) validateRequest(req CreateTransactionRequest) error {
	if err := s.validate.Validate("transaction", req); err != nil {
		return err
	}
	if !req.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}

	from, to := req.FromWalletID != "", req.ToWalletID != ""
	switch req.Type {
	case models.TypeTransfer, models.TypeFXConversion:
		if !from || !to {
			return apperr.Validation("%s requires a source and a destination wallet", req.Type)
		}
		if req.FromWalletID == req.ToWalletID {
			return apperr.Validation("source and destination wallet must differ")
		}
	case models.TypeDeposit, models.TypeMassPayout:
		if from || !to {
			return apperr.Validation("%s requires only a destination wallet", req.Type)
		}
	case models.TypeWithdrawal:
		if !from || to {
			return apperr.Validation("%s requires only a source wallet", req.Type)
		}
	case models.TypeFee:
		if !from {
			return apperr.Validation("%s requires a source wallet", req.Type)
		}
	case models.TypeRefund:
		if !to {
			return apperr.Validation("%s requires a destination wallet", req.Type)
		}
	}

	if req.Type == models.TypeFXConversion {
		if req.FxRate == nil || !req.FxRate.IsPositive() {
			return apperr.Validation("%s requires a positive fx rate", req.Type)
		}
	} else if req.FxRate != nil {
		return apperr.Validation("fx rate is only allowed for %s", models.TypeFXConversion)
	}
	return nil
}

// Get returns a transaction by id.
func (s *Service) Get(ctx context.Context, transactionID string) (*models.Transaction, error) {
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound("transaction", transactionID)
		}
		return nil, apperr.Database(err, "failed to get transaction %s", transactionID)
	}
	return tx, nil
}

func (s *Service) transition(ctx context.Context, tx *models.Transaction, to models.TransactionStatus, reason string) error {
	now := s.now()
	if err := s.store.TransitionTransaction(ctx, tx.Id, tx.Status, to, reason, now); err != nil {
		switch {
		case errors.Is(err, storage.ErrTransitionRejected):
			return apperr.Wrap(apperr.KindConflict, err, "transaction %s is no longer %s", tx.Id, tx.Status)
		case errors.Is(err, storage.ErrNotFound):
			return apperr.NotFound("transaction", tx.Id)
		}
		return apperr.Database(err, "failed to move transaction %s to %s", tx.Id, to)
	}
	tx.Status = to
	tx.UpdatedAt = now
	if reason != "" {
		tx.FailureReason = reason
	}
	return nil
}

func (s *Service) observe(tx *models.Transaction, started time.Time) {
	s.metrics.RecordSettlement(string(tx.Type), string(tx.Status), time.Since(started))
}
