package ledger

import (
	"context"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/shopspring/decimal"
)

// Credit adds amount to the balance and the available balance of a wallet.
func (l *Ledger) Credit(ctx context.Context, walletID string, amount decimal.Decimal, transactionID, description, reference string) (*models.WalletAccount, error) {
	return l.single(ctx, walletID, models.EntryCredit, amount, transactionID, description, reference)
}

// Debit removes amount from the balance and the available balance of a wallet.
// It fails with an InsufficientFundsError when the available balance is too low.
func (l *Ledger) Debit(ctx context.Context, walletID string, amount decimal.Decimal, transactionID, description, reference string) (*models.WalletAccount, error) {
	return l.single(ctx, walletID, models.EntryDebit, amount, transactionID, description, reference)
}

// FreezeFunds moves amount from the available balance to the frozen balance.
func (l *Ledger) FreezeFunds(ctx context.Context, walletID string, amount decimal.Decimal, reason string) (*models.WalletAccount, error) {
	return l.single(ctx, walletID, models.EntryFreeze, amount, "", reason, "")
}

// UnfreezeFunds moves amount from the frozen balance back to the available balance.
func (l *Ledger) UnfreezeFunds(ctx context.Context, walletID string, amount decimal.Decimal, reason string) (*models.WalletAccount, error) {
	return l.single(ctx, walletID, models.EntryUnfreeze, amount, "", reason, "")
}

func (l *Ledger) single(ctx context.Context, walletID string, kind models.EntryType, amount decimal.Decimal, transactionID, description, reference string) (*models.WalletAccount, error) {
	// The currency is immutable, so reading it outside the retry loop is safe.
	w, err := l.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	minor, err := ToMinor(amount, w.Currency)
	if err != nil {
		return nil, err
	}

	result, err := l.Post(ctx, Posting{
		TransactionID: transactionID,
		Legs: []Leg{{
			WalletID:    walletID,
			Kind:        kind,
			Amount:      minor,
			Currency:    w.Currency,
			Description: description,
			Reference:   reference,
		}},
		Actor: audit.ActorFromContext(ctx),
	})
	if err != nil {
		return nil, err
	}
	return result.Wallets[walletID], nil
}

// ToMinor converts a positive major-unit amount into minor units of currency,
// rounding half-to-even.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	minor, err := money.ToMinor(amount, currency)
	if err != nil {
		return 0, apperr.Validation("%v", err)
	}
	if minor <= 0 {
		return 0, apperr.Validation("amount must be greater than zero after rounding to %s precision", currency)
	}
	return minor, nil
}
