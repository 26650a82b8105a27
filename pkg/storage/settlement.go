package storage

import (
	"context"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
)

// WalletWrite replaces the balance fields of a wallet, conditional on its version.
type WalletWrite struct {
	Wallet          *models.WalletAccount
	ExpectedVersion int64
}

// TransactionTransition is a conditional status change committed together with the
// wallet writes of a settlement. CreditedCurrency is only set when it differs from
// the transaction currency.
type TransactionTransition struct {
	TransactionID    string
	From             models.TransactionStatus
	To               models.TransactionStatus
	Fee              *int64
	CreditedAmount   *int64
	CreditedCurrency string
	UpdatedAt        time.Time
}

// Commit is one atomic unit of work: every wallet write, every ledger entry, the
// optional transaction transition and the optional idempotency marker are applied
// together, or none of them is.
type Commit struct {
	Wallets        []WalletWrite
	Entries        []models.LedgerEntry
	Transition     *TransactionTransition
	IdempotencyKey string
}

// SettlementStore defines the highly-privileged interface for mutating balances.
// It should only be exposed to the ledger.
type SettlementStore interface {
	// Commit applies c atomically. It returns ErrVersionConflict when a wallet changed
	// since it was read, ErrTransitionRejected when the transaction is not in
	// Transition.From, and ErrDuplicatePosting when IdempotencyKey was already used.
	Commit(ctx context.Context, c *Commit) error
}
