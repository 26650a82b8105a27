package storage

import (
	"context"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
)

// WalletStore defines the interface for managing wallet accounts.
// Balance fields are never written through this interface; see SettlementStore.
type WalletStore interface {
	// CreateWallet stores a new wallet. It returns ErrAlreadyExists when the id or the
	// (owner, currency) pair is taken.
	CreateWallet(ctx context.Context, wallet *models.WalletAccount) error

	// GetWallet retrieves a wallet by its ID.
	GetWallet(ctx context.Context, walletID string) (*models.WalletAccount, error)

	// GetWalletByOwner retrieves the wallet an owner holds in a currency.
	GetWalletByOwner(ctx context.Context, ownerID, currency string) (*models.WalletAccount, error)

	// UpdateWalletStatus changes the status of a wallet if its version still matches.
	UpdateWalletStatus(ctx context.Context, walletID string, status models.WalletStatus, expectedVersion int64, now time.Time) error
}
