package storage

import (
	"context"

	"github.com/chris/wallet-ledger/pkg/models"
)

// LedgerReader defines the interface for reading ledger data.
type LedgerReader interface {
	// ListLedgerEntries returns up to limit entries of a wallet, newest first.
	ListLedgerEntries(ctx context.Context, walletID string, limit int32) ([]models.LedgerEntry, error)

	// ListEntriesByTransaction returns every entry recorded for a transaction.
	ListEntriesByTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error)
}
