package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// CreateWallet opens a new ACTIVE wallet. It fails with a ConflictError when the
// owner already holds a wallet in the currency.
func (l *Ledger) CreateWallet(ctx context.Context, ownerID, currency string, actor audit.Actor) (*models.WalletAccount, error) {
	if ownerID == "" {
		return nil, apperr.Validation("owner id is required")
	}
	code, err := money.NormalizeCurrency(currency)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	now := l.now()
	w := &models.WalletAccount{
		Id:        l.newID(),
		OwnerId:   ownerID,
		Currency:  code,
		Status:    models.WalletActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.store.CreateWallet(ctx, w); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, apperr.Conflict("wallet already exists for owner %s in %s", ownerID, code)
		}
		return nil, apperr.Database(err, "failed to create wallet")
	}

	l.emit(ctx, audit.Event{Actor: actor, Action: "wallet.create", Resource: "wallet", ResourceID: w.Id, After: w, At: now})
	return w, nil
}

// OpenWallet returns the owner's wallet in currency, creating it on first request.
func (l *Ledger) OpenWallet(ctx context.Context, ownerID, currency string, actor audit.Actor) (*models.WalletAccount, error) {
	code, err := money.NormalizeCurrency(currency)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	w, err := l.GetWalletByOwner(ctx, ownerID, code)
	if err == nil || !apperr.Is(err, apperr.KindNotFound) {
		return w, err
	}

	w, err = l.CreateWallet(ctx, ownerID, code, actor)
	if apperr.Is(err, apperr.KindConflict) {
		// Lost a creation race; the other request's wallet is the one to return.
		return l.GetWalletByOwner(ctx, ownerID, code)
	}
	return w, err
}

// GetWallet returns a wallet by id.
func (l *Ledger) GetWallet(ctx context.Context, walletID string) (*models.WalletAccount, error) {
	w, err := l.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, mapStoreError(err, "wallet", walletID)
	}
	return w, nil
}

// GetWalletByOwner returns the wallet an owner holds in currency.
func (l *Ledger) GetWalletByOwner(ctx context.Context, ownerID, currency string) (*models.WalletAccount, error) {
	w, err := l.store.GetWalletByOwner(ctx, ownerID, currency)
	if err != nil {
		return nil, mapStoreError(err, "wallet", ownerID+"/"+currency)
	}
	return w, nil
}

// History returns the newest ledger entries of a wallet.
func (l *Ledger) History(ctx context.Context, walletID string, limit int) ([]models.LedgerEntry, error) {
	if _, err := l.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	entries, err := l.store.ListLedgerEntries(ctx, walletID, int32(limit))
	if err != nil {
		return nil, apperr.Database(err, "failed to list ledger entries for wallet %s", walletID)
	}
	return entries, nil
}

// EntriesForTransaction returns every entry recorded for a transaction.
func (l *Ledger) EntriesForTransaction(ctx context.Context, transactionID string) ([]models.LedgerEntry, error) {
	entries, err := l.store.ListEntriesByTransaction(ctx, transactionID)
	if err != nil {
		return nil, apperr.Database(err, "failed to list ledger entries for transaction %s", transactionID)
	}
	return entries, nil
}

// SetStatus changes the status of a wallet. Setting the current status is a no-op.
// CLOSED is terminal and requires a zero balance.
func (l *Ledger) SetStatus(ctx context.Context, walletID string, status models.WalletStatus, actor audit.Actor) (*models.WalletAccount, error) {
	switch status {
	case models.WalletActive, models.WalletSuspended, models.WalletClosed:
	default:
		return nil, apperr.Validation("wallet status %q cannot be set", status)
	}

	started := time.Now()
	var before, after *models.WalletAccount
	err := l.retry(ctx, "status", func() error {
		w, err := l.store.GetWallet(ctx, walletID)
		if err != nil {
			return mapStoreError(err, "wallet", walletID)
		}
		if w.Status == status {
			before, after = nil, w
			return nil
		}
		if w.Status == models.WalletClosed {
			return apperr.Wallet("wallet %s is closed", walletID)
		}
		if status == models.WalletClosed && w.Balance != 0 {
			return apperr.Wallet("wallet %s cannot be closed with a balance of %s %s",
				walletID, money.Format(w.Balance, w.Currency), w.Currency)
		}

		now := l.now()
		if err := l.store.UpdateWalletStatus(ctx, walletID, status, w.Version, now); err != nil {
			return mapStoreError(err, "wallet", walletID)
		}
		before = w.Clone()
		w.Status = status
		w.Version++
		w.UpdatedAt = now
		after = w
		return nil
	})
	l.observe("status", started, err)
	if err != nil {
		return nil, err
	}

	if before != nil {
		l.emit(ctx, audit.Event{Actor: actor, Action: "wallet.status", Resource: "wallet", ResourceID: walletID, Before: before, After: after})
	}
	return after, nil
}
