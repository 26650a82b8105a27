// Package memory provides a concurrency-safe in-memory implementation of the
// storage interfaces. It applies the same conditional-write semantics as the
// DynamoDB store and is used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
)

// Store is an in-memory storage.Storage.
type Store struct {
	mu           sync.RWMutex
	wallets      map[string]*models.WalletAccount
	owners       map[string]string
	entries      map[string][]models.LedgerEntry
	transactions map[string]*models.Transaction
	batches      map[string]*models.MassPayoutBatch
	idempotency  map[string]time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		wallets:      make(map[string]*models.WalletAccount),
		owners:       make(map[string]string),
		entries:      make(map[string][]models.LedgerEntry),
		transactions: make(map[string]*models.Transaction),
		batches:      make(map[string]*models.MassPayoutBatch),
		idempotency:  make(map[string]time.Time),
	}
}

var _ storage.Storage = (*Store)(nil)

func ownerKey(ownerID, currency string) string {
	return ownerID + "#" + currency
}

// CreateWallet implements storage.WalletStore.
func (s *Store) CreateWallet(_ context.Context, wallet *models.WalletAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := ownerKey(wallet.OwnerId, wallet.Currency)
	if _, exists := s.wallets[wallet.Id]; exists {
		return storage.ErrAlreadyExists
	}
	if _, exists := s.owners[key]; exists {
		return storage.ErrAlreadyExists
	}
	s.wallets[wallet.Id] = wallet.Clone()
	s.owners[key] = wallet.Id
	return nil
}

// GetWallet implements storage.WalletStore.
func (s *Store) GetWallet(_ context.Context, walletID string) (*models.WalletAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return w.Clone(), nil
}

// GetWalletByOwner implements storage.WalletStore.
func (s *Store) GetWalletByOwner(_ context.Context, ownerID, currency string) (*models.WalletAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.owners[ownerKey(ownerID, currency)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return s.wallets[id].Clone(), nil
}

// UpdateWalletStatus implements storage.WalletStore.
func (s *Store) UpdateWalletStatus(_ context.Context, walletID string, status models.WalletStatus, expectedVersion int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return storage.ErrNotFound
	}
	if w.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	w.Status = status
	w.Version++
	w.UpdatedAt = now
	return nil
}

// ListLedgerEntries implements storage.LedgerReader.
func (s *Store) ListLedgerEntries(_ context.Context, walletID string, limit int32) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.entries[walletID]
	out := make([]models.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && int32(len(out)) >= limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

// ListEntriesByTransaction implements storage.LedgerReader.
func (s *Store) ListEntriesByTransaction(_ context.Context, transactionID string) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.LedgerEntry
	for _, list := range s.entries {
		for _, e := range list {
			if e.TransactionID == transactionID {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].EntryID < out[j].EntryID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Commit implements storage.SettlementStore. Every condition is checked before
// anything is applied, so a rejected commit leaves no trace.
func (s *Store) Commit(_ context.Context, c *storage.Commit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.IdempotencyKey != "" {
		if _, used := s.idempotency[c.IdempotencyKey]; used {
			return storage.ErrDuplicatePosting
		}
	}

	var tx *models.Transaction
	if c.Transition != nil {
		var ok bool
		tx, ok = s.transactions[c.Transition.TransactionID]
		if !ok || tx.Status != c.Transition.From {
			return storage.ErrTransitionRejected
		}
	}

	for _, ww := range c.Wallets {
		current, ok := s.wallets[ww.Wallet.Id]
		if !ok {
			return storage.ErrNotFound
		}
		if current.Version != ww.ExpectedVersion {
			return storage.ErrVersionConflict
		}
		if !ww.Wallet.Consistent() {
			return fmt.Errorf("wallet %s would violate the balance invariant", ww.Wallet.Id)
		}
	}

	for _, ww := range c.Wallets {
		s.wallets[ww.Wallet.Id] = ww.Wallet.Clone()
	}
	for _, e := range c.Entries {
		s.entries[e.WalletID] = append(s.entries[e.WalletID], e)
	}
	if tx != nil {
		tx.Status = c.Transition.To
		tx.UpdatedAt = c.Transition.UpdatedAt
		if c.Transition.Fee != nil {
			tx.Fee = *c.Transition.Fee
		}
		if c.Transition.CreditedAmount != nil {
			tx.CreditedAmount = *c.Transition.CreditedAmount
		}
		if c.Transition.CreditedCurrency != "" {
			tx.CreditedCurrency = c.Transition.CreditedCurrency
		}
	}
	if c.IdempotencyKey != "" {
		s.idempotency[c.IdempotencyKey] = time.Now()
	}
	return nil
}

// CreateTransaction implements storage.TransactionManager.
func (s *Store) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.Id]; exists {
		return storage.ErrAlreadyExists
	}
	s.transactions[tx.Id] = tx.Clone()
	return nil
}

// GetTransaction implements storage.TransactionReader.
func (s *Store) GetTransaction(_ context.Context, txID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return tx.Clone(), nil
}

// ListTransactionsByStatus implements storage.TransactionReader.
func (s *Store) ListTransactionsByStatus(_ context.Context, status models.TransactionStatus, updatedBefore time.Time) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for _, tx := range s.transactions {
		if tx.Status == status && tx.UpdatedAt.Before(updatedBefore) {
			out = append(out, *tx.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// TransitionTransaction implements storage.TransactionManager.
func (s *Store) TransitionTransaction(_ context.Context, txID string, from, to models.TransactionStatus, reason string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return storage.ErrNotFound
	}
	if tx.Status != from {
		return storage.ErrTransitionRejected
	}
	tx.Status = to
	tx.UpdatedAt = now
	if reason != "" {
		tx.FailureReason = reason
	}
	return nil
}

// CreateBatch implements storage.BatchStore.
func (s *Store) CreateBatch(_ context.Context, batch *models.MassPayoutBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.Id]; exists {
		return storage.ErrAlreadyExists
	}
	s.batches[batch.Id] = batch.Clone()
	return nil
}

// GetBatch implements storage.BatchStore.
func (s *Store) GetBatch(_ context.Context, batchID string) (*models.MassPayoutBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.batches[batchID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return b.Clone(), nil
}

// SaveBatch implements storage.BatchStore.
func (s *Store) SaveBatch(_ context.Context, batch *models.MassPayoutBatch, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.batches[batch.Id]
	if !ok {
		return storage.ErrNotFound
	}
	if current.Version != expectedVersion {
		return storage.ErrVersionConflict
	}
	saved := batch.Clone()
	saved.Version = expectedVersion + 1
	s.batches[batch.Id] = saved
	batch.Version = saved.Version
	return nil
}
