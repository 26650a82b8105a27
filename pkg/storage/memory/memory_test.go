package memory

import (
	"context"
	"testing"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(id, owner string) *models.WalletAccount {
	return &models.WalletAccount{Id: id, OwnerId: owner, Currency: "USD", Status: models.WalletActive, Version: 1}
}

func TestCreateWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateWallet(ctx, newWallet("w1", "alice")))

		w, err := s.GetWalletByOwner(ctx, "alice", "USD")
		require.NoError(t, err)
		assert.Equal(t, "w1", w.Id)
	})

	t.Run("Duplicate Owner And Currency", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateWallet(ctx, newWallet("w1", "alice")))
		assert.ErrorIs(t, s.CreateWallet(ctx, newWallet("w2", "alice")), storage.ErrAlreadyExists)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := New().GetWallet(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestCommit(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	setup := func(t *testing.T) *Store {
		s := New()
		require.NoError(t, s.CreateWallet(ctx, newWallet("w1", "alice")))
		require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{Id: "tx1", Status: models.PROCESSING}))
		return s
	}

	credit := func(version int64) *storage.Commit {
		w := newWallet("w1", "alice")
		w.Balance, w.AvailableBalance, w.Version = 100, 100, version+1
		fee := int64(0)
		return &storage.Commit{
			Wallets: []storage.WalletWrite{{Wallet: w, ExpectedVersion: version}},
			Entries: []models.LedgerEntry{{EntryID: "e1", WalletID: "w1", Sequence: version + 1, TransactionID: "tx1", Type: models.EntryCredit, Amount: 100}},
			Transition: &storage.TransactionTransition{
				TransactionID: "tx1", From: models.PROCESSING, To: models.COMPLETED, Fee: &fee, UpdatedAt: now,
			},
			IdempotencyKey: "k1",
		}
	}

	t.Run("Success", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.Commit(ctx, credit(1)))

		w, _ := s.GetWallet(ctx, "w1")
		assert.Equal(t, int64(100), w.Balance)
		assert.Equal(t, int64(2), w.Version)

		tx, _ := s.GetTransaction(ctx, "tx1")
		assert.Equal(t, models.COMPLETED, tx.Status)

		entries, _ := s.ListEntriesByTransaction(ctx, "tx1")
		assert.Len(t, entries, 1)
	})

	t.Run("Version Conflict Applies Nothing", func(t *testing.T) {
		s := setup(t)
		assert.ErrorIs(t, s.Commit(ctx, credit(7)), storage.ErrVersionConflict)

		w, _ := s.GetWallet(ctx, "w1")
		assert.Zero(t, w.Balance)
		tx, _ := s.GetTransaction(ctx, "tx1")
		assert.Equal(t, models.PROCESSING, tx.Status)
		entries, _ := s.ListLedgerEntries(ctx, "w1", 0)
		assert.Empty(t, entries)
	})

	t.Run("Duplicate Idempotency Key", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.Commit(ctx, credit(1)))
		c := credit(2)
		c.Transition = nil
		assert.ErrorIs(t, s.Commit(ctx, c), storage.ErrDuplicatePosting)
	})

	t.Run("Transition Rejected", func(t *testing.T) {
		s := setup(t)
		require.NoError(t, s.TransitionTransaction(ctx, "tx1", models.PROCESSING, models.PENDING, "", now))
		assert.ErrorIs(t, s.Commit(ctx, credit(1)), storage.ErrTransitionRejected)
	})
}

func TestListLedgerEntries(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.entries["w1"] = []models.LedgerEntry{{Sequence: 2}, {Sequence: 3}, {Sequence: 4}}

	entries, err := s.ListLedgerEntries(ctx, "w1", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(4), entries[0].Sequence)
	assert.Equal(t, int64(3), entries[1].Sequence)
}

func TestSaveBatch(t *testing.T) {
	ctx := context.Background()
	s := New()
	b := &models.MassPayoutBatch{Id: "b1", Version: 1}
	require.NoError(t, s.CreateBatch(ctx, b))

	require.NoError(t, s.SaveBatch(ctx, b, 1))
	assert.Equal(t, int64(2), b.Version)
	assert.ErrorIs(t, s.SaveBatch(ctx, b, 1), storage.ErrVersionConflict)
}

func TestListTransactionsByStatus(t *testing.T) {
	ctx := context.Background()
	s := New()
	old := time.Now().Add(-time.Hour)
	require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{Id: "old", Status: models.PROCESSING, UpdatedAt: old}))
	require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{Id: "new", Status: models.PROCESSING, UpdatedAt: time.Now()}))
	require.NoError(t, s.CreateTransaction(ctx, &models.Transaction{Id: "done", Status: models.COMPLETED, UpdatedAt: old}))

	txs, err := s.ListTransactionsByStatus(ctx, models.PROCESSING, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "old", txs[0].Id)
}
