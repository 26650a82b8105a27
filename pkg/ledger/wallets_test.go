package ledger

import (
	"context"
	"testing"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, nil)
		w, err := f.ledger.CreateWallet(ctx, "alice", "usd", audit.System)

		require.NoError(t, err)
		assert.Equal(t, "USD", w.Currency)
		assert.Equal(t, models.WalletActive, w.Status)
		assert.True(t, w.Consistent())
	})

	t.Run("Duplicate Owner And Currency", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.ledger.CreateWallet(ctx, "alice", "USD", audit.System)
		require.NoError(t, err)

		_, err = f.ledger.CreateWallet(ctx, "alice", "USD", audit.System)
		assert.True(t, apperr.Is(err, apperr.KindConflict))

		_, err = f.ledger.CreateWallet(ctx, "alice", "EUR", audit.System)
		assert.NoError(t, err, "a second currency is a separate wallet")
	})

	t.Run("Invalid Input", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.ledger.CreateWallet(ctx, "alice", "US", audit.System)
		assert.True(t, apperr.Is(err, apperr.KindValidation))

		_, err = f.ledger.CreateWallet(ctx, "", "USD", audit.System)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestOpenWallet(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	first, err := f.ledger.OpenWallet(ctx, "alice", "EUR", audit.System)
	require.NoError(t, err)
	second, err := f.ledger.OpenWallet(ctx, "alice", "eur", audit.System)
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, []string{"wallet.create"}, f.audit.Actions())
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Suspend And Reactivate", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.wallet(t, "alice", "5")

		suspended, err := f.ledger.SetStatus(ctx, w.Id, models.WalletSuspended, audit.System)
		require.NoError(t, err)
		assert.Equal(t, models.WalletSuspended, suspended.Status)
		assert.Greater(t, suspended.Version, w.Version)

		_, err = f.ledger.Credit(ctx, w.Id, usd("1"), "", "", "")
		assert.True(t, apperr.Is(err, apperr.KindWallet))

		active, err := f.ledger.SetStatus(ctx, w.Id, models.WalletActive, audit.System)
		require.NoError(t, err)
		assert.Equal(t, models.WalletActive, active.Status)
	})

	t.Run("Same Status Is A No-op", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.wallet(t, "alice", "0")

		same, err := f.ledger.SetStatus(ctx, w.Id, models.WalletActive, audit.System)
		require.NoError(t, err)
		assert.Equal(t, w.Version, same.Version)
		assert.Equal(t, []string{"wallet.create"}, f.audit.Actions())
	})

	t.Run("Close Requires Zero Balance", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.wallet(t, "alice", "5")

		_, err := f.ledger.SetStatus(ctx, w.Id, models.WalletClosed, audit.System)
		assert.True(t, apperr.Is(err, apperr.KindWallet))

		_, err = f.ledger.Debit(ctx, w.Id, usd("5"), "", "", "")
		require.NoError(t, err)
		closed, err := f.ledger.SetStatus(ctx, w.Id, models.WalletClosed, audit.System)
		require.NoError(t, err)
		assert.Equal(t, models.WalletClosed, closed.Status)

		_, err = f.ledger.SetStatus(ctx, w.Id, models.WalletActive, audit.System)
		assert.True(t, apperr.Is(err, apperr.KindWallet), "closed is terminal")
	})

	t.Run("Invalid Target", func(t *testing.T) {
		f := newFixture(t, nil)
		w := f.wallet(t, "alice", "0")
		_, err := f.ledger.SetStatus(ctx, w.Id, models.WalletPending, audit.System)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	w := f.wallet(t, "alice", "0")
	for i := 0; i < 3; i++ {
		_, err := f.ledger.Credit(ctx, w.Id, usd("1"), "", "", "")
		require.NoError(t, err)
	}

	entries, err := f.ledger.History(ctx, w.Id, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Greater(t, entries[0].Sequence, entries[1].Sequence)

	all, err := f.ledger.History(ctx, w.Id, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = f.ledger.History(ctx, "missing", 10)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
