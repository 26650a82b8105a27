package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/audit"
	ledgerhandler "github.com/chris/wallet-ledger/pkg/handlers/ledger"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLedgerEntries(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(memory.New(), ledger.Options{Logger: logging.Discard()})
	w, err := l.CreateWallet(ctx, "user-a", "USD", audit.System)
	require.NoError(t, err)
	for _, amount := range []string{"10", "20", "30"} {
		_, err := l.Credit(ctx, w.Id, decimal.RequireFromString(amount), "", "deposit", "")
		require.NoError(t, err)
	}

	h := ledgerhandler.NewLedgerHandler(l)

	t.Run("Success", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ListLedgerEntries(rr, httptest.NewRequest(http.MethodGet, "/", nil), uuid.MustParse(w.Id), api.ListLedgerEntriesParams{})

		require.Equal(t, http.StatusOK, rr.Code)
		var entries []api.LedgerEntry
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
		require.Len(t, entries, 3)
		assert.Equal(t, int64(4), entries[0].Sequence)
		assert.Equal(t, "60.00", entries[0].ResultingBalance)
	})

	t.Run("Limit", func(t *testing.T) {
		limit := 1
		rr := httptest.NewRecorder()
		h.ListLedgerEntries(rr, httptest.NewRequest(http.MethodGet, "/", nil), uuid.MustParse(w.Id), api.ListLedgerEntriesParams{Limit: &limit})

		var entries []api.LedgerEntry
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
	})

	t.Run("Unknown Wallet", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ListLedgerEntries(rr, httptest.NewRequest(http.MethodGet, "/", nil), uuid.New(), api.ListLedgerEntriesParams{})

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
