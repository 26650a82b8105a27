package transactions_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/transactions"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/settlement"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	h      *transactions.TransactionsHandler
	ledger *ledger.Ledger
}

func newFixture() *fixture {
	store := memory.New()
	l := ledger.New(store, ledger.Options{Logger: logging.Discard()})
	svc := settlement.New(store, l, settlement.Options{Logger: logging.Discard()})
	return &fixture{h: transactions.NewTransactionsHandler(svc), ledger: l}
}

func (f *fixture) wallet(t *testing.T, owner, balance string) *models.WalletAccount {
	t.Helper()
	ctx := context.Background()
	w, err := f.ledger.CreateWallet(ctx, owner, "USD", audit.System)
	require.NoError(t, err)
	if balance != "0" {
		w, err = f.ledger.Credit(ctx, w.Id, decimal.RequireFromString(balance), "", "seed", "")
		require.NoError(t, err)
	}
	return w
}

func (f *fixture) create(t *testing.T, newTx api.NewTransaction) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(newTx)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	f.h.CreateTransaction(rr, httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewReader(b)))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	from := f.wallet(t, "alice", "500")
	to := f.wallet(t, "bob", "0")

	rr := f.create(t, api.NewTransaction{
		Type:         "TRANSFER",
		FromWalletId: from.Id,
		ToWalletId:   to.Id,
		Amount:       decimal.RequireFromString("125.50"),
		Currency:     "USD",
		Reference:    "invoice-7",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[api.Transaction](t, rr)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, "125.50", created.Amount)
	id := uuid.MustParse(created.Id)

	t.Run("Get", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.GetTransactionById(rr, httptest.NewRequest(http.MethodGet, "/", nil), id)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, created.Id, decode[api.Transaction](t, rr).Id)
	})

	t.Run("Settle", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.SettleTransaction(rr, httptest.NewRequest(http.MethodPost, "/", nil), id)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		tx := decode[api.Transaction](t, rr)
		assert.Equal(t, "COMPLETED", tx.Status)
		assert.Equal(t, "125.50", tx.CreditedAmount)

		w, err := f.ledger.GetWallet(ctx, to.Id)
		require.NoError(t, err)
		assert.Equal(t, int64(12550), w.Balance)
	})

	t.Run("Status Change After Completion", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.UpdateTransactionStatus(rr, httptest.NewRequest(http.MethodPut, "/", bytes.NewReader([]byte(`{"status":"CANCELLED"}`))), id)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Reverse", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.ReverseTransaction(rr, httptest.NewRequest(http.MethodPost, "/", nil), id)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		reversal := decode[api.Transaction](t, rr)
		assert.Equal(t, "REFUND", reversal.Type)
		assert.Equal(t, created.Id, reversal.ReversalOf)

		w, err := f.ledger.GetWallet(ctx, from.Id)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), w.Balance)
	})

	t.Run("Reverse Twice", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.ReverseTransaction(rr, httptest.NewRequest(http.MethodPost, "/", nil), id)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestCreateTransaction(t *testing.T) {
	f := newFixture()
	w := f.wallet(t, "alice", "10")

	t.Run("Validation", func(t *testing.T) {
		rr := f.create(t, api.NewTransaction{Type: "TRANSFER", FromWalletId: w.Id, Amount: decimal.NewFromInt(1), Currency: "USD", Reference: "r"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[api.Error](t, rr).Code)
	})

	t.Run("Insufficient Funds On Settle", func(t *testing.T) {
		to := f.wallet(t, "bob", "0")
		rr := f.create(t, api.NewTransaction{Type: "TRANSFER", FromWalletId: w.Id, ToWalletId: to.Id, Amount: decimal.NewFromInt(20), Currency: "USD", Reference: "r"})
		require.Equal(t, http.StatusCreated, rr.Code)

		settle := httptest.NewRecorder()
		f.h.SettleTransaction(settle, httptest.NewRequest(http.MethodPost, "/", nil), uuid.MustParse(decode[api.Transaction](t, rr).Id))
		assert.Equal(t, http.StatusUnprocessableEntity, settle.Code)
		assert.Equal(t, "INSUFFICIENT_FUNDS", decode[api.Error](t, settle).Code)
	})
}

func TestUpdateTransactionStatus(t *testing.T) {
	f := newFixture()
	w := f.wallet(t, "alice", "0")
	rr := f.create(t, api.NewTransaction{Type: "DEPOSIT", ToWalletId: w.Id, Amount: decimal.NewFromInt(5), Currency: "USD", Reference: "r"})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := uuid.MustParse(decode[api.Transaction](t, rr).Id)

	t.Run("Missing Status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.UpdateTransactionStatus(rr, httptest.NewRequest(http.MethodPut, "/", bytes.NewReader([]byte(`{}`))), id)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Cancel", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.UpdateTransactionStatus(rr, httptest.NewRequest(http.MethodPut, "/", bytes.NewReader([]byte(`{"status":"CANCELLED"}`))), id)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		assert.Equal(t, "CANCELLED", decode[api.Transaction](t, rr).Status)
	})

	t.Run("Not Found", func(t *testing.T) {
		rr := httptest.NewRecorder()
		f.h.GetTransactionById(rr, httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
