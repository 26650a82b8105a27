package payouts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/payouts"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/payout"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBatch(t *testing.T, rr *httptest.ResponseRecorder) api.Batch {
	t.Helper()
	var b api.Batch
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &b), rr.Body.String())
	return b
}

func TestBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	l := ledger.New(store, ledger.Options{Logger: logging.Discard()})
	h := payouts.NewPayoutsHandler(payout.New(store, l, payout.Options{Logger: logging.Discard()}))

	active, err := l.CreateWallet(ctx, "alice", "USD", audit.System)
	require.NoError(t, err)
	suspended, err := l.CreateWallet(ctx, "bob", "USD", audit.System)
	require.NoError(t, err)
	_, err = l.SetStatus(ctx, suspended.Id, models.WalletSuspended, audit.System)
	require.NoError(t, err)

	b, err := json.Marshal(api.NewBatch{
		Currency:  "USD",
		Reference: "payroll-2026-10",
		Recipients: []api.NewRecipient{
			{WalletId: active.Id, Amount: decimal.RequireFromString("10.00")},
			{WalletId: suspended.Id, Amount: decimal.RequireFromString("20.00")},
		},
	})
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	h.CreateBatch(rr, httptest.NewRequest(http.MethodPost, "/payouts", bytes.NewReader(b)))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBatch(t, rr)
	assert.Equal(t, "PENDING", created.Status)
	assert.Equal(t, 2, created.RecipientCount)
	id := uuid.MustParse(created.Id)

	t.Run("Process", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ProcessBatch(rr, httptest.NewRequest(http.MethodPost, "/", nil), id)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		batch := decodeBatch(t, rr)
		assert.Equal(t, "PROCESSING", batch.Status)
		assert.Equal(t, 1, batch.ProcessedCount)
		assert.Equal(t, 1, batch.FailedCount)
		assert.NotEmpty(t, batch.Recipients[1].ErrorMessage)
	})

	t.Run("Retry", func(t *testing.T) {
		_, err := l.SetStatus(ctx, suspended.Id, models.WalletActive, audit.System)
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		h.RetryBatch(rr, httptest.NewRequest(http.MethodPost, "/", nil), id)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

		batch := decodeBatch(t, rr)
		assert.Equal(t, "COMPLETED", batch.Status)
		assert.Equal(t, 2, batch.ProcessedCount)
		assert.Zero(t, batch.FailedCount)

		w, err := l.GetWallet(ctx, active.Id)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), w.Balance)
	})

	t.Run("Get", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.GetBatch(rr, httptest.NewRequest(http.MethodGet, "/", nil), id)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "20.00", decodeBatch(t, rr).Recipients[1].Amount)
	})

	t.Run("Not Found", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.GetBatch(rr, httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestCreateBatchValidation(t *testing.T) {
	store := memory.New()
	l := ledger.New(store, ledger.Options{Logger: logging.Discard()})
	h := payouts.NewPayoutsHandler(payout.New(store, l, payout.Options{Logger: logging.Discard()}))

	rr := httptest.NewRecorder()
	h.CreateBatch(rr, httptest.NewRequest(http.MethodPost, "/payouts", bytes.NewReader([]byte(`{"currency":"USD","reference":"r","recipients":[]}`))))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
