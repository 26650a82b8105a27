package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/handlers"
	"github.com/chris/wallet-ledger/pkg/ledger"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/chris/wallet-ledger/pkg/payout"
	"github.com/chris/wallet-ledger/pkg/settlement"
	"github.com/chris/wallet-ledger/pkg/storage/memory"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("router-secret")

type fixture struct {
	router http.Handler
	t      *testing.T
}

func newFixture(t *testing.T, opts handlers.Options) *fixture {
	t.Helper()
	store := memory.New()
	l := ledger.New(store, ledger.Options{Logger: logging.Discard()})
	svc := handlers.Services{
		Wallets:      l,
		History:      l,
		Transactions: settlement.New(store, l, settlement.Options{Logger: logging.Discard()}),
		Payouts:      payout.New(store, l, payout.Options{Logger: logging.Discard()}),
	}
	opts.Logger = logging.Discard()
	return &fixture{router: handlers.NewRouter(svc, opts), t: t}
}

func (f *fixture) token(sub, role string) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) do(method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, handlers.Options{JWTSecret: secret})
	rr := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, handlers.Options{Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("wallet_up 1\n"))
	})})
	rr := f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "wallet_up")
}

func TestRouterAuth(t *testing.T) {
	f := newFixture(t, handlers.Options{JWTSecret: secret})

	t.Run("Unauthenticated", func(t *testing.T) {
		rr := f.do(http.MethodPost, "/wallets", "", api.NewWallet{OwnerId: "u1", Currency: "USD"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("User Creates Wallet", func(t *testing.T) {
		rr := f.do(http.MethodPost, "/wallets", f.token("u1", "user"), api.NewWallet{OwnerId: "u1", Currency: "USD"})
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

		var w api.Wallet
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &w))

		credit := f.do(http.MethodPost, "/wallets/"+w.Id+"/credit", f.token("u1", "user"), map[string]string{"amount": "5"})
		assert.Equal(t, http.StatusForbidden, credit.Code)

		credit = f.do(http.MethodPost, "/wallets/"+w.Id+"/credit", f.token("ops", "operator"), map[string]string{"amount": "5"})
		assert.Equal(t, http.StatusOK, credit.Code, credit.Body.String())

		history := f.do(http.MethodGet, "/wallets/"+w.Id+"/ledger?limit=10", f.token("aud", "auditor"), nil)
		require.Equal(t, http.StatusOK, history.Code, history.Body.String())
		var entries []api.LedgerEntry
		require.NoError(t, json.Unmarshal(history.Body.Bytes(), &entries))
		assert.Len(t, entries, 1)
	})
}

func TestRouterParameters(t *testing.T) {
	f := newFixture(t, handlers.Options{})

	t.Run("Invalid Path ID", func(t *testing.T) {
		rr := f.do(http.MethodGet, "/wallets/not-a-uuid", "", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		rr := f.do(http.MethodPost, "/wallets", "", api.NewWallet{OwnerId: "u1", Currency: "USD"})
		require.Equal(t, http.StatusCreated, rr.Code)
		var w api.Wallet
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &w))

		bad := f.do(http.MethodGet, "/wallets/"+w.Id+"/ledger?limit=ten", "", nil)
		assert.Equal(t, http.StatusBadRequest, bad.Code)
	})

	t.Run("Unknown Transaction", func(t *testing.T) {
		rr := f.do(http.MethodGet, "/transactions/7d1c5c9e-9d67-4c1e-9a53-0c2b6a3c6f11", "", nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRouterIdempotency(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})
	f := newFixture(t, handlers.Options{Cache: cache, IdempotencyTTL: time.Minute})

	rr := f.do(http.MethodPost, "/wallets", "", api.NewWallet{OwnerId: "u1", Currency: "USD"})
	require.Equal(t, http.StatusCreated, rr.Code)
	var w api.Wallet
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &w))

	first := f.do(http.MethodPost, "/wallets/"+w.Id+"/credit", "", map[string]string{"amount": "5"}, "Idempotency-Key", "k1")
	second := f.do(http.MethodPost, "/wallets/"+w.Id+"/credit", "", map[string]string{"amount": "5"}, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	got := f.do(http.MethodGet, "/wallets/"+w.Id, "", nil)
	var after api.Wallet
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &after))
	assert.Equal(t, "5.00", after.Balance)
}
