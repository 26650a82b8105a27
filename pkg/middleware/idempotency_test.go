package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/chris/wallet-ledger/pkg/logging"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idempotencyFixture struct {
	mr      *miniredis.Miniredis
	handler http.Handler
	calls   atomic.Int32
	status  atomic.Int32
}

func newIdempotencyFixture(t *testing.T) *idempotencyFixture {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		cache.Close()
		mr.Close()
	})

	f := &idempotencyFixture{mr: mr}
	f.status.Store(http.StatusCreated)
	f.handler = Idempotency(cache, time.Minute, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := f.calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(int(f.status.Load()))
		_, _ = w.Write([]byte(`{"call":` + strconv.Itoa(int(n)) + `}`))
	}))
	return f
}

func (f *idempotencyFixture) do(method, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/transactions", strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func TestIdempotency(t *testing.T) {
	t.Run("Replays Stored Response", func(t *testing.T) {
		f := newIdempotencyFixture(t)

		first := f.do(http.MethodPost, "abc123")
		require.Equal(t, http.StatusCreated, first.Code)

		second := f.do(http.MethodPost, "abc123")
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
		assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
		assert.Equal(t, int32(1), f.calls.Load())
	})

	t.Run("Different Keys Run Separately", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.do(http.MethodPost, "a")
		f.do(http.MethodPost, "b")
		assert.Equal(t, int32(2), f.calls.Load())
	})

	t.Run("Without Key Passes Through", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.do(http.MethodPost, "")
		f.do(http.MethodPost, "")
		assert.Equal(t, int32(2), f.calls.Load())
	})

	t.Run("Safe Methods Pass Through", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.do(http.MethodGet, "abc")
		f.do(http.MethodGet, "abc")
		assert.Equal(t, int32(2), f.calls.Load())
		assert.Empty(t, f.mr.Keys())
	})

	t.Run("In Progress Conflicts", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		require.NoError(t, f.mr.Set(idempotencyPrefix+"system:POST:/transactions:busy", inProgressMarker))

		rr := f.do(http.MethodPost, "busy")
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Zero(t, f.calls.Load())
	})

	t.Run("Server Errors Are Not Stored", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.status.Store(http.StatusInternalServerError)
		f.do(http.MethodPost, "retry-me")
		assert.Empty(t, f.mr.Keys())

		f.status.Store(http.StatusCreated)
		rr := f.do(http.MethodPost, "retry-me")
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, int32(2), f.calls.Load())
	})

	t.Run("Store Unavailable", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.mr.Close()

		rr := f.do(http.MethodPost, "abc")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Zero(t, f.calls.Load())
	})

	t.Run("Expires With TTL", func(t *testing.T) {
		f := newIdempotencyFixture(t)
		f.do(http.MethodPost, "ttl")
		f.mr.FastForward(2 * time.Minute)
		f.do(http.MethodPost, "ttl")
		assert.Equal(t, int32(2), f.calls.Load())
	})
}
