package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	idempotencyPrefix = "idempotency:v1:"
	inProgressMarker  = "__in_progress__"
	redisTimeout      = 2 * time.Second
)

type storedResponse struct {
	Status      int    `json:"status"`
	Body        string `json:"body"`
	ContentType string `json:"content_type"`
}

// Idempotency replays the stored response of an earlier unsafe request carrying the
// same Idempotency-Key header from the same caller. Requests without the header
// pass through. Server errors are not stored, so the request may be retried.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := idempotencyPrefix + audit.ActorFromContext(r.Context()).ID + ":" + r.Method + ":" + r.URL.Path + ":" + key
			ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), redisTimeout)
			defer cancel()

			cached, err := cache.Get(ctx, cacheKey).Result()
			switch {
			case err == nil:
				replay(w, cached, key, logger)
				return
			case !errors.Is(err, redis.Nil):
				logger.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
				render.Error(w, apperr.Database(err, "idempotency store failure"))
				return
			}

			reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
			if err != nil {
				logger.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
				render.Error(w, apperr.Database(err, "idempotency reservation failure"))
				return
			}
			if !reserved {
				render.Error(w, apperr.Conflict("duplicate request currently processing"))
				return
			}

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(r.Context()), redisTimeout)
			defer persistCancel()

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				cache.Del(persistCtx, cacheKey)
				return
			}

			payload, err := json.Marshal(storedResponse{
				Status:      status,
				Body:        buf.String(),
				ContentType: ww.Header().Get("Content-Type"),
			})
			if err == nil {
				err = cache.Set(persistCtx, cacheKey, payload, ttl).Err()
			}
			if err != nil {
				logger.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
				cache.Del(persistCtx, cacheKey)
			}
		}
		return http.HandlerFunc(fn)
	}
}

func replay(w http.ResponseWriter, cached, key string, logger *slog.Logger) {
	if cached == inProgressMarker {
		render.Error(w, apperr.Conflict("duplicate request currently processing"))
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(cached), &stored); err != nil {
		logger.Warn("failed to decode stored idempotent response", slog.String("key", key), slog.Any("error", err))
		render.Error(w, apperr.Conflict("duplicate request"))
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write([]byte(stored.Body))
}
