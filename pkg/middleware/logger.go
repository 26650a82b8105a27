package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// logEntry collects request details that inner middleware learn after the
// logger has already wrapped the request.
type logEntry struct {
	actor *audit.Actor
}

type logEntryKey struct{}

// noteActor records the authenticated caller on the request's log line.
func noteActor(ctx context.Context, actor audit.Actor) {
	if entry, ok := ctx.Value(logEntryKey{}).(*logEntry); ok {
		entry.actor = &actor
	}
}

// NewStructuredLogger logs one line per request with the caller, the matched
// route and the idempotency outcome. Server errors are logged at error level.
func NewStructuredLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			entry := &logEntry{}
			ctx := context.WithValue(r.Context(), logEntryKey{}, entry)

			started := time.Now()
			defer func() {
				status := ww.Status()

				actor := audit.ActorFromContext(ctx)
				if entry.actor != nil {
					actor = *entry.actor
				}
				route := r.URL.Path
				if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}

				requestAttrs := slog.Group("request",
					slog.String("id", middleware.GetReqID(ctx)),
					slog.String("method", r.Method),
					slog.String("route", route),
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
					slog.Bool("idempotent", r.Header.Get(IdempotencyKeyHeader) != ""),
				)
				actorAttrs := slog.Group("actor",
					slog.String("id", actor.ID),
					slog.String("role", actor.Role),
				)
				responseAttrs := slog.Group("response",
					slog.Int("status", status),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("latency", time.Since(started)),
					slog.Bool("replayed", ww.Header().Get(ReplayedHeader) != ""),
				)

				switch {
				case status >= 500:
					logger.ErrorContext(ctx, "server error", requestAttrs, actorAttrs, responseAttrs)
				case status == http.StatusUnauthorized || status == http.StatusForbidden:
					logger.WarnContext(ctx, "request denied", requestAttrs, actorAttrs, responseAttrs)
				default:
					logger.InfoContext(ctx, "request completed", requestAttrs, actorAttrs, responseAttrs)
				}
			}()

			next.ServeHTTP(ww, r.WithContext(ctx))
		}
		return http.HandlerFunc(fn)
	}
}
