// Package handlers mounts the HTTP API on a chi router.
package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/chris/wallet-ledger/pkg/access"
	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/apperr"
	ledgerhandler "github.com/chris/wallet-ledger/pkg/handlers/ledger"
	"github.com/chris/wallet-ledger/pkg/handlers/payouts"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/chris/wallet-ledger/pkg/handlers/transactions"
	"github.com/chris/wallet-ledger/pkg/handlers/wallets"
	mw "github.com/chris/wallet-ledger/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/redis/go-redis/v9"
)

// Services are the domain components behind the API.
type Services struct {
	Wallets      wallets.WalletService
	History      ledgerhandler.HistoryReader
	Transactions transactions.TransactionService
	Payouts      payouts.BatchProcessor
}

// Options configures the router.
type Options struct {
	Logger *slog.Logger
	// JWTSecret enables bearer-token authentication. Without it every request
	// runs as the system actor.
	JWTSecret  []byte
	Authorizer access.Authorizer
	// Cache enables Idempotency-Key replay.
	Cache          *redis.Client
	IdempotencyTTL time.Duration
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

// ApiHandler serves every endpoint of the API.
type ApiHandler struct {
	Wallets      *wallets.WalletsHandler
	Ledger       *ledgerhandler.LedgerHandler
	Transactions *transactions.TransactionsHandler
	Payouts      *payouts.PayoutsHandler
}

// NewApiHandler creates the handlers for svc.
func NewApiHandler(svc Services) *ApiHandler {
	return &ApiHandler{
		Wallets:      wallets.NewWalletsHandler(svc.Wallets),
		Ledger:       ledgerhandler.NewLedgerHandler(svc.History),
		Transactions: transactions.NewTransactionsHandler(svc.Transactions),
		Payouts:      payouts.NewPayoutsHandler(svc.Payouts),
	}
}

// NewRouter builds the chi router for svc.
func NewRouter(svc Services, opts Options) chi.Router {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Authorizer == nil {
		opts.Authorizer = access.NewStaticAuthorizer(nil)
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	h := NewApiHandler(svc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(mw.NewStructuredLogger(opts.Logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	router.Group(func(r chi.Router) {
		if len(opts.JWTSecret) > 0 {
			r.Use(mw.Authenticate(opts.JWTSecret))
		}
		if opts.Cache != nil {
			r.Use(mw.Idempotency(opts.Cache, opts.IdempotencyTTL, opts.Logger))
		}
		allow := func(action, resource string) func(http.Handler) http.Handler {
			return mw.Authorize(opts.Authorizer, action, resource)
		}

		r.With(allow(access.Create, access.Wallet)).Post("/wallets", h.Wallets.CreateWallet)
		r.With(allow(access.Read, access.Wallet)).Get("/wallets/{walletId}", withID("walletId", h.Wallets.GetWallet))
		r.With(allow(access.Read, access.Wallet)).Get("/wallets/{walletId}/ledger", h.listLedgerEntries)
		r.With(allow(access.Credit, access.Wallet)).Post("/wallets/{walletId}/credit", withID("walletId", h.Wallets.CreditWallet))
		r.With(allow(access.Debit, access.Wallet)).Post("/wallets/{walletId}/debit", withID("walletId", h.Wallets.DebitWallet))
		r.With(allow(access.Freeze, access.Wallet)).Post("/wallets/{walletId}/freeze", withID("walletId", h.Wallets.FreezeFunds))
		r.With(allow(access.Unfreeze, access.Wallet)).Post("/wallets/{walletId}/unfreeze", withID("walletId", h.Wallets.UnfreezeFunds))
		r.With(allow(access.Status, access.Wallet)).Put("/wallets/{walletId}/status", withID("walletId", h.Wallets.UpdateWalletStatus))

		r.With(allow(access.Create, access.Transaction)).Post("/transactions", h.Transactions.CreateTransaction)
		r.With(allow(access.Read, access.Transaction)).Get("/transactions/{transactionId}", withID("transactionId", h.Transactions.GetTransactionById))
		r.With(allow(access.Settle, access.Transaction)).Post("/transactions/{transactionId}/settle", withID("transactionId", h.Transactions.SettleTransaction))
		r.With(allow(access.Status, access.Transaction)).Put("/transactions/{transactionId}/status", withID("transactionId", h.Transactions.UpdateTransactionStatus))
		r.With(allow(access.Reverse, access.Transaction)).Post("/transactions/{transactionId}/reverse", withID("transactionId", h.Transactions.ReverseTransaction))

		r.With(allow(access.Create, access.Payout)).Post("/payouts", h.Payouts.CreateBatch)
		r.With(allow(access.Read, access.Payout)).Get("/payouts/{batchId}", withID("batchId", h.Payouts.GetBatch))
		r.With(allow(access.Process, access.Payout)).Post("/payouts/{batchId}/process", withID("batchId", h.Payouts.ProcessBatch))
		r.With(allow(access.Retry, access.Payout)).Post("/payouts/{batchId}/retry", withID("batchId", h.Payouts.RetryBatch))
	})

	return router
}

func (h *ApiHandler) listLedgerEntries(w http.ResponseWriter, r *http.Request) {
	walletId, err := render.PathUUID(r, "walletId")
	if err != nil {
		render.Error(w, err)
		return
	}

	var params api.ListLedgerEntriesParams
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &params.Limit); err != nil {
		render.Error(w, apperr.Validation("invalid format for parameter limit: %v", err))
		return
	}
	h.Ledger.ListLedgerEntries(w, r, walletId, params)
}

func withID(name string, fn func(http.ResponseWriter, *http.Request, openapi_types.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := render.PathUUID(r, name)
		if err != nil {
			render.Error(w, err)
			return
		}
		fn(w, r, id)
	}
}
