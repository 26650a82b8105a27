package wallets

import (
	"context"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/models"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

// WalletService is the ledger surface the wallet handlers need.
type WalletService interface {
	CreateWallet(ctx context.Context, ownerID, currency string, actor audit.Actor) (*models.WalletAccount, error)
	GetWallet(ctx context.Context, walletID string) (*models.WalletAccount, error)
	Credit(ctx context.Context, walletID string, amount decimal.Decimal, transactionID, description, reference string) (*models.WalletAccount, error)
	Debit(ctx context.Context, walletID string, amount decimal.Decimal, transactionID, description, reference string) (*models.WalletAccount, error)
	FreezeFunds(ctx context.Context, walletID string, amount decimal.Decimal, reason string) (*models.WalletAccount, error)
	UnfreezeFunds(ctx context.Context, walletID string, amount decimal.Decimal, reason string) (*models.WalletAccount, error)
	SetStatus(ctx context.Context, walletID string, status models.WalletStatus, actor audit.Actor) (*models.WalletAccount, error)
}

// WalletsHandler holds the dependencies for wallet-related handlers.
type WalletsHandler struct {
	Service WalletService
}

// NewWalletsHandler creates a new WalletsHandler.
func NewWalletsHandler(svc WalletService) *WalletsHandler {
	return &WalletsHandler{Service: svc}
}

// CreateWallet handles POST /wallets.
func (h *WalletsHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var newWallet api.NewWallet
	if err := render.Decode(w, r, &newWallet); err != nil {
		render.Error(w, err)
		return
	}

	created, err := h.Service.CreateWallet(r.Context(), newWallet.OwnerId, newWallet.Currency, audit.ActorFromContext(r.Context()))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiWallet(created))
}

// GetWallet handles GET /wallets/{walletId}.
func (h *WalletsHandler) GetWallet(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID) {
	wallet, err := h.Service.GetWallet(r.Context(), walletId.String())
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}

// CreditWallet handles POST /wallets/{walletId}/credit.
func (h *WalletsHandler) CreditWallet(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID) {
	h.mutate(w, r, func(m api.WalletMutation) (*models.WalletAccount, error) {
		return h.Service.Credit(r.Context(), walletId.String(), m.Amount, m.TransactionId, m.Description, m.Reference)
	})
}

// DebitWallet handles POST /wallets/{walletId}/debit.
func (h *WalletsHandler) DebitWallet(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID) {
	h.mutate(w, r, func(m api.WalletMutation) (*models.WalletAccount, error) {
		return h.Service.Debit(r.Context(), walletId.String(), m.Amount, m.TransactionId, m.Description, m.Reference)
	})
}

// FreezeFunds handles POST /wallets/{walletId}/freeze.
func (h *WalletsHandler) FreezeFunds(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID) {
	h.mutate(w, r, func(m api.WalletMutation) (*models.WalletAccount, error) {
		return h.Service.FreezeFunds(r.Context(), walletId.String(), m.Amount, m.Description)
	})
}

// UnfreezeFunds handles POST /wallets/{walletId}/unfreeze.
func (h *WalletsHandler) UnfreezeFunds(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID) {
	h.mutate(w, r, func(m api.WalletMutation) (*models.WalletAccount, error) {
		return h.Service.UnfreezeFunds(r.Context(), walletId.String(), m.Amount, m.Description)
	})
}

// UpdateWalletStatus handles PUT /wallets/{walletId}/status.
func (h *WalletsHandler) UpdateWalletStatus(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID) {
	var update api.StatusUpdate
	if err := render.Decode(w, r, &update); err != nil {
		render.Error(w, err)
		return
	}
	status := models.WalletStatus(update.Status)
	if !status.Valid() {
		render.Error(w, apperr.Validation("unknown wallet status %q", update.Status))
		return
	}

	wallet, err := h.Service.SetStatus(r.Context(), walletId.String(), status, audit.ActorFromContext(r.Context()))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}

func (h *WalletsHandler) mutate(w http.ResponseWriter, r *http.Request, op func(api.WalletMutation) (*models.WalletAccount, error)) {
	var m api.WalletMutation
	if err := render.Decode(w, r, &m); err != nil {
		render.Error(w, err)
		return
	}
	wallet, err := op(m)
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}
