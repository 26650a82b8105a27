package transactions

import (
	"context"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/settlement"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// TransactionService is the orchestrator surface the transaction handlers need.
type TransactionService interface {
	CreateTransaction(ctx context.Context, req settlement.CreateTransactionRequest, actor audit.Actor) (*models.Transaction, error)
	Get(ctx context.Context, transactionID string) (*models.Transaction, error)
	Settle(ctx context.Context, transactionID string) (*models.Transaction, error)
	UpdateStatus(ctx context.Context, transactionID string, status models.TransactionStatus, actor audit.Actor) (*models.Transaction, error)
	Reverse(ctx context.Context, transactionID string, actor audit.Actor) (*models.Transaction, error)
}

// TransactionsHandler holds the dependencies for transaction-related handlers.
type TransactionsHandler struct {
	Service TransactionService
}

// NewTransactionsHandler creates a new TransactionsHandler.
func NewTransactionsHandler(svc TransactionService) *TransactionsHandler {
	return &TransactionsHandler{Service: svc}
}

// CreateTransaction handles POST /transactions. The transaction is stored PENDING
// and settled asynchronously.
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var newTx api.NewTransaction
	if err := render.Decode(w, r, &newTx); err != nil {
		render.Error(w, err)
		return
	}

	tx, err := h.Service.CreateTransaction(r.Context(), mapping.ToCreateTransactionRequest(&newTx), audit.ActorFromContext(r.Context()))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiTransaction(tx))
}

// GetTransactionById handles GET /transactions/{transactionId}.
func (h *TransactionsHandler) GetTransactionById(w http.ResponseWriter, r *http.Request, transactionId openapi_types.UUID) {
	tx, err := h.Service.Get(r.Context(), transactionId.String())
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiTransaction(tx))
}

// SettleTransaction handles POST /transactions/{transactionId}/settle.
func (h *TransactionsHandler) SettleTransaction(w http.ResponseWriter, r *http.Request, transactionId openapi_types.UUID) {
	tx, err := h.Service.Settle(r.Context(), transactionId.String())
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiTransaction(tx))
}

// UpdateTransactionStatus handles PUT /transactions/{transactionId}/status.
func (h *TransactionsHandler) UpdateTransactionStatus(w http.ResponseWriter, r *http.Request, transactionId openapi_types.UUID) {
	var update api.StatusUpdate
	if err := render.Decode(w, r, &update); err != nil {
		render.Error(w, err)
		return
	}
	if update.Status == "" {
		render.Error(w, apperr.Validation("status is required"))
		return
	}

	tx, err := h.Service.UpdateStatus(r.Context(), transactionId.String(), models.TransactionStatus(update.Status), audit.ActorFromContext(r.Context()))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiTransaction(tx))
}

// ReverseTransaction handles POST /transactions/{transactionId}/reverse and
// responds with the REFUND record of the reversal.
func (h *TransactionsHandler) ReverseTransaction(w http.ResponseWriter, r *http.Request, transactionId openapi_types.UUID) {
	reversal, err := h.Service.Reverse(r.Context(), transactionId.String(), audit.ActorFromContext(r.Context()))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiTransaction(reversal))
}
