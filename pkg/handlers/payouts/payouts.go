package payouts

import (
	"context"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/audit"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/payout"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// BatchProcessor is the payout surface the batch handlers need.
type BatchProcessor interface {
	CreateBatch(ctx context.Context, req payout.CreateBatchRequest, actor audit.Actor) (*models.MassPayoutBatch, error)
	Get(ctx context.Context, batchID string) (*models.MassPayoutBatch, error)
	Process(ctx context.Context, batchID string) (*models.MassPayoutBatch, error)
	Retry(ctx context.Context, batchID string) (*models.MassPayoutBatch, error)
}

// PayoutsHandler holds the dependencies for payout-related handlers.
type PayoutsHandler struct {
	Processor BatchProcessor
}

// NewPayoutsHandler creates a new PayoutsHandler.
func NewPayoutsHandler(p BatchProcessor) *PayoutsHandler {
	return &PayoutsHandler{Processor: p}
}

// CreateBatch handles POST /payouts.
func (h *PayoutsHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var nb api.NewBatch
	if err := render.Decode(w, r, &nb); err != nil {
		render.Error(w, err)
		return
	}

	batch, err := h.Processor.CreateBatch(r.Context(), mapping.ToCreateBatchRequest(&nb), audit.ActorFromContext(r.Context()))
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusCreated, mapping.ToApiBatch(batch))
}

// GetBatch handles GET /payouts/{batchId}.
func (h *PayoutsHandler) GetBatch(w http.ResponseWriter, r *http.Request, batchId openapi_types.UUID) {
	batch, err := h.Processor.Get(r.Context(), batchId.String())
	h.respond(w, batch, err)
}

// ProcessBatch handles POST /payouts/{batchId}/process.
func (h *PayoutsHandler) ProcessBatch(w http.ResponseWriter, r *http.Request, batchId openapi_types.UUID) {
	batch, err := h.Processor.Process(r.Context(), batchId.String())
	h.respond(w, batch, err)
}

// RetryBatch handles POST /payouts/{batchId}/retry.
func (h *PayoutsHandler) RetryBatch(w http.ResponseWriter, r *http.Request, batchId openapi_types.UUID) {
	batch, err := h.Processor.Retry(r.Context(), batchId.String())
	h.respond(w, batch, err)
}

func (h *PayoutsHandler) respond(w http.ResponseWriter, batch *models.MassPayoutBatch, err error) {
	if err != nil {
		render.Error(w, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiBatch(batch))
}
