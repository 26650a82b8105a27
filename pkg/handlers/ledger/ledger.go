package ledger

import (
	"context"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/handlers/render"
	"github.com/chris/wallet-ledger/pkg/mapping"
	"github.com/chris/wallet-ledger/pkg/models"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// HistoryReader reads the entries of a wallet, newest first.
type HistoryReader interface {
	History(ctx context.Context, walletID string, limit int) ([]models.LedgerEntry, error)
}

// LedgerHandler holds the dependencies for ledger-related handlers.
type LedgerHandler struct {
	Reader HistoryReader
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(reader HistoryReader) *LedgerHandler {
	return &LedgerHandler{Reader: reader}
}

// ListLedgerEntries handles GET /wallets/{walletId}/ledger.
func (h *LedgerHandler) ListLedgerEntries(w http.ResponseWriter, r *http.Request, walletId openapi_types.UUID, params api.ListLedgerEntriesParams) {
	limit := 0
	if params.Limit != nil {
		limit = *params.Limit
	}

	domainEntries, err := h.Reader.History(r.Context(), walletId.String(), limit)
	if err != nil {
		render.Error(w, err)
		return
	}

	apiEntries := make([]*api.LedgerEntry, len(domainEntries))
	for i := range domainEntries {
		apiEntries[i] = mapping.ToApiLedgerEntry(&domainEntries[i])
	}
	render.JSON(w, http.StatusOK, apiEntries)
}
