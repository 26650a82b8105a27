package storage

import (
	"context"

	"github.com/chris/wallet-ledger/pkg/models"
)

// BatchStore defines the interface for persisting mass payout batches.
type BatchStore interface {
	// CreateBatch stores a new batch. It returns ErrAlreadyExists on a duplicate ID.
	CreateBatch(ctx context.Context, batch *models.MassPayoutBatch) error

	// GetBatch retrieves a batch by its ID.
	GetBatch(ctx context.Context, batchID string) (*models.MassPayoutBatch, error)

	// SaveBatch replaces a batch if its stored version equals expectedVersion. The
	// stored version becomes expectedVersion+1.
	SaveBatch(ctx context.Context, batch *models.MassPayoutBatch, expectedVersion int64) error
}
