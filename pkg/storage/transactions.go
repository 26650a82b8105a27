package storage

import (
	"context"
	"time"

	"github.com/chris/wallet-ledger/pkg/models"
)

// TransactionReader defines the interface for reading transaction data.
type TransactionReader interface {
	// GetTransaction retrieves a transaction by its ID.
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)

	// ListTransactionsByStatus retrieves transactions in a status that were last
	// updated before the cutoff. It backs the recovery sweep.
	ListTransactionsByStatus(ctx context.Context, status models.TransactionStatus, updatedBefore time.Time) ([]models.Transaction, error)
}

// TransactionManager defines the interface for creating and managing transactions.
type TransactionManager interface {
	// CreateTransaction stores a new transaction. It returns ErrAlreadyExists on a duplicate ID.
	CreateTransaction(ctx context.Context, tx *models.Transaction) error

	// TransitionTransaction changes the status from `from` to `to` and stores reason
	// as the failure reason when it is not empty. It returns ErrTransitionRejected
	// when the current status is not `from`.
	TransitionTransaction(ctx context.Context, txID string, from, to models.TransactionStatus, reason string, now time.Time) error
}

// TransactionStore combines the reader and manager interfaces.
type TransactionStore interface {
	TransactionReader
	TransactionManager
}
