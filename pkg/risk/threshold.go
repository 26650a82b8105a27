package risk

import (
	"context"
	"fmt"

	"github.com/chris/wallet-ledger/pkg/models"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/shopspring/decimal"
)

// ThresholdEvaluator flags transactions at or above a major-unit amount. It is the
// built-in stand-in for an external scoring service.
type ThresholdEvaluator struct {
	Threshold decimal.Decimal
}

var _ Evaluator = ThresholdEvaluator{}

// Evaluate implements Evaluator.
func (e ThresholdEvaluator) Evaluate(_ context.Context, tx *models.Transaction) (*Flag, error) {
	if e.Threshold.IsZero() {
		return nil, nil
	}
	amount := money.FromMinor(tx.Amount, tx.Currency)
	if amount.LessThan(e.Threshold) {
		return nil, nil
	}
	return &Flag{
		TransactionID: tx.Id,
		Reason:        fmt.Sprintf("amount %s %s is at or above the review threshold %s", amount.String(), tx.Currency, e.Threshold.String()),
		Score:         100,
	}, nil
}
