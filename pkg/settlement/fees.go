package settlement

import (
	"context"

	"github.com/shopspring/decimal"
)

// FeeCalculator prices an FX conversion. amount is in major units of currency and
// the returned fee is in the same currency.
type FeeCalculator interface {
	CalculateFee(ctx context.Context, amount decimal.Decimal, currency string) (decimal.Decimal, error)
}

// NoFee charges nothing.
type NoFee struct{}

// CalculateFee implements FeeCalculator.
func (NoFee) CalculateFee(context.Context, decimal.Decimal, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// BasisPoints charges a fixed rate of the converted amount, in hundredths of a percent.
type BasisPoints struct {
	Rate decimal.Decimal
}

var bpsDivisor = decimal.NewFromInt(10000)

// CalculateFee implements FeeCalculator.
func (b BasisPoints) CalculateFee(_ context.Context, amount decimal.Decimal, _ string) (decimal.Decimal, error) {
	return amount.Mul(b.Rate).Div(bpsDivisor), nil
}
