package money

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidCurrency is returned for codes that are not three upper-case letters.
var ErrInvalidCurrency = errors.New("invalid currency code")

// ErrAmountOutOfRange is returned when an amount does not fit into minor units.
var ErrAmountOutOfRange = errors.New("amount out of range")

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// ISO 4217 exponents that differ from the default of 2.
var exponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "UYI": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

const defaultExponent int32 = 2

// maxMinor keeps balances well clear of int64 overflow when legs are summed.
var maxMinor = decimal.New(1, 17)

// NormalizeCurrency upper-cases and validates an ISO-style currency code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !currencyPattern.MatchString(code) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return code, nil
}

// ValidCurrency reports whether code is already a normalized currency code.
func ValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// Exponent returns the number of minor-unit digits for the currency.
func Exponent(currency string) int32 {
	if e, ok := exponents[currency]; ok {
		return e
	}
	return defaultExponent
}

// Round rounds amount to the currency precision using round-half-to-even.
func Round(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(Exponent(currency))
}

// ToMinor rounds amount half-to-even and converts it into integer minor units.
func ToMinor(amount decimal.Decimal, currency string) (int64, error) {
	exp := Exponent(currency)
	minor := amount.RoundBank(exp).Shift(exp)
	if minor.Abs().GreaterThanOrEqual(maxMinor) {
		return 0, fmt.Errorf("%w: %s %s", ErrAmountOutOfRange, amount.String(), currency)
	}
	return minor.IntPart(), nil
}

// FromMinor converts integer minor units back into a major-unit decimal.
func FromMinor(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -Exponent(currency))
}

// Format renders minor units with the currency's fixed number of decimals.
func Format(minor int64, currency string) string {
	return FromMinor(minor, currency).StringFixed(Exponent(currency))
}
