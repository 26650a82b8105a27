// Package apperr defines the error taxonomy shared by the ledger, the settlement
// engine and the payout processor. Every error carries a stable machine-readable
// Kind that the HTTP layer renders as the "code" field.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the stable machine-readable error code.
type Kind string

const (
	KindValidation        Kind = "VALIDATION_ERROR"
	KindNotFound          Kind = "NOT_FOUND"
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindConflict          Kind = "CONFLICT"
	KindWallet            Kind = "WALLET_ERROR"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindDatabase          Kind = "DATABASE_ERROR"
	KindTransaction       Kind = "TRANSACTION_ERROR"
)

// Error is a classified domain error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *Error) Code() Kind { return e.Kind }

// Coded is implemented by every error in this package.
type Coded interface {
	error
	Code() Kind
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation reports malformed or out-of-range input rejected before any mutation.
func Validation(format string, args ...any) *Error {
	return newf(KindValidation, nil, format, args...)
}

// NotFound reports a missing wallet, transaction or batch.
func NotFound(resource, id string) *Error {
	return newf(KindNotFound, nil, "%s %s not found", resource, id)
}

// Unauthorized reports a missing or invalid caller credential.
func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, nil, format, args...)
}

// Forbidden reports a caller without permission for the requested action.
func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, nil, format, args...)
}

// Conflict reports a uniqueness or concurrent-state conflict.
func Conflict(format string, args ...any) *Error {
	return newf(KindConflict, nil, format, args...)
}

// Wallet reports an operation that is invalid for the wallet's current status.
func Wallet(format string, args ...any) *Error {
	return newf(KindWallet, nil, format, args...)
}

// Wrap classifies err as kind.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return newf(kind, err, format, args...)
}

// Database wraps an underlying store failure.
func Database(err error, format string, args ...any) *Error {
	return newf(KindDatabase, err, format, args...)
}

// InsufficientFundsError is returned when a debit or freeze exceeds the available
// (or, for unfreeze, the frozen) balance.
type InsufficientFundsError struct {
	WalletID  string
	Currency  string
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("%s: wallet %s requires %s %s but only %s is available",
		KindInsufficientFunds, e.WalletID, e.Required.String(), e.Currency, e.Available.String())
}

// Code implements Coded.
func (e *InsufficientFundsError) Code() Kind { return KindInsufficientFunds }

// TransactionError reports a settlement failure not covered by the other kinds.
// RequiresManualReview is set when funds may have moved and automatic recovery
// must not be attempted.
type TransactionError struct {
	TransactionID        string
	Message              string
	RequiresManualReview bool
	Err                  error
}

func (e *TransactionError) Error() string {
	msg := fmt.Sprintf("%s: transaction %s: %s", KindTransaction, e.TransactionID, e.Message)
	if e.RequiresManualReview {
		msg += " (requires manual review)"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransactionError) Unwrap() error { return e.Err }

// Code implements Coded.
func (e *TransactionError) Code() Kind { return KindTransaction }

// Transaction builds a TransactionError that is safe to retry.
func Transaction(txID string, err error, format string, args ...any) *TransactionError {
	return &TransactionError{TransactionID: txID, Message: fmt.Sprintf(format, args...), Err: err}
}

// ManualReview builds a TransactionError flagged for reconciliation.
func ManualReview(txID string, err error, format string, args ...any) *TransactionError {
	return &TransactionError{TransactionID: txID, Message: fmt.Sprintf(format, args...), RequiresManualReview: true, Err: err}
}

// KindOf returns the Kind of the first classified error in err's chain, or ""
// when the error is unclassified.
func KindOf(err error) Kind {
	var coded Coded
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsDomain reports whether err is an expected business outcome, as opposed to an
// infrastructure fault. Domain outcomes are final for the inputs that produced them.
func IsDomain(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindUnauthorized, KindForbidden, KindConflict, KindWallet, KindInsufficientFunds:
		return true
	}
	return false
}

// RequiresManualReview reports whether err is a TransactionError flagged for review.
func RequiresManualReview(err error) bool {
	var txErr *TransactionError
	return errors.As(err, &txErr) && txErr.RequiresManualReview
}
