// Package render writes JSON responses and maps domain errors to HTTP statuses.
package render

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/chris/wallet-ledger/pkg/api"
	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

const maxBodyBytes = 1 << 20

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}

// Decode reads a JSON request body into v. Unknown fields are rejected.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("invalid request body: %v", err)
	}
	return nil
}

// Status returns the HTTP status for err.
func Status(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindWallet, apperr.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// Error writes err as an api.Error body.
func Error(w http.ResponseWriter, err error) {
	JSON(w, Status(err), toApiError(err))
}

// toApiError renders the first classified error in err's chain, the same one
// Status reads the kind from.
func toApiError(err error) api.Error {
	body := api.Error{Code: "INTERNAL_ERROR", Message: "internal server error"}
	var coded apperr.Coded
	if !errors.As(err, &coded) {
		return body
	}
	switch e := coded.(type) {
	case *apperr.InsufficientFundsError:
		body.Code = string(apperr.KindInsufficientFunds)
		body.Message = e.Error()
		body.Details = map[string]any{
			"wallet_id": e.WalletID,
			"currency":  e.Currency,
			"required":  e.Required.String(),
			"available": e.Available.String(),
		}
	case *apperr.TransactionError:
		body.Code = string(apperr.KindTransaction)
		body.Message = e.Message
		body.Details = map[string]any{
			"transaction_id":         e.TransactionID,
			"requires_manual_review": e.RequiresManualReview,
		}
	case *apperr.Error:
		body.Code = string(e.Kind)
		body.Message = e.Message
	default:
		body.Code = string(coded.Code())
	}
	return body
}

// PathUUID binds the named chi path parameter as a UUID.
func PathUUID(r *http.Request, name string) (openapi_types.UUID, error) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return id, apperr.Validation("invalid format for parameter %s: %v", name, err)
	}
	return id, nil
}
