// Package validation checks request structs against their `validate` tags and
// reports failures as validation errors.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chris/wallet-ledger/pkg/apperr"
	"github.com/chris/wallet-ledger/pkg/money"
	"github.com/go-playground/validator/v10"
)

type Validator struct {
	v *validator.Validate
}

// New returns a Validator that also understands the "currency" tag.
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("currency", func(fl validator.FieldLevel) bool {
		return money.ValidCurrency(fl.Field().String())
	})
	return &Validator{v: v}
}

// Validate checks i and names every failing field in the returned error.
func (v *Validator) Validate(subject string, i interface{}) error {
	err := v.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid %s: %v", subject, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return apperr.Validation("invalid %s: %s", subject, strings.Join(fields, ", "))
}
