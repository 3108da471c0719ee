package api

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/warp/cashledger/ledger"
)

// newValidator returns a validator that reports JSON field names and knows
// the ledger's custom rules.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "iso4217", validateISO4217)
	mustRegister(v, "account_kind", validateAccountKind)
	mustRegister(v, "category_kind", validateCategoryKind)
	return v
}

// mustRegister panics on a bad tag so a typo fails at startup instead of
// silently skipping the rule.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %q: %v", tag, err))
	}
}

func validateISO4217(fl validator.FieldLevel) bool {
	return ledger.KnownCurrency(fl.Field().String())
}

func validateAccountKind(fl validator.FieldLevel) bool {
	return ledger.AccountKind(fl.Field().String()).Valid()
}

func validateCategoryKind(fl validator.FieldLevel) bool {
	return ledger.CategoryKind(fl.Field().String()).Valid()
}

// requestFieldErrors converts validator output into the ledger's field error
// shape so clients see one format whichever layer rejected the input.
func requestFieldErrors(err error) []ledger.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ledger.FieldError{{Field: "", Code: ledger.CodeInvalidValue, Message: err.Error()}}
	}
	out := make([]ledger.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ledger.FieldError{
			Field:   fieldPath(fe),
			Code:    fieldCode(fe.Tag()),
			Message: fieldMessage(fe),
		})
	}
	return out
}

// fieldPath drops the top-level struct name: "BatchRequest.rows[2].date" -> "rows[2].date".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func fieldCode(tag string) string {
	if tag == "required" {
		return ledger.CodeRequired
	}
	return ledger.CodeInvalidValue
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " long"
	case "gt", "gte":
		return "must be a valid id"
	case "iso4217":
		return "must be a known ISO-4217 currency code"
	case "account_kind":
		return "must be bank or cash"
	case "category_kind":
		return "must be income, expense or both"
	}
	return "is invalid"
}
