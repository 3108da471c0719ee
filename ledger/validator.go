package ledger

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MOVEMENT VALIDATOR - Shape and business rules, no I/O
// =============================================================================

// Validator checks a Draft before it is persisted. It never stops at the
// first problem: every failing rule is reported so a form can flag them all.
//
// Rules, in order:
//  1. account, location and category are selected
//  2. date is present, parseable and not after today
//  3. income and expense are numbers and not negative
//  4. income and expense are not both positive
//  5. at least one of them is positive
type Validator struct {
	// Now is the caller's clock. Defaults to time.Now.
	Now func() time.Time
}

// NewValidator returns a validator on the given clock (nil means time.Now).
func NewValidator(now func() time.Time) Validator {
	return Validator{Now: now}
}

// parsedDraft is a Draft whose text fields passed validation.
type parsedDraft struct {
	Date    Date
	Income  decimal.Decimal
	Expense decimal.Decimal
}

// Validate returns nil or a *ValidationError listing every problem.
func (v Validator) Validate(d Draft) error {
	_, fields := v.check(d)
	return newValidationError(fields)
}

func (v Validator) today() Date {
	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	return DateOf(now())
}

func (v Validator) check(d Draft) (parsedDraft, []FieldError) {
	var (
		out    parsedDraft
		fields []FieldError
	)

	// 1. references
	if d.AccountID <= 0 {
		fields = append(fields, FieldError{"account_id", CodeRequired, "select an account"})
	}
	if d.LocationID <= 0 {
		fields = append(fields, FieldError{"location_id", CodeRequired, "select a location"})
	}
	if d.CategoryID <= 0 {
		fields = append(fields, FieldError{"category_id", CodeRequired, "select a category"})
	}

	// 2. date
	if d.Date == "" {
		fields = append(fields, FieldError{"date", CodeRequired, "date is required"})
	} else if date, err := ParseDate(d.Date); err != nil {
		fields = append(fields, FieldError{"date", CodeInvalidDate, ErrInvalidDate.Error()})
	} else if date.After(v.today()) {
		fields = append(fields, FieldError{"date", CodeFutureDate, "date cannot be in the future"})
	} else {
		out.Date = date
	}

	// 3. numeric, non-negative
	income, incomeOK := parseAmountField("income", d.Income, &fields)
	expense, expenseOK := parseAmountField("expense", d.Expense, &fields)
	out.Income, out.Expense = income, expense

	// 4 and 5 only make sense once both amounts are known numbers.
	if incomeOK && expenseOK {
		switch {
		case income.IsPositive() && expense.IsPositive():
			fields = append(fields, FieldError{"amount", CodeSimultaneousAmount,
				"a movement cannot have income and expense at the same time"})
		case !income.IsPositive() && !expense.IsPositive():
			fields = append(fields, FieldError{"amount", CodeMissingAmount,
				"enter an amount in income or expense"})
		}
	}

	return out, fields
}

// parseAmountField reports whether the raw text was a number at all.
// Negative numbers are flagged but still count as parsed.
func parseAmountField(field, raw string, fields *[]FieldError) (decimal.Decimal, bool) {
	d, err := ParseAmount(raw)
	if err != nil {
		*fields = append(*fields, FieldError{field, CodeInvalidNumber, "must be a valid number"})
		return decimal.Zero, false
	}
	if d.IsNegative() {
		*fields = append(*fields, FieldError{field, CodeNegativeAmount, "cannot be negative"})
	}
	return d, true
}

// FieldErrors extracts the field list from a validation error, or nil.
func FieldErrors(err error) []FieldError {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
