package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashledger/ledger"
)

func validDraft() ledger.Draft {
	return ledger.Draft{
		Date:       "2025-06-10",
		AccountID:  1,
		LocationID: 1,
		CategoryID: 1,
		Income:     "50",
		Expense:    "0",
	}
}

// =============================================================================
// AMOUNT RULES
// =============================================================================

func TestValidator_IncomeOnly_Accepted(t *testing.T) {
	// GIVEN: income=50, expense=0
	// WHEN: Validating
	// THEN: No error
	v := ledger.NewValidator(clock)
	assert.NoError(t, v.Validate(validDraft()))
}

func TestValidator_BothAmounts_Simultaneous(t *testing.T) {
	// GIVEN: income=50, expense=10
	// THEN: Rejected with a simultaneous amount error
	d := validDraft()
	d.Expense = "10"

	err := ledger.NewValidator(clock).Validate(d)

	require.ErrorIs(t, err, ledger.ErrValidation)
	assert.Equal(t, []string{ledger.CodeSimultaneousAmount}, codes(err))
}

func TestValidator_NoAmount_Missing(t *testing.T) {
	d := validDraft()
	d.Income = "0"

	err := ledger.NewValidator(clock).Validate(d)

	assert.Equal(t, []string{ledger.CodeMissingAmount}, codes(err))
}

func TestValidator_BlankAmountsAreZero(t *testing.T) {
	d := validDraft()
	d.Income, d.Expense = "", ""

	err := ledger.NewValidator(clock).Validate(d)

	assert.Equal(t, []string{ledger.CodeMissingAmount}, codes(err))
}

func TestValidator_MalformedNumber_NotTreatedAsZero(t *testing.T) {
	// GIVEN: expense typed as "abc"
	// THEN: Explicit invalid number error; amount rules 4/5 are not evaluated
	d := validDraft()
	d.Expense = "abc"

	err := ledger.NewValidator(clock).Validate(d)

	var verr *ledger.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "expense", verr.Fields[0].Field)
	assert.Equal(t, ledger.CodeInvalidNumber, verr.Fields[0].Code)
	assert.Equal(t, "must be a valid number", verr.Fields[0].Message)
}

func TestValidator_NegativeAmount(t *testing.T) {
	d := validDraft()
	d.Income = "-5"

	err := ledger.NewValidator(clock).Validate(d)

	assert.Equal(t, []string{ledger.CodeNegativeAmount, ledger.CodeMissingAmount}, codes(err))
}

func TestValidator_ThousandsSeparator(t *testing.T) {
	d := validDraft()
	d.Income = "1,250.50"
	assert.NoError(t, ledger.NewValidator(clock).Validate(d))
}

// =============================================================================
// DATE RULES
// =============================================================================

func TestValidator_Tomorrow_AlwaysRejected(t *testing.T) {
	// GIVEN: An otherwise valid draft dated tomorrow
	// THEN: Rejected with future_date
	d := validDraft()
	d.Date = "2025-06-16"

	err := ledger.NewValidator(clock).Validate(d)

	assert.Equal(t, []string{ledger.CodeFutureDate}, codes(err))
}

func TestValidator_Today_Accepted(t *testing.T) {
	d := validDraft()
	d.Date = "15/06/2025"
	assert.NoError(t, ledger.NewValidator(clock).Validate(d))
}

func TestValidator_DateMissingOrMalformed(t *testing.T) {
	d := validDraft()
	d.Date = ""
	assert.Equal(t, []string{ledger.CodeRequired}, codes(ledger.NewValidator(clock).Validate(d)))

	d.Date = "2025-13-40"
	assert.Equal(t, []string{ledger.CodeInvalidDate}, codes(ledger.NewValidator(clock).Validate(d)))
}

// =============================================================================
// COLLECTION
// =============================================================================

func TestValidator_CollectsEveryProblem(t *testing.T) {
	// GIVEN: Empty references, future date, both amounts positive
	// THEN: All problems reported in rule order
	d := ledger.Draft{Date: "2030-01-01", Income: "10", Expense: "10"}

	err := ledger.NewValidator(clock).Validate(d)

	assert.Equal(t, []string{
		ledger.CodeRequired, ledger.CodeRequired, ledger.CodeRequired,
		ledger.CodeFutureDate,
		ledger.CodeSimultaneousAmount,
	}, codes(err))
}

func TestValidator_Idempotent(t *testing.T) {
	d := validDraft()
	d.Expense = "x"
	v := ledger.NewValidator(clock)

	assert.Equal(t, v.Validate(d), v.Validate(d))
}
