package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashledger/ledger"
)

// =============================================================================
// CURRENT BALANCE
// =============================================================================

func TestCurrentBalance_IncomeMinusExpense_AnyInsertionOrder(t *testing.T) {
	// GIVEN: Movements inserted out of date order
	// THEN: Balance is sum(income) - sum(expense)
	f := newFixture(t)
	f.mustCreate(t, f.draft("2025-06-10", "", "30.25"))
	f.mustCreate(t, f.draft("2025-01-01", "100", ""))
	f.mustCreate(t, f.draft("2025-03-15", "0.10", ""))
	f.mustCreate(t, f.draft("2025-03-15", "", "0.20"))

	bal, err := f.balances.CurrentBalance(f.ctx, f.bank.ID)
	require.NoError(t, err)
	assert.Equal(t, "69.65", ledger.FormatAmount(bal))
}

func TestCurrentBalance_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.balances.CurrentBalance(f.ctx, 999)
	assert.True(t, ledger.IsNotFound(err))
}

func TestCurrentBalance_OtherAccountsIgnored(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.draft("2025-06-01", "100", ""))
	d := f.draft("2025-06-01", "7", "")
	d.AccountID = f.cash.ID
	f.mustCreate(t, d)

	bal, err := f.balances.CurrentBalance(f.ctx, f.cash.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("7")))
}

// =============================================================================
// RUNNING BALANCE
// =============================================================================

func TestHistory_PrefixSum_SameDayTieBreakByID(t *testing.T) {
	// GIVEN: Two same-day entries created after a later-dated one
	// WHEN: Reading the history
	// THEN: Same-day entries are ordered by id, and each running balance
	//       equals the previous one plus the entry's signed amount
	f := newFixture(t)
	late := f.mustCreate(t, f.draft("2025-06-05", "", "40"))
	first := f.mustCreate(t, f.draft("2025-06-01", "100", ""))
	second := f.mustCreate(t, f.draft("2025-06-01", "", "25"))

	rows, err := f.balances.History(f.ctx, f.bank.ID, ledger.Period{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// newest first
	assert.Equal(t, late, rows[0].ID)
	assert.Equal(t, second, rows[1].ID)
	assert.Equal(t, first, rows[2].ID)

	assert.Equal(t, "100.00", ledger.FormatAmount(rows[2].RunningBalance))
	assert.Equal(t, "75.00", ledger.FormatAmount(rows[1].RunningBalance))
	assert.Equal(t, "35.00", ledger.FormatAmount(rows[0].RunningBalance))

	for k := len(rows) - 2; k >= 0; k-- {
		prev := rows[k+1].RunningBalance
		assert.True(t, rows[k].RunningBalance.Equal(prev.Add(rows[k].Signed())))
	}
	assert.Equal(t, "Hotel", rows[0].LocationName)
}

func TestHistory_WindowCarriesOpeningBalance(t *testing.T) {
	// GIVEN: 100 in May, then movements in June
	// WHEN: Asking only for June
	// THEN: Running balances start from the May closing balance
	f := newFixture(t)
	f.mustCreate(t, f.draft("2025-05-20", "100", ""))
	f.mustCreate(t, f.draft("2025-06-02", "", "10"))
	f.mustCreate(t, f.draft("2025-06-12", "5", ""))

	rows, err := f.balances.History(f.ctx, f.bank.ID, ledger.MonthPeriod(2025, time.June))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "95.00", ledger.FormatAmount(rows[0].RunningBalance))
	assert.Equal(t, "90.00", ledger.FormatAmount(rows[1].RunningBalance))
}

func TestHistory_InvalidPeriod(t *testing.T) {
	f := newFixture(t)
	_, err := f.balances.History(f.ctx, f.bank.ID, ledger.Period{
		From: ledger.MustParseDate("2025-06-02"),
		To:   ledger.MustParseDate("2025-06-01"),
	})
	assert.ErrorIs(t, err, ledger.ErrInvalidPeriod)
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestPeriodSummary(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.draft("2025-05-31", "999", ""))
	f.mustCreate(t, f.draft("2025-06-01", "200", ""))
	f.mustCreate(t, f.draft("2025-06-10", "", "50.50"))
	f.mustCreate(t, f.draft("2025-06-15", "", "20"))

	s, err := f.balances.MonthlySummary(f.ctx, f.bank.ID, 2025, time.June)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, "200.00", ledger.FormatAmount(s.TotalIncome))
	assert.Equal(t, "70.50", ledger.FormatAmount(s.TotalExpense))
	assert.Equal(t, "129.50", ledger.FormatAmount(s.Balance))
	assert.Equal(t, "2025-06-30", s.Period.To.String())
}

func TestPeriodSummary_Empty(t *testing.T) {
	f := newFixture(t)
	s, err := f.balances.PeriodSummary(f.ctx, f.bank.ID, ledger.MonthPeriod(2025, time.June))
	require.NoError(t, err)
	assert.Zero(t, s.Count)
	assert.True(t, s.Balance.IsZero())
}

func TestMonthlySummary_InvalidMonth(t *testing.T) {
	f := newFixture(t)
	_, err := f.balances.MonthlySummary(f.ctx, f.bank.ID, 2025, 13)
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestLocationSummary_OrderedByBalance(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.draft("2025-06-01", "300", ""))
	f.mustCreate(t, f.draft("2025-06-02", "", "50"))
	rent := f.draft("2025-06-03", "", "120")
	rent.LocationID, rent.CategoryID = f.office.ID, f.alquiler.ID
	f.mustCreate(t, rent)

	got, err := f.balances.LocationSummary(f.ctx, f.bank.ID, ledger.Period{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Hotel", got[0].LocationName)
	assert.Equal(t, "250.00", ledger.FormatAmount(got[0].Balance))
	assert.Equal(t, 2, got[0].Count)
	assert.Equal(t, "Oficina", got[1].LocationName)
	assert.Equal(t, "-120.00", ledger.FormatAmount(got[1].Balance))
}

func TestAllAccountBalances_ActiveOnly(t *testing.T) {
	f := newFixture(t)
	f.mustCreate(t, f.draft("2025-06-01", "300", ""))
	require.NoError(t, f.catalog.DeactivateAccount(f.ctx, f.cash.ID))

	got, err := f.balances.AllAccountBalances(f.ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, f.bank.ID, got[0].Account.ID)
	assert.Equal(t, "300.00", ledger.FormatAmount(got[0].Balance))
}
