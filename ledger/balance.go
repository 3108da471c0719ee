/*
balance.go - Running balance and summaries

PURPOSE:
  Answers "how much is in this account, and how did it get there?". Nothing
  here is stored or memoized: every call replays the account's movements.

RUNNING BALANCE:
  Movements are ordered by (Date ASC, ID ASC) and prefix-summed over
  Income - Expense. ID breaks same-day ties, so entries typed later on the
  same day always come after earlier ones.

  When a window starts after the first movement, the rows before it are
  folded into an opening balance, so the first row of the window shows the
  real account balance and not a balance restarted at zero.

  Rows are computed ascending and returned newest first for display.

EXAMPLE:
  2025-01-01 #1 +100.00   running 100.00
  2025-01-02 #3  -30.00   running  70.00
  2025-01-02 #2  ...      is placed before #3 because 2 < 3

SEE ALSO:
  - analytics.go: projection, anomalies and reconciliation on top of this
  - store.go: ListMovements ordering contract
*/
package ledger

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceEngine derives balances from a store.
type BalanceEngine struct {
	Store Store
}

func NewBalanceEngine(store Store) *BalanceEngine {
	return &BalanceEngine{Store: store}
}

// Summary totals an account over a period.
type Summary struct {
	Period       Period
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	Count        int
}

// LocationTotal is one line of a per-location breakdown.
type LocationTotal struct {
	LocationID   LocationID
	LocationName string
	TotalIncome  decimal.Decimal
	TotalExpense decimal.Decimal
	Balance      decimal.Decimal
	Count        int
}

// AccountBalance pairs an account with its current balance.
type AccountBalance struct {
	Account Account
	Balance decimal.Decimal
}

// =============================================================================
// BALANCES
// =============================================================================

// CurrentBalance is the sum of Income - Expense over every movement of the
// account, whatever its date.
func (e *BalanceEngine) CurrentBalance(ctx context.Context, account AccountID) (decimal.Decimal, error) {
	ms, err := e.accountMovements(ctx, account, Period{})
	if err != nil {
		return decimal.Zero, err
	}
	return sumSigned(ms), nil
}

// AllAccountBalances returns the current balance of every active account,
// ordered by account name.
func (e *BalanceEngine) AllAccountBalances(ctx context.Context) ([]AccountBalance, error) {
	accounts, err := e.Store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []AccountBalance
	for _, a := range accounts {
		if !a.Status.IsActive() {
			continue
		}
		ms, err := e.Store.ListMovements(ctx, MovementFilter{AccountID: a.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, AccountBalance{Account: a, Balance: sumSigned(ms)})
	}
	return out, nil
}

// History returns the account's movements inside the period, each with the
// account balance right after it, newest first.
func (e *BalanceEngine) History(ctx context.Context, account AccountID, p Period) ([]BalanceRow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	// Everything up to p.To is needed: earlier rows feed the opening balance.
	ms, err := e.accountMovements(ctx, account, Period{To: p.To})
	if err != nil {
		return nil, err
	}
	names, err := loadNames(ctx, e.Store)
	if err != nil {
		return nil, err
	}

	running := decimal.Zero
	rows := make([]BalanceRow, 0, len(ms))
	for _, m := range ms {
		running = running.Add(m.Signed())
		if !p.Contains(m.Date) {
			continue
		}
		rows = append(rows, BalanceRow{MovementView: names.view(m), RunningBalance: running})
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// =============================================================================
// SUMMARIES
// =============================================================================

// PeriodSummary totals income and expense of an account inside the period.
func (e *BalanceEngine) PeriodSummary(ctx context.Context, account AccountID, p Period) (Summary, error) {
	if err := p.Validate(); err != nil {
		return Summary{}, err
	}
	ms, err := e.accountMovements(ctx, account, p)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Period: p, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
	for _, m := range ms {
		s.TotalIncome = s.TotalIncome.Add(m.Income)
		s.TotalExpense = s.TotalExpense.Add(m.Expense)
		s.Count++
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpense)
	return s, nil
}

// MonthlySummary is PeriodSummary over one calendar month.
func (e *BalanceEngine) MonthlySummary(ctx context.Context, account AccountID, year int, month time.Month) (Summary, error) {
	if month < time.January || month > time.December {
		return Summary{}, newValidationError([]FieldError{{"month", CodeInvalidValue, "month must be between 1 and 12"}})
	}
	return e.PeriodSummary(ctx, account, MonthPeriod(year, month))
}

// LocationSummary breaks an account's movements down by location, largest
// balance first.
func (e *BalanceEngine) LocationSummary(ctx context.Context, account AccountID, p Period) ([]LocationTotal, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ms, err := e.accountMovements(ctx, account, p)
	if err != nil {
		return nil, err
	}
	names, err := loadNames(ctx, e.Store)
	if err != nil {
		return nil, err
	}

	byLoc := make(map[LocationID]*LocationTotal)
	for _, m := range ms {
		t, ok := byLoc[m.LocationID]
		if !ok {
			t = &LocationTotal{
				LocationID:   m.LocationID,
				LocationName: names.locations[m.LocationID],
				TotalIncome:  decimal.Zero,
				TotalExpense: decimal.Zero,
			}
			byLoc[m.LocationID] = t
		}
		t.TotalIncome = t.TotalIncome.Add(m.Income)
		t.TotalExpense = t.TotalExpense.Add(m.Expense)
		t.Count++
	}

	out := make([]LocationTotal, 0, len(byLoc))
	for _, t := range byLoc {
		t.Balance = t.TotalIncome.Sub(t.TotalExpense)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Balance.Cmp(out[j].Balance); c != 0 {
			return c > 0
		}
		return out[i].LocationName < out[j].LocationName
	})
	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// accountMovements loads an existing account's movements in (date, id) order.
func (e *BalanceEngine) accountMovements(ctx context.Context, account AccountID, p Period) ([]Movement, error) {
	if _, err := e.Store.GetAccount(ctx, account); err != nil {
		return nil, err
	}
	ms, err := e.Store.ListMovements(ctx, MovementFilter{AccountID: account, Period: p})
	if err != nil {
		return nil, err
	}
	sortMovements(ms)
	return ms, nil
}

func sumSigned(ms []Movement) decimal.Decimal {
	total := decimal.Zero
	for _, m := range ms {
		total = total.Add(m.Signed())
	}
	return total
}
