/*
Package ledger is the small-business cash ledger engine.

PURPOSE:
  Records dated income/expense movements against accounts ("hojas"), tags
  them with a business location and category, and derives running balances,
  period summaries and simple analytics from that history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account, Location, Category: reference catalog rows (soft-delete only)
  - Movement: a single dated inflow or outflow, the only thing balances come from
  - Draft / Patch: the write-side shapes accepted from callers
  - BalanceRow: a movement decorated with display names and its running balance

DESIGN PRINCIPLES:
  1. Balances are never stored. They are replayed from movements on every read.
  2. Money is decimal.Decimal with two fractional digits, never float64.
  3. Movements are totally ordered by (Date, ID).
  4. Catalog rows are never hard-deleted because movements point at them.

SEE ALSO:
  - validator.go: Draft validation
  - service.go: movement create/update/delete
  - balance.go: running balance and summaries
  - analytics.go: projection, anomalies, reconciliation
*/
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// MinorUnits is the fixed number of fractional digits every amount is rounded to.
const MinorUnits = 2

// RoundMoney rounds half away from zero to MinorUnits digits.
func RoundMoney(d decimal.Decimal) decimal.Decimal { return d.Round(MinorUnits) }

// ParseAmount parses user-entered amount text. Blank text is zero; thousands
// separators and spaces are ignored.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer(",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	return RoundMoney(d), nil
}

// FormatAmount renders an amount with exactly MinorUnits digits.
func FormatAmount(d decimal.Decimal) string { return d.StringFixed(MinorUnits) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID int64
type LocationID int64
type CategoryID int64

// MovementID is assigned by the store, strictly increasing, and breaks ties
// between movements booked on the same day.
type MovementID int64

// =============================================================================
// REFERENCE CATALOG
// =============================================================================

// Status is the lifecycle state of a catalog row. There is no "deleted" state.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) IsActive() bool { return s == StatusActive }

type AccountKind string

const (
	AccountBank AccountKind = "bank"
	AccountCash AccountKind = "cash"
)

func (k AccountKind) Valid() bool { return k == AccountBank || k == AccountCash }

// Account is a named bank or cash balance bucket ("hoja").
type Account struct {
	ID       AccountID
	Name     string
	Kind     AccountKind
	Currency string // ISO-4217 code, stored as a tag only
	Status   Status
}

// Location is a business site or branch ("local").
type Location struct {
	ID     LocationID
	Name   string
	Status Status
}

type CategoryKind string

const (
	CategoryIncome  CategoryKind = "income"
	CategoryExpense CategoryKind = "expense"
	CategoryBoth    CategoryKind = "both"
)

func (k CategoryKind) Valid() bool {
	return k == CategoryIncome || k == CategoryExpense || k == CategoryBoth
}

// Category classifies a movement's purpose within one location.
type Category struct {
	ID         CategoryID
	Name       string
	LocationID LocationID
	Kind       CategoryKind
	Status     Status
}

// =============================================================================
// MOVEMENT
// =============================================================================

// Movement is a persisted income or expense entry. Exactly one of Income and
// Expense is positive.
type Movement struct {
	ID          MovementID
	Date        Date
	AccountID   AccountID
	LocationID  LocationID
	CategoryID  CategoryID
	Document    string
	Responsible string
	Description string
	Income      decimal.Decimal
	Expense     decimal.Decimal
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Signed is the movement's effect on its account balance.
func (m Movement) Signed() decimal.Decimal { return m.Income.Sub(m.Expense) }

// Magnitude is the absolute size of the movement regardless of direction.
func (m Movement) Magnitude() decimal.Decimal { return m.Income.Add(m.Expense) }

// Less orders movements by (Date, ID).
func (m Movement) Less(o Movement) bool {
	if c := m.Date.Compare(o.Date); c != 0 {
		return c < 0
	}
	return m.ID < o.ID
}

// Draft is a candidate movement as typed by a user. Date and amounts stay as
// text so malformed input can be reported instead of silently coerced.
// Zero IDs mean "not selected".
type Draft struct {
	Date        string
	AccountID   AccountID
	LocationID  LocationID
	CategoryID  CategoryID
	Document    string
	Responsible string
	Description string
	Income      string
	Expense     string
}

// IsEmpty reports an untouched bulk-entry row: nothing selected, nothing typed.
// The date is ignored because entry grids pre-fill it.
func (d Draft) IsEmpty() bool {
	if d.AccountID != 0 || d.LocationID != 0 || d.CategoryID != 0 {
		return false
	}
	if strings.TrimSpace(d.Description) != "" || strings.TrimSpace(d.Document) != "" ||
		strings.TrimSpace(d.Responsible) != "" {
		return false
	}
	for _, raw := range []string{d.Income, d.Expense} {
		v, err := ParseAmount(raw)
		if err != nil || !v.IsZero() {
			return false
		}
	}
	return true
}

// Patch lists the only movement fields an edit may change. Nil means unchanged.
type Patch struct {
	Date        *string
	AccountID   *AccountID
	LocationID  *LocationID
	CategoryID  *CategoryID
	Document    *string
	Responsible *string
	Description *string
	Income      *string
	Expense     *string
}

// IsEmpty reports a patch that changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Date == nil && p.AccountID == nil && p.LocationID == nil && p.CategoryID == nil &&
		p.Document == nil && p.Responsible == nil && p.Description == nil &&
		p.Income == nil && p.Expense == nil
}

// draftOf renders a stored movement back into its editable text form.
func draftOf(m Movement) Draft {
	return Draft{
		Date:        m.Date.String(),
		AccountID:   m.AccountID,
		LocationID:  m.LocationID,
		CategoryID:  m.CategoryID,
		Document:    m.Document,
		Responsible: m.Responsible,
		Description: m.Description,
		Income:      FormatAmount(m.Income),
		Expense:     FormatAmount(m.Expense),
	}
}

// apply overlays the patch on a draft.
func (p Patch) apply(d Draft) Draft {
	if p.Date != nil {
		d.Date = *p.Date
	}
	if p.AccountID != nil {
		d.AccountID = *p.AccountID
	}
	if p.LocationID != nil {
		d.LocationID = *p.LocationID
	}
	if p.CategoryID != nil {
		d.CategoryID = *p.CategoryID
	}
	if p.Document != nil {
		d.Document = *p.Document
	}
	if p.Responsible != nil {
		d.Responsible = *p.Responsible
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.Income != nil {
		d.Income = *p.Income
	}
	if p.Expense != nil {
		d.Expense = *p.Expense
	}
	return d
}

// =============================================================================
// READ MODELS
// =============================================================================

// MovementView is a movement joined with its catalog display names.
type MovementView struct {
	Movement
	AccountName  string
	LocationName string
	CategoryName string
}

// BalanceRow is a movement together with the account balance right after it.
type BalanceRow struct {
	MovementView
	RunningBalance decimal.Decimal
}

// MovementFilter narrows a movement listing. Zero fields are ignored.
type MovementFilter struct {
	AccountID  AccountID
	LocationID LocationID
	Period     Period
	Text       string // case-insensitive substring of the description
	Limit      int
}

// Favorite is one entry of the description autocomplete cache.
type Favorite struct {
	Text     string
	Uses     int
	LastUsed time.Time
}
