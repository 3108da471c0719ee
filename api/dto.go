/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the ledger's
  domain types from the wire contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  Amounts are always strings with exactly two decimals ("1234.50"), never
  JSON numbers. Balance responses also carry a "display" string formatted
  for the account currency ("S/1,234.50"). Request amounts may be sent
  either as strings or as numbers; both are read as text and parsed by the
  ledger, so "1,234.50" and 1234.5 are equivalent.

VALIDATION:
  Shape checks (required, lengths, enums, currency codes) use struct tags
  checked by go-playground/validator before the request reaches the ledger.
  Business rules (dates, amounts, references) stay in the ledger so every
  entry point applies them identically.

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Custom validation rules
*/
package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cashledger/ledger"
)

// =============================================================================
// AMOUNT TEXT
// =============================================================================

// AmountText accepts a JSON string or number and keeps its literal text.
type AmountText string

func (a *AmountText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = AmountText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = AmountText(n.String())
	return nil
}

// =============================================================================
// CATALOG
// =============================================================================

type AccountDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type CreateAccountRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Kind     string `json:"kind" validate:"required,account_kind"`
	Currency string `json:"currency" validate:"omitempty,iso4217"`
}

type UpdateAccountRequest struct {
	Name *string `json:"name" validate:"omitempty,min=2,max=100"`
	Kind *string `json:"kind" validate:"omitempty,account_kind"`
}

type LocationDTO struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type CreateLocationRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

type CategoryDTO struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	LocationID int64  `json:"location_id"`
	Kind       string `json:"kind"`
	Status     string `json:"status"`
}

type CreateCategoryRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=100"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Kind       string `json:"kind" validate:"omitempty,category_kind"`
}

type SeedDTO struct {
	Accounts   int  `json:"accounts"`
	Locations  int  `json:"locations"`
	Categories int  `json:"categories"`
	Skipped    bool `json:"skipped"`
}

// =============================================================================
// MOVEMENTS
// =============================================================================

// MovementRequest is one movement as typed in the entry form or grid.
type MovementRequest struct {
	Date        string     `json:"date"`
	AccountID   int64      `json:"account_id" validate:"gte=0"`
	LocationID  int64      `json:"location_id" validate:"gte=0"`
	CategoryID  int64      `json:"category_id" validate:"gte=0"`
	Document    string     `json:"document" validate:"max=100"`
	Responsible string     `json:"responsible" validate:"max=100"`
	Description string     `json:"description" validate:"max=500"`
	Income      AmountText `json:"income"`
	Expense     AmountText `json:"expense"`
}

func (r MovementRequest) toDraft() ledger.Draft {
	return ledger.Draft{
		Date:        r.Date,
		AccountID:   ledger.AccountID(r.AccountID),
		LocationID:  ledger.LocationID(r.LocationID),
		CategoryID:  ledger.CategoryID(r.CategoryID),
		Document:    r.Document,
		Responsible: r.Responsible,
		Description: r.Description,
		Income:      string(r.Income),
		Expense:     string(r.Expense),
	}
}

// PatchMovementRequest carries only the fields being edited.
type PatchMovementRequest struct {
	Date        *string     `json:"date"`
	AccountID   *int64      `json:"account_id" validate:"omitempty,gt=0"`
	LocationID  *int64      `json:"location_id" validate:"omitempty,gt=0"`
	CategoryID  *int64      `json:"category_id" validate:"omitempty,gt=0"`
	Document    *string     `json:"document" validate:"omitempty,max=100"`
	Responsible *string     `json:"responsible" validate:"omitempty,max=100"`
	Description *string     `json:"description" validate:"omitempty,max=500"`
	Income      *AmountText `json:"income"`
	Expense     *AmountText `json:"expense"`
}

func (r PatchMovementRequest) toPatch() ledger.Patch {
	p := ledger.Patch{
		Date:        r.Date,
		Document:    r.Document,
		Responsible: r.Responsible,
		Description: r.Description,
	}
	if r.AccountID != nil {
		v := ledger.AccountID(*r.AccountID)
		p.AccountID = &v
	}
	if r.LocationID != nil {
		v := ledger.LocationID(*r.LocationID)
		p.LocationID = &v
	}
	if r.CategoryID != nil {
		v := ledger.CategoryID(*r.CategoryID)
		p.CategoryID = &v
	}
	if r.Income != nil {
		v := string(*r.Income)
		p.Income = &v
	}
	if r.Expense != nil {
		v := string(*r.Expense)
		p.Expense = &v
	}
	return p
}

// BatchRequest rows are validated one by one in CommitBatch so a bad row
// is reported without rejecting the rest.
type BatchRequest struct {
	Rows []MovementRequest `json:"rows" validate:"required,max=500"`
}

type MovementDTO struct {
	ID           int64   `json:"id"`
	Date         string  `json:"date"`
	AccountID    int64   `json:"account_id"`
	AccountName  string  `json:"account_name"`
	LocationID   int64   `json:"location_id"`
	LocationName string  `json:"location_name"`
	CategoryID   int64   `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Document     string  `json:"document"`
	Responsible  string  `json:"responsible"`
	Description  string  `json:"description"`
	Income       string  `json:"income"`
	Expense      string  `json:"expense"`
	CreatedBy    string  `json:"created_by"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    *string `json:"updated_at,omitempty"`
}

// HistoryRowDTO is a movement with the account balance right after it.
type HistoryRowDTO struct {
	MovementDTO
	RunningBalance string `json:"running_balance"`
}

type CreatedDTO struct {
	ID int64 `json:"id"`
}

type CountDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type RowFailureDTO struct {
	Row    int                 `json:"row"`
	Fields []ledger.FieldError `json:"fields"`
}

type BatchResultDTO struct {
	Committed []int64         `json:"committed"`
	Failed    []RowFailureDTO `json:"failed"`
	Skipped   int             `json:"skipped"`
}

type AuditEntryDTO struct {
	ID        string          `json:"id"`
	Table     string          `json:"table"`
	RecordID  int64           `json:"record_id"`
	Action    string          `json:"action"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Actor     string          `json:"actor"`
	Timestamp string          `json:"timestamp"`
}

// =============================================================================
// BALANCES & ANALYTICS
// =============================================================================

type BalanceDTO struct {
	AccountID   int64  `json:"account_id"`
	AccountName string `json:"account_name"`
	Currency    string `json:"currency"`
	Balance     string `json:"balance"`
	Display     string `json:"display"`
}

type SummaryDTO struct {
	AccountID    int64  `json:"account_id"`
	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Balance      string `json:"balance"`
	Count        int    `json:"count"`
}

type LocationTotalDTO struct {
	LocationID   int64  `json:"location_id"`
	LocationName string `json:"location_name"`
	TotalIncome  string `json:"total_income"`
	TotalExpense string `json:"total_expense"`
	Balance      string `json:"balance"`
	Count        int    `json:"count"`
}

type ProjectionDTO struct {
	AccountID        int64  `json:"account_id"`
	CurrentBalance   string `json:"current_balance"`
	DailyAverage     string `json:"daily_average"`
	HorizonDays      int    `json:"horizon_days"`
	ProjectedBalance string `json:"projected_balance"`
	Trend            string `json:"trend"`
	WindowCount      int    `json:"window_count"`
}

type ReconcileRequest struct {
	ExpectedBalance AmountText `json:"expected_balance" validate:"required"`
}

type ReconciliationDTO struct {
	AccountID       int64  `json:"account_id"`
	SystemBalance   string `json:"system_balance"`
	ExpectedBalance string `json:"expected_balance"`
	Difference      string `json:"difference"`
	Matches         bool   `json:"matches"`
}

type FavoritesDTO struct {
	Descriptions []string `json:"descriptions"`
}

type RebuildDTO struct {
	Count int `json:"count"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []ledger.FieldError `json:"fields,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toAccountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:       int64(a.ID),
		Name:     a.Name,
		Kind:     string(a.Kind),
		Currency: a.Currency,
		Status:   string(a.Status),
	}
}

func toLocationDTO(l ledger.Location) LocationDTO {
	return LocationDTO{ID: int64(l.ID), Name: l.Name, Status: string(l.Status)}
}

func toCategoryDTO(c ledger.Category) CategoryDTO {
	return CategoryDTO{
		ID:         int64(c.ID),
		Name:       c.Name,
		LocationID: int64(c.LocationID),
		Kind:       string(c.Kind),
		Status:     string(c.Status),
	}
}

func toMovementDTO(v ledger.MovementView) MovementDTO {
	dto := MovementDTO{
		ID:           int64(v.ID),
		Date:         v.Date.String(),
		AccountID:    int64(v.AccountID),
		AccountName:  v.AccountName,
		LocationID:   int64(v.LocationID),
		LocationName: v.LocationName,
		CategoryID:   int64(v.CategoryID),
		CategoryName: v.CategoryName,
		Document:     v.Document,
		Responsible:  v.Responsible,
		Description:  v.Description,
		Income:       ledger.FormatAmount(v.Income),
		Expense:      ledger.FormatAmount(v.Expense),
		CreatedBy:    v.CreatedBy,
		CreatedAt:    v.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.UpdatedAt != nil {
		s := v.UpdatedAt.UTC().Format(time.RFC3339)
		dto.UpdatedAt = &s
	}
	return dto
}

func toBalanceDTO(a ledger.Account, bal decimal.Decimal) BalanceDTO {
	return BalanceDTO{
		AccountID:   int64(a.ID),
		AccountName: a.Name,
		Currency:    a.Currency,
		Balance:     ledger.FormatAmount(bal),
		Display:     ledger.FormatMoney(bal, a.Currency),
	}
}

func toSummaryDTO(account ledger.AccountID, s ledger.Summary) SummaryDTO {
	return SummaryDTO{
		AccountID:    int64(account),
		From:         s.Period.From.String(),
		To:           s.Period.To.String(),
		TotalIncome:  ledger.FormatAmount(s.TotalIncome),
		TotalExpense: ledger.FormatAmount(s.TotalExpense),
		Balance:      ledger.FormatAmount(s.Balance),
		Count:        s.Count,
	}
}

func toAuditDTO(e ledger.AuditEntry) AuditEntryDTO {
	dto := AuditEntryDTO{
		ID:        e.ID,
		Table:     e.Table,
		RecordID:  e.RecordID,
		Action:    string(e.Action),
		Actor:     e.Actor,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
	if e.Before != "" {
		dto.Before = json.RawMessage(e.Before)
	}
	if e.After != "" {
		dto.After = json.RawMessage(e.After)
	}
	return dto
}
