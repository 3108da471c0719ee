package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT LOG - Who changed which movement, and how
// =============================================================================

type AuditAction string

const (
	AuditInsert AuditAction = "INSERT"
	AuditUpdate AuditAction = "UPDATE"
	AuditDelete AuditAction = "DELETE"
)

// TableMovements is the audit table name for movement rows.
const TableMovements = "movements"

// AuditEntry records one mutation with before/after snapshots as JSON.
// Before is empty for inserts, After is empty for deletes.
type AuditEntry struct {
	ID        string
	Table     string
	RecordID  int64
	Action    AuditAction
	Before    string
	After     string
	Actor     string
	Timestamp time.Time
}

// movementSnapshot is the JSON shape stored in audit entries.
type movementSnapshot struct {
	ID          MovementID `json:"id"`
	Date        string     `json:"date"`
	AccountID   AccountID  `json:"account_id"`
	LocationID  LocationID `json:"location_id"`
	CategoryID  CategoryID `json:"category_id"`
	Document    string     `json:"document"`
	Responsible string     `json:"responsible"`
	Description string     `json:"description"`
	Income      string     `json:"income"`
	Expense     string     `json:"expense"`
	CreatedBy   string     `json:"created_by"`
}

func snapshot(m *Movement) string {
	if m == nil {
		return ""
	}
	b, err := json.Marshal(movementSnapshot{
		ID:          m.ID,
		Date:        m.Date.String(),
		AccountID:   m.AccountID,
		LocationID:  m.LocationID,
		CategoryID:  m.CategoryID,
		Document:    m.Document,
		Responsible: m.Responsible,
		Description: m.Description,
		Income:      FormatAmount(m.Income),
		Expense:     FormatAmount(m.Expense),
		CreatedBy:   m.CreatedBy,
	})
	if err != nil {
		return "{}"
	}
	return string(b)
}

func newMovementAudit(action AuditAction, id MovementID, before, after *Movement, actor string, at time.Time) AuditEntry {
	return AuditEntry{
		ID:        uuid.NewString(),
		Table:     TableMovements,
		RecordID:  int64(id),
		Action:    action,
		Before:    snapshot(before),
		After:     snapshot(after),
		Actor:     actor,
		Timestamp: at,
	}
}
