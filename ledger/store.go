/*
store.go - Persistence interface for catalog, movements, favorites and audit

PURPOSE:
  Defines the boundary between the engine and whatever database holds the
  four ledger tables plus the advisory favorites table. The engine assumes
  an ACID store with atomic id assignment; it never caches what it reads.

KEY INTERFACES:
  CatalogStore:  accounts, locations, categories (no delete methods)
  MovementStore: movement rows and the favorites cache
  AuditStore:    append-only mutation history
  TxStore:       runs several writes atomically

ORDERING CONTRACT:
  ListMovements returns rows sorted by (date ASC, id ASC). The balance engine
  relies on that order and re-sorts defensively.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite, schema via golang-migrate
  - ledger/store/memory.go: in-memory for tests and dev

SEE ALSO:
  - service.go: the only writer of movements
  - catalog.go: the only writer of catalog rows
*/
package ledger

import (
	"context"
	"time"
)

// CatalogStore persists reference data. Rows are only ever soft-deleted
// through Update with Status = StatusInactive.
type CatalogStore interface {
	InsertAccount(ctx context.Context, a Account) (AccountID, error)
	UpdateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id AccountID) (Account, error)
	// ListAccounts returns every account, active or not, ordered by name.
	ListAccounts(ctx context.Context) ([]Account, error)

	InsertLocation(ctx context.Context, l Location) (LocationID, error)
	UpdateLocation(ctx context.Context, l Location) error
	GetLocation(ctx context.Context, id LocationID) (Location, error)
	ListLocations(ctx context.Context) ([]Location, error)

	InsertCategory(ctx context.Context, c Category) (CategoryID, error)
	UpdateCategory(ctx context.Context, c Category) error
	GetCategory(ctx context.Context, id CategoryID) (Category, error)
	// ListCategories returns categories of one location, or all when locationID is 0.
	ListCategories(ctx context.Context, locationID LocationID) ([]Category, error)
}

// MovementStore persists movements and the favorites cache.
type MovementStore interface {
	// InsertMovement assigns and returns the next id.
	InsertMovement(ctx context.Context, m Movement) (MovementID, error)
	GetMovement(ctx context.Context, id MovementID) (Movement, error)
	UpdateMovement(ctx context.Context, m Movement) error
	DeleteMovement(ctx context.Context, id MovementID) error

	// ListMovements returns matching rows ordered by (date, id) ascending.
	// MovementFilter.Limit is ignored here.
	ListMovements(ctx context.Context, f MovementFilter) ([]Movement, error)
	CountMovementsOn(ctx context.Context, day Date) (int, error)

	// BumpFavorite increments the usage count of text, creating it if needed.
	BumpFavorite(ctx context.Context, text string, at time.Time) error
	// ListFavorites ranks by uses desc, then last use desc.
	ListFavorites(ctx context.Context, limit int) ([]Favorite, error)
	// ReplaceFavorites swaps the whole cache for the given entries.
	ReplaceFavorites(ctx context.Context, favs []Favorite) error
}

// AuditStore is append-only.
type AuditStore interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	AuditTrail(ctx context.Context, table string, recordID int64) ([]AuditEntry, error)
}

// Store is everything the engine needs.
type Store interface {
	CatalogStore
	MovementStore
	AuditStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// runTx runs fn inside a transaction when the store supports one, and
// directly against the store otherwise.
func runTx(ctx context.Context, s Store, fn func(Store) error) error {
	if tx, ok := s.(TxStore); ok {
		return tx.WithTx(ctx, fn)
	}
	return fn(s)
}
