/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Persists the reference catalog, movements, the favorites cache and the
  audit log. Balances are never stored; the engine replays movements.

KEY TABLES:
  accounts, locations, categories: catalog, soft-delete via status
  movements:                       one row per income/expense entry
  favorite_descriptions:           advisory autocomplete cache
  audit_log:                       before/after snapshots per mutation

STORAGE FORMATS:
  Dates are TEXT 'YYYY-MM-DD', so string order is calendar order.
  Amounts are TEXT decimals with two fractional digits. They are summed in
  Go with shopspring/decimal, never with SQL floating point.
  Timestamps are fixed-width UTC text with nine fractional digits.

CONCURRENCY:
  The pool is capped at one connection. SQLite serializes writers anyway,
  and ":memory:" databases exist per connection. Calls made while a WithTx
  is open simply wait for the connection.

MIGRATION:
  Schema is applied on New() from the embedded migrations/ directory with
  golang-migrate.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/cashledger/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements ledger.TxStore using SQLite.
type Store struct {
	queries
	db *sql.DB
}

var _ ledger.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path and applies
// pending migrations. Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{queries: queries{q: db}, db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return ledger.WrapStorage("ping", s.db.PingContext(ctx))
}

// migrateUp applies the embedded migrations. The migrate instance is not
// closed: closing it would close db as well.
func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.WrapStorage("begin", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{q: sqlTx}); err != nil {
		return err
	}
	return ledger.WrapStorage("commit", sqlTx.Commit())
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements ledger.Store on a querier, so the same code runs
// inside and outside transactions.
type queries struct {
	q querier
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s queries) InsertAccount(ctx context.Context, a ledger.Account) (ledger.AccountID, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO accounts (name, kind, currency, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Name, a.Kind, a.Currency, a.Status, now())
	if err != nil {
		return 0, classify("insert account", "account", 0, err)
	}
	id, err := res.LastInsertId()
	return ledger.AccountID(id), ledger.WrapStorage("insert account", err)
}

func (s queries) UpdateAccount(ctx context.Context, a ledger.Account) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE accounts SET name = ?, kind = ?, currency = ?, status = ? WHERE id = ?`,
		a.Name, a.Kind, a.Currency, a.Status, a.ID)
	if err != nil {
		return classify("update account", "account", int64(a.ID), err)
	}
	return affected(res, "account", int64(a.ID))
}

func (s queries) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	var a ledger.Account
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, kind, currency, status FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Kind, &a.Currency, &a.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return a, &ledger.NotFoundError{Kind: "account", ID: int64(id)}
	}
	return a, ledger.WrapStorage("get account", err)
}

func (s queries) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, kind, currency, status FROM accounts ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, ledger.WrapStorage("list accounts", err)
	}
	defer rows.Close()

	var out []ledger.Account
	for rows.Next() {
		var a ledger.Account
		if err := rows.Scan(&a.ID, &a.Name, &a.Kind, &a.Currency, &a.Status); err != nil {
			return nil, ledger.WrapStorage("scan account", err)
		}
		out = append(out, a)
	}
	return out, ledger.WrapStorage("list accounts", rows.Err())
}

// =============================================================================
// LOCATIONS
// =============================================================================

func (s queries) InsertLocation(ctx context.Context, l ledger.Location) (ledger.LocationID, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO locations (name, status, created_at) VALUES (?, ?, ?)`,
		l.Name, l.Status, now())
	if err != nil {
		return 0, classify("insert location", "location", 0, err)
	}
	id, err := res.LastInsertId()
	return ledger.LocationID(id), ledger.WrapStorage("insert location", err)
}

func (s queries) UpdateLocation(ctx context.Context, l ledger.Location) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE locations SET name = ?, status = ? WHERE id = ?`, l.Name, l.Status, l.ID)
	if err != nil {
		return classify("update location", "location", int64(l.ID), err)
	}
	return affected(res, "location", int64(l.ID))
}

func (s queries) GetLocation(ctx context.Context, id ledger.LocationID) (ledger.Location, error) {
	var l ledger.Location
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, status FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return l, &ledger.NotFoundError{Kind: "location", ID: int64(id)}
	}
	return l, ledger.WrapStorage("get location", err)
}

func (s queries) ListLocations(ctx context.Context) ([]ledger.Location, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, status FROM locations ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, ledger.WrapStorage("list locations", err)
	}
	defer rows.Close()

	var out []ledger.Location
	for rows.Next() {
		var l ledger.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Status); err != nil {
			return nil, ledger.WrapStorage("scan location", err)
		}
		out = append(out, l)
	}
	return out, ledger.WrapStorage("list locations", rows.Err())
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (s queries) InsertCategory(ctx context.Context, c ledger.Category) (ledger.CategoryID, error) {
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO categories (name, location_id, kind, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.LocationID, c.Kind, c.Status, now())
	if err != nil {
		return 0, classify("insert category", "category", 0, err)
	}
	id, err := res.LastInsertId()
	return ledger.CategoryID(id), ledger.WrapStorage("insert category", err)
}

func (s queries) UpdateCategory(ctx context.Context, c ledger.Category) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE categories SET name = ?, location_id = ?, kind = ?, status = ? WHERE id = ?`,
		c.Name, c.LocationID, c.Kind, c.Status, c.ID)
	if err != nil {
		return classify("update category", "category", int64(c.ID), err)
	}
	return affected(res, "category", int64(c.ID))
}

func (s queries) GetCategory(ctx context.Context, id ledger.CategoryID) (ledger.Category, error) {
	var c ledger.Category
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, location_id, kind, status FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.LocationID, &c.Kind, &c.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return c, &ledger.NotFoundError{Kind: "category", ID: int64(id)}
	}
	return c, ledger.WrapStorage("get category", err)
}

func (s queries) ListCategories(ctx context.Context, locationID ledger.LocationID) ([]ledger.Category, error) {
	query := `SELECT id, name, location_id, kind, status FROM categories`
	var args []any
	if locationID != 0 {
		query += ` WHERE location_id = ?`
		args = append(args, locationID)
	}
	query += ` ORDER BY name COLLATE NOCASE, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.WrapStorage("list categories", err)
	}
	defer rows.Close()

	var out []ledger.Category
	for rows.Next() {
		var c ledger.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.LocationID, &c.Kind, &c.Status); err != nil {
			return nil, ledger.WrapStorage("scan category", err)
		}
		out = append(out, c)
	}
	return out, ledger.WrapStorage("list categories", rows.Err())
}

// =============================================================================
// MOVEMENTS
// =============================================================================

const movementColumns = `id, date, account_id, location_id, category_id, document, responsible,
	description, income, expense, created_by, created_at, updated_at`

func (s queries) InsertMovement(ctx context.Context, m ledger.Movement) (ledger.MovementID, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO movements
		(date, account_id, location_id, category_id, document, responsible, description,
		 income, expense, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Date.String(), m.AccountID, m.LocationID, m.CategoryID,
		m.Document, m.Responsible, m.Description,
		ledger.FormatAmount(m.Income), ledger.FormatAmount(m.Expense),
		m.CreatedBy, formatTime(m.CreatedAt),
	)
	if err != nil {
		return 0, classify("insert movement", "movement", 0, err)
	}
	id, err := res.LastInsertId()
	return ledger.MovementID(id), ledger.WrapStorage("insert movement", err)
}

func (s queries) GetMovement(ctx context.Context, id ledger.MovementID) (ledger.Movement, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+movementColumns+` FROM movements WHERE id = ?`, id)
	if err != nil {
		return ledger.Movement{}, ledger.WrapStorage("get movement", err)
	}
	ms, err := scanMovements(rows)
	if err != nil {
		return ledger.Movement{}, err
	}
	if len(ms) == 0 {
		return ledger.Movement{}, &ledger.NotFoundError{Kind: "movement", ID: int64(id)}
	}
	return ms[0], nil
}

func (s queries) UpdateMovement(ctx context.Context, m ledger.Movement) error {
	var updatedAt sql.NullString
	if m.UpdatedAt != nil {
		updatedAt = sql.NullString{String: formatTime(*m.UpdatedAt), Valid: true}
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE movements SET
			date = ?, account_id = ?, location_id = ?, category_id = ?,
			document = ?, responsible = ?, description = ?,
			income = ?, expense = ?, updated_at = ?
		WHERE id = ?`,
		m.Date.String(), m.AccountID, m.LocationID, m.CategoryID,
		m.Document, m.Responsible, m.Description,
		ledger.FormatAmount(m.Income), ledger.FormatAmount(m.Expense), updatedAt,
		m.ID,
	)
	if err != nil {
		return classify("update movement", "movement", int64(m.ID), err)
	}
	return affected(res, "movement", int64(m.ID))
}

func (s queries) DeleteMovement(ctx context.Context, id ledger.MovementID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM movements WHERE id = ?`, id)
	if err != nil {
		return ledger.WrapStorage("delete movement", err)
	}
	return affected(res, "movement", int64(id))
}

func (s queries) ListMovements(ctx context.Context, f ledger.MovementFilter) ([]ledger.Movement, error) {
	var (
		where []string
		args  []any
	)
	if f.AccountID != 0 {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.LocationID != 0 {
		where = append(where, "location_id = ?")
		args = append(args, f.LocationID)
	}
	if !f.Period.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.Period.From.String())
	}
	if !f.Period.To.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, f.Period.To.String())
	}

	query := `SELECT ` + movementColumns + ` FROM movements`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ledger.WrapStorage("list movements", err)
	}
	out, err := scanMovements(rows)
	if err != nil {
		return nil, err
	}
	return matchDescription(out, f.Text), nil
}

// matchDescription filters by case-insensitive substring in Go. SQLite's
// LOWER and LIKE only fold ASCII, so "ÑANDÚ" would miss "ñandú".
func matchDescription(ms []ledger.Movement, text string) []ledger.Movement {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ms
	}
	out := ms[:0]
	for _, m := range ms {
		if strings.Contains(strings.ToLower(m.Description), text) {
			out = append(out, m)
		}
	}
	return out
}

func (s queries) CountMovementsOn(ctx context.Context, day ledger.Date) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM movements WHERE date = ?`, day.String()).Scan(&n)
	return n, ledger.WrapStorage("count movements", err)
}

func scanMovements(rows *sql.Rows) ([]ledger.Movement, error) {
	defer rows.Close()

	var out []ledger.Movement
	for rows.Next() {
		var (
			m                     ledger.Movement
			date, income, expense string
			createdAt             string
			updatedAt             sql.NullString
		)
		err := rows.Scan(&m.ID, &date, &m.AccountID, &m.LocationID, &m.CategoryID,
			&m.Document, &m.Responsible, &m.Description,
			&income, &expense, &m.CreatedBy, &createdAt, &updatedAt)
		if err != nil {
			return nil, ledger.WrapStorage("scan movement", err)
		}

		if m.Date, err = ledger.ParseDate(date); err != nil {
			return nil, ledger.WrapStorage("scan movement", fmt.Errorf("movement %d date %q: %w", m.ID, date, err))
		}
		if m.Income, err = decimal.NewFromString(income); err != nil {
			return nil, ledger.WrapStorage("scan movement", fmt.Errorf("movement %d income: %w", m.ID, err))
		}
		if m.Expense, err = decimal.NewFromString(expense); err != nil {
			return nil, ledger.WrapStorage("scan movement", fmt.Errorf("movement %d expense: %w", m.ID, err))
		}
		m.CreatedAt = parseTime(createdAt)
		if updatedAt.Valid {
			t := parseTime(updatedAt.String)
			m.UpdatedAt = &t
		}
		out = append(out, m)
	}
	return out, ledger.WrapStorage("list movements", rows.Err())
}

// =============================================================================
// FAVORITES
// =============================================================================

func (s queries) BumpFavorite(ctx context.Context, text string, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO favorite_descriptions (text, uses, last_used) VALUES (?, 1, ?)
		ON CONFLICT (text) DO UPDATE SET
			uses = favorite_descriptions.uses + 1,
			last_used = excluded.last_used`,
		text, formatTime(at))
	return ledger.WrapStorage("bump favorite", err)
}

func (s queries) ListFavorites(ctx context.Context, limit int) ([]ledger.Favorite, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT text, uses, last_used FROM favorite_descriptions
		ORDER BY uses DESC, last_used DESC, text ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, ledger.WrapStorage("list favorites", err)
	}
	defer rows.Close()

	var out []ledger.Favorite
	for rows.Next() {
		var (
			f        ledger.Favorite
			lastUsed string
		)
		if err := rows.Scan(&f.Text, &f.Uses, &lastUsed); err != nil {
			return nil, ledger.WrapStorage("scan favorite", err)
		}
		f.LastUsed = parseTime(lastUsed)
		out = append(out, f)
	}
	return out, ledger.WrapStorage("list favorites", rows.Err())
}

func (s queries) ReplaceFavorites(ctx context.Context, favs []ledger.Favorite) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM favorite_descriptions`); err != nil {
		return ledger.WrapStorage("replace favorites", err)
	}
	for _, f := range favs {
		_, err := s.q.ExecContext(ctx,
			`INSERT INTO favorite_descriptions (text, uses, last_used) VALUES (?, ?, ?)`,
			f.Text, f.Uses, formatTime(f.LastUsed))
		if err != nil {
			return ledger.WrapStorage("replace favorites", err)
		}
	}
	return nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s queries) AppendAudit(ctx context.Context, e ledger.AuditEntry) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO audit_log
		(id, table_name, record_id, action, before_json, after_json, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Table, e.RecordID, e.Action, e.Before, e.After, e.Actor, formatTime(e.Timestamp))
	return ledger.WrapStorage("append audit", err)
}

func (s queries) AuditTrail(ctx context.Context, table string, recordID int64) ([]ledger.AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, table_name, record_id, action, before_json, after_json, actor, created_at
		FROM audit_log
		WHERE table_name = ? AND record_id = ?
		ORDER BY created_at ASC, rowid ASC`, table, recordID)
	if err != nil {
		return nil, ledger.WrapStorage("audit trail", err)
	}
	defer rows.Close()

	var out []ledger.AuditEntry
	for rows.Next() {
		var (
			e  ledger.AuditEntry
			at string
		)
		if err := rows.Scan(&e.ID, &e.Table, &e.RecordID, &e.Action, &e.Before, &e.After, &e.Actor, &at); err != nil {
			return nil, ledger.WrapStorage("scan audit", err)
		}
		e.Timestamp = parseTime(at)
		out = append(out, e)
	}
	return out, ledger.WrapStorage("audit trail", rows.Err())
}

// =============================================================================
// HELPERS
// =============================================================================

func now() string { return formatTime(time.Now()) }

// timeLayout keeps every fractional digit so timestamps are fixed width
// and ORDER BY on the text is time order. RFC3339Nano trims zeros.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

// classify turns constraint violations into IntegrityError and wraps
// everything else as a storage failure.
func classify(op, kind string, id int64, err error) error {
	if isConstraintError(err) {
		return &ledger.IntegrityError{Kind: kind, ID: id, Reason: constraintReason(err)}
	}
	return ledger.WrapStorage(op, err)
}

func isConstraintError(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}

func constraintReason(err error) string {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique:
			return "name already exists"
		case sqlite3.ErrConstraintForeignKey:
			return "referenced row does not exist"
		}
	}
	return err.Error()
}

func affected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.WrapStorage("rows affected", err)
	}
	if n == 0 {
		return &ledger.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}
