// Package store provides an in-memory ledger.Store.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/warp/cashledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every table in maps guarded by one lock. It implements
// ledger.TxStore; WithTx snapshots the tables and restores them on error.
type Memory struct {
	ops
	mu sync.RWMutex
	t  *tables

	// Fail, when set, is consulted before every operation with the method
	// name. A non-nil result is returned as a storage error. Tests use it
	// to simulate an unavailable database.
	Fail func(op string) error
}

type tables struct {
	accounts   map[ledger.AccountID]ledger.Account
	locations  map[ledger.LocationID]ledger.Location
	categories map[ledger.CategoryID]ledger.Category
	movements  map[ledger.MovementID]ledger.Movement
	favorites  map[string]ledger.Favorite
	audit      []ledger.AuditEntry

	nextAccount  ledger.AccountID
	nextLocation ledger.LocationID
	nextCategory ledger.CategoryID
	nextMovement ledger.MovementID
}

func newTables() *tables {
	return &tables{
		accounts:   make(map[ledger.AccountID]ledger.Account),
		locations:  make(map[ledger.LocationID]ledger.Location),
		categories: make(map[ledger.CategoryID]ledger.Category),
		movements:  make(map[ledger.MovementID]ledger.Movement),
		favorites:  make(map[string]ledger.Favorite),
	}
}

func NewMemory() *Memory {
	m := &Memory{t: newTables()}
	m.ops = ops{run: m.locked}
	return m
}

var (
	_ ledger.TxStore = (*Memory)(nil)
	_ ledger.Store   = ops{}
)

func (m *Memory) fail(op string) error {
	if m.Fail == nil {
		return nil
	}
	return ledger.WrapStorage(op, m.Fail(op))
}

// locked runs fn under the store lock, shared for reads.
func (m *Memory) locked(op string, write bool, fn func(t *tables) error) error {
	if err := m.fail(op); err != nil {
		return err
	}
	if write {
		m.mu.Lock()
		defer m.mu.Unlock()
	} else {
		m.mu.RLock()
		defer m.mu.RUnlock()
	}
	return fn(m.t)
}

// unlocked is used inside WithTx, which already holds the lock.
func (m *Memory) unlocked(op string, _ bool, fn func(t *tables) error) error {
	if err := m.fail(op); err != nil {
		return err
	}
	return fn(m.t)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.t.clone()
	if err := fn(ops{run: m.unlocked}); err != nil {
		m.t = saved
		return err
	}
	return nil
}

func (t *tables) clone() *tables {
	c := &tables{
		accounts:     make(map[ledger.AccountID]ledger.Account, len(t.accounts)),
		locations:    make(map[ledger.LocationID]ledger.Location, len(t.locations)),
		categories:   make(map[ledger.CategoryID]ledger.Category, len(t.categories)),
		movements:    make(map[ledger.MovementID]ledger.Movement, len(t.movements)),
		favorites:    make(map[string]ledger.Favorite, len(t.favorites)),
		audit:        append([]ledger.AuditEntry{}, t.audit...),
		nextAccount:  t.nextAccount,
		nextLocation: t.nextLocation,
		nextCategory: t.nextCategory,
		nextMovement: t.nextMovement,
	}
	for k, v := range t.accounts {
		c.accounts[k] = v
	}
	for k, v := range t.locations {
		c.locations[k] = v
	}
	for k, v := range t.categories {
		c.categories[k] = v
	}
	for k, v := range t.movements {
		c.movements[k] = v
	}
	for k, v := range t.favorites {
		c.favorites[k] = v
	}
	return c
}

// =============================================================================
// CATALOG
// =============================================================================

func (t *tables) insertAccount(a ledger.Account) (ledger.AccountID, error) {
	for _, other := range t.accounts {
		if strings.EqualFold(other.Name, a.Name) {
			return 0, &ledger.IntegrityError{Kind: "account", Reason: "name '" + a.Name + "' already exists"}
		}
	}
	t.nextAccount++
	a.ID = t.nextAccount
	t.accounts[a.ID] = a
	return a.ID, nil
}

func (t *tables) updateAccount(a ledger.Account) error {
	if _, ok := t.accounts[a.ID]; !ok {
		return &ledger.NotFoundError{Kind: "account", ID: int64(a.ID)}
	}
	t.accounts[a.ID] = a
	return nil
}

func (t *tables) getAccount(id ledger.AccountID) (ledger.Account, error) {
	a, ok := t.accounts[id]
	if !ok {
		return ledger.Account{}, &ledger.NotFoundError{Kind: "account", ID: int64(id)}
	}
	return a, nil
}

func (t *tables) listAccounts() []ledger.Account {
	out := make([]ledger.Account, 0, len(t.accounts))
	for _, a := range t.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name, int64(out[i].ID), int64(out[j].ID)) })
	return out
}

func (t *tables) insertLocation(l ledger.Location) (ledger.LocationID, error) {
	for _, other := range t.locations {
		if strings.EqualFold(other.Name, l.Name) {
			return 0, &ledger.IntegrityError{Kind: "location", Reason: "name '" + l.Name + "' already exists"}
		}
	}
	t.nextLocation++
	l.ID = t.nextLocation
	t.locations[l.ID] = l
	return l.ID, nil
}

func (t *tables) updateLocation(l ledger.Location) error {
	if _, ok := t.locations[l.ID]; !ok {
		return &ledger.NotFoundError{Kind: "location", ID: int64(l.ID)}
	}
	t.locations[l.ID] = l
	return nil
}

func (t *tables) getLocation(id ledger.LocationID) (ledger.Location, error) {
	l, ok := t.locations[id]
	if !ok {
		return ledger.Location{}, &ledger.NotFoundError{Kind: "location", ID: int64(id)}
	}
	return l, nil
}

func (t *tables) listLocations() []ledger.Location {
	out := make([]ledger.Location, 0, len(t.locations))
	for _, l := range t.locations {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name, int64(out[i].ID), int64(out[j].ID)) })
	return out
}

func (t *tables) insertCategory(c ledger.Category) (ledger.CategoryID, error) {
	if _, ok := t.locations[c.LocationID]; !ok {
		return 0, &ledger.NotFoundError{Kind: "location", ID: int64(c.LocationID)}
	}
	for _, other := range t.categories {
		if other.LocationID == c.LocationID && strings.EqualFold(other.Name, c.Name) {
			return 0, &ledger.IntegrityError{Kind: "category", Reason: "name '" + c.Name + "' already exists in this location"}
		}
	}
	t.nextCategory++
	c.ID = t.nextCategory
	t.categories[c.ID] = c
	return c.ID, nil
}

func (t *tables) updateCategory(c ledger.Category) error {
	if _, ok := t.categories[c.ID]; !ok {
		return &ledger.NotFoundError{Kind: "category", ID: int64(c.ID)}
	}
	t.categories[c.ID] = c
	return nil
}

func (t *tables) getCategory(id ledger.CategoryID) (ledger.Category, error) {
	c, ok := t.categories[id]
	if !ok {
		return ledger.Category{}, &ledger.NotFoundError{Kind: "category", ID: int64(id)}
	}
	return c, nil
}

func (t *tables) listCategories(locationID ledger.LocationID) []ledger.Category {
	var out []ledger.Category
	for _, c := range t.categories {
		if locationID == 0 || c.LocationID == locationID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessName(out[i].Name, out[j].Name, int64(out[i].ID), int64(out[j].ID)) })
	return out
}

func lessName(a, b string, idA, idB int64) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return idA < idB
}

// =============================================================================
// MOVEMENTS
// =============================================================================

func (t *tables) insertMovement(mv ledger.Movement) ledger.MovementID {
	t.nextMovement++
	mv.ID = t.nextMovement
	t.movements[mv.ID] = mv
	return mv.ID
}

func (t *tables) getMovement(id ledger.MovementID) (ledger.Movement, error) {
	mv, ok := t.movements[id]
	if !ok {
		return ledger.Movement{}, &ledger.NotFoundError{Kind: "movement", ID: int64(id)}
	}
	return mv, nil
}

func (t *tables) updateMovement(mv ledger.Movement) error {
	if _, ok := t.movements[mv.ID]; !ok {
		return &ledger.NotFoundError{Kind: "movement", ID: int64(mv.ID)}
	}
	t.movements[mv.ID] = mv
	return nil
}

func (t *tables) deleteMovement(id ledger.MovementID) error {
	if _, ok := t.movements[id]; !ok {
		return &ledger.NotFoundError{Kind: "movement", ID: int64(id)}
	}
	delete(t.movements, id)
	return nil
}

func (t *tables) listMovements(f ledger.MovementFilter) []ledger.Movement {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	var out []ledger.Movement
	for _, mv := range t.movements {
		if f.AccountID != 0 && mv.AccountID != f.AccountID {
			continue
		}
		if f.LocationID != 0 && mv.LocationID != f.LocationID {
			continue
		}
		if !f.Period.Contains(mv.Date) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(mv.Description), text) {
			continue
		}
		out = append(out, mv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (t *tables) countOn(day ledger.Date) int {
	n := 0
	for _, mv := range t.movements {
		if mv.Date.Equal(day) {
			n++
		}
	}
	return n
}

// =============================================================================
// FAVORITES AND AUDIT
// =============================================================================

func (t *tables) bumpFavorite(text string, at time.Time) {
	f := t.favorites[text]
	f.Text = text
	f.Uses++
	f.LastUsed = at
	t.favorites[text] = f
}

func (t *tables) listFavorites(limit int) []ledger.Favorite {
	out := make([]ledger.Favorite, 0, len(t.favorites))
	for _, f := range t.favorites {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		if !out[i].LastUsed.Equal(out[j].LastUsed) {
			return out[i].LastUsed.After(out[j].LastUsed)
		}
		return out[i].Text < out[j].Text
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (t *tables) replaceFavorites(favs []ledger.Favorite) {
	t.favorites = make(map[string]ledger.Favorite, len(favs))
	for _, f := range favs {
		t.favorites[f.Text] = f
	}
}

func (t *tables) auditTrail(table string, recordID int64) []ledger.AuditEntry {
	var out []ledger.AuditEntry
	for _, e := range t.audit {
		if e.Table == table && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out
}

// =============================================================================
// STORE METHODS
// =============================================================================

// ops implements ledger.Store over a runner, so the locked store and the
// in-transaction view share one set of methods.
type ops struct {
	run func(op string, write bool, fn func(t *tables) error) error
}

func (o ops) InsertAccount(_ context.Context, a ledger.Account) (id ledger.AccountID, err error) {
	err = o.run("InsertAccount", true, func(t *tables) error {
		id, err = t.insertAccount(a)
		return err
	})
	return id, err
}

func (o ops) UpdateAccount(_ context.Context, a ledger.Account) error {
	return o.run("UpdateAccount", true, func(t *tables) error { return t.updateAccount(a) })
}

func (o ops) GetAccount(_ context.Context, id ledger.AccountID) (a ledger.Account, err error) {
	err = o.run("GetAccount", false, func(t *tables) error {
		a, err = t.getAccount(id)
		return err
	})
	return a, err
}

func (o ops) ListAccounts(_ context.Context) (out []ledger.Account, err error) {
	err = o.run("ListAccounts", false, func(t *tables) error {
		out = t.listAccounts()
		return nil
	})
	return out, err
}

func (o ops) InsertLocation(_ context.Context, l ledger.Location) (id ledger.LocationID, err error) {
	err = o.run("InsertLocation", true, func(t *tables) error {
		id, err = t.insertLocation(l)
		return err
	})
	return id, err
}

func (o ops) UpdateLocation(_ context.Context, l ledger.Location) error {
	return o.run("UpdateLocation", true, func(t *tables) error { return t.updateLocation(l) })
}

func (o ops) GetLocation(_ context.Context, id ledger.LocationID) (l ledger.Location, err error) {
	err = o.run("GetLocation", false, func(t *tables) error {
		l, err = t.getLocation(id)
		return err
	})
	return l, err
}

func (o ops) ListLocations(_ context.Context) (out []ledger.Location, err error) {
	err = o.run("ListLocations", false, func(t *tables) error {
		out = t.listLocations()
		return nil
	})
	return out, err
}

func (o ops) InsertCategory(_ context.Context, c ledger.Category) (id ledger.CategoryID, err error) {
	err = o.run("InsertCategory", true, func(t *tables) error {
		id, err = t.insertCategory(c)
		return err
	})
	return id, err
}

func (o ops) UpdateCategory(_ context.Context, c ledger.Category) error {
	return o.run("UpdateCategory", true, func(t *tables) error { return t.updateCategory(c) })
}

func (o ops) GetCategory(_ context.Context, id ledger.CategoryID) (c ledger.Category, err error) {
	err = o.run("GetCategory", false, func(t *tables) error {
		c, err = t.getCategory(id)
		return err
	})
	return c, err
}

func (o ops) ListCategories(_ context.Context, locationID ledger.LocationID) (out []ledger.Category, err error) {
	err = o.run("ListCategories", false, func(t *tables) error {
		out = t.listCategories(locationID)
		return nil
	})
	return out, err
}

func (o ops) InsertMovement(_ context.Context, mv ledger.Movement) (id ledger.MovementID, err error) {
	err = o.run("InsertMovement", true, func(t *tables) error {
		id = t.insertMovement(mv)
		return nil
	})
	return id, err
}

func (o ops) GetMovement(_ context.Context, id ledger.MovementID) (mv ledger.Movement, err error) {
	err = o.run("GetMovement", false, func(t *tables) error {
		mv, err = t.getMovement(id)
		return err
	})
	return mv, err
}

func (o ops) UpdateMovement(_ context.Context, mv ledger.Movement) error {
	return o.run("UpdateMovement", true, func(t *tables) error { return t.updateMovement(mv) })
}

func (o ops) DeleteMovement(_ context.Context, id ledger.MovementID) error {
	return o.run("DeleteMovement", true, func(t *tables) error { return t.deleteMovement(id) })
}

func (o ops) ListMovements(_ context.Context, f ledger.MovementFilter) (out []ledger.Movement, err error) {
	err = o.run("ListMovements", false, func(t *tables) error {
		out = t.listMovements(f)
		return nil
	})
	return out, err
}

func (o ops) CountMovementsOn(_ context.Context, day ledger.Date) (n int, err error) {
	err = o.run("CountMovementsOn", false, func(t *tables) error {
		n = t.countOn(day)
		return nil
	})
	return n, err
}

func (o ops) BumpFavorite(_ context.Context, text string, at time.Time) error {
	return o.run("BumpFavorite", true, func(t *tables) error {
		t.bumpFavorite(text, at)
		return nil
	})
}

func (o ops) ListFavorites(_ context.Context, limit int) (out []ledger.Favorite, err error) {
	err = o.run("ListFavorites", false, func(t *tables) error {
		out = t.listFavorites(limit)
		return nil
	})
	return out, err
}

func (o ops) ReplaceFavorites(_ context.Context, favs []ledger.Favorite) error {
	return o.run("ReplaceFavorites", true, func(t *tables) error {
		t.replaceFavorites(favs)
		return nil
	})
}

func (o ops) AppendAudit(_ context.Context, e ledger.AuditEntry) error {
	return o.run("AppendAudit", true, func(t *tables) error {
		t.audit = append(t.audit, e)
		return nil
	})
}

func (o ops) AuditTrail(_ context.Context, table string, recordID int64) (out []ledger.AuditEntry, err error) {
	err = o.run("AuditTrail", false, func(t *tables) error {
		out = t.auditTrail(table, recordID)
		return nil
	})
	return out, err
}
