/*
service.go - Movement lifecycle: create, read, edit, delete

PURPOSE:
  The only writer of movement rows. Every mutation is validated, checked
  against the reference catalog, and written together with its audit entry
  in one store transaction.

WRITE PATH (create):
  1. Validator.check: shape and business rules, all problems collected
  2. checkReferences: ids exist, are active, category fits location and side
  3. InsertMovement + AppendAudit inside WithTx
  4. BumpFavorite after commit, best-effort

  Step 4 is the one place a failure is logged and dropped: the favorites
  table is an autocomplete cache that RebuildFavorites can regenerate.

DELETE:
  Movements are hard-deleted. The DELETE audit entry keeps the last
  snapshot, so the row can still be accounted for after reconciliation.

SEE ALSO:
  - validator.go: rules 1-5
  - balance.go: reads what this file writes
  - batch.go: calls Create once per spreadsheet row
*/
package ledger

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultFavoritesLimit is used when a caller asks for a non-positive number of favorites.
const DefaultFavoritesLimit = 10

// Service manages movements on a Store.
type Service struct {
	Store     Store
	Validator Validator
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewService wires a service to a store. A nil logger is replaced with a
// no-op one and a nil clock with time.Now.
func NewService(store Store, logger *zap.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{
		Store:     store,
		Validator: NewValidator(now),
		Logger:    logger,
		Now:       now,
	}
}

// =============================================================================
// CREATE
// =============================================================================

// Create validates the draft and stores it. It returns a *ValidationError
// listing every problem when the draft is rejected; nothing is written then.
func (s *Service) Create(ctx context.Context, d Draft, actor string) (MovementID, error) {
	now := s.Now()

	var m Movement
	err := runTx(ctx, s.Store, func(st Store) error {
		parsed, fields := s.Validator.check(d)
		refFields, err := checkReferences(ctx, st, d, parsed, nil)
		if err != nil {
			return err
		}
		if err := newValidationError(append(fields, refFields...)); err != nil {
			return err
		}

		m = buildMovement(d, parsed)
		m.CreatedBy = actor
		m.CreatedAt = now

		id, err := st.InsertMovement(ctx, m)
		if err != nil {
			return err
		}
		m.ID = id
		return st.AppendAudit(ctx, newMovementAudit(AuditInsert, id, nil, &m, actor, now))
	})
	if err != nil {
		return 0, err
	}

	s.bumpFavorite(ctx, m.Description, now)
	s.Logger.Debug("movement created",
		zap.Int64("id", int64(m.ID)),
		zap.Int64("account_id", int64(m.AccountID)),
		zap.String("actor", actor))
	return m.ID, nil
}

func (s *Service) bumpFavorite(ctx context.Context, text string, at time.Time) {
	if text == "" {
		return
	}
	if err := s.Store.BumpFavorite(ctx, text, at); err != nil {
		s.Logger.Warn("favorite description not updated",
			zap.String("text", text),
			zap.Error(err))
	}
}

// =============================================================================
// READ
// =============================================================================

// Get returns one movement with its catalog display names.
func (s *Service) Get(ctx context.Context, id MovementID) (MovementView, error) {
	m, err := s.Store.GetMovement(ctx, id)
	if err != nil {
		return MovementView{}, err
	}
	names, err := loadNames(ctx, s.Store)
	if err != nil {
		return MovementView{}, err
	}
	return names.view(m), nil
}

// ListMovements searches movements, newest first. A positive Limit keeps
// only the newest rows.
func (s *Service) ListMovements(ctx context.Context, f MovementFilter) ([]MovementView, error) {
	if err := f.Period.Validate(); err != nil {
		return nil, err
	}
	ms, err := s.Store.ListMovements(ctx, f)
	if err != nil {
		return nil, err
	}
	names, err := loadNames(ctx, s.Store)
	if err != nil {
		return nil, err
	}

	sortMovements(ms)
	out := make([]MovementView, 0, len(ms))
	for i := len(ms) - 1; i >= 0; i-- {
		out = append(out, names.view(ms[i]))
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Views joins display names onto movements, keeping their order.
func (s *Service) Views(ctx context.Context, ms []Movement) ([]MovementView, error) {
	names, err := loadNames(ctx, s.Store)
	if err != nil {
		return nil, err
	}
	out := make([]MovementView, len(ms))
	for i, m := range ms {
		out[i] = names.view(m)
	}
	return out, nil
}

// CountMovementsOn counts movements booked on one day across all accounts.
func (s *Service) CountMovementsOn(ctx context.Context, day Date) (int, error) {
	return s.Store.CountMovementsOn(ctx, day)
}

// AuditTrail returns the recorded history of one movement, oldest first.
func (s *Service) AuditTrail(ctx context.Context, id MovementID) ([]AuditEntry, error) {
	return s.Store.AuditTrail(ctx, TableMovements, int64(id))
}

// =============================================================================
// UPDATE
// =============================================================================

// Update applies a patch and re-validates the merged movement. References
// that the patch leaves unchanged may be inactive; newly chosen ones may not.
func (s *Service) Update(ctx context.Context, id MovementID, p Patch, actor string) (Movement, error) {
	if p.IsEmpty() {
		return Movement{}, ErrNothingToUpdate
	}
	now := s.Now()

	var updated Movement
	err := runTx(ctx, s.Store, func(st Store) error {
		prev, err := st.GetMovement(ctx, id)
		if err != nil {
			return err
		}

		merged := p.apply(draftOf(prev))
		parsed, fields := s.Validator.check(merged)
		refFields, err := checkReferences(ctx, st, merged, parsed, &prev)
		if err != nil {
			return err
		}
		if err := newValidationError(append(fields, refFields...)); err != nil {
			return err
		}

		updated = buildMovement(merged, parsed)
		updated.ID = prev.ID
		updated.CreatedBy = prev.CreatedBy
		updated.CreatedAt = prev.CreatedAt
		updated.UpdatedAt = &now

		if err := st.UpdateMovement(ctx, updated); err != nil {
			return err
		}
		return st.AppendAudit(ctx, newMovementAudit(AuditUpdate, id, &prev, &updated, actor, now))
	})
	if err != nil {
		return Movement{}, err
	}

	s.Logger.Debug("movement updated", zap.Int64("id", int64(id)), zap.String("actor", actor))
	return updated, nil
}

// =============================================================================
// DELETE
// =============================================================================

// Delete removes a movement permanently. Its last state survives in the audit trail.
func (s *Service) Delete(ctx context.Context, id MovementID, actor string) error {
	now := s.Now()
	err := runTx(ctx, s.Store, func(st Store) error {
		prev, err := st.GetMovement(ctx, id)
		if err != nil {
			return err
		}
		if err := st.DeleteMovement(ctx, id); err != nil {
			return err
		}
		return st.AppendAudit(ctx, newMovementAudit(AuditDelete, id, &prev, nil, actor, now))
	})
	if err != nil {
		return err
	}
	s.Logger.Info("movement deleted", zap.Int64("id", int64(id)), zap.String("actor", actor))
	return nil
}

// =============================================================================
// FAVORITE DESCRIPTIONS
// =============================================================================

// ListFavorites returns autocomplete suggestions, most used first.
func (s *Service) ListFavorites(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultFavoritesLimit
	}
	favs, err := s.Store.ListFavorites(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(favs))
	for i, f := range favs {
		out[i] = f.Text
	}
	return out, nil
}

// RebuildFavorites recomputes the favorites cache from the movement history.
// LastUsed is the creation time of the newest movement with that description.
func (s *Service) RebuildFavorites(ctx context.Context) (int, error) {
	ms, err := s.Store.ListMovements(ctx, MovementFilter{})
	if err != nil {
		return 0, err
	}

	byText := make(map[string]*Favorite)
	for _, m := range ms {
		if m.Description == "" {
			continue
		}
		f, ok := byText[m.Description]
		if !ok {
			f = &Favorite{Text: m.Description}
			byText[m.Description] = f
		}
		f.Uses++
		if m.CreatedAt.After(f.LastUsed) {
			f.LastUsed = m.CreatedAt
		}
	}

	favs := make([]Favorite, 0, len(byText))
	for _, f := range byText {
		favs = append(favs, *f)
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].Text < favs[j].Text })

	if err := s.Store.ReplaceFavorites(ctx, favs); err != nil {
		return 0, err
	}
	s.Logger.Info("favorites rebuilt", zap.Int("count", len(favs)))
	return len(favs), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func buildMovement(d Draft, p parsedDraft) Movement {
	return Movement{
		Date:        p.Date,
		AccountID:   d.AccountID,
		LocationID:  d.LocationID,
		CategoryID:  d.CategoryID,
		Document:    strings.TrimSpace(d.Document),
		Responsible: strings.TrimSpace(d.Responsible),
		Description: strings.TrimSpace(d.Description),
		Income:      p.Income,
		Expense:     p.Expense,
	}
}

// checkReferences resolves the draft's catalog ids. Only storage failures are
// returned as err; everything else becomes a field error. prev is the
// movement being edited, nil on create.
func checkReferences(ctx context.Context, st Store, d Draft, p parsedDraft, prev *Movement) ([]FieldError, error) {
	var fields []FieldError

	if d.AccountID > 0 {
		a, err := st.GetAccount(ctx, d.AccountID)
		switch {
		case IsNotFound(err):
			fields = append(fields, FieldError{"account_id", CodeUnknownReference, "account does not exist"})
		case err != nil:
			return nil, err
		case !a.Status.IsActive() && (prev == nil || prev.AccountID != d.AccountID):
			fields = append(fields, FieldError{"account_id", CodeInactiveReference, "account is inactive"})
		}
	}

	if d.LocationID > 0 {
		l, err := st.GetLocation(ctx, d.LocationID)
		switch {
		case IsNotFound(err):
			fields = append(fields, FieldError{"location_id", CodeUnknownReference, "location does not exist"})
		case err != nil:
			return nil, err
		case !l.Status.IsActive() && (prev == nil || prev.LocationID != d.LocationID):
			fields = append(fields, FieldError{"location_id", CodeInactiveReference, "location is inactive"})
		}
	}

	if d.CategoryID > 0 {
		c, err := st.GetCategory(ctx, d.CategoryID)
		switch {
		case IsNotFound(err):
			fields = append(fields, FieldError{"category_id", CodeUnknownReference, "category does not exist"})
		case err != nil:
			return nil, err
		default:
			if !c.Status.IsActive() && (prev == nil || prev.CategoryID != d.CategoryID) {
				fields = append(fields, FieldError{"category_id", CodeInactiveReference, "category is inactive"})
			}
			if d.LocationID > 0 && c.LocationID != d.LocationID {
				fields = append(fields, FieldError{"category_id", CodeCategoryLocation,
					"category does not belong to the selected location"})
			}
			if (c.Kind == CategoryExpense && p.Income.IsPositive()) ||
				(c.Kind == CategoryIncome && p.Expense.IsPositive()) {
				fields = append(fields, FieldError{"category_id", CodeCategoryKind,
					"category is " + string(c.Kind) + " only"})
			}
		}
	}

	return fields, nil
}

// catalogNames maps ids to display names for read models.
type catalogNames struct {
	accounts   map[AccountID]string
	locations  map[LocationID]string
	categories map[CategoryID]string
}

func loadNames(ctx context.Context, st CatalogStore) (catalogNames, error) {
	n := catalogNames{
		accounts:   make(map[AccountID]string),
		locations:  make(map[LocationID]string),
		categories: make(map[CategoryID]string),
	}
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return n, err
	}
	for _, a := range accounts {
		n.accounts[a.ID] = a.Name
	}
	locations, err := st.ListLocations(ctx)
	if err != nil {
		return n, err
	}
	for _, l := range locations {
		n.locations[l.ID] = l.Name
	}
	categories, err := st.ListCategories(ctx, 0)
	if err != nil {
		return n, err
	}
	for _, c := range categories {
		n.categories[c.ID] = c.Name
	}
	return n, nil
}

func (n catalogNames) view(m Movement) MovementView {
	return MovementView{
		Movement:     m,
		AccountName:  n.accounts[m.AccountID],
		LocationName: n.locations[m.LocationID],
		CategoryName: n.categories[m.CategoryID],
	}
}

// sortMovements puts movements in (date, id) order.
func sortMovements(ms []Movement) {
	sort.SliceStable(ms, func(i, j int) bool { return ms[i].Less(ms[j]) })
}
