/*
catalog.go - Reference catalog: accounts, locations, categories

PURPOSE:
  Owns the lookup tables movements point at. Rows are created by an admin
  and can be deactivated or reactivated, never removed: historical movements
  keep referencing them.

RULES:
  - Names are trimmed and must be 2..100 characters.
  - Account and location names are unique ignoring case, inactive rows included.
  - Category names are unique per location ignoring case.
  - A category needs an active location when it is created.
  - A location with active categories cannot be deactivated unless the
    caller asks for the categories to be deactivated with it.

SEE ALSO:
  - seed.go: default catalog for a fresh install
  - service.go: checks references against this catalog
*/
package ledger

import (
	"context"
	"strings"
)

const (
	minNameLen = 2
	maxNameLen = 100
)

// Catalog manages reference data on a Store.
type Catalog struct {
	Store           Store
	DefaultCurrency string
}

func NewCatalog(store Store, defaultCurrency string) *Catalog {
	if defaultCurrency == "" {
		defaultCurrency = "PEN"
	}
	return &Catalog{Store: store, DefaultCurrency: strings.ToUpper(defaultCurrency)}
}

// AccountUpdate lists the mutable account fields. Nil means unchanged.
type AccountUpdate struct {
	Name *string
	Kind *AccountKind
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (c *Catalog) CreateAccount(ctx context.Context, name string, kind AccountKind, currency string) (Account, error) {
	name = strings.TrimSpace(name)
	if currency == "" {
		currency = c.DefaultCurrency
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))

	var fields []FieldError
	checkName(name, &fields)
	if !kind.Valid() {
		fields = append(fields, FieldError{"kind", CodeInvalidValue, "kind must be bank or cash"})
	}
	if !KnownCurrency(currency) {
		fields = append(fields, FieldError{"currency", CodeInvalidValue, "unknown currency code"})
	}
	if err := newValidationError(fields); err != nil {
		return Account{}, err
	}

	existing, err := c.Store.ListAccounts(ctx)
	if err != nil {
		return Account{}, err
	}
	for _, a := range existing {
		if strings.EqualFold(a.Name, name) {
			return Account{}, &IntegrityError{Kind: "account", Reason: "name '" + name + "' already exists"}
		}
	}

	a := Account{Name: name, Kind: kind, Currency: currency, Status: StatusActive}
	id, err := c.Store.InsertAccount(ctx, a)
	if err != nil {
		return Account{}, err
	}
	a.ID = id
	return a, nil
}

func (c *Catalog) GetAccount(ctx context.Context, id AccountID) (Account, error) {
	return c.Store.GetAccount(ctx, id)
}

// Accounts lists accounts ordered by name; inactive ones only when asked.
func (c *Catalog) Accounts(ctx context.Context, includeInactive bool) ([]Account, error) {
	all, err := c.Store.ListAccounts(ctx)
	if err != nil || includeInactive {
		return all, err
	}
	active := make([]Account, 0, len(all))
	for _, a := range all {
		if a.Status.IsActive() {
			active = append(active, a)
		}
	}
	return active, nil
}

func (c *Catalog) UpdateAccount(ctx context.Context, id AccountID, upd AccountUpdate) (Account, error) {
	a, err := c.Store.GetAccount(ctx, id)
	if err != nil {
		return Account{}, err
	}

	var fields []FieldError
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		checkName(name, &fields)
		if len(fields) == 0 && !strings.EqualFold(name, a.Name) {
			existing, err := c.Store.ListAccounts(ctx)
			if err != nil {
				return Account{}, err
			}
			for _, other := range existing {
				if other.ID != id && strings.EqualFold(other.Name, name) {
					return Account{}, &IntegrityError{Kind: "account", ID: int64(id), Reason: "name '" + name + "' already exists"}
				}
			}
		}
		a.Name = name
	}
	if upd.Kind != nil {
		if !upd.Kind.Valid() {
			fields = append(fields, FieldError{"kind", CodeInvalidValue, "kind must be bank or cash"})
		}
		a.Kind = *upd.Kind
	}
	if err := newValidationError(fields); err != nil {
		return Account{}, err
	}

	if err := c.Store.UpdateAccount(ctx, a); err != nil {
		return Account{}, err
	}
	return a, nil
}

// DeactivateAccount soft-deletes an account. Its movements and balance stay readable.
func (c *Catalog) DeactivateAccount(ctx context.Context, id AccountID) error {
	return c.setAccountStatus(ctx, id, StatusInactive)
}

func (c *Catalog) ReactivateAccount(ctx context.Context, id AccountID) error {
	return c.setAccountStatus(ctx, id, StatusActive)
}

func (c *Catalog) setAccountStatus(ctx context.Context, id AccountID, s Status) error {
	a, err := c.Store.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if a.Status == s {
		return nil
	}
	a.Status = s
	return c.Store.UpdateAccount(ctx, a)
}

// =============================================================================
// LOCATIONS
// =============================================================================

func (c *Catalog) CreateLocation(ctx context.Context, name string) (Location, error) {
	name = strings.TrimSpace(name)
	var fields []FieldError
	checkName(name, &fields)
	if err := newValidationError(fields); err != nil {
		return Location{}, err
	}

	existing, err := c.Store.ListLocations(ctx)
	if err != nil {
		return Location{}, err
	}
	for _, l := range existing {
		if strings.EqualFold(l.Name, name) {
			return Location{}, &IntegrityError{Kind: "location", Reason: "name '" + name + "' already exists"}
		}
	}

	l := Location{Name: name, Status: StatusActive}
	id, err := c.Store.InsertLocation(ctx, l)
	if err != nil {
		return Location{}, err
	}
	l.ID = id
	return l, nil
}

func (c *Catalog) GetLocation(ctx context.Context, id LocationID) (Location, error) {
	return c.Store.GetLocation(ctx, id)
}

func (c *Catalog) Locations(ctx context.Context, includeInactive bool) ([]Location, error) {
	all, err := c.Store.ListLocations(ctx)
	if err != nil || includeInactive {
		return all, err
	}
	active := make([]Location, 0, len(all))
	for _, l := range all {
		if l.Status.IsActive() {
			active = append(active, l)
		}
	}
	return active, nil
}

// DeactivateLocation soft-deletes a location. With active categories still
// under it the call fails with an IntegrityError, unless cascade is set, in
// which case those categories are soft-deleted as well.
func (c *Catalog) DeactivateLocation(ctx context.Context, id LocationID, cascade bool) error {
	l, err := c.Store.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	cats, err := c.Store.ListCategories(ctx, id)
	if err != nil {
		return err
	}
	var active []Category
	for _, cat := range cats {
		if cat.Status.IsActive() {
			active = append(active, cat)
		}
	}
	if len(active) > 0 && !cascade {
		return &IntegrityError{Kind: "location", ID: int64(id), Reason: "location still has active categories"}
	}

	write := func(s Store) error {
		for _, cat := range active {
			cat.Status = StatusInactive
			if err := s.UpdateCategory(ctx, cat); err != nil {
				return err
			}
		}
		l.Status = StatusInactive
		return s.UpdateLocation(ctx, l)
	}
	return runTx(ctx, c.Store, write)
}

func (c *Catalog) ReactivateLocation(ctx context.Context, id LocationID) error {
	l, err := c.Store.GetLocation(ctx, id)
	if err != nil {
		return err
	}
	if l.Status.IsActive() {
		return nil
	}
	l.Status = StatusActive
	return c.Store.UpdateLocation(ctx, l)
}

// =============================================================================
// CATEGORIES
// =============================================================================

func (c *Catalog) CreateCategory(ctx context.Context, name string, locationID LocationID, kind CategoryKind) (Category, error) {
	name = strings.TrimSpace(name)
	if kind == "" {
		kind = CategoryBoth
	}

	var fields []FieldError
	checkName(name, &fields)
	if !kind.Valid() {
		fields = append(fields, FieldError{"kind", CodeInvalidValue, "kind must be income, expense or both"})
	}
	if locationID <= 0 {
		fields = append(fields, FieldError{"location_id", CodeRequired, "select a location"})
	}
	if err := newValidationError(fields); err != nil {
		return Category{}, err
	}

	loc, err := c.Store.GetLocation(ctx, locationID)
	if err != nil {
		if IsNotFound(err) {
			return Category{}, newValidationError([]FieldError{{"location_id", CodeUnknownReference, "location does not exist"}})
		}
		return Category{}, err
	}
	if !loc.Status.IsActive() {
		return Category{}, newValidationError([]FieldError{{"location_id", CodeInactiveReference, "location is inactive"}})
	}

	siblings, err := c.Store.ListCategories(ctx, locationID)
	if err != nil {
		return Category{}, err
	}
	for _, s := range siblings {
		if strings.EqualFold(s.Name, name) {
			return Category{}, &IntegrityError{Kind: "category", Reason: "name '" + name + "' already exists in this location"}
		}
	}

	cat := Category{Name: name, LocationID: locationID, Kind: kind, Status: StatusActive}
	id, err := c.Store.InsertCategory(ctx, cat)
	if err != nil {
		return Category{}, err
	}
	cat.ID = id
	return cat, nil
}

func (c *Catalog) GetCategory(ctx context.Context, id CategoryID) (Category, error) {
	return c.Store.GetCategory(ctx, id)
}

// Categories lists categories of one location (0 for all), ordered by name.
func (c *Catalog) Categories(ctx context.Context, locationID LocationID, includeInactive bool) ([]Category, error) {
	all, err := c.Store.ListCategories(ctx, locationID)
	if err != nil || includeInactive {
		return all, err
	}
	active := make([]Category, 0, len(all))
	for _, cat := range all {
		if cat.Status.IsActive() {
			active = append(active, cat)
		}
	}
	return active, nil
}

func (c *Catalog) DeactivateCategory(ctx context.Context, id CategoryID) error {
	cat, err := c.Store.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if !cat.Status.IsActive() {
		return nil
	}
	cat.Status = StatusInactive
	return c.Store.UpdateCategory(ctx, cat)
}

// ReactivateCategory fails with an IntegrityError while its location is inactive.
func (c *Catalog) ReactivateCategory(ctx context.Context, id CategoryID) error {
	cat, err := c.Store.GetCategory(ctx, id)
	if err != nil {
		return err
	}
	if cat.Status.IsActive() {
		return nil
	}
	loc, err := c.Store.GetLocation(ctx, cat.LocationID)
	if err != nil {
		return err
	}
	if !loc.Status.IsActive() {
		return &IntegrityError{Kind: "category", ID: int64(id), Reason: "its location is inactive"}
	}
	cat.Status = StatusActive
	return c.Store.UpdateCategory(ctx, cat)
}

func checkName(name string, fields *[]FieldError) {
	switch n := len([]rune(name)); {
	case n == 0:
		*fields = append(*fields, FieldError{"name", CodeRequired, "name cannot be empty"})
	case n < minNameLen:
		*fields = append(*fields, FieldError{"name", CodeInvalidValue, "name must be at least 2 characters"})
	case n > maxNameLen:
		*fields = append(*fields, FieldError{"name", CodeInvalidValue, "name is too long (max 100 characters)"})
	}
}
