package ledger_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashledger/ledger"
	"github.com/warp/cashledger/ledger/store"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestCatalog_CreateAccount_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.CreateAccount(f.ctx, " x ", "wallet", "XYZ")
	assert.ElementsMatch(t,
		[]string{ledger.CodeInvalidValue, ledger.CodeInvalidValue, ledger.CodeInvalidValue}, codes(err))

	_, err = f.catalog.CreateAccount(f.ctx, strings.Repeat("a", 101), ledger.AccountBank, "")
	assert.Equal(t, []string{ledger.CodeInvalidValue}, codes(err))
}

func TestCatalog_CreateAccount_DefaultCurrency(t *testing.T) {
	f := newFixture(t)
	a, err := f.catalog.CreateAccount(f.ctx, "Caja Chica", ledger.AccountCash, "")
	require.NoError(t, err)
	assert.Equal(t, "PEN", a.Currency)
	assert.Equal(t, ledger.StatusActive, a.Status)
}

func TestCatalog_DuplicateNames_IgnoreCase(t *testing.T) {
	f := newFixture(t)

	_, err := f.catalog.CreateAccount(f.ctx, "b1_bcp", ledger.AccountBank, "PEN")
	assert.ErrorIs(t, err, ledger.ErrIntegrity)

	_, err = f.catalog.CreateLocation(f.ctx, "HOTEL")
	assert.ErrorIs(t, err, ledger.ErrIntegrity)

	_, err = f.catalog.CreateCategory(f.ctx, "adelanto", f.hotel.ID, "")
	assert.ErrorIs(t, err, ledger.ErrIntegrity)

	// Same category name under another location is fine.
	_, err = f.catalog.CreateCategory(f.ctx, "Adelanto", f.office.ID, "")
	assert.NoError(t, err)
}

func TestCatalog_UpdateAccount(t *testing.T) {
	f := newFixture(t)
	name, kind := "BCP Soles", ledger.AccountCash

	a, err := f.catalog.UpdateAccount(f.ctx, f.bank.ID, ledger.AccountUpdate{Name: &name, Kind: &kind})
	require.NoError(t, err)
	assert.Equal(t, "BCP Soles", a.Name)
	assert.Equal(t, ledger.AccountCash, a.Kind)

	taken := "efectivo_dolares"
	_, err = f.catalog.UpdateAccount(f.ctx, f.bank.ID, ledger.AccountUpdate{Name: &taken})
	assert.ErrorIs(t, err, ledger.ErrIntegrity)
}

func TestCatalog_ListActiveOnly(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.catalog.DeactivateAccount(f.ctx, f.cash.ID))

	active, err := f.catalog.Accounts(f.ctx, false)
	require.NoError(t, err)
	all, err := f.catalog.Accounts(f.ctx, true)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Len(t, all, 2)

	require.NoError(t, f.catalog.ReactivateAccount(f.ctx, f.cash.ID))
	active, err = f.catalog.Accounts(f.ctx, false)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

// =============================================================================
// LOCATIONS AND CATEGORIES
// =============================================================================

func TestCatalog_DeactivateLocation_WithActiveCategories_Refused(t *testing.T) {
	f := newFixture(t)

	err := f.catalog.DeactivateLocation(f.ctx, f.hotel.ID, false)

	var ierr *ledger.IntegrityError
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, "location", ierr.Kind)
	loc, err := f.catalog.GetLocation(f.ctx, f.hotel.ID)
	require.NoError(t, err)
	assert.True(t, loc.Status.IsActive())
}

func TestCatalog_DeactivateLocation_KeepsBalancesAndMovements(t *testing.T) {
	// GIVEN: Movements recorded against hotel categories
	// WHEN: The hotel is deactivated with its categories
	// THEN: Balance and movement retrieval are unchanged
	f := newFixture(t)
	id := f.mustCreate(t, f.draft("2025-06-01", "250", ""))
	f.mustCreate(t, f.draft("2025-06-02", "", "50"))
	before, err := f.balances.CurrentBalance(f.ctx, f.bank.ID)
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeactivateLocation(f.ctx, f.hotel.ID, true))

	after, err := f.balances.CurrentBalance(f.ctx, f.bank.ID)
	require.NoError(t, err)
	assert.True(t, before.Equal(after))

	m, err := f.svc.Get(f.ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Hotel", m.LocationName)

	cats, err := f.catalog.Categories(f.ctx, f.hotel.ID, false)
	require.NoError(t, err)
	assert.Empty(t, cats)

	// New movements can no longer use it.
	_, err = f.svc.Create(f.ctx, f.draft("2025-06-03", "1", ""), "maria")
	assert.Contains(t, codes(err), ledger.CodeInactiveReference)
}

func TestCatalog_CreateCategory_NeedsActiveLocation(t *testing.T) {
	f := newFixture(t)
	empty, err := f.catalog.CreateLocation(f.ctx, "Amauta")
	require.NoError(t, err)
	require.NoError(t, f.catalog.DeactivateLocation(f.ctx, empty.ID, false))

	_, err = f.catalog.CreateCategory(f.ctx, "Gas Tiendas", empty.ID, ledger.CategoryExpense)
	assert.Equal(t, []string{ledger.CodeInactiveReference}, codes(err))

	_, err = f.catalog.CreateCategory(f.ctx, "Gas Tiendas", 999, ledger.CategoryExpense)
	assert.Equal(t, []string{ledger.CodeUnknownReference}, codes(err))
}

func TestCatalog_ReactivateCategory_UnderInactiveLocation_Refused(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.catalog.DeactivateLocation(f.ctx, f.office.ID, true))

	err := f.catalog.ReactivateCategory(f.ctx, f.alquiler.ID)
	assert.ErrorIs(t, err, ledger.ErrIntegrity)

	require.NoError(t, f.catalog.ReactivateLocation(f.ctx, f.office.ID))
	assert.NoError(t, f.catalog.ReactivateCategory(f.ctx, f.alquiler.ID))
}

// =============================================================================
// SEED
// =============================================================================

func TestSeedDefaults_OnlyOnEmptyCatalog(t *testing.T) {
	ctx := newFixture(t).ctx
	mem := store.NewMemory()
	cat := ledger.NewCatalog(mem, "")

	res, err := ledger.SeedDefaults(ctx, cat)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Accounts)
	assert.Equal(t, 5, res.Locations)
	assert.Equal(t, 33, res.Categories)

	again, err := ledger.SeedDefaults(ctx, cat)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	accounts, err := cat.Accounts(ctx, true)
	require.NoError(t, err)
	assert.Len(t, accounts, 4)
}
