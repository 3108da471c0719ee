package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashledger/ledger"
	"github.com/warp/cashledger/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// today in every test is 2025-06-15.
var fixedNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type fixture struct {
	ctx       context.Context
	mem       *store.Memory
	catalog   *ledger.Catalog
	svc       *ledger.Service
	balances  *ledger.BalanceEngine
	analytics *ledger.Analytics
	batch     *ledger.BatchCoordinator

	bank     ledger.Account
	cash     ledger.Account
	hotel    ledger.Location
	office   ledger.Location
	adelanto ledger.Category // hotel, both
	ingreso  ledger.Category // hotel, income only
	alquiler ledger.Category // office, expense only
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()
	cat := ledger.NewCatalog(mem, "PEN")
	svc := ledger.NewService(mem, nil, clock)
	balances := ledger.NewBalanceEngine(mem)

	f := &fixture{
		ctx:       ctx,
		mem:       mem,
		catalog:   cat,
		svc:       svc,
		balances:  balances,
		analytics: ledger.NewAnalytics(balances, clock),
		batch:     ledger.NewBatchCoordinator(svc),
	}

	var err error
	f.bank, err = cat.CreateAccount(ctx, "B1_BCP", ledger.AccountBank, "PEN")
	require.NoError(t, err)
	f.cash, err = cat.CreateAccount(ctx, "Efectivo_Dolares", ledger.AccountCash, "USD")
	require.NoError(t, err)
	f.hotel, err = cat.CreateLocation(ctx, "Hotel")
	require.NoError(t, err)
	f.office, err = cat.CreateLocation(ctx, "Oficina")
	require.NoError(t, err)
	f.adelanto, err = cat.CreateCategory(ctx, "Adelanto", f.hotel.ID, ledger.CategoryBoth)
	require.NoError(t, err)
	f.ingreso, err = cat.CreateCategory(ctx, "Ingreso", f.hotel.ID, ledger.CategoryIncome)
	require.NoError(t, err)
	f.alquiler, err = cat.CreateCategory(ctx, "Alquiler", f.office.ID, ledger.CategoryExpense)
	require.NoError(t, err)
	return f
}

// draft is a valid hotel movement on the bank account.
func (f *fixture) draft(date, income, expense string) ledger.Draft {
	return ledger.Draft{
		Date:       date,
		AccountID:  f.bank.ID,
		LocationID: f.hotel.ID,
		CategoryID: f.adelanto.ID,
		Income:     income,
		Expense:    expense,
	}
}

func (f *fixture) mustCreate(t *testing.T, d ledger.Draft) ledger.MovementID {
	t.Helper()
	id, err := f.svc.Create(f.ctx, d, "tester")
	require.NoError(t, err)
	return id
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func codes(err error) []string {
	var out []string
	for _, fe := range ledger.FieldErrors(err) {
		out = append(out, fe.Code)
	}
	return out
}
