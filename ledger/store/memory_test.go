package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashledger/ledger"
	"github.com/warp/cashledger/ledger/store"
)

func movement(day string, account ledger.AccountID, income int64) ledger.Movement {
	return ledger.Movement{
		Date:      ledger.MustParseDate(day),
		AccountID: account,
		Income:    decimal.NewFromInt(income),
		Expense:   decimal.Zero,
	}
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that inserts then fails
	// THEN: The insert and the id sequence are rolled back
	ctx := context.Background()
	mem := store.NewMemory()

	err := mem.WithTx(ctx, func(s ledger.Store) error {
		_, err := s.InsertMovement(ctx, movement("2025-06-01", 1, 10))
		require.NoError(t, err)
		return errors.New("boom")
	})
	require.Error(t, err)

	all, err := mem.ListMovements(ctx, ledger.MovementFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)

	id, err := mem.InsertMovement(ctx, movement("2025-06-01", 1, 10))
	require.NoError(t, err)
	assert.Equal(t, ledger.MovementID(1), id)
}

func TestMemory_ListMovements_OrderedByDateThenID(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	for _, day := range []string{"2025-06-03", "2025-06-01", "2025-06-03", "2025-06-02"} {
		_, err := mem.InsertMovement(ctx, movement(day, 1, 1))
		require.NoError(t, err)
	}

	got, err := mem.ListMovements(ctx, ledger.MovementFilter{AccountID: 1})
	require.NoError(t, err)
	var ids []ledger.MovementID
	for _, m := range got {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []ledger.MovementID{2, 4, 1, 3}, ids)
}

func TestMemory_Favorites_RankedByUsesThenRecency(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, mem.BumpFavorite(ctx, "Pan", t0))
	require.NoError(t, mem.BumpFavorite(ctx, "Gas", t0.Add(time.Hour)))
	require.NoError(t, mem.BumpFavorite(ctx, "Luz", t0.Add(2*time.Hour)))
	require.NoError(t, mem.BumpFavorite(ctx, "Pan", t0.Add(3*time.Hour)))

	favs, err := mem.ListFavorites(ctx, 10)
	require.NoError(t, err)
	require.Len(t, favs, 3)
	assert.Equal(t, "Pan", favs[0].Text)
	assert.Equal(t, 2, favs[0].Uses)
	assert.Equal(t, "Luz", favs[1].Text)
	assert.Equal(t, "Gas", favs[2].Text)
}

func TestMemory_NotFound(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()

	_, err := mem.GetMovement(ctx, 7)
	assert.True(t, ledger.IsNotFound(err))
	assert.True(t, ledger.IsNotFound(mem.DeleteMovement(ctx, 7)))
	_, err = mem.GetAccount(ctx, 1)
	assert.True(t, ledger.IsNotFound(err))
}
