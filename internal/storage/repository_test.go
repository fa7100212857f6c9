package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"farmbook/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "farm.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestUser(t *testing.T, repo *SQLiteRepository, email string) int64 {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), email, "Test Farmer", "hash")
	require.NoError(t, err)
	return u.ID
}

func ptr[T any](v T) *T { return &v }

type farm struct {
	field   core.Field
	crop    core.Crop
	harvest core.Harvest
}

func seedFarm(t *testing.T, repo *SQLiteRepository, userID int64) farm {
	t.Helper()
	ctx := context.Background()

	f, err := repo.CreateField(ctx, userID, core.Field{Name: "North Field", AreaHa: ptr(5.2), Season: "2024 Long Rains"})
	require.NoError(t, err)
	c, err := repo.CreateCrop(ctx, userID, core.Crop{FieldID: f.ID, Name: "Maize", Variety: "Hybrid 511", Season: "2024 Long Rains",
		PlantingDate: core.NewDate(2024, 3, 15)})
	require.NoError(t, err)
	h, err := repo.CreateHarvest(ctx, userID, core.Harvest{CropID: c.ID, HarvestedOn: core.NewDate(2024, 7, 20),
		Quantity: 500, Unit: core.UnitKg, QualityGrade: core.GradeA, Season: "2024 Long Rains"})
	require.NoError(t, err)
	return farm{field: f, crop: c, harvest: h}
}

func TestRepository_EmptyUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "empty@example.com")

	stats, err := repo.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{}, stats)

	fields, err := repo.ListFields(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)

	expenses, err := repo.ListExpenses(ctx, userID)
	require.NoError(t, err)
	assert.NotNil(t, expenses)
	assert.Empty(t, expenses)
}

func TestRepository_CreateAndEnrich(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "farmer@example.com")
	fm := seedFarm(t, repo, userID)

	assert.NotZero(t, fm.field.ID)
	assert.Equal(t, userID, fm.crop.UserID)
	assert.False(t, fm.crop.CreatedAt.IsZero())

	crops, err := repo.ListCrops(ctx, userID)
	require.NoError(t, err)
	require.Len(t, crops, 1)
	assert.Equal(t, "North Field", crops[0].FieldName)
	assert.Equal(t, "2024-03-15", crops[0].PlantingDate.String())
	assert.True(t, crops[0].ExpectedHarvestDate.IsZero())

	e, err := repo.CreateExpense(ctx, userID, core.Expense{CropID: &fm.crop.ID, Category: core.CategoryLabor,
		Item: "Weeding", TotalCost: core.Money{Cents: 1800000}, PurchasedOn: core.NewDate(2024, 4, 2), Season: "2024 Long Rains"})
	require.NoError(t, err)

	got, err := repo.GetExpense(ctx, userID, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maize", got.CropName)
	assert.Equal(t, "North Field", got.FieldName, "crop-linked expense reports the crop's field")
	assert.Nil(t, got.FieldID)
	assert.Nil(t, got.Quantity)

	s, err := repo.CreateSale(ctx, userID, core.Sale{HarvestID: fm.harvest.ID, SoldOn: core.NewDate(2024, 7, 25),
		Quantity: 500, Unit: "kg", PricePerUnit: core.Money{Cents: 10000}, TotalAmount: core.Money{Cents: 5000000},
		Season: "2024 Long Rains"})
	require.NoError(t, err)

	sales, err := repo.ListSales(ctx, userID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, s.ID, sales[0].ID)
	assert.Equal(t, "Maize", sales[0].CropName)
	assert.Equal(t, int64(5000000), sales[0].TotalAmount.Cents)
}

func TestRepository_OwnershipIsScoped(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := newTestUser(t, repo, "alice@example.com")
	bob := newTestUser(t, repo, "bob@example.com")
	fm := seedFarm(t, repo, alice)

	_, err := repo.CreateCrop(ctx, bob, core.Crop{FieldID: fm.field.ID, Name: "Beans", Season: "2024"})
	assert.ErrorIs(t, err, core.ErrNotFoundOrUnauthorized)

	_, err = repo.CreateExpense(ctx, bob, core.Expense{FieldID: &fm.field.ID, Category: core.CategorySeeds,
		Item: "Seed", TotalCost: core.Money{Cents: 100}, PurchasedOn: core.NewDate(2024, 1, 1), Season: "2024"})
	assert.ErrorIs(t, err, core.ErrNotFoundOrUnauthorized)

	_, err = repo.CreateSale(ctx, bob, core.Sale{HarvestID: fm.harvest.ID, SoldOn: core.NewDate(2024, 1, 1),
		Quantity: 1, Unit: "kg", PricePerUnit: core.Money{Cents: 100}, TotalAmount: core.Money{Cents: 100}, Season: "2024"})
	assert.ErrorIs(t, err, core.ErrNotFoundOrUnauthorized)

	_, err = repo.GetField(ctx, bob, fm.field.ID)
	assert.ErrorIs(t, err, core.ErrNotFoundOrUnauthorized)

	_, err = repo.DeleteField(ctx, bob, fm.field.ID)
	assert.ErrorIs(t, err, core.ErrNotFoundOrUnauthorized)
	_, err = repo.DeleteField(ctx, alice, 9999)
	assert.ErrorIs(t, err, core.ErrNotFoundOrUnauthorized)

	bobStats, err := repo.Stats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{}, bobStats)

	aliceStats, err := repo.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), aliceStats.FieldCount)
}

func TestRepository_CropDeleteCascades(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "cascade@example.com")
	fm := seedFarm(t, repo, userID)

	_, err := repo.CreateActivity(ctx, userID, core.Activity{CropID: fm.crop.ID, Type: "Weeding",
		PerformedOn: core.NewDate(2024, 4, 1), Season: "2024"})
	require.NoError(t, err)
	sale, err := repo.CreateSale(ctx, userID, core.Sale{HarvestID: fm.harvest.ID, SoldOn: core.NewDate(2024, 8, 1),
		Quantity: 10, Unit: "kg", PricePerUnit: core.Money{Cents: 100}, TotalAmount: core.Money{Cents: 1000}, Season: "2024"})
	require.NoError(t, err)
	e, err := repo.CreateExpense(ctx, userID, core.Expense{CropID: &fm.crop.ID, Category: core.CategoryLabor,
		Item: "Harvest crew", TotalCost: core.Money{Cents: 500}, PurchasedOn: core.NewDate(2024, 7, 20), Season: "2024"})
	require.NoError(t, err)

	saleIDs, err := repo.DeleteCrop(ctx, userID, fm.crop.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{sale.ID}, saleIDs)

	activities, err := repo.ListActivities(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, activities)
	harvests, err := repo.ListHarvests(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, harvests)
	sales, err := repo.ListSales(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, sales)

	orphan, err := repo.GetExpense(ctx, userID, e.ID)
	require.NoError(t, err, "expense survives its crop")
	assert.Nil(t, orphan.CropID)

	stats, err := repo.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FieldCount)
	assert.Zero(t, stats.CropCount)
	assert.Zero(t, stats.HarvestCount)
	assert.Zero(t, stats.TotalExpenses.Cents, "orphaned expenses are not counted")
	assert.Zero(t, stats.TotalRevenue.Cents)
}

func TestRepository_FieldDeleteZeroesStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "zero@example.com")
	fm := seedFarm(t, repo, userID)

	_, err := repo.CreateExpense(ctx, userID, core.Expense{FieldID: &fm.field.ID, Category: core.CategorySeeds,
		Item: "Seed", TotalCost: core.Money{Cents: 1500000}, PurchasedOn: core.NewDate(2024, 3, 1), Season: "2024"})
	require.NoError(t, err)
	_, err = repo.CreateExpense(ctx, userID, core.Expense{CropID: &fm.crop.ID, FieldID: &fm.field.ID,
		Category: core.CategoryFertilizer, Item: "DAP", TotalCost: core.Money{Cents: 2500000},
		PurchasedOn: core.NewDate(2024, 3, 2), Season: "2024"})
	require.NoError(t, err)

	_, err = repo.DeleteField(ctx, userID, fm.field.ID)
	require.NoError(t, err)

	stats, err := repo.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{}, stats)

	expenses, err := repo.ListExpenses(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, expenses, 2, "orphans stay listed")
}

func TestRepository_DeleteFarm(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "wipe@example.com")
	otherID := newTestUser(t, repo, "keep@example.com")
	fm := seedFarm(t, repo, userID)
	kept := seedFarm(t, repo, otherID)

	sale, err := repo.CreateSale(ctx, userID, core.Sale{HarvestID: fm.harvest.ID, SoldOn: core.NewDate(2024, 8, 1),
		Quantity: 10, Unit: "kg", PricePerUnit: core.Money{Cents: 100}, TotalAmount: core.Money{Cents: 1000}, Season: "2024"})
	require.NoError(t, err)
	linked, err := repo.CreateExpense(ctx, userID, core.Expense{FieldID: &fm.field.ID, Category: core.CategorySeeds,
		Item: "Seed", TotalCost: core.Money{Cents: 100}, PurchasedOn: core.NewDate(2024, 3, 1), Season: "2024"})
	require.NoError(t, err)
	loose, err := repo.CreateExpense(ctx, userID, core.Expense{Category: core.CategoryOther,
		Item: "Padlock", TotalCost: core.Money{Cents: 100}, PurchasedOn: core.NewDate(2024, 3, 1), Season: "2024"})
	require.NoError(t, err)

	removed, err := repo.DeleteFarm(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed.Fields)
	assert.ElementsMatch(t, []int64{linked.ID, loose.ID}, removed.ExpenseIDs)
	assert.Equal(t, []int64{sale.ID}, removed.SaleIDs)

	stats, err := repo.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{}, stats)
	expenses, err := repo.ListExpenses(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, expenses)

	_, err = repo.GetField(ctx, otherID, kept.field.ID)
	require.NoError(t, err, "other users keep their farm")
}

func TestRepository_ListOrdering(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "order@example.com")
	fm := seedFarm(t, repo, userID)

	dates := []core.Date{core.NewDate(2024, 5, 1), core.NewDate(2024, 6, 1), core.NewDate(2024, 5, 1)}
	var ids []int64
	for _, d := range dates {
		e, err := repo.CreateExpense(ctx, userID, core.Expense{FieldID: &fm.field.ID, Category: core.CategoryFuel,
			Item: "Diesel", TotalCost: core.Money{Cents: 100}, PurchasedOn: d, Season: "2024"})
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}

	expenses, err := repo.ListExpenses(ctx, userID)
	require.NoError(t, err)
	require.Len(t, expenses, 3)
	assert.Equal(t, []int64{ids[1], ids[2], ids[0]}, []int64{expenses[0].ID, expenses[1].ID, expenses[2].ID})
}

func TestRepository_Snapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "report@example.com")
	fm := seedFarm(t, repo, userID)

	for i, c := range []struct {
		cat   core.ExpenseCategory
		cents int64
	}{
		{core.CategoryLabor, 300},
		{core.CategorySeeds, 500},
		{core.CategoryFuel, 500},
		{core.CategoryLabor, 300},
		{core.CategoryOther, 10},
		{core.CategoryOther, 10},
	} {
		_, err := repo.CreateExpense(ctx, userID, core.Expense{FieldID: &fm.field.ID, Category: c.cat,
			Item: "item", TotalCost: core.Money{Cents: c.cents}, PurchasedOn: core.NewDate(2024, 1, i+1), Season: "2024"})
		require.NoError(t, err)
	}

	err := repo.WithSnapshot(ctx, func(s *Snapshot) error {
		totals, err := s.CategoryTotals(ctx, userID)
		require.NoError(t, err)
		require.Len(t, totals, 4)
		assert.Equal(t, core.CategoryLabor, totals[0].Category)
		assert.Equal(t, int64(600), totals[0].Total.Cents)
		assert.Equal(t, int64(2), totals[0].Count)
		assert.Equal(t, core.CategoryFuel, totals[1].Category, "ties break by category name")
		assert.Equal(t, core.CategorySeeds, totals[2].Category)

		recent, err := s.RecentExpenses(ctx, userID, core.RecentLimit)
		require.NoError(t, err)
		require.Len(t, recent, core.RecentLimit)
		assert.Equal(t, "2024-01-06", recent[0].PurchasedOn.String())

		st, err := s.Stats(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, int64(1620), st.TotalExpenses.Cents)
		return nil
	})
	require.NoError(t, err)
}

func TestRepository_Users(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u, err := repo.CreateUser(ctx, "dup@example.com", "Wanjiru", "hash")
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, "dup@example.com", "Other", "hash")
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := repo.GetUserByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = repo.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Sessions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "session@example.com")

	now := time.Now()
	_, err := repo.CreateSession(ctx, core.Session{Token: "live", UserID: userID, ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = repo.CreateSession(ctx, core.Session{Token: "stale", UserID: userID, ExpiresAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	s, u, err := repo.GetSession(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, userID, s.UserID)
	assert.Equal(t, "session@example.com", u.Email)

	n, err := repo.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.DeleteSession(ctx, "live"))
	_, _, err = repo.GetSession(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Mirror(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := newTestUser(t, repo, "mirror@example.com")
	fm := seedFarm(t, repo, userID)

	e, err := repo.CreateExpense(ctx, userID, core.Expense{FieldID: &fm.field.ID, Category: core.CategorySeeds,
		Item: "Seed", TotalCost: core.Money{Cents: 100}, PurchasedOn: core.NewDate(2024, 1, 1), Season: "2024"})
	require.NoError(t, err)
	s, err := repo.CreateSale(ctx, userID, core.Sale{HarvestID: fm.harvest.ID, SoldOn: core.NewDate(2024, 8, 1),
		Quantity: 1, Unit: "kg", PricePerUnit: core.Money{Cents: 100}, TotalAmount: core.Money{Cents: 100}, Season: "2024"})
	require.NoError(t, err)

	items, err := repo.PendingMirror(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.NoError(t, repo.MarkMirrored(ctx, core.KindExpense, e.ID))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.MarkMirrorFailure(ctx, core.KindSale, s.ID, 3))
	}

	items, err = repo.PendingMirror(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, items)

	st, err := repo.MirrorStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, MirrorStats{Synced: 1, Failed: 1}, st)

	n, err := repo.RetryMirrorErrors(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Error(t, repo.MarkMirrored(ctx, core.KindField, fm.field.ID))
}
