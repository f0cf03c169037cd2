package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

var day = entities.Date(2024, time.June, 15)

func TestModels_ToEntity(t *testing.T) {
	seq := 10
	from := time.Date(2024, time.May, 1, 13, 45, 0, 0, time.UTC)
	header := newBOMHeaderModel(&entities.BOMHeader{
		ID:        7,
		ProductID: 3,
		Revision:  "B",
		State:     entities.BOMStateActive,
		ValidFrom: &from,
	}).toEntity()
	assert.Equal(t, entities.BOMID(7), header.ID)
	assert.Equal(t, entities.Date(2024, time.May, 1), *header.ValidFrom)
	assert.Nil(t, header.ValidUntil)

	line := newBOMLineModel(&entities.BOMLine{
		BOMID:             7,
		LineNumber:        20,
		ChildProductID:    4,
		Quantity:          decimal.RequireFromString("2.5"),
		UnitID:            1,
		ScrapFactor:       decimal.RequireFromString("0.1"),
		OperationSequence: &seq,
	}).toEntity()
	assert.Equal(t, entities.ProductID(4), line.ChildProductID)
	assert.True(t, line.Quantity.Equal(decimal.RequireFromString("2.5")))
	assert.Equal(t, 10, *line.OperationSequence)

	step := (&bomOperationModel{
		BOMID:    7,
		Sequence: 10,
		Operation: operationModel{
			Code:            "ASSEMBLY",
			StandardMinutes: decimal.NewFromInt(30),
			HourlyCost:      decimal.NewFromInt(6000),
			Currency:        "ARS",
		},
	}).toEntity()
	assert.True(t, step.Cost().Equal(decimal.NewFromInt(3000)))

	plan := (&planEntryModel{ProductID: 1, Year: 2024, Month: 6, Quantity: decimal.NewFromInt(5)}).toEntity()
	assert.Equal(t, entities.Period{Year: 2024, Month: 6}, plan.Period)
}

func TestNotFound(t *testing.T) {
	err := notFound(gorm.ErrRecordNotFound, "product %d", 12)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.EqualError(t, err, "product 12: record not found")

	other := errors.New("connection reset")
	assert.Equal(t, other, notFound(other, "product %d", 12))
}

// openTestDB connects to the database named by MBOM_TEST_DATABASE_DSN and recreates the schema
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("MBOM_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("MBOM_TEST_DATABASE_DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	require.NoError(t, db.Migrator().DropTable(
		&stockEntryModel{}, &planEntryModel{}, &fxRateModel{}, &purchasePriceModel{},
		&effectiveCostModel{}, &bomOperationModel{}, &operationModel{}, &bomLineModel{},
		&bomHeaderModel{}, &productModel{}, &unitModel{},
	))
	require.NoError(t, Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestRepository_Catalog(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	unit := &entities.Unit{Code: "EA", Name: "Each"}
	require.NoError(t, repo.SaveUnit(ctx, unit))
	require.NotZero(t, unit.ID)

	for _, p := range []*entities.Product{
		{Code: "BIKE", Name: "Bike", Type: entities.ProductTypeFinishedGood, DefaultUnit: unit.ID, Active: true},
		{Code: "TUBE", Name: "Tube", Type: entities.ProductTypeRawMaterial, DefaultUnit: unit.ID, Active: true},
		{Code: "OLD", Name: "Old bike", Type: entities.ProductTypeFinishedGood, DefaultUnit: unit.ID, Active: false},
	} {
		require.NoError(t, repo.SaveProduct(ctx, p))
	}

	p, err := repo.GetProductByCode(ctx, " TUBE ")
	require.NoError(t, err)
	assert.Equal(t, "Tube", p.Name)

	_, err = repo.GetProductByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.GetUnit(ctx, 999)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	fgs, err := repo.ListProducts(ctx, repositories.ProductFilter{Type: entities.ProductTypeFinishedGood, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, fgs, 1)
	assert.Equal(t, "BIKE", fgs[0].Code)
}

func TestRepository_BOMLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	from := day.AddDate(0, -1, 0)
	older := &entities.BOMHeader{ProductID: 1, Revision: "A", State: entities.BOMStateActive, CreatedAt: day.AddDate(0, -2, 0)}
	newer := &entities.BOMHeader{ProductID: 1, Revision: "B", State: entities.BOMStateActive, ValidFrom: &from, CreatedAt: day.AddDate(0, -1, 0)}
	draft := &entities.BOMHeader{ProductID: 1, Revision: "C", State: entities.BOMStateDraft, CreatedAt: day}
	for _, h := range []*entities.BOMHeader{older, newer, draft} {
		require.NoError(t, repo.SaveHeader(ctx, h))
	}

	active, err := repo.GetActiveHeader(ctx, 1, day)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, newer.ID, active.ID)

	headers, err := repo.ListHeaders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, headers, 3)
	assert.Equal(t, "C", headers[0].Revision)

	require.NoError(t, repo.ActivateHeader(ctx, draft.ID))
	active, err = repo.GetActiveHeader(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, draft.ID, active.ID)
	for _, id := range []entities.BOMID{older.ID, newer.ID} {
		h, err := repo.GetHeader(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, entities.BOMStateArchived, h.State)
	}
	assert.ErrorIs(t, repo.ActivateHeader(ctx, 999), repositories.ErrNotFound)

	missing, err := repo.GetHeader(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	second := &entities.BOMLine{BOMID: draft.ID, LineNumber: 20, ChildProductID: 3, Quantity: decimal.NewFromInt(1), UnitID: 1}
	first := &entities.BOMLine{BOMID: draft.ID, LineNumber: 10, ChildProductID: 2, Quantity: decimal.RequireFromString("2.5"), UnitID: 1}
	require.NoError(t, repo.SaveLine(ctx, second))
	require.NoError(t, repo.SaveLine(ctx, first))
	assert.ErrorIs(t, repo.SaveLine(ctx, &entities.BOMLine{BOMID: 999, LineNumber: 10}), repositories.ErrNotFound)

	lines, err := repo.GetLines(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 10, lines[0].LineNumber)
	assert.True(t, lines[0].Quantity.Equal(decimal.RequireFromString("2.5")))

	op := &entities.Operation{Code: "ASSEMBLY", StandardMinutes: decimal.NewFromInt(30), HourlyCost: decimal.NewFromInt(6000), Currency: "ars"}
	require.NoError(t, repo.SaveOperation(ctx, op))
	require.NoError(t, repo.AttachOperation(ctx, draft.ID, op.ID, 20, "final"))
	routing, err := repo.GetRouting(ctx, draft.ID)
	require.NoError(t, err)
	require.Len(t, routing, 1)
	assert.Equal(t, "ASSEMBLY", routing[0].Operation.Code)
	assert.Equal(t, entities.Currency("ARS"), routing[0].Operation.Currency)
}

func TestRepository_Prices(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	until := day.AddDate(0, 0, -1)
	require.NoError(t, repo.SaveEffectiveCost(ctx, &entities.EffectiveCost{ProductID: 1, UnitCost: decimal.NewFromInt(5), Currency: "USD", ValidFrom: day.AddDate(0, -3, 0), ValidUntil: &until}))
	require.NoError(t, repo.SaveEffectiveCost(ctx, &entities.EffectiveCost{ProductID: 1, UnitCost: decimal.NewFromInt(7), Currency: "USD", ValidFrom: day.AddDate(0, -1, 0)}))
	require.NoError(t, repo.SaveEffectiveCost(ctx, &entities.EffectiveCost{ProductID: 1, UnitCost: decimal.NewFromInt(9), Currency: "USD", ValidFrom: day.AddDate(0, 1, 0)}))

	cost, err := repo.GetEffectiveCost(ctx, 1, day)
	require.NoError(t, err)
	require.NotNil(t, cost)
	assert.True(t, cost.UnitCost.Equal(decimal.NewFromInt(7)))

	none, err := repo.GetEffectiveCost(ctx, 2, day)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.SavePurchasePrice(ctx, &entities.PurchasePrice{ProductID: 1, UnitPrice: decimal.NewFromInt(10), Currency: "usd", PriceDate: day}))
	require.NoError(t, repo.SavePurchasePrice(ctx, &entities.PurchasePrice{ProductID: 1, UnitPrice: decimal.NewFromInt(11), Currency: "USD", PriceDate: day}))
	require.NoError(t, repo.SavePurchasePrice(ctx, &entities.PurchasePrice{ProductID: 1, UnitPrice: decimal.NewFromInt(8), Currency: "USD", PriceDate: day.AddDate(0, 0, -10)}))

	latest, err := repo.GetLatestPurchasePrice(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.UnitPrice.Equal(decimal.NewFromInt(11)))

	none2, err := repo.GetLatestPurchasePrice(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, none2)
}

func TestRepository_Rates(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))

	for _, r := range []entities.FXRate{
		{Date: day.AddDate(0, 0, -3), Currency: "USD", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(990)},
		{Date: day, Currency: "USD", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(1000)},
		{Date: day.AddDate(0, 0, 2), Currency: "USD", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(1010)},
		{Date: day, Currency: "USD", Kind: entities.RateKindSell, Rate: decimal.NewFromInt(1020)},
	} {
		require.NoError(t, repo.SaveRate(ctx, r))
	}

	exact, err := repo.GetRate(ctx, "usd", day, entities.RateKindAverage)
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.True(t, exact.Rate.Equal(decimal.NewFromInt(1000)))

	before, err := repo.GetClosestBefore(ctx, "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	assert.Equal(t, day.AddDate(0, 0, -3), before.Date)

	after, err := repo.GetClosestAfter(ctx, "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	assert.Equal(t, day.AddDate(0, 0, 2), after.Date)

	none, err := repo.GetClosestAfter(ctx, "USD", day.AddDate(0, 0, 2), entities.RateKindAverage)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.SaveRate(ctx, entities.FXRate{Date: day, Currency: "USD", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(996), Origin: "xlsx"}))
	exact, err = repo.GetRate(ctx, "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	assert.True(t, exact.Rate.Equal(decimal.NewFromInt(996)))
	assert.Equal(t, "xlsx", exact.Origin)
}

func TestRepository_PlanAndStock(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openTestDB(t))
	june := entities.Period{Year: 2024, Month: 6}

	require.NoError(t, repo.SavePlanEntry(ctx, entities.PlanEntry{ProductID: 1, Period: june, Quantity: decimal.NewFromInt(2)}))
	require.NoError(t, repo.SavePlanEntry(ctx, entities.PlanEntry{ProductID: 2, Period: june, Quantity: decimal.NewFromInt(3)}))
	require.NoError(t, repo.SavePlanEntry(ctx, entities.PlanEntry{ProductID: 1, Period: june, Quantity: decimal.NewFromInt(4)}))

	plan, err := repo.GetPlan(ctx, june)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, entities.ProductID(1), plan[0].ProductID)
	assert.True(t, plan[0].Quantity.Equal(decimal.NewFromInt(4)))

	onHand, err := repo.GetOnHand(ctx, 1, 1, june)
	require.NoError(t, err)
	assert.True(t, onHand.IsZero())

	require.NoError(t, repo.SaveStock(ctx, entities.StockEntry{ProductID: 1, UnitID: 1, Period: june, Quantity: decimal.NewFromInt(5)}))
	require.NoError(t, repo.SaveStock(ctx, entities.StockEntry{ProductID: 1, UnitID: 1, Period: june, Quantity: decimal.NewFromInt(6)}))
	onHand, err = repo.GetOnHand(ctx, 1, 1, june)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(decimal.NewFromInt(6)))
}
