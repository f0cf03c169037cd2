package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

var day = entities.Date(2024, time.June, 15)

func datePtr(t time.Time) *time.Time {
	return &t
}

func TestStore_GetActiveHeader(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	older := s.AddHeader(entities.BOMHeader{ProductID: 1, Revision: "A", State: entities.BOMStateActive, ValidFrom: datePtr(day.AddDate(0, -2, 0))})
	newer := s.AddHeader(entities.BOMHeader{ProductID: 1, Revision: "B", State: entities.BOMStateActive, ValidFrom: datePtr(day.AddDate(0, -1, 0))})
	s.AddHeader(entities.BOMHeader{ProductID: 1, Revision: "C", State: entities.BOMStateDraft, ValidFrom: datePtr(day)})
	s.AddHeader(entities.BOMHeader{ProductID: 2, Revision: "A", State: entities.BOMStateActive, ValidUntil: datePtr(day.AddDate(0, 0, -1))})

	h, err := s.GetActiveHeader(ctx, 1, day)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, newer, h.ID)

	expired, err := s.GetActiveHeader(ctx, 2, day)
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, s.ActivateHeader(ctx, older))
	h, err = s.GetActiveHeader(ctx, 1, day)
	require.NoError(t, err)
	assert.Equal(t, older, h.ID)

	other, err := s.GetHeader(ctx, newer)
	require.NoError(t, err)
	assert.Equal(t, entities.BOMStateArchived, other.State)

	missing, err := s.GetHeader(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.ErrorIs(t, s.ActivateHeader(ctx, 99), repositories.ErrNotFound)
}

func TestStore_LinesAndRouting(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	bom := s.AddHeader(entities.BOMHeader{ProductID: 1, Revision: "A", State: entities.BOMStateActive})

	s.AddLine(entities.BOMLine{BOMID: bom, LineNumber: 30, ChildProductID: 4, Quantity: decimal.NewFromInt(1), UnitID: 1})
	s.AddLine(entities.BOMLine{BOMID: bom, LineNumber: 10, ChildProductID: 2, Quantity: decimal.NewFromInt(1), UnitID: 1})

	lines, err := s.GetLines(ctx, bom)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, 10, lines[0].LineNumber)

	// returned lines are copies
	lines[0].Quantity = decimal.NewFromInt(99)
	again, err := s.GetLines(ctx, bom)
	require.NoError(t, err)
	assert.True(t, again[0].Quantity.Equal(decimal.NewFromInt(1)))

	s.AddOperation(entities.Operation{ID: 1, Code: "CUT"})
	s.AddOperation(entities.Operation{ID: 2, Code: "WELD"})
	require.NoError(t, s.AttachOperation(bom, 2, 20, ""))
	require.NoError(t, s.AttachOperation(bom, 1, 10, "first"))
	assert.ErrorIs(t, s.AttachOperation(bom, 3, 30, ""), repositories.ErrNotFound)

	routing, err := s.GetRouting(ctx, bom)
	require.NoError(t, err)
	require.Len(t, routing, 2)
	assert.Equal(t, "CUT", routing[0].Operation.Code)
	assert.Equal(t, "first", routing[0].Notes)

	assert.ErrorIs(t, s.SaveLine(ctx, &entities.BOMLine{BOMID: 99}), repositories.ErrNotFound)
}

func TestStore_Prices(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	s.AddEffectiveCost(entities.EffectiveCost{ProductID: 1, UnitCost: decimal.NewFromInt(10), Currency: "usd", ValidFrom: day.AddDate(0, -2, 0)})
	s.AddEffectiveCost(entities.EffectiveCost{ProductID: 1, UnitCost: decimal.NewFromInt(12), Currency: "USD", ValidFrom: day.AddDate(0, -1, 0)})
	s.AddEffectiveCost(entities.EffectiveCost{ProductID: 1, UnitCost: decimal.NewFromInt(15), Currency: "USD", ValidFrom: day.AddDate(0, 0, 1)})

	c, err := s.GetEffectiveCost(ctx, 1, day)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.UnitCost.Equal(decimal.NewFromInt(12)))

	none, err := s.GetEffectiveCost(ctx, 2, day)
	require.NoError(t, err)
	assert.Nil(t, none)

	s.AddPurchasePrice(entities.PurchasePrice{ProductID: 1, PriceDate: day, UnitPrice: decimal.NewFromInt(5), Currency: "ars"})
	s.AddPurchasePrice(entities.PurchasePrice{ProductID: 1, PriceDate: day, UnitPrice: decimal.NewFromInt(6), Currency: "ARS"})
	s.AddPurchasePrice(entities.PurchasePrice{ProductID: 1, PriceDate: day.AddDate(0, 0, -3), UnitPrice: decimal.NewFromInt(7), Currency: "ARS"})

	p, err := s.GetLatestPurchasePrice(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.UnitPrice.Equal(decimal.NewFromInt(6)))
	assert.Equal(t, entities.Currency("ARS"), p.Currency)
}

func TestStore_Rates(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for i, rate := range []int64{900, 950, 1000} {
		s.AddRate(entities.FXRate{Date: day.AddDate(0, 0, (i-1)*5), Currency: "usd", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(rate)})
	}
	// replaces the rate of the same day
	s.AddRate(entities.FXRate{Date: day, Currency: "USD", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(960)})

	exact, err := s.GetRate(ctx, "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	require.NotNil(t, exact)
	assert.True(t, exact.Rate.Equal(decimal.NewFromInt(960)))

	before, err := s.GetClosestBefore(ctx, "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	assert.True(t, before.Date.Equal(day.AddDate(0, 0, -5)))

	after, err := s.GetClosestAfter(ctx, "USD", day, entities.RateKindAverage)
	require.NoError(t, err)
	assert.True(t, after.Date.Equal(day.AddDate(0, 0, 5)))

	none, err := s.GetClosestBefore(ctx, "USD", day.AddDate(0, 0, -5), entities.RateKindAverage)
	require.NoError(t, err)
	assert.Nil(t, none)

	otherKind, err := s.GetRate(ctx, "USD", day, entities.RateKindSell)
	require.NoError(t, err)
	assert.Nil(t, otherKind)
}

func TestStore_Products(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.AddProduct(entities.Product{ID: 1, Code: "B", Type: entities.ProductTypeFinishedGood, Active: true})
	s.AddProduct(entities.Product{ID: 2, Code: "A", Type: entities.ProductTypeFinishedGood, Active: true})
	s.AddProduct(entities.Product{ID: 3, Code: "C", Type: entities.ProductTypeFinishedGood})
	s.AddProduct(entities.Product{ID: 4, Code: "D", Type: entities.ProductTypeRawMaterial, Active: true})

	fgs, err := s.ListProducts(ctx, repositories.ProductFilter{Type: entities.ProductTypeFinishedGood, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, fgs, 2)
	assert.Equal(t, "A", fgs[0].Code)

	p, err := s.GetProductByCode(ctx, " D ")
	require.NoError(t, err)
	assert.Equal(t, entities.ProductID(4), p.ID)

	_, err = s.GetProduct(ctx, 9)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = s.GetUnit(ctx, 9)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestStore_PlanAndStock(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	june := entities.Period{Year: 2024, Month: 6}

	s.AddPlanEntry(entities.PlanEntry{ProductID: 1, Period: june, Quantity: decimal.NewFromInt(5)})
	s.AddPlanEntry(entities.PlanEntry{ProductID: 1, Period: june, Quantity: decimal.NewFromInt(7)})
	s.AddStock(entities.StockEntry{ProductID: 2, UnitID: 1, Period: june, Quantity: decimal.NewFromInt(3)})
	s.AddStock(entities.StockEntry{ProductID: 2, UnitID: 1, Period: june, Quantity: decimal.NewFromInt(4)})

	plan, err := s.GetPlan(ctx, june)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.True(t, plan[0].Quantity.Equal(decimal.NewFromInt(7)))

	onHand, err := s.GetOnHand(ctx, 2, 1, june)
	require.NoError(t, err)
	assert.True(t, onHand.Equal(decimal.NewFromInt(7)))

	zero, err := s.GetOnHand(ctx, 2, 2, june)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())
}

func TestStore_CatalogWriter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.AddUnit(entities.Unit{ID: 3, Code: "M"})
	s.AddUnit(entities.Unit{ID: 1, Code: "EA"})
	s.AddProduct(entities.Product{ID: 7, Code: "FRAME", Type: entities.ProductTypeWorkInProgress, DefaultUnit: 1})

	units, err := s.ListUnits(ctx)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "EA", units[0].Code)

	saddle := &entities.Product{Code: "SADDLE", Type: entities.ProductTypeRawMaterial, DefaultUnit: 1, Active: true}
	require.NoError(t, s.SaveProduct(ctx, saddle))
	assert.Equal(t, entities.ProductID(8), saddle.ID)
	got, err := s.GetProductByCode(ctx, "SADDLE")
	require.NoError(t, err)
	assert.Equal(t, saddle.ID, got.ID)

	clash := &entities.Product{Code: "FRAME", Type: entities.ProductTypeRawMaterial, DefaultUnit: 1}
	assert.Error(t, s.SaveProduct(ctx, clash))
}

func TestStore_DeleteLines(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	bom := s.AddHeader(entities.BOMHeader{ProductID: 1, Revision: "A", State: entities.BOMStateDraft})
	s.AddLine(entities.BOMLine{BOMID: bom, LineNumber: 10, ChildProductID: 2, Quantity: decimal.NewFromInt(1), UnitID: 1})
	s.AddLine(entities.BOMLine{BOMID: bom, LineNumber: 20, ChildProductID: 3, Quantity: decimal.NewFromInt(1), UnitID: 1})

	require.NoError(t, s.DeleteLines(ctx, bom))
	lines, err := s.GetLines(ctx, bom)
	require.NoError(t, err)
	assert.Empty(t, lines)

	header, err := s.GetHeader(ctx, bom)
	require.NoError(t, err)
	assert.NotNil(t, header)

	assert.ErrorIs(t, s.DeleteLines(ctx, bom+100), repositories.ErrNotFound)
}
