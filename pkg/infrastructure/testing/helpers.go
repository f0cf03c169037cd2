package testing

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/memory"
)

// Today is the fixed valuation day of every fixture
var Today = entities.Date(2024, time.June, 15)

// Clock returns Today, for use as a costing Now function
func Clock() time.Time {
	return Today
}

// Unit ids created by NewFixture
const (
	UnitEach entities.UnitID = 1
	UnitKg   entities.UnitID = 2
	UnitM    entities.UnitID = 3
)

// Dec parses a decimal literal, panicking on malformed input
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// Fixture builds scenarios in an in-memory store
type Fixture struct {
	Store *memory.Store
}

// NewFixture creates a fixture with the EA, KG and M units
func NewFixture() *Fixture {
	store := memory.NewStore()
	store.AddUnit(entities.Unit{ID: UnitEach, Code: "EA", Name: "Each"})
	store.AddUnit(entities.Unit{ID: UnitKg, Code: "KG", Name: "Kilogram"})
	store.AddUnit(entities.Unit{ID: UnitM, Code: "M", Name: "Meter"})
	return &Fixture{Store: store}
}

// Product adds an active product measured in EA
func (f *Fixture) Product(id entities.ProductID, code string, typ entities.ProductType) entities.ProductID {
	f.Store.AddProduct(entities.Product{
		ID:          id,
		Code:        code,
		Name:        code,
		Type:        typ,
		DefaultUnit: UnitEach,
		Active:      true,
	})
	return id
}

// ActiveBOM adds an ACTIVE header for a product
func (f *Fixture) ActiveBOM(productID entities.ProductID, revision string) entities.BOMID {
	return f.Store.AddHeader(entities.BOMHeader{
		ProductID: productID,
		Revision:  revision,
		State:     entities.BOMStateActive,
		CreatedAt: Today.Add(-24 * time.Hour),
	})
}

// DraftBOM adds a DRAFT header for a product
func (f *Fixture) DraftBOM(productID entities.ProductID, revision string) entities.BOMID {
	return f.Store.AddHeader(entities.BOMHeader{
		ProductID: productID,
		Revision:  revision,
		State:     entities.BOMStateDraft,
		CreatedAt: Today,
	})
}

// Line adds a BOM line measured in EA
func (f *Fixture) Line(bomID entities.BOMID, lineNumber int, child entities.ProductID, qty, scrap string) entities.BOMLineID {
	return f.LineIn(bomID, lineNumber, child, qty, scrap, UnitEach)
}

// LineIn adds a BOM line in the given unit
func (f *Fixture) LineIn(bomID entities.BOMID, lineNumber int, child entities.ProductID, qty, scrap string, unit entities.UnitID) entities.BOMLineID {
	return f.Store.AddLine(entities.BOMLine{
		BOMID:          bomID,
		LineNumber:     lineNumber,
		ChildProductID: child,
		Quantity:       Dec(qty),
		UnitID:         unit,
		ScrapFactor:    Dec(scrap),
	})
}

// EffectiveCost adds an open-ended effective cost valid from a month before Today
func (f *Fixture) EffectiveCost(productID entities.ProductID, cost string, currency entities.Currency) {
	f.Store.AddEffectiveCost(entities.EffectiveCost{
		ProductID: productID,
		UnitCost:  Dec(cost),
		Currency:  currency,
		ValidFrom: Today.AddDate(0, -1, 0),
	})
}

// Purchase adds a purchase history entry
func (f *Fixture) Purchase(productID entities.ProductID, price string, currency entities.Currency, date time.Time) {
	f.Store.AddPurchasePrice(entities.PurchasePrice{
		ProductID:    productID,
		SupplierCode: "SUP-1",
		SupplierName: "Default supplier",
		PriceDate:    date,
		UnitPrice:    Dec(price),
		Currency:     currency,
		Origin:       "fixture",
	})
}

// Rate adds an FX rate: display units per one unit of currency
func (f *Fixture) Rate(currency entities.Currency, date time.Time, kind entities.RateKind, rate string) {
	f.Store.AddRate(entities.FXRate{
		Date:     date,
		Currency: currency,
		Kind:     kind,
		Rate:     Dec(rate),
		Origin:   "fixture",
	})
}

// Operation adds a catalog operation and attaches it to a BOM at sequence
func (f *Fixture) Operation(bomID entities.BOMID, id entities.OperationID, sequence int, code, minutes, hourly string, currency entities.Currency) {
	f.Store.AddOperation(entities.Operation{
		ID:              id,
		Code:            code,
		Name:            code,
		WorkCenter:      "WC-1",
		StandardMinutes: Dec(minutes),
		HourlyCost:      Dec(hourly),
		Currency:        currency,
	})
	if err := f.Store.AttachOperation(bomID, id, sequence, ""); err != nil {
		panic(err)
	}
}

// Plan adds a plan entry
func (f *Fixture) Plan(period entities.Period, productID entities.ProductID, qty string) {
	f.Store.AddPlanEntry(entities.PlanEntry{ProductID: productID, Period: period, Quantity: Dec(qty)})
}

// Stock adds on-hand stock in EA
func (f *Fixture) Stock(period entities.Period, productID entities.ProductID, qty string) {
	f.Store.AddStock(entities.StockEntry{ProductID: productID, UnitID: UnitEach, Period: period, Quantity: Dec(qty)})
}

// Bike product ids
const (
	BikeID  entities.ProductID = 100
	FrameID entities.ProductID = 110
	WheelID entities.ProductID = 120
	TubeID  entities.ProductID = 200
	SpokeID entities.ProductID = 210
	PaintID entities.ProductID = 220
	BoxID   entities.ProductID = 230
	BellID  entities.ProductID = 240
)

// BuildBikeScenario builds a three level bicycle:
//
//	BIKE (FG)  rev A
//	├── FRAME (WIP) x1, scrap 0.05
//	│   ├── TUBE (RM) x2.5 M   purchased 10 USD on Today
//	│   └── PAINT (RM) x0.2 KG effective 4000 ARS
//	├── WHEEL (WIP) x2
//	│   ├── SPOKE (RM) x32     purchased 1 EUR a week before Today
//	│   └── TUBE (RM) x1 M
//	├── BOX (PKG) x1           purchased 500 ARS on Today
//	└── BELL (RM) x1           no price
//
// with an assembly operation of 30 minutes at 6000 ARS/h on the bike.
// USD is 1000 ARS on Today, EUR is 1100 ARS a week before Today.
func BuildBikeScenario() *Fixture {
	f := NewFixture()
	f.Product(BikeID, "BIKE", entities.ProductTypeFinishedGood)
	f.Product(FrameID, "FRAME", entities.ProductTypeWorkInProgress)
	f.Product(WheelID, "WHEEL", entities.ProductTypeWorkInProgress)
	f.Product(TubeID, "TUBE", entities.ProductTypeRawMaterial)
	f.Product(SpokeID, "SPOKE", entities.ProductTypeRawMaterial)
	f.Product(PaintID, "PAINT", entities.ProductTypeRawMaterial)
	f.Product(BoxID, "BOX", entities.ProductTypePackaging)
	f.Product(BellID, "BELL", entities.ProductTypeRawMaterial)

	bike := f.ActiveBOM(BikeID, "A")
	f.Line(bike, 10, FrameID, "1", "0.05")
	f.Line(bike, 20, WheelID, "2", "0")
	f.Line(bike, 30, BoxID, "1", "0")
	f.Line(bike, 40, BellID, "1", "0")
	f.Operation(bike, 1, 10, "ASSEMBLY", "30", "6000", "ARS")

	frame := f.ActiveBOM(FrameID, "A")
	f.LineIn(frame, 10, TubeID, "2.5", "0", UnitM)
	f.LineIn(frame, 20, PaintID, "0.2", "0", UnitKg)

	wheel := f.ActiveBOM(WheelID, "A")
	f.Line(wheel, 10, SpokeID, "32", "0")
	f.LineIn(wheel, 20, TubeID, "1", "0", UnitM)

	weekAgo := Today.AddDate(0, 0, -7)
	f.Purchase(TubeID, "10", "USD", Today)
	f.EffectiveCost(PaintID, "4000", "ARS")
	f.Purchase(SpokeID, "1", "EUR", weekAgo)
	f.Purchase(BoxID, "500", "ARS", Today)

	f.Rate("USD", Today, entities.RateKindAverage, "1000")
	f.Rate("USD", weekAgo, entities.RateKindAverage, "1000")
	f.Rate("EUR", weekAgo, entities.RateKindAverage, "1100")
	f.Rate("EUR", Today, entities.RateKindAverage, "1100")
	return f
}

// CountingPriceRepository counts cost source lookups per product
type CountingPriceRepository struct {
	repositories.PriceRepository

	mu        sync.Mutex
	effective map[entities.ProductID]int
	purchases map[entities.ProductID]int
}

// NewCountingPriceRepository wraps inner
func NewCountingPriceRepository(inner repositories.PriceRepository) *CountingPriceRepository {
	return &CountingPriceRepository{
		PriceRepository: inner,
		effective:       make(map[entities.ProductID]int),
		purchases:       make(map[entities.ProductID]int),
	}
}

func (c *CountingPriceRepository) GetEffectiveCost(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.EffectiveCost, error) {
	c.mu.Lock()
	c.effective[productID]++
	c.mu.Unlock()
	return c.PriceRepository.GetEffectiveCost(ctx, productID, asOf)
}

func (c *CountingPriceRepository) GetLatestPurchasePrice(ctx context.Context, productID entities.ProductID) (*entities.PurchasePrice, error) {
	c.mu.Lock()
	c.purchases[productID]++
	c.mu.Unlock()
	return c.PriceRepository.GetLatestPurchasePrice(ctx, productID)
}

// EffectiveCalls returns how many effective cost lookups were made for a product
func (c *CountingPriceRepository) EffectiveCalls(id entities.ProductID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effective[id]
}

// PurchaseCalls returns how many purchase history lookups were made for a product
func (c *CountingPriceRepository) PurchaseCalls(id entities.ProductID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purchases[id]
}
