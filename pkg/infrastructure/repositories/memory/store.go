package memory

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

type fxKey struct {
	currency entities.Currency
	kind     entities.RateKind
}

type stockKey struct {
	productID entities.ProductID
	unitID    entities.UnitID
	period    entities.Period
}

// Store is an in-memory implementation of every repository used by the costing core.
// It is safe for concurrent use; the costing core only reads from it.
type Store struct {
	mu sync.RWMutex

	products       map[entities.ProductID]entities.Product
	productsByCode map[string]entities.ProductID
	units          map[entities.UnitID]entities.Unit

	headers          map[entities.BOMID]entities.BOMHeader
	headersByProduct map[entities.ProductID][]entities.BOMID
	lines            map[entities.BOMID][]entities.BOMLine
	routings         map[entities.BOMID][]entities.RoutingStep
	operations       map[entities.OperationID]entities.Operation
	nextBOMID        entities.BOMID
	nextLineID       entities.BOMLineID

	effectiveCosts map[entities.ProductID][]entities.EffectiveCost
	purchases      map[entities.ProductID][]entities.PurchasePrice
	nextPurchaseID int64

	rates map[fxKey][]entities.FXRate

	plan  map[entities.Period][]entities.PlanEntry
	stock map[stockKey]decimal.Decimal
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		products:         make(map[entities.ProductID]entities.Product),
		productsByCode:   make(map[string]entities.ProductID),
		units:            make(map[entities.UnitID]entities.Unit),
		headers:          make(map[entities.BOMID]entities.BOMHeader),
		headersByProduct: make(map[entities.ProductID][]entities.BOMID),
		lines:            make(map[entities.BOMID][]entities.BOMLine),
		routings:         make(map[entities.BOMID][]entities.RoutingStep),
		operations:       make(map[entities.OperationID]entities.Operation),
		effectiveCosts:   make(map[entities.ProductID][]entities.EffectiveCost),
		purchases:        make(map[entities.ProductID][]entities.PurchasePrice),
		rates:            make(map[fxKey][]entities.FXRate),
		plan:             make(map[entities.Period][]entities.PlanEntry),
		stock:            make(map[stockKey]decimal.Decimal),
	}
}

// Verify interface compliance
var (
	_ repositories.ProductRepository = (*Store)(nil)
	_ repositories.CatalogWriter     = (*Store)(nil)
	_ repositories.BOMRepository     = (*Store)(nil)
	_ repositories.BOMWriter         = (*Store)(nil)
	_ repositories.PriceRepository   = (*Store)(nil)
	_ repositories.FXRateRepository  = (*Store)(nil)
	_ repositories.PlanRepository    = (*Store)(nil)
	_ repositories.StockRepository   = (*Store)(nil)
)

func timePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
