package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// PlanRepository provides the monthly production plan
type PlanRepository interface {
	GetPlan(ctx context.Context, period entities.Period) ([]*entities.PlanEntry, error)
}

// StockRepository provides on-hand stock per period
type StockRepository interface {
	// GetOnHand returns zero when no stock is recorded.
	GetOnHand(ctx context.Context, productID entities.ProductID, unitID entities.UnitID, period entities.Period) (decimal.Decimal, error)
}
