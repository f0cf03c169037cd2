package repositories

import (
	"context"
	"time"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// PriceRepository provides the cost sources of a product. Both methods return nil when nothing applies.
type PriceRepository interface {
	// GetEffectiveCost returns the record in effect on asOf with the latest ValidFrom.
	GetEffectiveCost(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.EffectiveCost, error)

	// GetLatestPurchasePrice returns the most recent entry by price date, tie-broken by id.
	GetLatestPurchasePrice(ctx context.Context, productID entities.ProductID) (*entities.PurchasePrice, error)
}

// FXRateRepository provides the FX rate history. All methods return nil when no rate matches.
type FXRateRepository interface {
	GetRate(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error)
	// GetClosestBefore returns the latest rate strictly before day.
	GetClosestBefore(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error)
	// GetClosestAfter returns the earliest rate strictly after day.
	GetClosestAfter(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error)
}
