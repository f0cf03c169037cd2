package repositories

import (
	"context"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// ProductFilter narrows ListProducts
type ProductFilter struct {
	Type       entities.ProductType
	ActiveOnly bool
}

// ProductRepository provides access to the product catalog
type ProductRepository interface {
	GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error)
	GetProductByCode(ctx context.Context, code string) (*entities.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*entities.Product, error)
	GetUnit(ctx context.Context, id entities.UnitID) (*entities.Unit, error)
}

// CatalogWriter registers products and lists the units they may be measured in
type CatalogWriter interface {
	// SaveProduct inserts or updates a product, assigning its ID on insert.
	SaveProduct(ctx context.Context, product *entities.Product) error
	// ListUnits returns every unit of measure ordered by id.
	ListUnits(ctx context.Context) ([]*entities.Unit, error)
}
