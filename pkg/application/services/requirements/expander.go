// Package requirements explodes production plans into valorized leaf requirements.
package requirements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/application/services/shared"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// ErrNoActiveBOM is returned by Expand when the requested product has no ACTIVE BOM
var ErrNoActiveBOM = errors.New("product has no active bom")

// LeafRequirement is a component quantity that is not exploded further
type LeafRequirement struct {
	ProductID entities.ProductID
	Code      string
	Name      string
	UnitID    entities.UnitID
	UnitCode  string
	Quantity  decimal.Decimal
}

// Expander walks ACTIVE BOMs multiplying quantities down to the leaves
type Expander struct {
	boms     repositories.BOMRepository
	products repositories.ProductRepository
	maxDepth int
	logger   logrus.FieldLogger
}

// NewExpander creates an expander. maxDepth caps the number of nested BOM levels;
// a manufactured component below the cap is emitted as a leaf.
func NewExpander(boms repositories.BOMRepository, products repositories.ProductRepository, maxDepth int, logger logrus.FieldLogger) *Expander {
	return &Expander{boms: boms, products: products, maxDepth: maxDepth, logger: logger}
}

// Expand returns the leaf requirements for qty units of productID using the BOMs
// ACTIVE on asOf.
func (e *Expander) Expand(ctx context.Context, productID entities.ProductID, qty decimal.Decimal, asOf time.Time) ([]LeafRequirement, error) {
	r := &expansion{
		Expander:     e,
		asOf:         entities.DateOf(asOf),
		productCache: make(map[entities.ProductID]*entities.Product),
		unitCache:    make(map[entities.UnitID]*entities.Unit),
		headerCache:  make(map[entities.ProductID]*entities.BOMHeader),
	}
	header, err := r.activeHeader(ctx, productID)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, fmt.Errorf("product %d: %w", productID, ErrNoActiveBOM)
	}
	return r.expand(ctx, productID, qty, shared.Path{})
}

// expansion caches catalog and header lookups for one Expand call
type expansion struct {
	*Expander
	asOf         time.Time
	productCache map[entities.ProductID]*entities.Product
	unitCache    map[entities.UnitID]*entities.Unit
	headerCache  map[entities.ProductID]*entities.BOMHeader
}

func (r *expansion) expand(ctx context.Context, productID entities.ProductID, qty decimal.Decimal, path shared.Path) ([]LeafRequirement, error) {
	if path.Contains(productID) {
		r.logger.WithFields(logrus.Fields{
			"product_id": productID,
			"path":       path.Push(productID).IDs(),
		}).Warn("cycle detected while expanding requirements")
		return nil, nil
	}

	header, err := r.activeHeader(ctx, productID)
	if err != nil || header == nil {
		return nil, err
	}
	path = path.Push(productID)

	lines, err := r.boms.GetLines(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines of bom %d: %w", header.ID, err)
	}

	var leaves []LeafRequirement
	for _, line := range lines {
		if !line.Quantity.IsPositive() {
			continue
		}
		lineQty := qty.Mul(line.Quantity).Mul(decimal.NewFromInt(1).Add(scrapOrZero(line.ScrapFactor)))

		child, err := r.product(ctx, line.ChildProductID)
		if err != nil {
			return nil, err
		}

		if child != nil && child.Type.IsManufactured() {
			childHeader, err := r.activeHeader(ctx, child.ID)
			if err != nil {
				return nil, err
			}
			if childHeader != nil {
				if path.Depth() < r.maxDepth {
					sub, err := r.expand(ctx, child.ID, lineQty, path)
					if err != nil {
						return nil, err
					}
					leaves = append(leaves, sub...)
					continue
				}
				r.logger.WithFields(logrus.Fields{
					"product_id": child.ID,
					"path":       path.IDs(),
				}).WithError(costing.ErrMaxDepthExceeded).Warn("bom nesting too deep, keeping component as a leaf")
			}
		}

		leaf, err := r.leaf(ctx, line.ChildProductID, child, line.UnitID, lineQty)
		if err != nil {
			return nil, err
		}
		leaves = append(leaves, leaf)
	}
	return leaves, nil
}

func (r *expansion) leaf(ctx context.Context, id entities.ProductID, p *entities.Product, unitID entities.UnitID, qty decimal.Decimal) (LeafRequirement, error) {
	leaf := LeafRequirement{ProductID: id, UnitID: unitID, Quantity: qty}
	if p != nil {
		leaf.Code = p.Code
		leaf.Name = p.Name
	}
	u, err := r.unit(ctx, unitID)
	if err != nil {
		return leaf, err
	}
	if u != nil {
		leaf.UnitCode = u.Code
	}
	return leaf, nil
}

func (r *expansion) activeHeader(ctx context.Context, id entities.ProductID) (*entities.BOMHeader, error) {
	if h, ok := r.headerCache[id]; ok {
		return h, nil
	}
	h, err := r.boms.GetActiveHeader(ctx, id, r.asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bom of product %d: %w", id, err)
	}
	r.headerCache[id] = h
	return h, nil
}

func (r *expansion) product(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	if p, ok := r.productCache[id]; ok {
		return p, nil
	}
	p, err := r.products.GetProduct(ctx, id)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	r.productCache[id] = p
	return p, nil
}

func (r *expansion) unit(ctx context.Context, id entities.UnitID) (*entities.Unit, error) {
	if u, ok := r.unitCache[id]; ok {
		return u, nil
	}
	u, err := r.products.GetUnit(ctx, id)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get unit %d: %w", id, err)
	}
	r.unitCache[id] = u
	return u, nil
}

func scrapOrZero(scrap decimal.Decimal) decimal.Decimal {
	if scrap.IsNegative() || scrap.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero
	}
	return scrap
}
