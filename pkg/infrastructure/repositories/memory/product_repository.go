package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// AddProduct adds or replaces a product
func (s *Store) AddProduct(p entities.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.products[p.ID]; ok {
		delete(s.productsByCode, old.Code)
	}
	s.products[p.ID] = p
	s.productsByCode[strings.TrimSpace(p.Code)] = p.ID
}

// AddUnit adds or replaces a unit of measure
func (s *Store) AddUnit(u entities.Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units[u.ID] = u
}

// GetProduct returns the product or repositories.ErrNotFound
func (s *Store) GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, repositories.ErrNotFound)
	}
	return &p, nil
}

// GetProductByCode returns the product or repositories.ErrNotFound
func (s *Store) GetProductByCode(ctx context.Context, code string) (*entities.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.productsByCode[strings.TrimSpace(code)]
	if !ok {
		return nil, fmt.Errorf("product %q: %w", code, repositories.ErrNotFound)
	}
	p := s.products[id]
	return &p, nil
}

// ListProducts returns products matching the filter ordered by code
func (s *Store) ListProducts(ctx context.Context, filter repositories.ProductFilter) ([]*entities.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entities.Product
	for _, p := range s.products {
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if filter.ActiveOnly && !p.Active {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// GetUnit returns the unit or repositories.ErrNotFound
func (s *Store) GetUnit(ctx context.Context, id entities.UnitID) (*entities.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.units[id]
	if !ok {
		return nil, fmt.Errorf("unit %d: %w", id, repositories.ErrNotFound)
	}
	return &u, nil
}

// SaveProduct inserts or updates a product. A zero ID is assigned the next free one.
func (s *Store) SaveProduct(ctx context.Context, product *entities.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := strings.TrimSpace(product.Code)
	if id, ok := s.productsByCode[code]; ok && id != product.ID {
		return fmt.Errorf("product code %q already used by product %d", code, id)
	}
	if product.ID == 0 {
		for id := range s.products {
			if id > product.ID {
				product.ID = id
			}
		}
		product.ID++
	}
	if old, ok := s.products[product.ID]; ok {
		delete(s.productsByCode, old.Code)
	}
	s.products[product.ID] = *product
	s.productsByCode[code] = product.ID
	return nil
}

// ListUnits returns every unit ordered by id
func (s *Store) ListUnits(ctx context.Context) ([]*entities.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entities.Unit, 0, len(s.units))
	for _, u := range s.units {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
