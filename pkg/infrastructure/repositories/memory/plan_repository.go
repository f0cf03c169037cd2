package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// AddPlanEntry adds or replaces the planned quantity of a product for a period
func (s *Store) AddPlanEntry(e entities.PlanEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.plan[e.Period]
	for i := range entries {
		if entries[i].ProductID == e.ProductID {
			entries[i] = e
			return
		}
	}
	s.plan[e.Period] = append(entries, e)
}

// AddStock adds to the on-hand quantity of a product for a period
func (s *Store) AddStock(e entities.StockEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stockKey{productID: e.ProductID, unitID: e.UnitID, period: e.Period}
	s.stock[key] = s.stock[key].Add(e.Quantity)
}

// GetPlan returns the plan entries of a period in insertion order
func (s *Store) GetPlan(ctx context.Context, period entities.Period) ([]*entities.PlanEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.plan[period]
	out := make([]*entities.PlanEntry, 0, len(entries))
	for _, e := range entries {
		e := e
		out = append(out, &e)
	}
	return out, nil
}

// GetOnHand returns the recorded on-hand quantity or zero
func (s *Store) GetOnHand(ctx context.Context, productID entities.ProductID, unitID entities.UnitID, period entities.Period) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[stockKey{productID: productID, unitID: unitID, period: period}], nil
}

// SaveStock replaces the on-hand quantity of a product for a period
func (s *Store) SaveStock(ctx context.Context, entry entities.StockEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{productID: entry.ProductID, unitID: entry.UnitID, period: entry.Period}] = entry.Quantity
	return nil
}
