package memory

import (
	"sort"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// Snapshot is a copy of everything held by a Store, ordered by id so that it can be
// replayed into another repository with parents ahead of children
type Snapshot struct {
	Units          []entities.Unit
	Products       []entities.Product
	Operations     []entities.Operation
	Headers        []entities.BOMHeader
	Lines          []entities.BOMLine
	Routings       []entities.RoutingStep
	EffectiveCosts []entities.EffectiveCost
	Purchases      []entities.PurchasePrice
	Rates          []entities.FXRate
	Plan           []entities.PlanEntry
	Stock          []entities.StockEntry
}

// Snapshot copies the store contents
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{}
	for _, u := range s.units {
		snap.Units = append(snap.Units, u)
	}
	sort.Slice(snap.Units, func(i, j int) bool { return snap.Units[i].ID < snap.Units[j].ID })

	for _, p := range s.products {
		snap.Products = append(snap.Products, p)
	}
	sort.Slice(snap.Products, func(i, j int) bool { return snap.Products[i].ID < snap.Products[j].ID })

	for _, op := range s.operations {
		snap.Operations = append(snap.Operations, op)
	}
	sort.Slice(snap.Operations, func(i, j int) bool { return snap.Operations[i].ID < snap.Operations[j].ID })

	for _, h := range s.headers {
		snap.Headers = append(snap.Headers, h)
	}
	sort.Slice(snap.Headers, func(i, j int) bool { return snap.Headers[i].ID < snap.Headers[j].ID })

	for _, h := range snap.Headers {
		snap.Lines = append(snap.Lines, s.lines[h.ID]...)
		snap.Routings = append(snap.Routings, s.routings[h.ID]...)
	}

	for _, p := range snap.Products {
		snap.EffectiveCosts = append(snap.EffectiveCosts, s.effectiveCosts[p.ID]...)
		snap.Purchases = append(snap.Purchases, s.purchases[p.ID]...)
	}

	for _, rates := range s.rates {
		snap.Rates = append(snap.Rates, rates...)
	}
	sort.Slice(snap.Rates, func(i, j int) bool {
		a, b := snap.Rates[i], snap.Rates[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		return a.Kind < b.Kind
	})

	periods := make([]entities.Period, 0, len(s.plan))
	for period := range s.plan {
		periods = append(periods, period)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
	for _, period := range periods {
		snap.Plan = append(snap.Plan, s.plan[period]...)
	}

	for key, qty := range s.stock {
		snap.Stock = append(snap.Stock, entities.StockEntry{
			ProductID: key.productID,
			UnitID:    key.unitID,
			Period:    key.period,
			Quantity:  qty,
		})
	}
	sort.Slice(snap.Stock, func(i, j int) bool {
		a, b := snap.Stock[i], snap.Stock[j]
		if a.Period != b.Period {
			return a.Period.Before(b.Period)
		}
		if a.ProductID != b.ProductID {
			return a.ProductID < b.ProductID
		}
		return a.UnitID < b.UnitID
	})

	return snap
}
