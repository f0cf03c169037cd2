package memory

import (
	"context"
	"sort"
	"time"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// AddEffectiveCost adds an effective cost record
func (s *Store) AddEffectiveCost(c entities.EffectiveCost) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Currency = c.Currency.Normalize()
	s.effectiveCosts[c.ProductID] = append(s.effectiveCosts[c.ProductID], c)
}

// AddPurchasePrice adds a purchase history entry. A zero ID is assigned in insertion order.
func (s *Store) AddPurchasePrice(p entities.PurchasePrice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextPurchaseID++
		p.ID = s.nextPurchaseID
	} else if p.ID > s.nextPurchaseID {
		s.nextPurchaseID = p.ID
	}
	p.Currency = p.Currency.Normalize()
	s.purchases[p.ProductID] = append(s.purchases[p.ProductID], p)
}

// AddRate adds or replaces the rate keyed by (currency, date, kind)
func (s *Store) AddRate(r entities.FXRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.Currency = r.Currency.Normalize()
	r.Date = entities.DateOf(r.Date)
	key := fxKey{currency: r.Currency, kind: r.Kind}
	rates := s.rates[key]
	idx := sort.Search(len(rates), func(i int) bool { return !rates[i].Date.Before(r.Date) })
	if idx < len(rates) && rates[idx].Date.Equal(r.Date) {
		rates[idx] = r
		return
	}
	rates = append(rates, entities.FXRate{})
	copy(rates[idx+1:], rates[idx:])
	rates[idx] = r
	s.rates[key] = rates
}

// GetEffectiveCost returns the record valid on asOf with the latest ValidFrom, or nil
func (s *Store) GetEffectiveCost(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.EffectiveCost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *entities.EffectiveCost
	for _, c := range s.effectiveCosts[productID] {
		if !c.IsValidOn(asOf) {
			continue
		}
		if best == nil || c.ValidFrom.After(best.ValidFrom) {
			c := c
			c.ValidUntil = timePtr(c.ValidUntil)
			best = &c
		}
	}
	return best, nil
}

// GetLatestPurchasePrice returns the most recent purchase entry, or nil
func (s *Store) GetLatestPurchasePrice(ctx context.Context, productID entities.ProductID) (*entities.PurchasePrice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *entities.PurchasePrice
	for _, p := range s.purchases[productID] {
		if best == nil || p.PriceDate.After(best.PriceDate) ||
			(p.PriceDate.Equal(best.PriceDate) && p.ID > best.ID) {
			p := p
			best = &p
		}
	}
	return best, nil
}

// GetRate returns the exact (currency, day, kind) rate, or nil
func (s *Store) GetRate(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rates, idx := s.search(currency, day, kind)
	if idx < len(rates) && rates[idx].Date.Equal(entities.DateOf(day)) {
		r := rates[idx]
		return &r, nil
	}
	return nil, nil
}

// GetClosestBefore returns the latest rate strictly before day, or nil
func (s *Store) GetClosestBefore(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rates, idx := s.search(currency, day, kind)
	if idx == 0 {
		return nil, nil
	}
	r := rates[idx-1]
	return &r, nil
}

// GetClosestAfter returns the earliest rate strictly after day, or nil
func (s *Store) GetClosestAfter(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rates, idx := s.search(currency, day, kind)
	if idx < len(rates) && rates[idx].Date.Equal(entities.DateOf(day)) {
		idx++
	}
	if idx >= len(rates) {
		return nil, nil
	}
	r := rates[idx]
	return &r, nil
}

// search returns the sorted rates for the key and the index of the first rate on or after day
func (s *Store) search(currency entities.Currency, day time.Time, kind entities.RateKind) ([]entities.FXRate, int) {
	day = entities.DateOf(day)
	rates := s.rates[fxKey{currency: currency.Normalize(), kind: kind}]
	idx := sort.Search(len(rates), func(i int) bool { return !rates[i].Date.Before(day) })
	return rates, idx
}

// SaveRate stores an imported rate, replacing the one of the same day and kind
func (s *Store) SaveRate(ctx context.Context, rate entities.FXRate) error {
	s.AddRate(rate)
	return nil
}
