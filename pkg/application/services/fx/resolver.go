// Package fx resolves historical exchange rates and converts amounts between
// the working currencies of the costing engine.
package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// SearchPolicy fixes the direction of the nearest-date search when no exact rate exists
type SearchPolicy string

const (
	// PastFirst uses the closest earlier rate, falling back to the closest later one.
	PastFirst SearchPolicy = "past-first"
	// FutureFirst uses the closest later rate, falling back to the closest earlier one.
	FutureFirst SearchPolicy = "future-first"
)

// ParseSearchPolicy validates a policy name
func ParseSearchPolicy(s string) (SearchPolicy, error) {
	switch SearchPolicy(s) {
	case PastFirst, FutureFirst:
		return SearchPolicy(s), nil
	case "":
		return PastFirst, nil
	default:
		return "", fmt.Errorf("unknown fx search policy %q", s)
	}
}

// Search origins recorded on a Match
const (
	OriginExact  = "exact"
	OriginPast   = "past"
	OriginFuture = "future"
)

// Match is a rate found for a (currency, date, kind) request
type Match struct {
	Currency      entities.Currency
	Rate          decimal.Decimal
	RequestedDate time.Time
	MatchedDate   time.Time
	RequestedKind entities.RateKind
	KindUsed      entities.RateKind
	IsEstimate    bool
	SearchOrigin  string
}

// Resolver finds the nearest available rate in the FX history
type Resolver struct {
	rates  repositories.FXRateRepository
	policy SearchPolicy
	logger logrus.FieldLogger
}

// NewResolver creates a resolver with a fixed search policy
func NewResolver(rates repositories.FXRateRepository, policy SearchPolicy, logger logrus.FieldLogger) *Resolver {
	if policy == "" {
		policy = PastFirst
	}
	return &Resolver{rates: rates, policy: policy, logger: logger}
}

// Policy returns the search policy in use
func (r *Resolver) Policy() SearchPolicy {
	return r.policy
}

// NearestRate returns the rate for currency on day, or the nearest one according to the
// search policy. It returns nil without error when the history has no rate of that kind.
func (r *Resolver) NearestRate(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*Match, error) {
	currency = currency.Normalize()
	day = entities.DateOf(day)

	exact, err := r.rates.GetRate(ctx, currency, day, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s %s rate on %s: %w", currency, kind, day.Format(time.DateOnly), err)
	}
	if exact != nil {
		return newMatch(exact, day, kind, OriginExact), nil
	}

	first, second := r.rates.GetClosestBefore, r.rates.GetClosestAfter
	firstOrigin, secondOrigin := OriginPast, OriginFuture
	if r.policy == FutureFirst {
		first, second = second, first
		firstOrigin, secondOrigin = secondOrigin, firstOrigin
	}

	rate, err := first(ctx, currency, day, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s %s rate near %s: %w", currency, kind, day.Format(time.DateOnly), err)
	}
	if rate != nil {
		return newMatch(rate, day, kind, firstOrigin), nil
	}

	rate, err = second(ctx, currency, day, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s %s rate near %s: %w", currency, kind, day.Format(time.DateOnly), err)
	}
	if rate != nil {
		return newMatch(rate, day, kind, secondOrigin), nil
	}

	r.logger.WithFields(logrus.Fields{
		"currency": currency,
		"kind":     kind,
		"date":     day.Format(time.DateOnly),
	}).Debug("no fx rate in history")
	return nil, nil
}

// NearestRateAnyKind behaves like NearestRate for the preferred kind and, when that kind
// has no history at all, accepts the nearest rate of any other kind. Candidates are
// compared by distance in days; ties go to the earlier kind in entities.RateKinds.
func (r *Resolver) NearestRateAnyKind(ctx context.Context, currency entities.Currency, day time.Time, preferred entities.RateKind) (*Match, error) {
	match, err := r.NearestRate(ctx, currency, day, preferred)
	if err != nil || match != nil {
		return match, err
	}

	var best *Match
	for _, kind := range entities.RateKinds {
		if kind == preferred {
			continue
		}
		candidate, err := r.NearestRate(ctx, currency, day, kind)
		if err != nil {
			return nil, err
		}
		if candidate == nil {
			continue
		}
		if best == nil || distance(candidate) < distance(best) {
			best = candidate
		}
	}
	if best != nil {
		best.RequestedKind = preferred
	}
	return best, nil
}

func newMatch(rate *entities.FXRate, requested time.Time, kind entities.RateKind, origin string) *Match {
	matched := entities.DateOf(rate.Date)
	return &Match{
		Currency:      rate.Currency,
		Rate:          rate.Rate,
		RequestedDate: requested,
		MatchedDate:   matched,
		RequestedKind: kind,
		KindUsed:      rate.Kind,
		IsEstimate:    !matched.Equal(requested),
		SearchOrigin:  origin,
	}
}

func distance(m *Match) time.Duration {
	d := m.MatchedDate.Sub(m.RequestedDate)
	if d < 0 {
		return -d
	}
	return d
}
