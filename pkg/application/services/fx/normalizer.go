package fx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/entities"
)

// Currencies names the working currencies of the normalizer
type Currencies struct {
	// Base is the currency unit costs are resolved into (e.g. USD).
	Base entities.Currency
	// Display is the reporting currency; every rate is quoted in display units (e.g. ARS).
	Display entities.Currency
	// Wholesale is an auxiliary quote of the base currency that may fall back to any rate kind.
	Wholesale entities.Currency
}

// Conversion is the outcome of converting an amount. When no rate was found Value holds
// the unconverted amount and Currency the source currency, with IsEstimate set.
type Conversion struct {
	Value      decimal.Decimal
	Currency   entities.Currency
	Detail     *dto.FXDetail
	IsEstimate bool
}

// Normalizer converts amounts into the base and display currencies
type Normalizer struct {
	resolver   *Resolver
	currencies Currencies
	kind       entities.RateKind
	now        func() time.Time
	logger     logrus.FieldLogger
}

// NewNormalizer creates a normalizer. now supplies "today" for current-rate conversions.
func NewNormalizer(resolver *Resolver, currencies Currencies, kind entities.RateKind, now func() time.Time, logger logrus.FieldLogger) *Normalizer {
	if now == nil {
		now = time.Now
	}
	if kind == "" {
		kind = entities.RateKindAverage
	}
	return &Normalizer{
		resolver: resolver,
		currencies: Currencies{
			Base:      currencies.Base.Normalize(),
			Display:   currencies.Display.Normalize(),
			Wholesale: currencies.Wholesale.Normalize(),
		},
		kind:   kind,
		now:    now,
		logger: logger,
	}
}

// Currencies returns the configured working currencies
func (n *Normalizer) Currencies() Currencies {
	return n.currencies
}

// Today returns the normalizer's notion of the current day
func (n *Normalizer) Today() time.Time {
	return entities.DateOf(n.now())
}

// ToBase converts amount in source into the base currency using the rate history at asOf.
// Currencies other than base and display are first taken to display at the same date,
// then to base; both legs are kept in Detail.Steps and their estimate flags are OR-ed.
func (n *Normalizer) ToBase(ctx context.Context, amount decimal.Decimal, source entities.Currency, asOf time.Time) (*Conversion, error) {
	source = source.Normalize()
	asOf = entities.DateOf(asOf)

	switch source {
	case n.currencies.Base:
		return &Conversion{Value: amount, Currency: source}, nil
	case n.currencies.Display:
		return n.displayToBase(ctx, amount, asOf)
	}

	first, err := n.toDisplayAt(ctx, amount, source, asOf)
	if err != nil {
		return nil, err
	}
	if first.Currency != n.currencies.Display {
		first.Detail.PriceDate = &asOf
		return first, nil
	}

	second, err := n.displayToBase(ctx, first.Value, asOf)
	if err != nil {
		return nil, err
	}
	return &Conversion{
		Value:    second.Value,
		Currency: second.Currency,
		Detail: &dto.FXDetail{
			From:        source,
			To:          second.Currency,
			PriceDate:   &asOf,
			IsEstimate:  first.IsEstimate || second.IsEstimate,
			MissingRate: second.Detail.MissingRate,
			Steps:       []dto.FXDetail{*first.Detail, *second.Detail},
		},
		IsEstimate: first.IsEstimate || second.IsEstimate,
	}, nil
}

// ToDisplay converts amount in currency into the display currency at today's nearest rate
func (n *Normalizer) ToDisplay(ctx context.Context, amount decimal.Decimal, currency entities.Currency) (*Conversion, error) {
	currency = currency.Normalize()
	if currency == n.currencies.Display {
		return &Conversion{Value: amount, Currency: currency}, nil
	}
	return n.toDisplayAt(ctx, amount, currency, n.Today())
}

// FromDisplay converts a display-currency amount into target at the rate of day
func (n *Normalizer) FromDisplay(ctx context.Context, amount decimal.Decimal, target entities.Currency, day time.Time) (*Conversion, error) {
	target = target.Normalize()
	if target == n.currencies.Display {
		return &Conversion{Value: amount, Currency: target}, nil
	}
	match, err := n.lookup(ctx, target, entities.DateOf(day))
	if err != nil {
		return nil, err
	}
	detail := &dto.FXDetail{From: n.currencies.Display, To: target, RequestedKind: n.kind}
	if match == nil || !match.Rate.IsPositive() {
		detail.MissingRate = true
		detail.IsEstimate = true
		return &Conversion{Value: amount, Currency: n.currencies.Display, Detail: detail, IsEstimate: true}, nil
	}
	fillDetail(detail, match)
	return &Conversion{Value: amount.Div(match.Rate), Currency: target, Detail: detail, IsEstimate: match.IsEstimate}, nil
}

func (n *Normalizer) displayToBase(ctx context.Context, amount decimal.Decimal, asOf time.Time) (*Conversion, error) {
	conv, err := n.FromDisplay(ctx, amount, n.currencies.Base, asOf)
	if err != nil {
		return nil, err
	}
	conv.Detail.PriceDate = &asOf
	if conv.IsEstimate {
		n.logger.WithFields(logrus.Fields{
			"currency": n.currencies.Base,
			"date":     asOf.Format(time.DateOnly),
			"missing":  conv.Detail.MissingRate,
		}).Debug("historical conversion used an estimated rate")
	}
	return conv, nil
}

// toDisplayAt multiplies amount by the currency's rate on day
func (n *Normalizer) toDisplayAt(ctx context.Context, amount decimal.Decimal, currency entities.Currency, day time.Time) (*Conversion, error) {
	match, err := n.lookup(ctx, currency, day)
	if err != nil {
		return nil, err
	}
	detail := &dto.FXDetail{From: currency, To: n.currencies.Display, RequestedKind: n.kind}
	if match == nil || !match.Rate.IsPositive() {
		detail.MissingRate = true
		detail.IsEstimate = true
		n.logger.WithFields(logrus.Fields{
			"currency": currency,
			"date":     day.Format(time.DateOnly),
		}).Warn("no fx rate available, amount left unconverted")
		return &Conversion{Value: amount, Currency: currency, Detail: detail, IsEstimate: true}, nil
	}
	fillDetail(detail, match)
	return &Conversion{
		Value:      amount.Mul(match.Rate),
		Currency:   n.currencies.Display,
		Detail:     detail,
		IsEstimate: match.IsEstimate,
	}, nil
}

// lookup applies the permissive any-kind search only to the wholesale currency
func (n *Normalizer) lookup(ctx context.Context, currency entities.Currency, day time.Time) (*Match, error) {
	if currency == n.currencies.Wholesale && currency != "" {
		return n.resolver.NearestRateAnyKind(ctx, currency, day, n.kind)
	}
	return n.resolver.NearestRate(ctx, currency, day, n.kind)
}

func fillDetail(detail *dto.FXDetail, match *Match) {
	rate := match.Rate
	matched := match.MatchedDate
	detail.Rate = &rate
	detail.RateDate = &matched
	detail.KindUsed = match.KindUsed
	detail.SearchOrigin = match.SearchOrigin
	detail.IsEstimate = match.IsEstimate
}
