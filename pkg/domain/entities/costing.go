package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is a canonical currency code such as USD or ARS
type Currency string

// Normalize returns the upper-cased, trimmed currency code
func (c Currency) Normalize() Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(string(c))))
}

// RateKind distinguishes buy, sell and average FX quotes
type RateKind string

const (
	RateKindBuy     RateKind = "BUY"
	RateKindSell    RateKind = "SELL"
	RateKindAverage RateKind = "AVERAGE"
)

// RateKinds lists every kind in the order used when any kind is acceptable
var RateKinds = []RateKind{RateKindAverage, RateKindSell, RateKindBuy}

// IsValid reports whether the kind is known
func (k RateKind) IsValid() bool {
	return k == RateKindBuy || k == RateKindSell || k == RateKindAverage
}

// FXRate is one entry of the rate history: display-currency units per one unit of Currency
type FXRate struct {
	ID       int64
	Date     time.Time
	Currency Currency
	Kind     RateKind
	Rate     decimal.Decimal
	Origin   string
	Notes    string
}

// EffectiveCost is an authoritative standard unit cost valid over a date range
type EffectiveCost struct {
	ProductID  ProductID
	UnitCost   decimal.Decimal
	Currency   Currency
	ValidFrom  time.Time
	ValidUntil *time.Time
}

// IsValidOn reports whether the record is in effect on the given day
func (c *EffectiveCost) IsValidOn(day time.Time) bool {
	day = DateOf(day)
	if DateOf(c.ValidFrom).After(day) {
		return false
	}
	return c.ValidUntil == nil || !DateOf(*c.ValidUntil).Before(day)
}

// PurchasePrice is one entry of the purchase price history
type PurchasePrice struct {
	ID           int64
	ProductID    ProductID
	SupplierCode string
	SupplierName string
	PriceDate    time.Time
	UnitPrice    decimal.Decimal
	Currency     Currency
	Origin       string
	Reference    string
	Notes        string
}

// OperationID identifies an operation of the routing catalog
type OperationID int64

// Operation is a routing step from the operations catalog
type Operation struct {
	ID              OperationID
	Code            string
	Name            string
	WorkCenter      string
	StandardMinutes decimal.Decimal
	HourlyCost      decimal.Decimal
	Currency        Currency
}

// RoutingStep attaches an operation to a BOM at a given sequence
type RoutingStep struct {
	BOMID     BOMID
	Sequence  int
	Notes     string
	Operation Operation
}

// Cost returns the step cost in the operation's own currency
func (s RoutingStep) Cost() decimal.Decimal {
	return s.Operation.StandardMinutes.Div(decimal.NewFromInt(60)).Mul(s.Operation.HourlyCost)
}

// Period is a planning month
type Period struct {
	Year  int
	Month int
}

// ParsePeriod parses a YYYY-MM string
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q (expected YYYY-MM): %w", s, err)
	}
	return Period{Year: t.Year(), Month: int(t.Month())}, nil
}

// String formats the period as YYYY-MM
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Previous returns the month before p
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Before reports whether p is an earlier month than other
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

// PlanEntry is the planned production quantity of a product for a period
type PlanEntry struct {
	ID        int64
	ProductID ProductID
	Period    Period
	Quantity  decimal.Decimal
}

// StockEntry is the on-hand quantity of a product at the start of a period
type StockEntry struct {
	ProductID ProductID
	UnitID    UnitID
	Period    Period
	Quantity  decimal.Decimal
}

// DateOf truncates t to its calendar day in UTC
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC calendar day
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
