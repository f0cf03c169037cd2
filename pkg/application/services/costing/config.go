package costing

import (
	"fmt"
	"time"

	"github.com/vsinha/mbom/pkg/application/services/fx"
	"github.com/vsinha/mbom/pkg/domain/entities"
)

// Config holds the working currencies and traversal limits of a costing service
type Config struct {
	BaseCurrency      entities.Currency
	DisplayCurrency   entities.Currency
	WholesaleCurrency entities.Currency
	RateKind          entities.RateKind
	Search            fx.SearchPolicy
	// MaxDepth caps the number of nested BOM levels a traversal will descend.
	MaxDepth int
	// Now supplies "today" for effective-cost validity and current-rate conversions.
	Now func() time.Time
}

// DefaultConfig returns the USD base / ARS display configuration
func DefaultConfig() Config {
	return Config{
		BaseCurrency:      "USD",
		DisplayCurrency:   "ARS",
		WholesaleCurrency: "USD_MAY",
		RateKind:          entities.RateKindAverage,
		Search:            fx.PastFirst,
		MaxDepth:          32,
		Now:               time.Now,
	}
}

// Validate checks that the configuration can drive a traversal
func (c Config) Validate() error {
	if c.BaseCurrency.Normalize() == "" || c.DisplayCurrency.Normalize() == "" {
		return fmt.Errorf("base and display currencies are required")
	}
	if c.RateKind != "" && !c.RateKind.IsValid() {
		return fmt.Errorf("unknown rate kind %q", c.RateKind)
	}
	if _, err := fx.ParseSearchPolicy(string(c.Search)); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max depth must not be negative, got %d", c.MaxDepth)
	}
	return nil
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BaseCurrency == "" {
		c.BaseCurrency = def.BaseCurrency
	}
	if c.DisplayCurrency == "" {
		c.DisplayCurrency = def.DisplayCurrency
	}
	if c.RateKind == "" {
		c.RateKind = def.RateKind
	}
	if c.Search == "" {
		c.Search = def.Search
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = def.MaxDepth
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	c.BaseCurrency = c.BaseCurrency.Normalize()
	c.DisplayCurrency = c.DisplayCurrency.Normalize()
	c.WholesaleCurrency = c.WholesaleCurrency.Normalize()
	return c
}
