package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// FXDetail records how an amount was converted, so a caller can audit the rates used.
// Composite conversions keep one entry per hop in Steps.
type FXDetail struct {
	From          entities.Currency    `json:"from"`
	To            entities.Currency    `json:"to"`
	PriceDate     *time.Time           `json:"price_date,omitempty"`
	Rate          *decimal.Decimal     `json:"rate,omitempty"`
	RateDate      *time.Time           `json:"rate_date,omitempty"`
	RequestedKind entities.RateKind    `json:"requested_kind,omitempty"`
	KindUsed      entities.RateKind    `json:"kind_used,omitempty"`
	SearchOrigin  string               `json:"search_origin,omitempty"`
	IsEstimate    bool                 `json:"is_estimate"`
	MissingRate   bool                 `json:"missing_rate,omitempty"`
	Steps         []FXDetail           `json:"steps,omitempty"`
	Cycle         bool                 `json:"cycle,omitempty"`
	CyclePath     []entities.ProductID `json:"cycle_path,omitempty"`
	SubBOM        *SubBOMRef           `json:"sub_bom,omitempty"`
}

// SubBOMRef identifies the BOM whose valorization priced a component
type SubBOMRef struct {
	BOMID    entities.BOMID `json:"bom_id"`
	Revision string         `json:"revision"`
}
