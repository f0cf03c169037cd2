package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// AlertMessage accompanies a breakdown whose alert flag is raised
const AlertMessage = "some lines were converted with an estimated rate or have no price; verify exchange rates"

// CostSource tells where a component's unit cost came from
type CostSource string

const (
	SourceEffectiveCost   CostSource = "effective_cost"
	SourcePurchaseHistory CostSource = "purchase_history"
	SourceSubBOM          CostSource = "sub_bom"
	SourceCycle           CostSource = "cycle"
	SourceNone            CostSource = "none"
)

// CostBreakdown is the valorized result of one BOM
type CostBreakdown struct {
	BOMID       entities.BOMID     `json:"bom_id"`
	ProductID   entities.ProductID `json:"product_id"`
	Revision    string             `json:"revision"`
	Materials   MaterialSection    `json:"materials"`
	Processes   ProcessSection     `json:"processes"`
	Total       decimal.Decimal    `json:"total"`
	Currency    entities.Currency  `json:"currency"`
	Percentages Percentages        `json:"breakdown_pct"`
	AlertFX     bool               `json:"alert_fx"`
	DetailAlert *string            `json:"detail_alert,omitempty"`
	// Cycles lists every product chain found to loop back on itself, including below sub-BOMs.
	Cycles [][]entities.ProductID `json:"cycles,omitempty"`
}

// MaterialSection groups the component lines of a breakdown
type MaterialSection struct {
	Lines    []MaterialLine    `json:"lines"`
	Total    decimal.Decimal   `json:"total"`
	Currency entities.Currency `json:"currency"`
}

// ProcessSection groups the routing operations of a breakdown
type ProcessSection struct {
	Operations []ProcessLine     `json:"operations"`
	Total      decimal.Decimal   `json:"total"`
	Currency   entities.Currency `json:"currency"`
}

// Percentages splits the grand total between materials and processes
type Percentages struct {
	Materials decimal.Decimal `json:"materials_pct"`
	Processes decimal.Decimal `json:"processes_pct"`
}

// MaterialLine is one valorized BOM line
type MaterialLine struct {
	LineNumber   int                `json:"line_number"`
	ProductID    entities.ProductID `json:"product_id"`
	Code         string             `json:"code"`
	Name         string             `json:"name"`
	UnitCode     string             `json:"unit_code"`
	Quantity     decimal.Decimal    `json:"quantity"`
	ScrapFactor  decimal.Decimal    `json:"scrap_factor"`
	UnitCost     decimal.Decimal    `json:"unit_cost"`
	UnitCostBase *decimal.Decimal   `json:"unit_cost_base"`
	Currency     entities.Currency  `json:"currency"`
	Source       CostSource         `json:"source"`
	Total        decimal.Decimal    `json:"total"`
	Skipped      bool               `json:"skipped,omitempty"`
	FX           FXTrail            `json:"fx"`
}

// FXTrail holds both conversion legs of a material line
type FXTrail struct {
	Historical     *FXDetail         `json:"historical,omitempty"`
	Display        *FXDetail         `json:"display,omitempty"`
	BaseCurrency   entities.Currency `json:"base_currency"`
	SourceCurrency entities.Currency `json:"source_currency"`
	PriceDate      *string           `json:"price_date,omitempty"`
}

// ProcessLine is one valorized routing operation
type ProcessLine struct {
	Sequence        int               `json:"sequence"`
	Code            string            `json:"code"`
	Name            string            `json:"name"`
	WorkCenter      string            `json:"work_center"`
	StandardMinutes decimal.Decimal   `json:"standard_minutes"`
	HourlyCost      decimal.Decimal   `json:"hourly_cost"`
	HourlyCurrency  entities.Currency `json:"hourly_currency"`
	Subtotal        decimal.Decimal   `json:"subtotal"`
	FX              *FXDetail         `json:"fx,omitempty"`
}

// ProductCost is one row of the cost report over finished goods
type ProductCost struct {
	ProductID      entities.ProductID   `json:"product_id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	Type           entities.ProductType `json:"type"`
	BOMID          entities.BOMID       `json:"bom_id"`
	Revision       string               `json:"revision"`
	Currency       entities.Currency    `json:"currency"`
	MaterialsTotal decimal.Decimal      `json:"materials_total"`
	ProcessesTotal decimal.Decimal      `json:"processes_total"`
	Total          decimal.Decimal      `json:"total"`
	AlertFX        bool                 `json:"alert_fx"`
	DetailAlert    *string              `json:"detail_alert,omitempty"`
}
