package dto

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// RequirementsReport is the valorized leaf requirement list of a production plan period
type RequirementsReport struct {
	RunID       uuid.UUID         `json:"run_id"`
	Period      string            `json:"period"`
	Lines       []RequirementLine `json:"lines"`
	TotalGross  decimal.Decimal   `json:"total_gross"`
	TotalNet    decimal.Decimal   `json:"total_net"`
	Currency    entities.Currency `json:"currency"`
	AlertFX     bool              `json:"alert_fx"`
	DetailAlert *string           `json:"detail_alert,omitempty"`
}

// RequirementLine is one aggregated leaf requirement keyed by product and unit
type RequirementLine struct {
	ProductID  entities.ProductID `json:"product_id"`
	Code       string             `json:"code"`
	Name       string             `json:"name"`
	UnitID     entities.UnitID    `json:"unit_id"`
	UnitCode   string             `json:"unit_code"`
	Gross      decimal.Decimal    `json:"gross_quantity"`
	OnHand     decimal.Decimal    `json:"on_hand"`
	Net        decimal.Decimal    `json:"net_quantity"`
	UnitCost   decimal.Decimal    `json:"unit_cost"`
	Source     CostSource         `json:"source"`
	TotalGross decimal.Decimal    `json:"total_gross"`
	TotalNet   decimal.Decimal    `json:"total_net"`
	AlertFX    bool               `json:"alert_fx"`
}
