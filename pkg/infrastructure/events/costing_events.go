package events

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

const (
	CycleDetectedEvent = "costing.cycle_detected"
	PriceMissingEvent  = "costing.price_missing"
	FXEstimatedEvent   = "costing.fx_estimated"
	FXMissingEvent     = "costing.fx_missing"
	BOMActivatedEvent  = "bom.activated"
	BOMClonedEvent     = "bom.cloned"
)

// CostingEventTypes lists the diagnostics a costing traversal can publish
var CostingEventTypes = []string{CycleDetectedEvent, PriceMissingEvent, FXEstimatedEvent, FXMissingEvent}

type CycleDetected struct {
	ProductID entities.ProductID   `json:"product_id"`
	Path      []entities.ProductID `json:"path"`
	DepthCap  bool                 `json:"depth_cap,omitempty"`
}

type PriceMissing struct {
	ProductID entities.ProductID `json:"product_id"`
}

type FXEstimated struct {
	ProductID     entities.ProductID `json:"product_id,omitempty"`
	Currency      entities.Currency  `json:"currency"`
	RequestedDate string             `json:"requested_date,omitempty"`
	MatchedDate   string             `json:"matched_date,omitempty"`
	Rate          decimal.Decimal    `json:"rate"`
}

type FXMissing struct {
	ProductID entities.ProductID `json:"product_id,omitempty"`
	Currency  entities.Currency  `json:"currency"`
}

type BOMActivated struct {
	BOMID     entities.BOMID     `json:"bom_id"`
	ProductID entities.ProductID `json:"product_id"`
	Revision  string             `json:"revision"`
	Archived  []entities.BOMID   `json:"archived,omitempty"`
}

type BOMCloned struct {
	SourceID entities.BOMID `json:"source_id"`
	DraftID  entities.BOMID `json:"draft_id"`
	Revision string         `json:"revision"`
	Lines    int            `json:"lines"`
}

// ProductStream names the stream of a product's diagnostics
func ProductStream(id entities.ProductID) string {
	return fmt.Sprintf("product-%d", id)
}

// BOMStream names the stream of a BOM header's lifecycle events
func BOMStream(id entities.BOMID) string {
	return fmt.Sprintf("bom-%d", id)
}

func NewCycleDetectedEvent(productID entities.ProductID, path []entities.ProductID, depthCap bool) Event {
	return NewEvent(CycleDetectedEvent, ProductStream(productID), CycleDetected{
		ProductID: productID,
		Path:      path,
		DepthCap:  depthCap,
	})
}

func NewPriceMissingEvent(productID entities.ProductID) Event {
	return NewEvent(PriceMissingEvent, ProductStream(productID), PriceMissing{ProductID: productID})
}

func NewFXEstimatedEvent(productID entities.ProductID, data FXEstimated) Event {
	data.ProductID = productID
	return NewEvent(FXEstimatedEvent, ProductStream(productID), data)
}

func NewFXMissingEvent(productID entities.ProductID, currency entities.Currency) Event {
	return NewEvent(FXMissingEvent, ProductStream(productID), FXMissing{ProductID: productID, Currency: currency})
}

func NewBOMActivatedEvent(data BOMActivated) Event {
	return NewEvent(BOMActivatedEvent, BOMStream(data.BOMID), data)
}

func NewBOMClonedEvent(data BOMCloned) Event {
	return NewEvent(BOMClonedEvent, BOMStream(data.DraftID), data)
}
