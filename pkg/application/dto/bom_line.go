package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// LineInput is a request to create or update a BOM line. A zero ID inserts,
// a zero LineNumber takes the next free number of the header.
type LineInput struct {
	ID                  entities.BOMLineID `json:"id,omitempty" validate:"gte=0"`
	BOMID               entities.BOMID     `json:"bom_id" validate:"required,gt=0"`
	LineNumber          int                `json:"line_number" validate:"gte=0"`
	ChildProductID      entities.ProductID `json:"child_product_id" validate:"required,gt=0"`
	Quantity            decimal.Decimal    `json:"quantity"`
	UnitID              entities.UnitID    `json:"unit_id" validate:"required,gt=0"`
	ScrapFactor         decimal.Decimal    `json:"scrap_factor"`
	OperationSequence   *int               `json:"operation_sequence,omitempty" validate:"omitempty,gt=0"`
	AlternativeGroup    string             `json:"alternative_group,omitempty" validate:"max=32"`
	ReferenceDesignator string             `json:"reference_designator,omitempty" validate:"max=64"`
	Notes               string             `json:"notes,omitempty" validate:"max=255"`
}

// ToEntity builds the BOM line described by the input
func (in LineInput) ToEntity() *entities.BOMLine {
	return &entities.BOMLine{
		ID:                  in.ID,
		BOMID:               in.BOMID,
		LineNumber:          in.LineNumber,
		ChildProductID:      in.ChildProductID,
		Quantity:            in.Quantity,
		UnitID:              in.UnitID,
		ScrapFactor:         in.ScrapFactor,
		OperationSequence:   in.OperationSequence,
		AlternativeGroup:    in.AlternativeGroup,
		ReferenceDesignator: in.ReferenceDesignator,
		Notes:               in.Notes,
	}
}
