package dto

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

// BOMTreeRow is one row of a leveled BOM export. Level 0 is the exported product
// itself, level n+1 rows belong to the closest preceding level n row.
type BOMTreeRow struct {
	Row         int
	Code        string
	Description string
	// Quantity is nil when the cell was empty.
	Quantity *decimal.Decimal
	Level    int
}

// BOMImportResult summarizes a leveled BOM import
type BOMImportResult struct {
	Root  *entities.BOMHeader
	Lines []*entities.BOMLine
	// Drafts lists every DRAFT header written, the root's first.
	Drafts []entities.BOMID
	// Created lists the codes of the products registered by the import.
	Created []string
}
