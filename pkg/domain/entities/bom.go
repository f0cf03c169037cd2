package entities

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// BOMID identifies a BOM header (one revision of a product structure)
type BOMID int64

// BOMLineID identifies a single BOM line
type BOMLineID int64

var (
	ErrInvalidQuantity    = errors.New("quantity must be positive")
	ErrInvalidScrapFactor = errors.New("scrap factor must be in [0, 1)")
	ErrInvalidTransition  = errors.New("invalid BOM state transition")
)

// BOMState is the lifecycle state of a BOM header
type BOMState string

const (
	BOMStateDraft    BOMState = "DRAFT"
	BOMStateActive   BOMState = "ACTIVE"
	BOMStateArchived BOMState = "ARCHIVED"
)

// IsValid reports whether the state is a known lifecycle state
func (s BOMState) IsValid() bool {
	return s == BOMStateDraft || s == BOMStateActive || s == BOMStateArchived
}

// CanTransitionTo reports whether a header may move from s to next.
// Archived headers are frozen; a draft may be activated or discarded.
func (s BOMState) CanTransitionTo(next BOMState) bool {
	switch s {
	case BOMStateDraft:
		return next == BOMStateActive || next == BOMStateArchived
	case BOMStateActive:
		return next == BOMStateArchived
	default:
		return false
	}
}

// BOMHeader is one revision of a manufactured product's structure
type BOMHeader struct {
	ID         BOMID
	ProductID  ProductID
	Revision   string
	State      BOMState
	ValidFrom  *time.Time
	ValidUntil *time.Time
	Notes      string
	CreatedAt  time.Time
}

// IsEffectiveOn reports whether the header's validity window includes the given day.
// A missing ValidUntil means open ended.
func (h *BOMHeader) IsEffectiveOn(day time.Time) bool {
	day = DateOf(day)
	if h.ValidUntil != nil && DateOf(*h.ValidUntil).Before(day) {
		return false
	}
	return true
}

// NextRevision returns the revision label that follows last.
// Single letters advance alphabetically, anything else gets "_1" appended.
func NextRevision(last string) string {
	if last == "" {
		return "A"
	}
	if len(last) == 1 && unicode.IsLetter(rune(last[0])) {
		upper := strings.ToUpper(last)
		if upper == "Z" {
			return "Z_1"
		}
		return string(rune(upper[0]) + 1)
	}
	return last + "_1"
}

// BOMLine represents a single component line of a BOM header
type BOMLine struct {
	ID                  BOMLineID
	BOMID               BOMID
	LineNumber          int
	ChildProductID      ProductID
	Quantity            decimal.Decimal
	UnitID              UnitID
	ScrapFactor         decimal.Decimal
	OperationSequence   *int
	AlternativeGroup    string
	ReferenceDesignator string
	Notes               string
}

// NewBOMLine creates a validated BOMLine
func NewBOMLine(bomID BOMID, lineNumber int, childID ProductID, quantity decimal.Decimal, unitID UnitID, scrap decimal.Decimal) (*BOMLine, error) {
	line := &BOMLine{
		BOMID:          bomID,
		LineNumber:     lineNumber,
		ChildProductID: childID,
		Quantity:       quantity,
		UnitID:         unitID,
		ScrapFactor:    scrap,
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}
	return line, nil
}

// Validate checks the invariants enforced before a line is persisted
func (l *BOMLine) Validate() error {
	if l.ChildProductID <= 0 {
		return fmt.Errorf("line %d: child product is required", l.LineNumber)
	}
	if l.UnitID <= 0 {
		return fmt.Errorf("line %d: unit of measure is required", l.LineNumber)
	}
	if !l.Quantity.IsPositive() {
		return fmt.Errorf("line %d: %w, got %s", l.LineNumber, ErrInvalidQuantity, l.Quantity)
	}
	if l.ScrapFactor.IsNegative() || l.ScrapFactor.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("line %d: %w, got %s", l.LineNumber, ErrInvalidScrapFactor, l.ScrapFactor)
	}
	return nil
}

// GrossQuantity returns quantity * (1 + scrap factor) for the given parent quantity
func (l *BOMLine) GrossQuantity(parentQty decimal.Decimal) decimal.Decimal {
	return parentQty.Mul(l.Quantity).Mul(decimal.NewFromInt(1).Add(l.ScrapFactor))
}
