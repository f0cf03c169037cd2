package postgres

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

type unitModel struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"size:16;not null;uniqueIndex"`
	Name string `gorm:"size:64"`
}

func (unitModel) TableName() string {
	return "units"
}

type productModel struct {
	ID            int64  `gorm:"primaryKey"`
	Code          string `gorm:"size:64;not null;uniqueIndex"`
	Name          string `gorm:"size:255;not null"`
	Type          string `gorm:"size:8;not null;index"`
	DefaultUnitID int64  `gorm:"not null"`
	Active        bool   `gorm:"not null;default:true"`
}

func (productModel) TableName() string {
	return "products"
}

type bomHeaderModel struct {
	ID         int64      `gorm:"primaryKey"`
	ProductID  int64      `gorm:"not null;index"`
	Revision   string     `gorm:"size:16;not null"`
	State      string     `gorm:"size:16;not null;default:DRAFT"`
	ValidFrom  *time.Time `gorm:"type:date"`
	ValidUntil *time.Time `gorm:"type:date"`
	Notes      string     `gorm:"type:text"`
	CreatedAt  time.Time
}

func (bomHeaderModel) TableName() string {
	return "bom_headers"
}

type bomLineModel struct {
	ID                  int64           `gorm:"primaryKey"`
	BOMID               int64           `gorm:"column:bom_id;not null;uniqueIndex:idx_bom_lines_number"`
	LineNumber          int             `gorm:"not null;uniqueIndex:idx_bom_lines_number"`
	ChildProductID      int64           `gorm:"not null;index"`
	Quantity            decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	UnitID              int64           `gorm:"not null"`
	ScrapFactor         decimal.Decimal `gorm:"type:decimal(9,6);not null;default:0"`
	OperationSequence   *int            `gorm:"column:operation_sequence"`
	AlternativeGroup    string          `gorm:"size:32"`
	ReferenceDesignator string          `gorm:"size:64"`
	Notes               string          `gorm:"size:255"`
}

func (bomLineModel) TableName() string {
	return "bom_lines"
}

type operationModel struct {
	ID              int64           `gorm:"primaryKey"`
	Code            string          `gorm:"size:32;not null;uniqueIndex"`
	Name            string          `gorm:"size:255"`
	WorkCenter      string          `gorm:"size:64"`
	StandardMinutes decimal.Decimal `gorm:"type:decimal(12,4);not null"`
	HourlyCost      decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Currency        string          `gorm:"size:3;not null"`
}

func (operationModel) TableName() string {
	return "operations"
}

type bomOperationModel struct {
	ID          int64          `gorm:"primaryKey"`
	BOMID       int64          `gorm:"column:bom_id;not null;uniqueIndex:idx_bom_operation_seq"`
	OperationID int64          `gorm:"not null"`
	Sequence    int            `gorm:"not null;uniqueIndex:idx_bom_operation_seq"`
	Notes       string         `gorm:"size:255"`
	Operation   operationModel `gorm:"foreignKey:OperationID"`
}

func (bomOperationModel) TableName() string {
	return "bom_operations"
}

type effectiveCostModel struct {
	ID         int64           `gorm:"primaryKey"`
	ProductID  int64           `gorm:"not null;uniqueIndex:idx_effective_cost_from"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Currency   string          `gorm:"size:3;not null"`
	ValidFrom  time.Time       `gorm:"type:date;not null;uniqueIndex:idx_effective_cost_from"`
	ValidUntil *time.Time      `gorm:"type:date"`
}

func (effectiveCostModel) TableName() string {
	return "effective_costs"
}

type purchasePriceModel struct {
	ID           int64           `gorm:"primaryKey"`
	ProductID    int64           `gorm:"not null"`
	SupplierCode string          `gorm:"size:32"`
	SupplierName string          `gorm:"size:255"`
	PriceDate    time.Time       `gorm:"type:date;not null"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Currency     string          `gorm:"size:3;not null"`
	Origin       string          `gorm:"size:32"`
	Reference    string          `gorm:"size:64"`
	Notes        string          `gorm:"type:text"`
}

func (purchasePriceModel) TableName() string {
	return "purchase_prices"
}

type fxRateModel struct {
	ID       int64           `gorm:"primaryKey"`
	Date     time.Time       `gorm:"type:date;not null;uniqueIndex:idx_fx_rates_key"`
	Currency string          `gorm:"size:3;not null;uniqueIndex:idx_fx_rates_key"`
	Kind     string          `gorm:"size:16;not null;uniqueIndex:idx_fx_rates_key"`
	Rate     decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Origin   string          `gorm:"size:32"`
	Notes    string          `gorm:"type:text"`
}

func (fxRateModel) TableName() string {
	return "fx_rates"
}

type planEntryModel struct {
	ID        int64           `gorm:"primaryKey"`
	ProductID int64           `gorm:"not null;uniqueIndex:idx_plan_key"`
	Year      int             `gorm:"not null;uniqueIndex:idx_plan_key"`
	Month     int             `gorm:"not null;uniqueIndex:idx_plan_key"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
}

func (planEntryModel) TableName() string {
	return "production_plan"
}

type stockEntryModel struct {
	ID        int64           `gorm:"primaryKey"`
	ProductID int64           `gorm:"not null;uniqueIndex:idx_stock_key"`
	UnitID    int64           `gorm:"not null;uniqueIndex:idx_stock_key"`
	Year      int             `gorm:"not null;uniqueIndex:idx_stock_key"`
	Month     int             `gorm:"not null;uniqueIndex:idx_stock_key"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,6);not null"`
}

func (stockEntryModel) TableName() string {
	return "stock"
}

func (m *unitModel) toEntity() *entities.Unit {
	return &entities.Unit{ID: entities.UnitID(m.ID), Code: m.Code, Name: m.Name}
}

func (m *productModel) toEntity() *entities.Product {
	return &entities.Product{
		ID:          entities.ProductID(m.ID),
		Code:        m.Code,
		Name:        m.Name,
		Type:        entities.ProductType(m.Type),
		DefaultUnit: entities.UnitID(m.DefaultUnitID),
		Active:      m.Active,
	}
}

func newProductModel(p *entities.Product) *productModel {
	return &productModel{
		ID:            int64(p.ID),
		Code:          p.Code,
		Name:          p.Name,
		Type:          string(p.Type),
		DefaultUnitID: int64(p.DefaultUnit),
		Active:        p.Active,
	}
}

func (m *bomHeaderModel) toEntity() *entities.BOMHeader {
	return &entities.BOMHeader{
		ID:         entities.BOMID(m.ID),
		ProductID:  entities.ProductID(m.ProductID),
		Revision:   m.Revision,
		State:      entities.BOMState(m.State),
		ValidFrom:  dateOrNil(m.ValidFrom),
		ValidUntil: dateOrNil(m.ValidUntil),
		Notes:      m.Notes,
		CreatedAt:  m.CreatedAt,
	}
}

func newBOMHeaderModel(h *entities.BOMHeader) *bomHeaderModel {
	return &bomHeaderModel{
		ID:         int64(h.ID),
		ProductID:  int64(h.ProductID),
		Revision:   h.Revision,
		State:      string(h.State),
		ValidFrom:  dateOrNil(h.ValidFrom),
		ValidUntil: dateOrNil(h.ValidUntil),
		Notes:      h.Notes,
		CreatedAt:  h.CreatedAt,
	}
}

func (m *bomLineModel) toEntity() *entities.BOMLine {
	return &entities.BOMLine{
		ID:                  entities.BOMLineID(m.ID),
		BOMID:               entities.BOMID(m.BOMID),
		LineNumber:          m.LineNumber,
		ChildProductID:      entities.ProductID(m.ChildProductID),
		Quantity:            m.Quantity,
		UnitID:              entities.UnitID(m.UnitID),
		ScrapFactor:         m.ScrapFactor,
		OperationSequence:   m.OperationSequence,
		AlternativeGroup:    m.AlternativeGroup,
		ReferenceDesignator: m.ReferenceDesignator,
		Notes:               m.Notes,
	}
}

func newBOMLineModel(l *entities.BOMLine) *bomLineModel {
	return &bomLineModel{
		ID:                  int64(l.ID),
		BOMID:               int64(l.BOMID),
		LineNumber:          l.LineNumber,
		ChildProductID:      int64(l.ChildProductID),
		Quantity:            l.Quantity,
		UnitID:              int64(l.UnitID),
		ScrapFactor:         l.ScrapFactor,
		OperationSequence:   l.OperationSequence,
		AlternativeGroup:    l.AlternativeGroup,
		ReferenceDesignator: l.ReferenceDesignator,
		Notes:               l.Notes,
	}
}

func (m *operationModel) toEntity() entities.Operation {
	return entities.Operation{
		ID:              entities.OperationID(m.ID),
		Code:            m.Code,
		Name:            m.Name,
		WorkCenter:      m.WorkCenter,
		StandardMinutes: m.StandardMinutes,
		HourlyCost:      m.HourlyCost,
		Currency:        entities.Currency(m.Currency),
	}
}

func (m *bomOperationModel) toEntity() *entities.RoutingStep {
	return &entities.RoutingStep{
		BOMID:     entities.BOMID(m.BOMID),
		Sequence:  m.Sequence,
		Notes:     m.Notes,
		Operation: m.Operation.toEntity(),
	}
}

func (m *effectiveCostModel) toEntity() *entities.EffectiveCost {
	return &entities.EffectiveCost{
		ProductID:  entities.ProductID(m.ProductID),
		UnitCost:   m.UnitCost,
		Currency:   entities.Currency(m.Currency),
		ValidFrom:  entities.DateOf(m.ValidFrom),
		ValidUntil: dateOrNil(m.ValidUntil),
	}
}

func (m *purchasePriceModel) toEntity() *entities.PurchasePrice {
	return &entities.PurchasePrice{
		ID:           m.ID,
		ProductID:    entities.ProductID(m.ProductID),
		SupplierCode: m.SupplierCode,
		SupplierName: m.SupplierName,
		PriceDate:    entities.DateOf(m.PriceDate),
		UnitPrice:    m.UnitPrice,
		Currency:     entities.Currency(m.Currency),
		Origin:       m.Origin,
		Reference:    m.Reference,
		Notes:        m.Notes,
	}
}

func (m *fxRateModel) toEntity() *entities.FXRate {
	return &entities.FXRate{
		ID:       m.ID,
		Date:     entities.DateOf(m.Date),
		Currency: entities.Currency(m.Currency),
		Kind:     entities.RateKind(m.Kind),
		Rate:     m.Rate,
		Origin:   m.Origin,
		Notes:    m.Notes,
	}
}

func (m *planEntryModel) toEntity() *entities.PlanEntry {
	return &entities.PlanEntry{
		ID:        m.ID,
		ProductID: entities.ProductID(m.ProductID),
		Period:    entities.Period{Year: m.Year, Month: m.Month},
		Quantity:  m.Quantity,
	}
}

func dateOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := entities.DateOf(*t)
	return &d
}
