package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// Repository implements every repository of the costing core on PostgreSQL
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over an open connection
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var (
	_ repositories.ProductRepository = (*Repository)(nil)
	_ repositories.CatalogWriter     = (*Repository)(nil)
	_ repositories.BOMRepository     = (*Repository)(nil)
	_ repositories.BOMWriter         = (*Repository)(nil)
	_ repositories.PriceRepository   = (*Repository)(nil)
	_ repositories.FXRateRepository  = (*Repository)(nil)
	_ repositories.PlanRepository    = (*Repository)(nil)
	_ repositories.StockRepository   = (*Repository)(nil)
)

// GetProduct returns the product or repositories.ErrNotFound
func (r *Repository) GetProduct(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	var m productModel
	if err := r.db.WithContext(ctx).First(&m, int64(id)).Error; err != nil {
		return nil, notFound(err, "product %d", id)
	}
	return m.toEntity(), nil
}

// GetProductByCode returns the product or repositories.ErrNotFound
func (r *Repository) GetProductByCode(ctx context.Context, code string) (*entities.Product, error) {
	var m productModel
	err := r.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).First(&m).Error
	if err != nil {
		return nil, notFound(err, "product %q", code)
	}
	return m.toEntity(), nil
}

func (r *Repository) ListProducts(ctx context.Context, filter repositories.ProductFilter) ([]*entities.Product, error) {
	query := r.db.WithContext(ctx).Model(&productModel{})
	if filter.Type != "" {
		query = query.Where("type = ?", string(filter.Type))
	}
	if filter.ActiveOnly {
		query = query.Where("active = ?", true)
	}
	var ms []productModel
	if err := query.Order("code ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.Product, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toEntity())
	}
	return out, nil
}

// GetUnit returns the unit or repositories.ErrNotFound
func (r *Repository) GetUnit(ctx context.Context, id entities.UnitID) (*entities.Unit, error) {
	var m unitModel
	if err := r.db.WithContext(ctx).First(&m, int64(id)).Error; err != nil {
		return nil, notFound(err, "unit %d", id)
	}
	return m.toEntity(), nil
}

// ListUnits returns every unit ordered by id
func (r *Repository) ListUnits(ctx context.Context) ([]*entities.Unit, error) {
	var ms []unitModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*entities.Unit, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toEntity())
	}
	return out, nil
}

// SaveUnit inserts or updates a unit of measure
func (r *Repository) SaveUnit(ctx context.Context, unit *entities.Unit) error {
	m := unitModel{ID: int64(unit.ID), Code: unit.Code, Name: unit.Name}
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return err
	}
	unit.ID = entities.UnitID(m.ID)
	return nil
}

// SaveProduct inserts or updates a product
func (r *Repository) SaveProduct(ctx context.Context, product *entities.Product) error {
	m := newProductModel(product)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	product.ID = entities.ProductID(m.ID)
	return nil
}

// GetHeader returns the header or nil
func (r *Repository) GetHeader(ctx context.Context, id entities.BOMID) (*entities.BOMHeader, error) {
	var m bomHeaderModel
	err := r.db.WithContext(ctx).First(&m, int64(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

// GetActiveHeader returns the effective ACTIVE header of a product or nil.
// Headers without a start date rank after dated ones.
func (r *Repository) GetActiveHeader(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.BOMHeader, error) {
	var m bomHeaderModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND state = ?", int64(productID), string(entities.BOMStateActive)).
		Where("(valid_until IS NULL OR valid_until >= ?)", entities.DateOf(asOf)).
		Order("valid_from DESC NULLS LAST, created_at DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

func (r *Repository) GetLines(ctx context.Context, id entities.BOMID) ([]*entities.BOMLine, error) {
	var ms []bomLineModel
	err := r.db.WithContext(ctx).
		Where("bom_id = ?", int64(id)).
		Order("line_number ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*entities.BOMLine, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toEntity())
	}
	return out, nil
}

func (r *Repository) GetRouting(ctx context.Context, id entities.BOMID) ([]*entities.RoutingStep, error) {
	var ms []bomOperationModel
	err := r.db.WithContext(ctx).
		Preload("Operation").
		Where("bom_id = ?", int64(id)).
		Order("sequence ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*entities.RoutingStep, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toEntity())
	}
	return out, nil
}

// ListHeaders returns every header of a product, newest first
func (r *Repository) ListHeaders(ctx context.Context, productID entities.ProductID) ([]*entities.BOMHeader, error) {
	var ms []bomHeaderModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", int64(productID)).
		Order("created_at DESC, id DESC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*entities.BOMHeader, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toEntity())
	}
	return out, nil
}

func (r *Repository) SaveHeader(ctx context.Context, header *entities.BOMHeader) error {
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now()
	}
	m := newBOMHeaderModel(header)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	header.ID = entities.BOMID(m.ID)
	return nil
}

// SaveLine inserts or updates a line of an existing header
func (r *Repository) SaveLine(ctx context.Context, line *entities.BOMLine) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&bomHeaderModel{}).Where("id = ?", int64(line.BOMID)).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("bom %d: %w", line.BOMID, repositories.ErrNotFound)
		}
		m := newBOMLineModel(line)
		if err := tx.Save(m).Error; err != nil {
			return err
		}
		line.ID = entities.BOMLineID(m.ID)
		return nil
	})
}

// DeleteLines removes every line of an existing header
func (r *Repository) DeleteLines(ctx context.Context, id entities.BOMID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&bomHeaderModel{}).Where("id = ?", int64(id)).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("bom %d: %w", id, repositories.ErrNotFound)
		}
		return tx.Where("bom_id = ?", int64(id)).Delete(&bomLineModel{}).Error
	})
}

// ActivateHeader archives the product's other ACTIVE headers and activates id in one transaction
func (r *Repository) ActivateHeader(ctx context.Context, id entities.BOMID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target bomHeaderModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&target, int64(id)).Error; err != nil {
			return notFound(err, "bom %d", id)
		}
		err := tx.Model(&bomHeaderModel{}).
			Where("product_id = ? AND id <> ? AND state = ?", target.ProductID, target.ID, string(entities.BOMStateActive)).
			Update("state", string(entities.BOMStateArchived)).Error
		if err != nil {
			return err
		}
		return tx.Model(&target).Update("state", string(entities.BOMStateActive)).Error
	})
}

// SaveOperation inserts or updates an operation of the routing catalog
func (r *Repository) SaveOperation(ctx context.Context, op *entities.Operation) error {
	m := operationModel{
		ID:              int64(op.ID),
		Code:            op.Code,
		Name:            op.Name,
		WorkCenter:      op.WorkCenter,
		StandardMinutes: op.StandardMinutes,
		HourlyCost:      op.HourlyCost,
		Currency:        string(op.Currency.Normalize()),
	}
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return err
	}
	op.ID = entities.OperationID(m.ID)
	return nil
}

// AttachOperation places an operation on a BOM routing at the given sequence,
// replacing whatever held that sequence
func (r *Repository) AttachOperation(ctx context.Context, bomID entities.BOMID, opID entities.OperationID, sequence int, notes string) error {
	m := bomOperationModel{
		BOMID:       int64(bomID),
		OperationID: int64(opID),
		Sequence:    sequence,
		Notes:       notes,
	}
	return r.db.WithContext(ctx).Omit("Operation").Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bom_id"}, {Name: "sequence"}},
		DoUpdates: clause.AssignmentColumns([]string{"operation_id", "notes"}),
	}).Create(&m).Error
}

// GetEffectiveCost returns the record valid on asOf with the latest ValidFrom, or nil
func (r *Repository) GetEffectiveCost(ctx context.Context, productID entities.ProductID, asOf time.Time) (*entities.EffectiveCost, error) {
	day := entities.DateOf(asOf)
	var m effectiveCostModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND valid_from <= ?", int64(productID), day).
		Where("(valid_until IS NULL OR valid_until >= ?)", day).
		Order("valid_from DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

// SaveEffectiveCost stores a standard cost, replacing one with the same ValidFrom
func (r *Repository) SaveEffectiveCost(ctx context.Context, cost *entities.EffectiveCost) error {
	m := effectiveCostModel{
		ProductID:  int64(cost.ProductID),
		UnitCost:   cost.UnitCost,
		Currency:   string(cost.Currency.Normalize()),
		ValidFrom:  entities.DateOf(cost.ValidFrom),
		ValidUntil: dateOrNil(cost.ValidUntil),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "valid_from"}},
		DoUpdates: clause.AssignmentColumns([]string{"unit_cost", "currency", "valid_until"}),
	}).Create(&m).Error
}

// GetLatestPurchasePrice returns the most recent purchase entry, or nil
func (r *Repository) GetLatestPurchasePrice(ctx context.Context, productID entities.ProductID) (*entities.PurchasePrice, error) {
	var m purchasePriceModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", int64(productID)).
		Order("price_date DESC, id DESC").
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

func (r *Repository) SavePurchasePrice(ctx context.Context, price *entities.PurchasePrice) error {
	m := purchasePriceModel{
		ID:           price.ID,
		ProductID:    int64(price.ProductID),
		SupplierCode: price.SupplierCode,
		SupplierName: price.SupplierName,
		PriceDate:    entities.DateOf(price.PriceDate),
		UnitPrice:    price.UnitPrice,
		Currency:     string(price.Currency.Normalize()),
		Origin:       price.Origin,
		Reference:    price.Reference,
		Notes:        price.Notes,
	}
	if err := r.db.WithContext(ctx).Save(&m).Error; err != nil {
		return err
	}
	price.ID = m.ID
	return nil
}

// GetRate returns the exact (currency, day, kind) rate, or nil
func (r *Repository) GetRate(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	return r.findRate(ctx, "date = ?", "date ASC", currency, day, kind)
}

// GetClosestBefore returns the latest rate strictly before day, or nil
func (r *Repository) GetClosestBefore(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	return r.findRate(ctx, "date < ?", "date DESC", currency, day, kind)
}

// GetClosestAfter returns the earliest rate strictly after day, or nil
func (r *Repository) GetClosestAfter(ctx context.Context, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	return r.findRate(ctx, "date > ?", "date ASC", currency, day, kind)
}

func (r *Repository) findRate(ctx context.Context, cond, order string, currency entities.Currency, day time.Time, kind entities.RateKind) (*entities.FXRate, error) {
	var m fxRateModel
	err := r.db.WithContext(ctx).
		Where("currency = ? AND kind = ?", string(currency.Normalize()), string(kind)).
		Where(cond, entities.DateOf(day)).
		Order(order).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.toEntity(), nil
}

// SaveRate upserts a rate keyed by (date, currency, kind)
func (r *Repository) SaveRate(ctx context.Context, rate entities.FXRate) error {
	m := fxRateModel{
		Date:     entities.DateOf(rate.Date),
		Currency: string(rate.Currency.Normalize()),
		Kind:     string(rate.Kind),
		Rate:     rate.Rate,
		Origin:   rate.Origin,
		Notes:    rate.Notes,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}, {Name: "currency"}, {Name: "kind"}},
		DoUpdates: clause.AssignmentColumns([]string{"rate", "origin", "notes"}),
	}).Create(&m).Error
}

// GetPlan returns the plan entries of a period in insertion order
func (r *Repository) GetPlan(ctx context.Context, period entities.Period) ([]*entities.PlanEntry, error) {
	var ms []planEntryModel
	err := r.db.WithContext(ctx).
		Where("year = ? AND month = ?", period.Year, period.Month).
		Order("id ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	out := make([]*entities.PlanEntry, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].toEntity())
	}
	return out, nil
}

// SavePlanEntry upserts the planned quantity of a product for a period
func (r *Repository) SavePlanEntry(ctx context.Context, entry entities.PlanEntry) error {
	m := planEntryModel{
		ProductID: int64(entry.ProductID),
		Year:      entry.Period.Year,
		Month:     entry.Period.Month,
		Quantity:  entry.Quantity,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(&m).Error
}

// GetOnHand returns the recorded on-hand quantity or zero
func (r *Repository) GetOnHand(ctx context.Context, productID entities.ProductID, unitID entities.UnitID, period entities.Period) (decimal.Decimal, error) {
	var m stockEntryModel
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND unit_id = ? AND year = ? AND month = ?",
			int64(productID), int64(unitID), period.Year, period.Month).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return m.Quantity, nil
}

// SaveStock replaces the on-hand quantity of a product for a period
func (r *Repository) SaveStock(ctx context.Context, entry entities.StockEntry) error {
	m := stockEntryModel{
		ProductID: int64(entry.ProductID),
		UnitID:    int64(entry.UnitID),
		Year:      entry.Period.Year,
		Month:     entry.Period.Month,
		Quantity:  entry.Quantity,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "unit_id"}, {Name: "year"}, {Name: "month"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity"}),
	}).Create(&m).Error
}

// notFound maps gorm.ErrRecordNotFound onto repositories.ErrNotFound
func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, repositories.ErrNotFound)...)
	}
	return err
}
