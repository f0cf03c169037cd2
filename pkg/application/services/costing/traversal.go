package costing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/application/services/fx"
	"github.com/vsinha/mbom/pkg/application/services/shared"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/infrastructure/events"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// CostInfo is the resolved unit cost of a product.
// BaseValue is expressed in BaseCurrency, which is the configured base currency for
// converted purchase prices, the record currency for effective costs, the display
// currency for sub-BOM, cycle and none results, and the source currency when an FX
// rate was missing.
type CostInfo struct {
	ProductID      entities.ProductID
	BaseValue      decimal.Decimal
	BaseCurrency   entities.Currency
	SourceValue    decimal.Decimal
	SourceCurrency entities.Currency
	Source         dto.CostSource
	PriceDate      *time.Time
	FX             *dto.FXDetail
	IsEstimate     bool
	// Cycles holds the looping product chains met while resolving this cost.
	Cycles [][]entities.ProductID
}

// Alerts reports whether the cost should lower confidence in any total using it
func (c *CostInfo) Alerts() bool {
	return c.IsEstimate || c.Source == dto.SourceNone || c.Source == dto.SourceCycle
}

// DisplayCost is a resolved unit cost converted to the display currency
type DisplayCost struct {
	Info     *CostInfo
	UnitCost decimal.Decimal
	Currency entities.Currency
	Detail   *dto.FXDetail
	Alert    bool
}

// Traversal resolves costs with a memo shared by every BOM it explodes.
// Cycle guards are carried per call as an immutable path, so sibling branches
// may reference the same product without being reported as cycles.
type Traversal struct {
	svc      *Service
	today    time.Time
	memo     map[entities.ProductID]*CostInfo
	products map[entities.ProductID]*entities.Product
	units    map[entities.UnitID]*entities.Unit
}

// Today returns the day the traversal values at
func (t *Traversal) Today() time.Time {
	return t.today
}

// Resolve returns the unit cost of a product as seen from the top of a tree
func (t *Traversal) Resolve(ctx context.Context, productID entities.ProductID) (*CostInfo, error) {
	return t.resolve(ctx, productID, shared.Path{})
}

// DisplayCost resolves a product and converts its unit cost to the display currency
func (t *Traversal) DisplayCost(ctx context.Context, productID entities.ProductID) (*DisplayCost, error) {
	info, err := t.Resolve(ctx, productID)
	if err != nil {
		return nil, err
	}
	return t.toDisplay(ctx, info)
}

// Explode values a BOM header by id
func (t *Traversal) Explode(ctx context.Context, bomID entities.BOMID) (*dto.CostBreakdown, error) {
	header, err := t.svc.boms.GetHeader(ctx, bomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bom %d: %w", bomID, err)
	}
	if header == nil {
		return nil, fmt.Errorf("bom %d: %w", bomID, ErrBOMNotFound)
	}
	return t.ExplodeHeader(ctx, header)
}

// ExplodeHeader values a header. Its product is on the path for the whole explosion,
// so a line that leads back to it is reported as a cycle.
func (t *Traversal) ExplodeHeader(ctx context.Context, header *entities.BOMHeader) (*dto.CostBreakdown, error) {
	return t.explode(ctx, header, shared.Path{}.Push(header.ProductID))
}

func (t *Traversal) resolve(ctx context.Context, productID entities.ProductID, path shared.Path) (*CostInfo, error) {
	if path.Contains(productID) {
		return t.cycle(productID, path, false), nil
	}
	if info, ok := t.memo[productID]; ok {
		return info, nil
	}
	if path.Depth() >= t.svc.cfg.MaxDepth {
		return t.cycle(productID, path, true), nil
	}

	log := t.svc.logger.WithField("product_id", productID)

	ec, err := t.svc.prices.GetEffectiveCost(ctx, productID, t.today)
	if err != nil {
		return nil, fmt.Errorf("failed to get effective cost of product %d: %w", productID, err)
	}
	if ec != nil {
		currency := t.currencyOrDisplay(ec.Currency)
		info := &CostInfo{
			ProductID:      productID,
			BaseValue:      ec.UnitCost,
			BaseCurrency:   currency,
			SourceValue:    ec.UnitCost,
			SourceCurrency: currency,
			Source:         dto.SourceEffectiveCost,
		}
		return t.remember(info), nil
	}

	pp, err := t.svc.prices.GetLatestPurchasePrice(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase price of product %d: %w", productID, err)
	}
	if pp != nil {
		currency := t.currencyOrDisplay(pp.Currency)
		priceDate := entities.DateOf(pp.PriceDate)
		conv, err := t.svc.normalizer.ToBase(ctx, pp.UnitPrice, currency, priceDate)
		if err != nil {
			return nil, fmt.Errorf("failed to convert purchase price of product %d: %w", productID, err)
		}
		info := &CostInfo{
			ProductID:      productID,
			BaseValue:      conv.Value,
			BaseCurrency:   conv.Currency,
			SourceValue:    pp.UnitPrice,
			SourceCurrency: currency,
			Source:         dto.SourcePurchaseHistory,
			PriceDate:      &priceDate,
			FX:             conv.Detail,
			IsEstimate:     conv.IsEstimate,
		}
		t.reportFX(productID, currency, conv)
		return t.remember(info), nil
	}

	header, err := t.svc.boms.GetActiveHeader(ctx, productID, t.today)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bom of product %d: %w", productID, err)
	}
	if header != nil {
		breakdown, err := t.explode(ctx, header, path.Push(productID))
		if err != nil {
			return nil, err
		}
		display := t.svc.cfg.DisplayCurrency
		info := &CostInfo{
			ProductID:      productID,
			BaseValue:      breakdown.Total,
			BaseCurrency:   display,
			SourceValue:    breakdown.Total,
			SourceCurrency: display,
			Source:         dto.SourceSubBOM,
			FX: &dto.FXDetail{
				From:       display,
				To:         display,
				IsEstimate: breakdown.AlertFX,
				SubBOM:     &dto.SubBOMRef{BOMID: header.ID, Revision: header.Revision},
			},
			IsEstimate: breakdown.AlertFX,
			Cycles:     breakdown.Cycles,
		}
		return t.remember(info), nil
	}

	log.Debug("no cost source for product")
	t.svc.publish(events.NewPriceMissingEvent(productID))
	display := t.svc.cfg.DisplayCurrency
	return t.remember(&CostInfo{
		ProductID:      productID,
		BaseValue:      decimal.Zero,
		BaseCurrency:   display,
		SourceValue:    decimal.Zero,
		SourceCurrency: display,
		Source:         dto.SourceNone,
	}), nil
}

func (t *Traversal) remember(info *CostInfo) *CostInfo {
	t.memo[info.ProductID] = info
	return info
}

// cycle builds the result for a product reached again through its own descendants,
// or reached below the depth cap. It is path dependent and never memoized.
func (t *Traversal) cycle(productID entities.ProductID, path shared.Path, depthCap bool) *CostInfo {
	ids := path.Push(productID).IDs()
	fields := logrus.Fields{"product_id": productID, "path": ids}
	if depthCap {
		t.svc.logger.WithFields(fields).WithError(ErrMaxDepthExceeded).Warn("bom nesting too deep, treating component as a cycle")
	} else {
		t.svc.logger.WithFields(fields).Warn("cycle detected in bom structure")
	}
	t.svc.publish(events.NewCycleDetectedEvent(productID, ids, depthCap))

	display := t.svc.cfg.DisplayCurrency
	return &CostInfo{
		ProductID:      productID,
		BaseValue:      decimal.Zero,
		BaseCurrency:   display,
		SourceValue:    decimal.Zero,
		SourceCurrency: display,
		Source:         dto.SourceCycle,
		FX: &dto.FXDetail{
			From:       display,
			To:         display,
			IsEstimate: true,
			Cycle:      true,
			CyclePath:  ids,
		},
		IsEstimate: true,
		Cycles:     [][]entities.ProductID{ids},
	}
}

func (t *Traversal) explode(ctx context.Context, header *entities.BOMHeader, path shared.Path) (*dto.CostBreakdown, error) {
	display := t.svc.cfg.DisplayCurrency
	log := t.svc.logger.WithFields(logrus.Fields{"bom_id": header.ID, "product_id": header.ProductID})

	lines, err := t.svc.boms.GetLines(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get lines of bom %d: %w", header.ID, err)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].LineNumber < lines[j].LineNumber })

	alert := false
	var cycles [][]entities.ProductID
	materials := dto.MaterialSection{Lines: make([]dto.MaterialLine, 0, len(lines)), Total: decimal.Zero, Currency: display}
	for _, line := range lines {
		ml, cost, err := t.materialLine(ctx, line, path)
		if err != nil {
			return nil, err
		}
		if cost != nil {
			alert = alert || cost.Alert
			cycles = append(cycles, cost.Info.Cycles...)
		}
		materials.Total = materials.Total.Add(ml.Total)
		materials.Lines = append(materials.Lines, ml)
	}

	steps, err := t.svc.boms.GetRouting(ctx, header.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get routing of bom %d: %w", header.ID, err)
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })

	processes := dto.ProcessSection{Operations: make([]dto.ProcessLine, 0, len(steps)), Total: decimal.Zero, Currency: display}
	for _, step := range steps {
		op := step.Operation
		currency := t.currencyOrDisplay(op.Currency)
		conv, err := t.svc.normalizer.ToDisplay(ctx, step.Cost(), currency)
		if err != nil {
			return nil, fmt.Errorf("failed to convert operation %s of bom %d: %w", op.Code, header.ID, err)
		}
		t.reportFX(header.ProductID, currency, conv)
		alert = alert || conv.IsEstimate
		processes.Total = processes.Total.Add(conv.Value)
		processes.Operations = append(processes.Operations, dto.ProcessLine{
			Sequence:        step.Sequence,
			Code:            op.Code,
			Name:            op.Name,
			WorkCenter:      op.WorkCenter,
			StandardMinutes: op.StandardMinutes,
			HourlyCost:      op.HourlyCost,
			HourlyCurrency:  currency,
			Subtotal:        conv.Value,
			FX:              conv.Detail,
		})
	}

	total := materials.Total.Add(processes.Total)
	breakdown := &dto.CostBreakdown{
		BOMID:       header.ID,
		ProductID:   header.ProductID,
		Revision:    header.Revision,
		Materials:   materials,
		Processes:   processes,
		Total:       total,
		Currency:    display,
		Percentages: percentages(materials.Total, processes.Total, total),
		AlertFX:     alert,
		Cycles:      cycles,
	}
	if alert {
		msg := dto.AlertMessage
		breakdown.DetailAlert = &msg
	}

	log.WithFields(logrus.Fields{
		"total":    total.String(),
		"lines":    len(materials.Lines),
		"alert_fx": alert,
	}).Debug("bom valued")
	return breakdown, nil
}

// materialLine values one line. The returned cost is nil for skipped lines.
func (t *Traversal) materialLine(ctx context.Context, line *entities.BOMLine, path shared.Path) (dto.MaterialLine, *DisplayCost, error) {
	ml := dto.MaterialLine{
		LineNumber:  line.LineNumber,
		ProductID:   line.ChildProductID,
		Quantity:    line.Quantity,
		ScrapFactor: scrapOrZero(line.ScrapFactor),
		UnitCost:    decimal.Zero,
		Currency:    t.svc.cfg.DisplayCurrency,
		Total:       decimal.Zero,
	}

	product, err := t.product(ctx, line.ChildProductID)
	if err != nil {
		return ml, nil, err
	}
	if product != nil {
		ml.Code = product.Code
		ml.Name = product.Name
	}
	unit, err := t.unit(ctx, line.UnitID)
	if err != nil {
		return ml, nil, err
	}
	if unit != nil {
		ml.UnitCode = unit.Code
	}

	if !line.Quantity.IsPositive() {
		t.svc.logger.WithFields(logrus.Fields{
			"bom_id":      line.BOMID,
			"line_number": line.LineNumber,
			"quantity":    line.Quantity.String(),
		}).Warn("skipping bom line with non-positive quantity")
		ml.Source = dto.SourceNone
		ml.Skipped = true
		return ml, nil, nil
	}

	info, err := t.resolve(ctx, line.ChildProductID, path)
	if err != nil {
		return ml, nil, err
	}
	cost, err := t.toDisplay(ctx, info)
	if err != nil {
		return ml, nil, err
	}

	ml.UnitCost = cost.UnitCost
	ml.Currency = cost.Currency
	if info.BaseCurrency == t.svc.cfg.BaseCurrency {
		base := info.BaseValue
		ml.UnitCostBase = &base
	}
	ml.Source = info.Source
	ml.Total = cost.UnitCost.Mul(line.Quantity).Mul(one.Add(ml.ScrapFactor))
	ml.FX = dto.FXTrail{
		Historical:     info.FX,
		Display:        cost.Detail,
		BaseCurrency:   info.BaseCurrency,
		SourceCurrency: info.SourceCurrency,
	}
	if info.PriceDate != nil {
		d := info.PriceDate.Format(time.DateOnly)
		ml.FX.PriceDate = &d
	}
	return ml, cost, nil
}

func (t *Traversal) toDisplay(ctx context.Context, info *CostInfo) (*DisplayCost, error) {
	conv, err := t.svc.normalizer.ToDisplay(ctx, info.BaseValue, info.BaseCurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to convert cost of product %d to display currency: %w", info.ProductID, err)
	}
	t.reportFX(info.ProductID, info.BaseCurrency, conv)
	return &DisplayCost{
		Info:     info,
		UnitCost: conv.Value,
		Currency: conv.Currency,
		Detail:   conv.Detail,
		Alert:    info.Alerts() || conv.IsEstimate,
	}, nil
}

// reportFX publishes a diagnostic for estimated or missing conversions
func (t *Traversal) reportFX(productID entities.ProductID, currency entities.Currency, conv *fx.Conversion) {
	if conv == nil || conv.Detail == nil || !conv.IsEstimate {
		return
	}
	if conv.Detail.MissingRate || anyMissing(conv.Detail.Steps) {
		t.svc.publish(events.NewFXMissingEvent(productID, currency))
		return
	}
	data := events.FXEstimated{Currency: currency}
	if conv.Detail.PriceDate != nil {
		data.RequestedDate = conv.Detail.PriceDate.Format(time.DateOnly)
	}
	if conv.Detail.RateDate != nil {
		data.MatchedDate = conv.Detail.RateDate.Format(time.DateOnly)
	}
	if conv.Detail.Rate != nil {
		data.Rate = *conv.Detail.Rate
	}
	t.svc.publish(events.NewFXEstimatedEvent(productID, data))
}

func anyMissing(steps []dto.FXDetail) bool {
	for _, s := range steps {
		if s.MissingRate {
			return true
		}
	}
	return false
}

// product returns the cached catalog entry, or nil when the product does not exist
func (t *Traversal) product(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	if p, ok := t.products[id]; ok {
		return p, nil
	}
	p, err := t.svc.products.GetProduct(ctx, id)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	if p == nil {
		t.svc.logger.WithField("product_id", id).Warn("bom line references unknown product")
	}
	t.products[id] = p
	return p, nil
}

// Product is the cached catalog lookup used while exploding
func (t *Traversal) Product(ctx context.Context, id entities.ProductID) (*entities.Product, error) {
	return t.product(ctx, id)
}

// Unit is the cached unit-of-measure lookup used while exploding
func (t *Traversal) Unit(ctx context.Context, id entities.UnitID) (*entities.Unit, error) {
	return t.unit(ctx, id)
}

func (t *Traversal) unit(ctx context.Context, id entities.UnitID) (*entities.Unit, error) {
	if u, ok := t.units[id]; ok {
		return u, nil
	}
	u, err := t.svc.products.GetUnit(ctx, id)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("failed to get unit %d: %w", id, err)
	}
	t.units[id] = u
	return u, nil
}

func (t *Traversal) currencyOrDisplay(c entities.Currency) entities.Currency {
	c = c.Normalize()
	if c == "" {
		return t.svc.cfg.DisplayCurrency
	}
	return c
}

// scrapOrZero ignores scrap factors outside [0, 1)
func scrapOrZero(scrap decimal.Decimal) decimal.Decimal {
	if scrap.IsNegative() || scrap.GreaterThanOrEqual(one) {
		return decimal.Zero
	}
	return scrap
}

func percentages(materials, processes, total decimal.Decimal) dto.Percentages {
	if total.IsZero() {
		return dto.Percentages{Materials: decimal.Zero, Processes: decimal.Zero}
	}
	return dto.Percentages{
		Materials: materials.Div(total).Mul(hundred).Round(2),
		Processes: processes.Div(total).Mul(hundred).Round(2),
	}
}
