package requirements

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// PlanService turns a monthly production plan into a valorized requirements report
type PlanService struct {
	costing  *costing.Service
	expander *Expander
	products repositories.ProductRepository
	plans    repositories.PlanRepository
	stock    repositories.StockRepository
	logger   logrus.FieldLogger
}

// NewPlanService creates a plan service. The expander shares the costing
// service's depth cap.
func NewPlanService(
	costingSvc *costing.Service,
	boms repositories.BOMRepository,
	products repositories.ProductRepository,
	plans repositories.PlanRepository,
	stock repositories.StockRepository,
	logger logrus.FieldLogger,
) *PlanService {
	return &PlanService{
		costing:  costingSvc,
		expander: NewExpander(boms, products, costingSvc.Config().MaxDepth, logger),
		products: products,
		plans:    plans,
		stock:    stock,
		logger:   logger,
	}
}

// Expander returns the structural expander used by the service
func (s *PlanService) Expander() *Expander {
	return s.expander
}

// Explode loads the plan of a period and explodes it
func (s *PlanService) Explode(ctx context.Context, period entities.Period) (*dto.RequirementsReport, error) {
	entries, err := s.plans.GetPlan(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get plan for %s: %w", period, err)
	}
	return s.ExplodeEntries(ctx, period, entries)
}

type leafKey struct {
	productID entities.ProductID
	unitID    entities.UnitID
}

// ExplodeEntries explodes the given plan entries. Leaves are merged by product and
// unit, netted against the period's on-hand stock and priced once each in a single
// costing traversal. A planned product without an ACTIVE BOM is required as itself.
func (s *PlanService) ExplodeEntries(ctx context.Context, period entities.Period, entries []*entities.PlanEntry) (*dto.RequirementsReport, error) {
	traversal := s.costing.NewTraversal()
	log := s.logger.WithField("period", period.String())

	merged := make(map[leafKey]*LeafRequirement)
	var order []leafKey
	add := func(leaf LeafRequirement) {
		key := leafKey{productID: leaf.ProductID, unitID: leaf.UnitID}
		if existing, ok := merged[key]; ok {
			existing.Quantity = existing.Quantity.Add(leaf.Quantity)
			return
		}
		l := leaf
		merged[key] = &l
		order = append(order, key)
	}

	for _, entry := range entries {
		if !entry.Quantity.IsPositive() {
			continue
		}
		leaves, err := s.expander.Expand(ctx, entry.ProductID, entry.Quantity, traversal.Today())
		if err == nil {
			for _, leaf := range leaves {
				add(leaf)
			}
			continue
		}
		if !errors.Is(err, ErrNoActiveBOM) {
			return nil, fmt.Errorf("failed to expand product %d: %w", entry.ProductID, err)
		}

		self, err := s.selfRequirement(ctx, traversal, entry)
		if err != nil {
			return nil, err
		}
		if self != nil {
			log.WithField("product_id", entry.ProductID).Debug("planned product has no active bom, required as a leaf")
			add(*self)
		}
	}

	report := &dto.RequirementsReport{
		RunID:      uuid.New(),
		Period:     period.String(),
		Lines:      make([]dto.RequirementLine, 0, len(order)),
		TotalGross: decimal.Zero,
		TotalNet:   decimal.Zero,
		Currency:   s.costing.Config().DisplayCurrency,
	}

	for _, key := range order {
		leaf := merged[key]
		cost, err := traversal.DisplayCost(ctx, leaf.ProductID)
		if err != nil {
			return nil, err
		}
		onHand, err := s.stock.GetOnHand(ctx, leaf.ProductID, leaf.UnitID, period)
		if err != nil {
			return nil, fmt.Errorf("failed to get stock of product %d: %w", leaf.ProductID, err)
		}
		net := leaf.Quantity.Sub(onHand)
		if net.IsNegative() {
			net = decimal.Zero
		}

		line := dto.RequirementLine{
			ProductID:  leaf.ProductID,
			Code:       leaf.Code,
			Name:       leaf.Name,
			UnitID:     leaf.UnitID,
			UnitCode:   leaf.UnitCode,
			Gross:      leaf.Quantity,
			OnHand:     onHand,
			Net:        net,
			UnitCost:   cost.UnitCost,
			Source:     cost.Info.Source,
			TotalGross: cost.UnitCost.Mul(leaf.Quantity),
			TotalNet:   cost.UnitCost.Mul(net),
			AlertFX:    cost.Alert,
		}
		report.TotalGross = report.TotalGross.Add(line.TotalGross)
		report.TotalNet = report.TotalNet.Add(line.TotalNet)
		report.AlertFX = report.AlertFX || line.AlertFX
		report.Lines = append(report.Lines, line)
	}

	sort.SliceStable(report.Lines, func(i, j int) bool {
		a, b := report.Lines[i], report.Lines[j]
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.UnitID < b.UnitID
	})
	if report.AlertFX {
		msg := dto.AlertMessage
		report.DetailAlert = &msg
	}

	log.WithFields(logrus.Fields{
		"run_id":   report.RunID.String(),
		"lines":    len(report.Lines),
		"alert_fx": report.AlertFX,
	}).Info("requirements exploded")
	return report, nil
}

// selfRequirement builds the leaf for a planned product that has no ACTIVE BOM
func (s *PlanService) selfRequirement(ctx context.Context, traversal *costing.Traversal, entry *entities.PlanEntry) (*LeafRequirement, error) {
	p, err := traversal.Product(ctx, entry.ProductID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		s.logger.WithField("product_id", entry.ProductID).Warn("plan references unknown product")
		return nil, nil
	}
	leaf := &LeafRequirement{
		ProductID: p.ID,
		Code:      p.Code,
		Name:      p.Name,
		UnitID:    p.DefaultUnit,
		Quantity:  entry.Quantity,
	}
	u, err := traversal.Unit(ctx, p.DefaultUnit)
	if err != nil {
		return nil, err
	}
	if u != nil {
		leaf.UnitCode = u.Code
	}
	return leaf, nil
}
