package costing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// ReportService costs a set of finished goods in a single traversal
type ReportService struct {
	costing  *Service
	products repositories.ProductRepository
	boms     repositories.BOMRepository
	logger   logrus.FieldLogger
}

// NewReportService creates a report service over a costing service
func NewReportService(costing *Service, logger logrus.FieldLogger) *ReportService {
	return &ReportService{
		costing:  costing,
		products: costing.products,
		boms:     costing.boms,
		logger:   logger,
	}
}

// CostProducts values the ACTIVE BOM of each distinct product code given, or of every
// active finished good when codes is empty. Products without an ACTIVE BOM are left out.
// Rows are ordered by product code.
func (r *ReportService) CostProducts(ctx context.Context, codes []string) ([]dto.ProductCost, error) {
	products, err := r.selectProducts(ctx, codes)
	if err != nil {
		return nil, err
	}

	traversal := r.costing.NewTraversal()
	rows := make([]dto.ProductCost, 0, len(products))
	for _, p := range products {
		header, err := r.boms.GetActiveHeader(ctx, p.ID, traversal.Today())
		if err != nil {
			return nil, fmt.Errorf("failed to get active bom of %s: %w", p.Code, err)
		}
		if header == nil {
			r.logger.WithField("product_id", p.ID).Debug("product has no active bom, left out of report")
			continue
		}
		breakdown, err := traversal.ExplodeHeader(ctx, header)
		if err != nil {
			return nil, err
		}
		rows = append(rows, dto.ProductCost{
			ProductID:      p.ID,
			Code:           p.Code,
			Name:           p.Name,
			Type:           p.Type,
			BOMID:          header.ID,
			Revision:       header.Revision,
			Currency:       breakdown.Currency,
			MaterialsTotal: breakdown.Materials.Total,
			ProcessesTotal: breakdown.Processes.Total,
			Total:          breakdown.Total,
			AlertFX:        breakdown.AlertFX,
			DetailAlert:    breakdown.DetailAlert,
		})
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Code < rows[j].Code })
	return rows, nil
}

// selectProducts resolves codes once each, ignoring surrounding blanks. Blank codes are
// skipped and a product named twice is costed once.
func (r *ReportService) selectProducts(ctx context.Context, codes []string) ([]*entities.Product, error) {
	trimmed := make([]string, 0, len(codes))
	for _, code := range codes {
		if code = strings.TrimSpace(code); code != "" {
			trimmed = append(trimmed, code)
		}
	}

	if len(trimmed) == 0 {
		products, err := r.products.ListProducts(ctx, repositories.ProductFilter{
			Type:       entities.ProductTypeFinishedGood,
			ActiveOnly: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list finished goods: %w", err)
		}
		return products, nil
	}

	seen := make(map[entities.ProductID]bool, len(trimmed))
	products := make([]*entities.Product, 0, len(trimmed))
	for _, code := range trimmed {
		p, err := r.products.GetProductByCode(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("failed to get product %s: %w", code, err)
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		products = append(products, p)
	}
	return products, nil
}
