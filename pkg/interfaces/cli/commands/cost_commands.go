package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
	"github.com/vsinha/mbom/pkg/interfaces/cli/output"
)

// runCost costs one BOM, or the ACTIVE BOM of one product
func (c *MBOMCommand) runCost(ctx context.Context) error {
	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	startTime := time.Now()
	var breakdown *dto.CostBreakdown
	if c.config.BOMID != 0 {
		breakdown, err = b.costing.Explode(ctx, entities.BOMID(c.config.BOMID))
	} else {
		var product *entities.Product
		product, err = b.store.GetProductByCode(ctx, c.config.ProductCode)
		if err != nil {
			return fmt.Errorf("error finding product: %w", err)
		}
		breakdown, err = b.costing.ExplodeProduct(ctx, product.ID)
	}
	if err != nil {
		return fmt.Errorf("error running cost explosion: %w", err)
	}

	return output.Breakdown(breakdown, c.outputConfig(time.Since(startTime)))
}

// runReport costs the ACTIVE BOM of every finished good, or of the given codes
func (c *MBOMCommand) runReport(ctx context.Context) error {
	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	startTime := time.Now()
	rows, err := b.reports.CostProducts(ctx, splitCodes(c.config.Codes))
	if err != nil {
		return fmt.Errorf("error running cost report: %w", err)
	}

	return output.Report(rows, c.outputConfig(time.Since(startTime)))
}

// runRequirements explodes the stored production plan of a period
func (c *MBOMCommand) runRequirements(ctx context.Context) error {
	period, err := entities.ParsePeriod(c.config.Period)
	if err != nil {
		return err
	}

	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	startTime := time.Now()
	report, err := b.requirements.Explode(ctx, period)
	if err != nil {
		return fmt.Errorf("error running requirements explosion: %w", err)
	}

	return output.Requirements(report, c.outputConfig(time.Since(startTime)))
}

// runValidate checks the structure of every ACTIVE BOM. Problems are reported, and
// turn into an error so that scripts can fail on them.
func (c *MBOMCommand) runValidate(ctx context.Context) error {
	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	products, err := b.store.ListProducts(ctx, repositories.ProductFilter{})
	if err != nil {
		return fmt.Errorf("error listing products: %w", err)
	}

	today := b.costing.Normalizer().Today()
	entries := make([]output.ValidationEntry, 0, len(products))
	invalid := 0
	for _, p := range products {
		header, err := b.store.GetActiveHeader(ctx, p.ID, today)
		if err != nil {
			return fmt.Errorf("error finding active bom of %s: %w", p.Code, err)
		}
		if header == nil {
			continue
		}
		result, err := b.lifecycle.ValidateStructure(ctx, header)
		if err != nil {
			return fmt.Errorf("error validating bom %d: %w", header.ID, err)
		}
		if !result.IsValid() {
			invalid++
		}
		entries = append(entries, output.ValidationEntry{
			BOMID:    int64(header.ID),
			Product:  p.Code,
			Revision: header.Revision,
			Result:   result,
		})
	}

	if err := output.Validation(entries, c.outputConfig(0)); err != nil {
		return err
	}
	if invalid > 0 {
		return fmt.Errorf("%d bom(s) failed validation", invalid)
	}
	return nil
}

func splitCodes(raw string) []string {
	var codes []string
	for _, code := range strings.Split(raw, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}
