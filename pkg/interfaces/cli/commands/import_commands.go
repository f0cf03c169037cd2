package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/services/lifecycle"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/postgres"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/xlsx"
)

// runImportFX loads an FX rate workbook. Against a scenario the rates are parsed and
// counted only.
func (c *MBOMCommand) runImportFX(ctx context.Context) error {
	kind := entities.RateKind(strings.ToUpper(c.config.Kind))
	if kind == "" {
		kind = entities.RateKindAverage
	}
	if !kind.IsValid() {
		return fmt.Errorf("unknown rate kind %q", c.config.Kind)
	}
	origin := c.config.Origin
	if origin == "" {
		origin = "xlsx"
	}

	file, err := os.Open(c.config.File)
	if err != nil {
		return fmt.Errorf("error opening workbook: %w", err)
	}
	defer file.Close()

	imp, err := xlsx.LoadFXRates(file, entities.Currency(c.config.Currency), kind, origin)
	if err != nil {
		return fmt.Errorf("error reading workbook: %w", err)
	}

	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	saved, err := imp.SaveRates(ctx, b.store)
	if err != nil {
		return err
	}
	c.reportImport("rates", saved, len(imp.Errors), b.persistent())
	for _, rowErr := range imp.Errors {
		c.logger.WithField("row", rowErr.Row).Warn(rowErr.Err.Error())
	}
	return nil
}

// runImportStock loads a monthly stock workbook, resolving product codes
func (c *MBOMCommand) runImportStock(ctx context.Context) error {
	file, err := os.Open(c.config.File)
	if err != nil {
		return fmt.Errorf("error opening workbook: %w", err)
	}
	defer file.Close()

	imp, err := xlsx.LoadStock(file)
	if err != nil {
		return fmt.Errorf("error reading workbook: %w", err)
	}

	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	saved, err := imp.SaveStock(ctx, b.store, b.store)
	if err != nil {
		return err
	}
	c.reportImport("stock rows", saved, len(imp.Errors), b.persistent())
	for _, rowErr := range imp.Errors {
		c.logger.WithField("row", rowErr.Row).Warn(rowErr.Err.Error())
	}
	return nil
}

// runImportBOM loads a leveled BOM export into DRAFT revisions of the selected product
// and of every sub-assembly it lists
func (c *MBOMCommand) runImportBOM(ctx context.Context) error {
	file, err := os.Open(c.config.File)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	rows, err := xlsx.LoadBOMTree(file, c.config.File)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}
	tree, err := lifecycle.BuildTree(rows, c.config.ProductCode)
	if err != nil {
		return err
	}

	b, err := c.openBackend(ctx)
	if err != nil {
		return err
	}
	defer b.Close(c)

	res, err := b.lifecycle.ImportTree(ctx, b.store, tree)
	if err != nil {
		return err
	}

	verb, suffix := "Imported", ""
	if !b.persistent() {
		verb, suffix = "Parsed", " (scenario mode, nothing persisted)"
	}
	c.printf("%s %s revision %s: %d line(s), %d draft(s) written, %d product(s) created%s\n",
		verb, tree.Root, res.Root.Revision, len(res.Lines), len(res.Drafts), len(res.Created), suffix)
	if c.config.Verbose {
		for _, code := range res.Created {
			c.printf("  created %s\n", code)
		}
	}
	return nil
}

// runSeed copies a CSV scenario into the configured database
func (c *MBOMCommand) runSeed(ctx context.Context) error {
	store, err := csv.NewLoader(c.logger).LoadScenario(c.config.ScenarioDir)
	if err != nil {
		return fmt.Errorf("error loading scenario: %w", err)
	}

	db, err := postgres.Open(c.settings.Database, c.logger)
	if err != nil {
		return err
	}
	defer postgres.Close(db, c.logger)
	if err := postgres.Migrate(db); err != nil {
		return err
	}

	res, err := postgres.Seed(ctx, db, store.Snapshot())
	if err != nil {
		return err
	}
	c.logger.WithFields(logrus.Fields{
		"units":           res.Units,
		"products":        res.Products,
		"operations":      res.Operations,
		"bom_headers":     res.Headers,
		"bom_lines":       res.Lines,
		"routing_steps":   res.Routings,
		"effective_costs": res.EffectiveCosts,
		"purchases":       res.Purchases,
		"fx_rates":        res.Rates,
		"plan_entries":    res.Plan,
		"stock_entries":   res.Stock,
	}).Info("scenario seeded")
	c.printf("Seeded %d products, %d BOMs and %d lines from %s\n", res.Products, res.Headers, res.Lines, c.config.ScenarioDir)
	return nil
}

func (c *MBOMCommand) reportImport(what string, saved, rejected int, persistent bool) {
	if persistent {
		c.printf("Imported %d %s, %d row(s) rejected\n", saved, what, rejected)
		return
	}
	c.printf("Parsed %d %s, %d row(s) rejected (scenario mode, nothing persisted)\n", saved, what, rejected)
}
