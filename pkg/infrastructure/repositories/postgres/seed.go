package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vsinha/mbom/pkg/infrastructure/repositories/memory"
)

// SeedResult counts the rows written by Seed
type SeedResult struct {
	Units, Products, Operations, Headers, Lines, Routings int
	EffectiveCosts, Purchases, Rates, Plan, Stock         int
}

// serial tables whose sequences must follow ids written explicitly by Seed
var seededSequences = []string{"units", "products", "operations", "bom_headers", "bom_lines", "purchase_prices"}

// Seed copies a scenario snapshot into the database in one transaction, keeping the
// snapshot ids. Existing rows with the same ids are overwritten.
func Seed(ctx context.Context, db *gorm.DB, snap *memory.Snapshot) (*SeedResult, error) {
	res := &SeedResult{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := NewRepository(tx)

		for i := range snap.Units {
			if err := repo.SaveUnit(ctx, &snap.Units[i]); err != nil {
				return fmt.Errorf("unit %s: %w", snap.Units[i].Code, err)
			}
			res.Units++
		}
		for i := range snap.Products {
			if err := repo.SaveProduct(ctx, &snap.Products[i]); err != nil {
				return fmt.Errorf("product %s: %w", snap.Products[i].Code, err)
			}
			res.Products++
		}
		for i := range snap.Operations {
			if err := repo.SaveOperation(ctx, &snap.Operations[i]); err != nil {
				return fmt.Errorf("operation %s: %w", snap.Operations[i].Code, err)
			}
			res.Operations++
		}
		for i := range snap.Headers {
			if err := repo.SaveHeader(ctx, &snap.Headers[i]); err != nil {
				return fmt.Errorf("bom %d: %w", snap.Headers[i].ID, err)
			}
			res.Headers++
		}
		for i := range snap.Lines {
			if err := repo.SaveLine(ctx, &snap.Lines[i]); err != nil {
				return fmt.Errorf("bom %d line %d: %w", snap.Lines[i].BOMID, snap.Lines[i].LineNumber, err)
			}
			res.Lines++
		}
		for _, step := range snap.Routings {
			if err := repo.AttachOperation(ctx, step.BOMID, step.Operation.ID, step.Sequence, step.Notes); err != nil {
				return fmt.Errorf("bom %d routing %d: %w", step.BOMID, step.Sequence, err)
			}
			res.Routings++
		}
		for i := range snap.EffectiveCosts {
			if err := repo.SaveEffectiveCost(ctx, &snap.EffectiveCosts[i]); err != nil {
				return fmt.Errorf("effective cost of product %d: %w", snap.EffectiveCosts[i].ProductID, err)
			}
			res.EffectiveCosts++
		}
		for i := range snap.Purchases {
			if err := repo.SavePurchasePrice(ctx, &snap.Purchases[i]); err != nil {
				return fmt.Errorf("purchase of product %d: %w", snap.Purchases[i].ProductID, err)
			}
			res.Purchases++
		}
		for _, rate := range snap.Rates {
			if err := repo.SaveRate(ctx, rate); err != nil {
				return fmt.Errorf("rate %s %s: %w", rate.Currency, rate.Date.Format("2006-01-02"), err)
			}
			res.Rates++
		}
		for _, entry := range snap.Plan {
			if err := repo.SavePlanEntry(ctx, entry); err != nil {
				return fmt.Errorf("plan of product %d: %w", entry.ProductID, err)
			}
			res.Plan++
		}
		for _, entry := range snap.Stock {
			if err := repo.SaveStock(ctx, entry); err != nil {
				return fmt.Errorf("stock of product %d: %w", entry.ProductID, err)
			}
			res.Stock++
		}

		for _, table := range seededSequences {
			sql := fmt.Sprintf(
				"SELECT setval(pg_get_serial_sequence('%s', 'id'), COALESCE((SELECT MAX(id) FROM %s), 0) + 1, false)",
				table, table,
			)
			if err := tx.Exec(sql).Error; err != nil {
				return fmt.Errorf("failed to reset sequence of %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}
	return res, nil
}
