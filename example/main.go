package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/application/services/costing"
	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/mbom/pkg/interfaces/cli/output"
)

func main() {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	today := entities.Date(2025, time.March, 3)
	store := memory.NewStore()
	bomID := setupTableBOM(store, today)

	cfg := costing.DefaultConfig()
	cfg.Now = func() time.Time { return today }
	svc := costing.NewService(cfg, store, store, store, store, logger)

	fmt.Println("Costing a dining table in ARS...")
	fmt.Println()

	breakdown, err := svc.Explode(ctx, bomID)
	if err != nil {
		fmt.Printf("Costing failed: %v\n", err)
		os.Exit(1)
	}

	if err := output.Breakdown(breakdown, output.Config{Format: "text"}); err != nil {
		fmt.Printf("Output failed: %v\n", err)
		os.Exit(1)
	}
}

func setupTableBOM(store *memory.Store, today time.Time) entities.BOMID {
	store.AddUnit(entities.Unit{ID: 1, Code: "EA", Name: "Each"})
	store.AddUnit(entities.Unit{ID: 2, Code: "M2", Name: "Square meter"})

	store.AddProduct(entities.Product{ID: 1, Code: "TABLE", Name: "Dining table", Type: entities.ProductTypeFinishedGood, DefaultUnit: 1, Active: true})
	store.AddProduct(entities.Product{ID: 2, Code: "LEG", Name: "Oak leg", Type: entities.ProductTypeRawMaterial, DefaultUnit: 1, Active: true})
	store.AddProduct(entities.Product{ID: 3, Code: "TOP", Name: "Oak top", Type: entities.ProductTypeRawMaterial, DefaultUnit: 2, Active: true})
	store.AddProduct(entities.Product{ID: 4, Code: "VARNISH", Name: "Varnish", Type: entities.ProductTypeRawMaterial, DefaultUnit: 1, Active: true})

	bomID := store.AddHeader(entities.BOMHeader{
		ProductID: 1,
		Revision:  "A",
		State:     entities.BOMStateActive,
		CreatedAt: today,
	})
	store.AddLine(entities.BOMLine{BOMID: bomID, LineNumber: 10, ChildProductID: 2, Quantity: decimal.NewFromInt(4), UnitID: 1})
	store.AddLine(entities.BOMLine{BOMID: bomID, LineNumber: 20, ChildProductID: 3, Quantity: decimal.RequireFromString("1.5"), UnitID: 2, ScrapFactor: decimal.RequireFromString("0.1")})
	store.AddLine(entities.BOMLine{BOMID: bomID, LineNumber: 30, ChildProductID: 4, Quantity: decimal.NewFromInt(1), UnitID: 1})

	store.AddOperation(entities.Operation{ID: 1, Code: "SANDING", Name: "Sanding", WorkCenter: "WOOD-1", StandardMinutes: decimal.NewFromInt(40), HourlyCost: decimal.NewFromInt(9000), Currency: "ARS"})
	_ = store.AttachOperation(bomID, 1, 10, "")

	// legs bought in dollars last week, the top in euros, varnish at a standard cost
	store.AddPurchasePrice(entities.PurchasePrice{ProductID: 2, SupplierCode: "WOODCO", PriceDate: today.AddDate(0, 0, -7), UnitPrice: decimal.NewFromInt(12), Currency: "USD"})
	store.AddPurchasePrice(entities.PurchasePrice{ProductID: 3, SupplierCode: "EUROAK", PriceDate: today.AddDate(0, 0, -20), UnitPrice: decimal.NewFromInt(80), Currency: "EUR"})
	store.AddEffectiveCost(entities.EffectiveCost{ProductID: 4, UnitCost: decimal.NewFromInt(6500), Currency: "ARS", ValidFrom: today.AddDate(0, -1, 0)})

	for _, d := range []int{-21, -14, -7, 0} {
		day := today.AddDate(0, 0, d)
		store.AddRate(entities.FXRate{Date: day, Currency: "USD", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(1050), Origin: "example"})
		store.AddRate(entities.FXRate{Date: day, Currency: "EUR", Kind: entities.RateKindAverage, Rate: decimal.NewFromInt(1130), Origin: "example"})
	}

	return bomID
}
