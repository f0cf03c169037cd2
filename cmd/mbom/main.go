package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/infrastructure/config"
	"github.com/vsinha/mbom/pkg/interfaces/cli/commands"
)

func main() {
	command := ""
	args := os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	flags := flag.NewFlagSet("mbom", flag.ExitOnError)
	var (
		scenarioDir = flags.String("scenario", "", "Path to scenario directory containing CSV files")
		asOf        = flags.String("as-of", "", "Value as of YYYY-MM-DD instead of today")
		bomID       = flags.Int64("bom", 0, "BOM header id")
		productCode = flags.String("product", "", "Product code")
		codes       = flags.String("codes", "", "Comma separated product codes")
		period      = flags.String("period", "", "Plan period YYYY-MM")
		file        = flags.String("file", "", "Workbook or CSV export to import")
		currency    = flags.String("currency", "", "Currency of the imported rates")
		kind        = flags.String("kind", "AVERAGE", "Rate kind of the imported rates")
		origin      = flags.String("origin", "xlsx", "Origin recorded on imported rates")
		outputDir   = flags.String("output", "", "Output directory for results (optional)")
		format      = flags.String("format", "text", "Output format: text, json, csv, html")
		verbose     = flags.Bool("verbose", false, "Enable verbose output")
		help        = flags.Bool("help", false, "Show help message")

		genProducts = flags.Int("products", 200, "generate: number of products")
		genDepth    = flags.Int("max-depth", 5, "generate: maximum BOM depth")
		genPlan     = flags.Int("plan-lines", 3, "generate: finished goods on the plan")
		genStock    = flags.Float64("stock", 0.5, "generate: stock multiplier")
		genSeed     = flags.Int64("seed", 0, "generate: random seed")
	)
	_ = flags.Parse(args)

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := settings.Log.NewLogger(os.Stderr)
	if *verbose && settings.Log.Level == "info" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := commands.Config{
		Command:     command,
		ScenarioDir: *scenarioDir,
		AsOf:        *asOf,
		BOMID:       *bomID,
		ProductCode: *productCode,
		Codes:       *codes,
		Period:      *period,
		File:        *file,
		Currency:    *currency,
		Kind:        *kind,
		Origin:      *origin,
		OutputDir:   *outputDir,
		Format:      *format,
		Verbose:     *verbose,
		Help:        *help,
		Generate: commands.GenerateConfig{
			Products:  *genProducts,
			MaxDepth:  *genDepth,
			PlanLines: *genPlan,
			Stock:     *genStock,
			Period:    *period,
			OutputDir: *outputDir,
			Seed:      *genSeed,
			Verbose:   *verbose,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := commands.NewMBOMCommand(cfg, settings, logger)
	if err := cmd.Execute(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
