package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/infrastructure/config"
	"github.com/vsinha/mbom/pkg/interfaces/cli/output"
)

// Command names
const (
	CommandCost         = "cost"
	CommandReport       = "report"
	CommandRequirements = "requirements"
	CommandValidate     = "validate"
	CommandImportFX     = "import-fx"
	CommandImportStock  = "import-stock"
	CommandImportBOM    = "import-bom"
	CommandSeed         = "seed"
	CommandServe        = "serve"
	CommandGenerate     = "generate"
)

// Config holds configuration for the mbom command
type Config struct {
	Command     string
	ScenarioDir string
	AsOf        string
	BOMID       int64
	ProductCode string
	Codes       string
	Period      string
	File        string
	Currency    string
	Kind        string
	Origin      string
	OutputDir   string
	Format      string
	Verbose     bool
	Help        bool
	Generate    GenerateConfig
	Out         io.Writer
}

// MBOMCommand dispatches a subcommand over a CSV scenario or the configured database
type MBOMCommand struct {
	config   Config
	settings *config.Config
	logger   logrus.FieldLogger
}

// NewMBOMCommand creates a new mbom command. settings carries the environment
// configuration: currencies, database, server and logging.
func NewMBOMCommand(cfg Config, settings *config.Config, logger logrus.FieldLogger) *MBOMCommand {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	return &MBOMCommand{
		config:   cfg,
		settings: settings,
		logger:   logger,
	}
}

// Execute runs the selected subcommand
func (c *MBOMCommand) Execute(ctx context.Context) error {
	if c.config.Help || c.config.Command == "" || c.config.Command == "help" {
		c.showHelp()
		return nil
	}

	if err := c.validateInputs(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	switch c.config.Command {
	case CommandCost:
		return c.runCost(ctx)
	case CommandReport:
		return c.runReport(ctx)
	case CommandRequirements:
		return c.runRequirements(ctx)
	case CommandValidate:
		return c.runValidate(ctx)
	case CommandImportFX:
		return c.runImportFX(ctx)
	case CommandImportStock:
		return c.runImportStock(ctx)
	case CommandImportBOM:
		return c.runImportBOM(ctx)
	case CommandSeed:
		return c.runSeed(ctx)
	case CommandServe:
		return c.runServe(ctx)
	case CommandGenerate:
		return NewGenerateCommand(c.config.Generate, c.config.Out).Execute(ctx)
	default:
		return fmt.Errorf("unknown command %q (run with -help)", c.config.Command)
	}
}

// validateInputs validates the command configuration
func (c *MBOMCommand) validateInputs() error {
	if !contains(output.Formats, c.config.Format) {
		return fmt.Errorf("unsupported output format %q (expected one of %s)", c.config.Format, strings.Join(output.Formats, ", "))
	}
	if c.config.AsOf != "" {
		if _, err := time.Parse(time.DateOnly, c.config.AsOf); err != nil {
			return fmt.Errorf("-as-of must be YYYY-MM-DD: %w", err)
		}
	}

	switch c.config.Command {
	case CommandCost:
		if (c.config.BOMID == 0) == (c.config.ProductCode == "") {
			return fmt.Errorf("cost needs exactly one of -bom or -product")
		}
		if c.config.BOMID < 0 {
			return fmt.Errorf("-bom must be positive")
		}
	case CommandRequirements:
		if c.config.Period == "" {
			return fmt.Errorf("requirements needs -period YYYY-MM")
		}
		if c.config.Format == "html" {
			return fmt.Errorf("requirements cannot be rendered as html")
		}
	case CommandImportFX:
		if c.config.File == "" || c.config.Currency == "" {
			return fmt.Errorf("import-fx needs -file and -currency")
		}
	case CommandImportStock:
		if c.config.File == "" {
			return fmt.Errorf("import-stock needs -file")
		}
	case CommandImportBOM:
		if c.config.File == "" || c.config.ProductCode == "" {
			return fmt.Errorf("import-bom needs -file and -product")
		}
	case CommandSeed:
		if c.config.ScenarioDir == "" {
			return fmt.Errorf("seed needs -scenario")
		}
	}
	return nil
}

func (c *MBOMCommand) outputConfig(elapsed time.Duration) output.Config {
	return output.Config{
		Format:    c.config.Format,
		OutputDir: c.config.OutputDir,
		Verbose:   c.config.Verbose,
		Elapsed:   elapsed,
		Out:       c.config.Out,
	}
}

func (c *MBOMCommand) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.config.Out, format, args...)
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// showHelp displays the help message
func (c *MBOMCommand) showHelp() {
	c.printf(`mbom - manufacturing bill of materials costing

USAGE:
    mbom <command> [options]

COMMANDS:
    cost            Cost one BOM (-bom <id>) or a product's ACTIVE BOM (-product <code>)
    report          Cost the ACTIVE BOM of every finished good, or of -codes A,B,C
    requirements    Explode the production plan of -period YYYY-MM into valued leaf requirements
    validate        Check every ACTIVE BOM for cycles, duplicate lines and invalid quantities
    import-fx       Import an FX rate history workbook (-file, -currency, -kind)
    import-stock    Import a monthly stock workbook (-file)
    import-bom      Import a leveled BOM export (-file .xlsx or .csv) as DRAFT revisions of -product
    seed            Copy a CSV scenario (-scenario) into the database
    serve           Run the HTTP API
    generate        Write a synthetic CSV scenario (-output <dir>)

OPTIONS:
    -scenario <dir>     Read data from a CSV scenario directory instead of the database
    -as-of <date>       Value as of YYYY-MM-DD instead of today
    -bom <id>           BOM header id (cost)
    -product <code>     Product code (cost, import-bom)
    -codes <list>       Comma separated product codes (report)
    -period <YYYY-MM>   Plan period (requirements)
    -file <path>        Workbook or CSV export to import
    -currency <code>    Currency of the imported rates
    -kind <kind>        Rate kind of the imported rates: BUY, SELL, AVERAGE (default: AVERAGE)
    -origin <name>      Origin recorded on imported rates (default: xlsx)
    -output <dir>       Output directory for results (optional; required for csv)
    -format <fmt>       Output format: text, json, csv, html (default: text)
    -verbose            Enable verbose output
    -help               Show this help message

ENVIRONMENT:
    COSTING_BASE_CURRENCY, COSTING_DISPLAY_CURRENCY, COSTING_WHOLESALE_CURRENCY,
    COSTING_RATE_KIND, COSTING_FX_SEARCH, COSTING_MAX_DEPTH,
    DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSL_MODE, DB_AUTO_MIGRATE,
    SERVER_HOST, SERVER_PORT, LOG_LEVEL, LOG_FORMAT
    A .env file in the working directory is read first.

SCENARIO DIRECTORY STRUCTURE:
    scenario_name/
    ├── units.csv             code,name
    ├── products.csv          code,name,type,unit,active
    ├── bom_headers.csv       bom_id,product,revision,state,valid_from,valid_until,notes
    ├── bom_lines.csv         bom_id,line_number,component,quantity,unit,scrap_factor,operation_sequence
    ├── operations.csv        code,name,work_center,standard_minutes,hourly_cost,currency
    ├── bom_operations.csv    bom_id,operation,sequence,notes
    ├── effective_costs.csv   product,unit_cost,currency,valid_from,valid_until
    ├── purchase_prices.csv   product,supplier,price_date,unit_price,currency,reference
    ├── fx_rates.csv          date,currency,kind,rate,origin
    ├── plan.csv              period,product,quantity
    └── stock.csv             period,product,unit,quantity
    Only units.csv and products.csv are required.

EXAMPLES:
    # Cost the ACTIVE bike BOM of a scenario
    mbom cost -scenario examples/bike -product BIKE

    # Cost report of every finished good as of a given day, as CSV
    mbom report -scenario examples/bike -as-of 2024-06-15 -format csv -output results/

    # Requirements of June from the database
    mbom requirements -period 2024-06 -format json

    # Load a scenario into the database, then serve it
    mbom seed -scenario examples/bike
    mbom serve
`)
}
