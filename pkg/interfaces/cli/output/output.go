package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/application/dto"
	"github.com/vsinha/mbom/pkg/domain/services/bomvalidator"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Elapsed   time.Duration
	// Out receives stdout output; nil means os.Stdout.
	Out io.Writer
}

func (c Config) out() io.Writer {
	if c.Out == nil {
		return os.Stdout
	}
	return c.Out
}

// Formats lists the supported output formats
var Formats = []string{"text", "json", "csv", "html"}

// Breakdown renders the cost breakdown of one BOM
func Breakdown(b *dto.CostBreakdown, config Config) error {
	switch config.Format {
	case "text":
		return breakdownText(b, config)
	case "json":
		return writeJSON(b, "breakdown.json", config)
	case "csv":
		return breakdownCSV(b, config)
	case "html":
		return breakdownHTML(b, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// Report renders a cost report over products
func Report(rows []dto.ProductCost, config Config) error {
	switch config.Format {
	case "text":
		return reportText(rows, config)
	case "json":
		return writeJSON(rows, "cost_report.json", config)
	case "csv":
		return reportCSV(rows, config)
	case "html":
		return reportHTML(rows, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// Requirements renders the requirements of a production plan period
func Requirements(r *dto.RequirementsReport, config Config) error {
	switch config.Format {
	case "text":
		return requirementsText(r, config)
	case "json":
		return writeJSON(r, "requirements.json", config)
	case "csv":
		return requirementsCSV(r, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// ValidationEntry is the outcome of validating one BOM
type ValidationEntry struct {
	BOMID    int64                          `json:"bom_id"`
	Product  string                         `json:"product"`
	Revision string                         `json:"revision"`
	Result   *bomvalidator.ValidationResult `json:"-"`
	Errors   []string                       `json:"errors"`
}

// Validation renders structure validation results
func Validation(entries []ValidationEntry, config Config) error {
	for i := range entries {
		entries[i].Errors = entries[i].Result.Errors
	}
	if config.Format == "json" {
		return writeJSON(entries, "validation.json", config)
	}

	w := config.out()
	invalid := 0
	fmt.Fprintf(w, "%-8s %-20s %-8s %s\n", "BOM", "Product", "Rev", "Status")
	fmt.Fprintf(w, "%-8s %-20s %-8s %s\n", "--------", "--------------------", "--------", "------")
	for _, e := range entries {
		status := "ok"
		if !e.Result.IsValid() {
			status = fmt.Sprintf("%d problem(s)", len(e.Result.Errors))
			invalid++
		}
		fmt.Fprintf(w, "%-8d %-20s %-8s %s\n", e.BOMID, e.Product, e.Revision, status)
		for _, msg := range e.Result.Errors {
			fmt.Fprintf(w, "         - %s\n", msg)
		}
	}
	fmt.Fprintf(w, "\n%d BOM(s) checked, %d invalid\n", len(entries), invalid)
	return nil
}

func breakdownText(b *dto.CostBreakdown, config Config) error {
	w := config.out()
	fmt.Fprintf(w, "MBOM %d  revision %s  (product %d)\n", b.BOMID, b.Revision, b.ProductID)
	fmt.Fprintf(w, "=============================================\n\n")

	if len(b.Materials.Lines) > 0 {
		fmt.Fprintf(w, "Materials:\n")
		fmt.Fprintf(w, "%-5s %-15s %-6s %10s %8s %14s %-4s %-16s %14s\n",
			"Line", "Code", "Unit", "Qty", "Scrap", "Unit Cost", "Cur", "Source", "Total")
		fmt.Fprintf(w, "%-5s %-15s %-6s %10s %8s %14s %-4s %-16s %14s\n",
			"-----", "---------------", "------", "----------", "--------", "--------------", "----", "----------------", "--------------")
		for _, l := range b.Materials.Lines {
			source := string(l.Source)
			if l.Skipped {
				source = "skipped"
			}
			fmt.Fprintf(w, "%-5d %-15s %-6s %10s %8s %14s %-4s %-16s %14s\n",
				l.LineNumber,
				l.Code,
				l.UnitCode,
				l.Quantity.String(),
				l.ScrapFactor.String(),
				money(l.UnitCost),
				l.Currency,
				source,
				money(l.Total))
		}
		fmt.Fprintf(w, "%-82s %14s\n\n", "Materials total ("+string(b.Materials.Currency)+")", money(b.Materials.Total))
	}

	if len(b.Processes.Operations) > 0 {
		fmt.Fprintf(w, "Processes:\n")
		fmt.Fprintf(w, "%-5s %-12s %-15s %10s %14s %-4s %14s\n",
			"Seq", "Code", "Work Center", "Minutes", "Hourly", "Cur", "Subtotal")
		fmt.Fprintf(w, "%-5s %-12s %-15s %10s %14s %-4s %14s\n",
			"-----", "------------", "---------------", "----------", "--------------", "----", "--------------")
		for _, op := range b.Processes.Operations {
			fmt.Fprintf(w, "%-5d %-12s %-15s %10s %14s %-4s %14s\n",
				op.Sequence,
				op.Code,
				op.WorkCenter,
				op.StandardMinutes.String(),
				money(op.HourlyCost),
				op.HourlyCurrency,
				money(op.Subtotal))
		}
		fmt.Fprintf(w, "%-82s %14s\n\n", "Processes total ("+string(b.Processes.Currency)+")", money(b.Processes.Total))
	}

	fmt.Fprintf(w, "Total: %s %s  (materials %s%%, processes %s%%)\n",
		money(b.Total), b.Currency, b.Percentages.Materials.StringFixed(2), b.Percentages.Processes.StringFixed(2))
	if b.AlertFX && b.DetailAlert != nil {
		fmt.Fprintf(w, "WARNING: %s\n", *b.DetailAlert)
	}
	for _, cycle := range b.Cycles {
		fmt.Fprintf(w, "WARNING: cycle through products %v\n", cycle)
	}
	if config.Verbose {
		fmt.Fprintf(w, "Explosion time: %v\n", config.Elapsed)
	}
	return nil
}

func reportText(rows []dto.ProductCost, config Config) error {
	w := config.out()
	fmt.Fprintf(w, "%-15s %-30s %-5s %-4s %14s %14s %14s %-5s\n",
		"Code", "Name", "Rev", "Cur", "Materials", "Processes", "Total", "Alert")
	fmt.Fprintf(w, "%-15s %-30s %-5s %-4s %14s %14s %14s %-5s\n",
		"---------------", "------------------------------", "-----", "----", "--------------", "--------------", "--------------", "-----")
	for _, r := range rows {
		alert := ""
		if r.AlertFX {
			alert = "FX"
		}
		fmt.Fprintf(w, "%-15s %-30s %-5s %-4s %14s %14s %14s %-5s\n",
			r.Code,
			truncate(r.Name, 30),
			r.Revision,
			r.Currency,
			money(r.MaterialsTotal),
			money(r.ProcessesTotal),
			money(r.Total),
			alert)
	}
	fmt.Fprintf(w, "\n%d product(s) costed\n", len(rows))
	if config.Verbose {
		fmt.Fprintf(w, "Explosion time: %v\n", config.Elapsed)
	}
	return nil
}

func requirementsText(r *dto.RequirementsReport, config Config) error {
	w := config.out()
	fmt.Fprintf(w, "Requirements for %s  (run %s)\n\n", r.Period, r.RunID)
	fmt.Fprintf(w, "%-15s %-6s %12s %12s %12s %14s %-16s %14s\n",
		"Code", "Unit", "Gross", "On Hand", "Net", "Unit Cost", "Source", "Total Net")
	fmt.Fprintf(w, "%-15s %-6s %12s %12s %12s %14s %-16s %14s\n",
		"---------------", "------", "------------", "------------", "------------", "--------------", "----------------", "--------------")
	for _, l := range r.Lines {
		fmt.Fprintf(w, "%-15s %-6s %12s %12s %12s %14s %-16s %14s\n",
			l.Code,
			l.UnitCode,
			l.Gross.String(),
			l.OnHand.String(),
			l.Net.String(),
			money(l.UnitCost),
			l.Source,
			money(l.TotalNet))
	}
	fmt.Fprintf(w, "\nTotal gross: %s %s\n", money(r.TotalGross), r.Currency)
	fmt.Fprintf(w, "Total net:   %s %s\n", money(r.TotalNet), r.Currency)
	if r.AlertFX && r.DetailAlert != nil {
		fmt.Fprintf(w, "WARNING: %s\n", *r.DetailAlert)
	}
	if config.Verbose {
		fmt.Fprintf(w, "Explosion time: %v\n", config.Elapsed)
	}
	return nil
}

// writeJSON prints v to stdout, or saves it as name under the output directory
func writeJSON(v interface{}, name string, config Config) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.out(), string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, name)
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.out(), "JSON results saved to: %s\n", filename)
	}
	return nil
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
