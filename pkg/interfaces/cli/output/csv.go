package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/vsinha/mbom/pkg/application/dto"
)

func breakdownCSV(b *dto.CostBreakdown, config Config) error {
	materials := [][]string{{"line_number", "code", "name", "unit", "quantity", "scrap_factor", "unit_cost", "currency", "source", "total", "skipped"}}
	for _, l := range b.Materials.Lines {
		materials = append(materials, []string{
			strconv.Itoa(l.LineNumber),
			l.Code,
			l.Name,
			l.UnitCode,
			l.Quantity.String(),
			l.ScrapFactor.String(),
			l.UnitCost.String(),
			string(l.Currency),
			string(l.Source),
			l.Total.String(),
			strconv.FormatBool(l.Skipped),
		})
	}

	processes := [][]string{{"sequence", "code", "name", "work_center", "standard_minutes", "hourly_cost", "hourly_currency", "subtotal"}}
	for _, op := range b.Processes.Operations {
		processes = append(processes, []string{
			strconv.Itoa(op.Sequence),
			op.Code,
			op.Name,
			op.WorkCenter,
			op.StandardMinutes.String(),
			op.HourlyCost.String(),
			string(op.HourlyCurrency),
			op.Subtotal.String(),
		})
	}

	return writeCSVFiles(config, map[string][][]string{
		fmt.Sprintf("mbom_%d_materials.csv", b.BOMID): materials,
		fmt.Sprintf("mbom_%d_processes.csv", b.BOMID): processes,
	})
}

func reportCSV(rows []dto.ProductCost, config Config) error {
	records := [][]string{{"code", "name", "type", "bom_id", "revision", "currency", "materials_total", "processes_total", "total", "alert_fx"}}
	for _, r := range rows {
		records = append(records, []string{
			r.Code,
			r.Name,
			string(r.Type),
			strconv.FormatInt(int64(r.BOMID), 10),
			r.Revision,
			string(r.Currency),
			r.MaterialsTotal.String(),
			r.ProcessesTotal.String(),
			r.Total.String(),
			strconv.FormatBool(r.AlertFX),
		})
	}
	return writeCSVFiles(config, map[string][][]string{"cost_report.csv": records})
}

func requirementsCSV(r *dto.RequirementsReport, config Config) error {
	records := [][]string{{"code", "name", "unit", "gross_quantity", "on_hand", "net_quantity", "unit_cost", "source", "total_gross", "total_net", "alert_fx"}}
	for _, l := range r.Lines {
		records = append(records, []string{
			l.Code,
			l.Name,
			l.UnitCode,
			l.Gross.String(),
			l.OnHand.String(),
			l.Net.String(),
			l.UnitCost.String(),
			string(l.Source),
			l.TotalGross.String(),
			l.TotalNet.String(),
			strconv.FormatBool(l.AlertFX),
		})
	}
	return writeCSVFiles(config, map[string][][]string{
		fmt.Sprintf("requirements_%s.csv", r.Period): records,
	})
}

// writeCSVFiles writes one file per entry under the output directory
func writeCSVFiles(config Config, files map[string][][]string) error {
	if config.OutputDir == "" {
		return fmt.Errorf("output directory required for CSV format")
	}
	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for name, records := range files {
		filename := filepath.Join(config.OutputDir, name)
		if err := writeCSV(filename, records); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		if config.Verbose {
			fmt.Fprintf(config.out(), "CSV results saved to: %s\n", filename)
		}
	}
	return nil
}

func writeCSV(filename string, records [][]string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	return file.Close()
}
