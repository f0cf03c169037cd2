package output

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/mbom/pkg/application/dto"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"money": money,
	"pct":   func(d decimal.Decimal) string { return d.StringFixed(2) },
}).ParseFS(templateFS, "templates/*.html"))

// breakdownPage is the data of templates/breakdown.html
type breakdownPage struct {
	*dto.CostBreakdown
	Title       string
	GeneratedAt string
	Elapsed     string
}

// reportPage is the data of templates/report.html
type reportPage struct {
	Rows        []dto.ProductCost
	Title       string
	GeneratedAt string
	Elapsed     string
}

func breakdownHTML(b *dto.CostBreakdown, config Config) error {
	page := breakdownPage{
		CostBreakdown: b,
		Title:         fmt.Sprintf("MBOM %d revision %s", b.BOMID, b.Revision),
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Elapsed:       formatDuration(config.Elapsed),
	}
	return renderHTML("breakdown.html", page, fmt.Sprintf("mbom_%d.html", b.BOMID), config)
}

func reportHTML(rows []dto.ProductCost, config Config) error {
	page := reportPage{
		Rows:        rows,
		Title:       "Cost report",
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Elapsed:     formatDuration(config.Elapsed),
	}
	return renderHTML("report.html", page, "cost_report.html", config)
}

// renderHTML executes a template and writes it to stdout, or to name under the output directory
func renderHTML(tmpl string, data interface{}, name string, config Config) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	if config.OutputDir == "" {
		_, err := config.out().Write(buf.Bytes())
		return err
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	filename := filepath.Join(config.OutputDir, name)
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	if config.Verbose {
		fmt.Fprintf(config.out(), "HTML report saved to: %s\n", filename)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
