// Package xlsx imports FX rate history, monthly stock and leveled BOM exports from
// spreadsheets.
package xlsx

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/domain/repositories"
)

// headerSearchRows is how many leading rows may hold the header
const headerSearchRows = 5

var stockHeader = []string{"periodo", "codigo_producto", "cantidad", "unidad_medida"}

// RowError reports a rejected spreadsheet row (1-based, as shown by spreadsheet tools)
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// FXImport is the outcome of an FX rate import. Rejected rows do not abort the import.
type FXImport struct {
	Rates  []entities.FXRate
	Errors []RowError
}

// StockRow is one parsed stock row, still keyed by codes
type StockRow struct {
	Row         int
	Period      entities.Period
	ProductCode string
	Quantity    decimal.Decimal
	UnitCode    string
}

// StockImport is the outcome of a stock import
type StockImport struct {
	Rows   []StockRow
	Errors []RowError
}

// LoadFXRates reads the active sheet of a workbook holding "fecha" and "tasa" columns.
// The header must appear within the first rows; rows with an empty date or rate are ignored.
func LoadFXRates(r io.Reader, currency entities.Currency, kind entities.RateKind, origin string) (*FXImport, error) {
	currency = currency.Normalize()
	if currency == "" {
		return nil, fmt.Errorf("currency is required")
	}
	if !kind.IsValid() {
		return nil, fmt.Errorf("unknown rate kind %q", kind)
	}

	rows, err := readActiveSheet(r)
	if err != nil {
		return nil, err
	}

	headerRow, columns := findHeader(rows, "fecha", "tasa")
	if headerRow < 0 {
		return nil, fmt.Errorf("no header with columns 'fecha' and 'tasa' found in the first %d rows", headerSearchRows)
	}
	dateCol, rateCol := columns[0], columns[1]

	result := &FXImport{}
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		rawDate, rawRate := cell(row, dateCol), cell(row, rateCol)
		if rawDate == "" || rawRate == "" {
			continue
		}
		date, err := parseDate(rawDate)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: err})
			continue
		}
		rate, err := parseNumber(rawRate)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: fmt.Errorf("invalid tasa %q", rawRate)})
			continue
		}
		if !rate.IsPositive() {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: fmt.Errorf("tasa must be positive, got %s", rate)})
			continue
		}
		result.Rates = append(result.Rates, entities.FXRate{
			Date:     date,
			Currency: currency,
			Kind:     kind,
			Rate:     rate,
			Origin:   origin,
		})
	}
	return result, nil
}

// LoadStock reads the active sheet of a workbook with the columns
// periodo, codigo_producto, cantidad, unidad_medida (in any order).
func LoadStock(r io.Reader) (*StockImport, error) {
	rows, err := readActiveSheet(r)
	if err != nil {
		return nil, err
	}

	headerRow, columns := findHeader(rows, stockHeader...)
	if headerRow < 0 {
		return nil, fmt.Errorf("no header with columns %s found in the first %d rows", strings.Join(stockHeader, ", "), headerSearchRows)
	}

	result := &StockImport{}
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		rawPeriod, code := cell(row, columns[0]), cell(row, columns[1])
		rawQty, unit := cell(row, columns[2]), cell(row, columns[3])
		if rawPeriod == "" && code == "" && rawQty == "" {
			continue
		}
		if code == "" {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: fmt.Errorf("codigo_producto is empty")})
			continue
		}
		period, err := entities.ParsePeriod(rawPeriod)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: err})
			continue
		}
		qty, err := parseNumber(rawQty)
		if err != nil || qty.IsNegative() {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Err: fmt.Errorf("invalid cantidad %q", rawQty)})
			continue
		}
		result.Rows = append(result.Rows, StockRow{
			Row:         i + 1,
			Period:      period,
			ProductCode: code,
			Quantity:    qty,
			UnitCode:    unit,
		})
	}
	return result, nil
}

// RateSink persists imported rates
type RateSink interface {
	SaveRate(ctx context.Context, rate entities.FXRate) error
}

// StockSink persists imported stock
type StockSink interface {
	SaveStock(ctx context.Context, entry entities.StockEntry) error
}

// SaveRates writes every imported rate to sink
func (imp *FXImport) SaveRates(ctx context.Context, sink RateSink) (int, error) {
	for i, rate := range imp.Rates {
		if err := sink.SaveRate(ctx, rate); err != nil {
			return i, fmt.Errorf("failed to save rate of %s: %w", rate.Date.Format(time.DateOnly), err)
		}
	}
	return len(imp.Rates), nil
}

// SaveStock resolves product codes and writes the rows to sink. A row whose unit
// differs from the product's default unit is rejected; an empty unit means the default.
// Rejected rows are appended to imp.Errors.
func (imp *StockImport) SaveStock(ctx context.Context, products repositories.ProductRepository, sink StockSink) (int, error) {
	saved := 0
	for _, row := range imp.Rows {
		product, err := products.GetProductByCode(ctx, row.ProductCode)
		if err != nil {
			imp.Errors = append(imp.Errors, RowError{Row: row.Row, Err: err})
			continue
		}
		unit, err := products.GetUnit(ctx, product.DefaultUnit)
		if err != nil {
			return saved, fmt.Errorf("failed to get unit of %s: %w", product.Code, err)
		}
		if row.UnitCode != "" && !strings.EqualFold(row.UnitCode, unit.Code) {
			imp.Errors = append(imp.Errors, RowError{
				Row: row.Row,
				Err: fmt.Errorf("unidad_medida %s does not match %s of %s", row.UnitCode, unit.Code, product.Code),
			})
			continue
		}
		entry := entities.StockEntry{
			ProductID: product.ID,
			UnitID:    unit.ID,
			Period:    row.Period,
			Quantity:  row.Quantity,
		}
		if err := sink.SaveStock(ctx, entry); err != nil {
			return saved, fmt.Errorf("failed to save stock of %s: %w", product.Code, err)
		}
		saved++
	}
	return saved, nil
}

func readActiveSheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// findHeader returns the index of the first row holding every name (case-insensitive)
// and the column of each name, or -1
func findHeader(rows [][]string, names ...string) (int, []int) {
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		index := make(map[string]int, len(rows[i]))
		for col, v := range rows[i] {
			key := strings.ToLower(strings.TrimSpace(v))
			if _, seen := index[key]; !seen {
				index[key] = col
			}
		}
		columns := make([]int, 0, len(names))
		for _, name := range names {
			col, ok := index[name]
			if !ok {
				break
			}
			columns = append(columns, col)
		}
		if len(columns) == len(names) {
			return i, columns
		}
	}
	return -1, nil
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// parseDate accepts ISO dates, dd/mm/yyyy and Excel serial day numbers
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("02/01/2006", s); err == nil {
		return t, nil
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return entities.DateOf(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid fecha %q (expected YYYY-MM-DD)", s)
}

// parseNumber accepts a comma as decimal separator
func parseNumber(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
}
