package csv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/mbom/pkg/domain/entities"
	"github.com/vsinha/mbom/pkg/infrastructure/repositories/memory"
)

// Scenario file names and their expected headers
var (
	unitsHeader          = []string{"code", "name"}
	productsHeader       = []string{"code", "name", "type", "unit", "active"}
	bomHeadersHeader     = []string{"bom_id", "product", "revision", "state", "valid_from", "valid_until", "notes"}
	bomLinesHeader       = []string{"bom_id", "line_number", "component", "quantity", "unit", "scrap_factor", "operation_sequence"}
	operationsHeader     = []string{"code", "name", "work_center", "standard_minutes", "hourly_cost", "currency"}
	bomOperationsHeader  = []string{"bom_id", "operation", "sequence", "notes"}
	effectiveCostsHeader = []string{"product", "unit_cost", "currency", "valid_from", "valid_until"}
	purchasesHeader      = []string{"product", "supplier", "price_date", "unit_price", "currency", "reference"}
	fxRatesHeader        = []string{"date", "currency", "kind", "rate", "origin"}
	planHeader           = []string{"period", "product", "quantity"}
	stockHeader          = []string{"period", "product", "unit", "quantity"}
)

// Loader reads a scenario directory of CSV files into an in-memory store.
// units.csv and products.csv are required, every other file is optional.
// Products and units are referenced by code, BOM headers by the bom_id column.
type Loader struct {
	logger logrus.FieldLogger
}

// NewLoader creates a new CSV loader
func NewLoader(logger logrus.FieldLogger) *Loader {
	return &Loader{logger: logger}
}

// scenario tracks the code -> id assignments made while loading
type scenario struct {
	store      *memory.Store
	units      map[string]entities.UnitID
	products   map[string]entities.ProductID
	headers    map[int64]entities.BOMID
	operations map[string]entities.OperationID
}

// LoadScenario loads every scenario file found in dir
func (l *Loader) LoadScenario(dir string) (*memory.Store, error) {
	sc := &scenario{
		store:      memory.NewStore(),
		units:      make(map[string]entities.UnitID),
		products:   make(map[string]entities.ProductID),
		headers:    make(map[int64]entities.BOMID),
		operations: make(map[string]entities.OperationID),
	}

	steps := []struct {
		file     string
		header   []string
		required bool
		parse    func(record []string) error
	}{
		{"units.csv", unitsHeader, true, sc.parseUnit},
		{"products.csv", productsHeader, true, sc.parseProduct},
		{"bom_headers.csv", bomHeadersHeader, false, sc.parseBOMHeader},
		{"bom_lines.csv", bomLinesHeader, false, sc.parseBOMLine},
		{"operations.csv", operationsHeader, false, sc.parseOperation},
		{"bom_operations.csv", bomOperationsHeader, false, sc.parseBOMOperation},
		{"effective_costs.csv", effectiveCostsHeader, false, sc.parseEffectiveCost},
		{"purchase_prices.csv", purchasesHeader, false, sc.parsePurchasePrice},
		{"fx_rates.csv", fxRatesHeader, false, sc.parseFXRate},
		{"plan.csv", planHeader, false, sc.parsePlanEntry},
		{"stock.csv", stockHeader, false, sc.parseStock},
	}

	for _, step := range steps {
		records, err := readRecords(filepath.Join(dir, step.file), step.header, step.required)
		if err != nil {
			return nil, err
		}
		for i, record := range records {
			if err := step.parse(record); err != nil {
				return nil, fmt.Errorf("%s row %d: %w", step.file, i+2, err)
			}
		}
		if records != nil {
			l.logger.WithFields(logrus.Fields{
				"file": step.file,
				"rows": len(records),
			}).Debug("scenario file loaded")
		}
	}

	return sc.store, nil
}

// readRecords returns the data rows of a CSV file after checking its header.
// A missing optional file yields nil records.
func readRecords(filename string, expectedHeader []string, required bool) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("%s must have a header row", filepath.Base(filename))
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s header mismatch. Expected: %v, Got: %v", filepath.Base(filename), expectedHeader, header)
	}

	data := records[1:]
	for i, record := range data {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s row %d: expected %d columns, got %d", filepath.Base(filename), i+2, len(expectedHeader), len(record))
		}
	}
	return data, nil
}

// Helper functions for parsing CSV records

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func (sc *scenario) parseUnit(record []string) error {
	code := strings.TrimSpace(record[0])
	if code == "" {
		return fmt.Errorf("unit code is required")
	}
	if _, exists := sc.units[code]; exists {
		return fmt.Errorf("duplicate unit %s", code)
	}
	id := entities.UnitID(len(sc.units) + 1)
	sc.units[code] = id
	sc.store.AddUnit(entities.Unit{ID: id, Code: code, Name: record[1]})
	return nil
}

func (sc *scenario) parseProduct(record []string) error {
	code := strings.TrimSpace(record[0])
	if code == "" {
		return fmt.Errorf("product code is required")
	}
	if _, exists := sc.products[code]; exists {
		return fmt.Errorf("duplicate product %s", code)
	}

	productType := entities.ProductType(strings.ToUpper(strings.TrimSpace(record[2])))
	if !productType.IsValid() {
		return fmt.Errorf("invalid type: %s (expected FG, WIP, RM, PKG, SVC or TOOL)", record[2])
	}

	unit, err := sc.unit(record[3])
	if err != nil {
		return err
	}

	active := true
	if s := strings.TrimSpace(record[4]); s != "" {
		active, err = strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return fmt.Errorf("invalid active: %s", s)
		}
	}

	id := entities.ProductID(len(sc.products) + 1)
	sc.products[code] = id
	sc.store.AddProduct(entities.Product{
		ID:          id,
		Code:        code,
		Name:        record[1],
		Type:        productType,
		DefaultUnit: unit,
		Active:      active,
	})
	return nil
}

func (sc *scenario) parseBOMHeader(record []string) error {
	key, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid bom_id: %s", record[0])
	}
	if _, exists := sc.headers[key]; exists {
		return fmt.Errorf("duplicate bom_id %d", key)
	}

	product, err := sc.product(record[1])
	if err != nil {
		return err
	}

	state := entities.BOMState(strings.ToUpper(strings.TrimSpace(record[3])))
	if !state.IsValid() {
		return fmt.Errorf("invalid state: %s (expected DRAFT, ACTIVE or ARCHIVED)", record[3])
	}

	validFrom, err := parseOptionalDate("valid_from", record[4])
	if err != nil {
		return err
	}
	validUntil, err := parseOptionalDate("valid_until", record[5])
	if err != nil {
		return err
	}

	sc.headers[key] = sc.store.AddHeader(entities.BOMHeader{
		ID:         entities.BOMID(key),
		ProductID:  product,
		Revision:   strings.TrimSpace(record[2]),
		State:      state,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		Notes:      record[6],
	})
	return nil
}

func (sc *scenario) parseBOMLine(record []string) error {
	bomID, err := sc.header(record[0])
	if err != nil {
		return err
	}

	lineNumber, err := strconv.Atoi(strings.TrimSpace(record[1]))
	if err != nil {
		return fmt.Errorf("invalid line_number: %s", record[1])
	}

	component, err := sc.product(record[2])
	if err != nil {
		return err
	}

	quantity, err := parseDecimal("quantity", record[3])
	if err != nil {
		return err
	}

	unit, err := sc.unit(record[4])
	if err != nil {
		return err
	}

	scrap := decimal.Zero
	if s := strings.TrimSpace(record[5]); s != "" {
		if scrap, err = parseDecimal("scrap_factor", s); err != nil {
			return err
		}
	}

	var opSequence *int
	if s := strings.TrimSpace(record[6]); s != "" {
		seq, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("invalid operation_sequence: %s", s)
		}
		opSequence = &seq
	}

	// lines are stored as given; invalid quantities are skipped at costing time
	sc.store.AddLine(entities.BOMLine{
		BOMID:             bomID,
		LineNumber:        lineNumber,
		ChildProductID:    component,
		Quantity:          quantity,
		UnitID:            unit,
		ScrapFactor:       scrap,
		OperationSequence: opSequence,
	})
	return nil
}

func (sc *scenario) parseOperation(record []string) error {
	code := strings.TrimSpace(record[0])
	if code == "" {
		return fmt.Errorf("operation code is required")
	}
	if _, exists := sc.operations[code]; exists {
		return fmt.Errorf("duplicate operation %s", code)
	}

	minutes, err := parseDecimal("standard_minutes", record[3])
	if err != nil {
		return err
	}
	hourly, err := parseDecimal("hourly_cost", record[4])
	if err != nil {
		return err
	}
	currency, err := parseCurrency(record[5])
	if err != nil {
		return err
	}

	id := entities.OperationID(len(sc.operations) + 1)
	sc.operations[code] = id
	sc.store.AddOperation(entities.Operation{
		ID:              id,
		Code:            code,
		Name:            record[1],
		WorkCenter:      record[2],
		StandardMinutes: minutes,
		HourlyCost:      hourly,
		Currency:        currency,
	})
	return nil
}

func (sc *scenario) parseBOMOperation(record []string) error {
	bomID, err := sc.header(record[0])
	if err != nil {
		return err
	}
	opID, ok := sc.operations[strings.TrimSpace(record[1])]
	if !ok {
		return fmt.Errorf("unknown operation: %s", record[1])
	}
	sequence, err := strconv.Atoi(strings.TrimSpace(record[2]))
	if err != nil {
		return fmt.Errorf("invalid sequence: %s", record[2])
	}
	return sc.store.AttachOperation(bomID, opID, sequence, record[3])
}

func (sc *scenario) parseEffectiveCost(record []string) error {
	product, err := sc.product(record[0])
	if err != nil {
		return err
	}
	cost, err := parseDecimal("unit_cost", record[1])
	if err != nil {
		return err
	}
	currency, err := parseCurrency(record[2])
	if err != nil {
		return err
	}
	validFrom, err := parseDate("valid_from", record[3])
	if err != nil {
		return err
	}
	validUntil, err := parseOptionalDate("valid_until", record[4])
	if err != nil {
		return err
	}

	sc.store.AddEffectiveCost(entities.EffectiveCost{
		ProductID:  product,
		UnitCost:   cost,
		Currency:   currency,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
	})
	return nil
}

func (sc *scenario) parsePurchasePrice(record []string) error {
	product, err := sc.product(record[0])
	if err != nil {
		return err
	}
	priceDate, err := parseDate("price_date", record[2])
	if err != nil {
		return err
	}
	price, err := parseDecimal("unit_price", record[3])
	if err != nil {
		return err
	}
	currency, err := parseCurrency(record[4])
	if err != nil {
		return err
	}

	sc.store.AddPurchasePrice(entities.PurchasePrice{
		ProductID:    product,
		SupplierCode: strings.TrimSpace(record[1]),
		PriceDate:    priceDate,
		UnitPrice:    price,
		Currency:     currency,
		Origin:       "csv",
		Reference:    record[5],
	})
	return nil
}

func (sc *scenario) parseFXRate(record []string) error {
	date, err := parseDate("date", record[0])
	if err != nil {
		return err
	}
	currency, err := parseCurrency(record[1])
	if err != nil {
		return err
	}
	kind := entities.RateKind(strings.ToUpper(strings.TrimSpace(record[2])))
	if kind == "" {
		kind = entities.RateKindAverage
	}
	if !kind.IsValid() {
		return fmt.Errorf("invalid kind: %s (expected BUY, SELL or AVERAGE)", record[2])
	}
	rate, err := parseDecimal("rate", record[3])
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		return fmt.Errorf("rate must be positive, got %s", rate)
	}

	sc.store.AddRate(entities.FXRate{
		Date:     date,
		Currency: currency,
		Kind:     kind,
		Rate:     rate,
		Origin:   strings.TrimSpace(record[4]),
	})
	return nil
}

func (sc *scenario) parsePlanEntry(record []string) error {
	period, err := entities.ParsePeriod(record[0])
	if err != nil {
		return err
	}
	product, err := sc.product(record[1])
	if err != nil {
		return err
	}
	quantity, err := parseDecimal("quantity", record[2])
	if err != nil {
		return err
	}

	sc.store.AddPlanEntry(entities.PlanEntry{ProductID: product, Period: period, Quantity: quantity})
	return nil
}

func (sc *scenario) parseStock(record []string) error {
	period, err := entities.ParsePeriod(record[0])
	if err != nil {
		return err
	}
	product, err := sc.product(record[1])
	if err != nil {
		return err
	}
	unit, err := sc.unit(record[2])
	if err != nil {
		return err
	}
	quantity, err := parseDecimal("quantity", record[3])
	if err != nil {
		return err
	}

	sc.store.AddStock(entities.StockEntry{ProductID: product, UnitID: unit, Period: period, Quantity: quantity})
	return nil
}

func (sc *scenario) unit(code string) (entities.UnitID, error) {
	id, ok := sc.units[strings.TrimSpace(code)]
	if !ok {
		return 0, fmt.Errorf("unknown unit: %s", code)
	}
	return id, nil
}

func (sc *scenario) product(code string) (entities.ProductID, error) {
	id, ok := sc.products[strings.TrimSpace(code)]
	if !ok {
		return 0, fmt.Errorf("unknown product: %s", code)
	}
	return id, nil
}

func (sc *scenario) header(s string) (entities.BOMID, error) {
	key, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bom_id: %s", s)
	}
	id, ok := sc.headers[key]
	if !ok {
		return 0, fmt.Errorf("unknown bom_id: %d", key)
	}
	return id, nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", field, s)
	}
	return d, nil
}

func parseCurrency(s string) (entities.Currency, error) {
	currency := entities.Currency(s).Normalize()
	if currency == "" {
		return "", fmt.Errorf("currency is required")
	}
	return currency, nil
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s format: %s (expected YYYY-MM-DD)", field, s)
	}
	return t, nil
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := parseDate(field, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
