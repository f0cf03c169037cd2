package xlsx

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/vsinha/mbom/pkg/application/dto"
)

var (
	treeCodeColumns     = []string{"codart", "cod_art", "codigo"}
	treeQuantityColumns = []string{"cantidad", "cant"}
)

// LoadBOMTree reads a leveled BOM export. Workbooks are recognized by the .xlsx
// extension of name; anything else is read as CSV, separated by ';', ',' or tabs,
// in UTF-8 or Latin-1. The header needs a code column (codart, cod_art or codigo)
// and nivel; cantidad (or cant) and descripcion are optional. Product codes are
// upper-cased. An unreadable level or quantity rejects the whole file.
func LoadBOMTree(r io.Reader, name string) ([]dto.BOMTreeRow, error) {
	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		rows, err = readActiveSheet(r)
	} else {
		rows, err = readDelimited(r)
	}
	if err != nil {
		return nil, err
	}

	headerRow, cols := findTreeHeader(rows)
	if headerRow < 0 {
		return nil, fmt.Errorf("no header with a code column (%s) and 'nivel' found in the first %d rows",
			strings.Join(treeCodeColumns, ", "), headerSearchRows)
	}

	var out []dto.BOMTreeRow
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		code, rawLevel := cell(row, cols.code), cell(row, cols.level)
		if code == "" && rawLevel == "" {
			continue
		}

		level := 0
		if rawLevel != "" {
			f, err := strconv.ParseFloat(strings.ReplaceAll(rawLevel, ",", "."), 64)
			if err != nil || f < 0 {
				return nil, RowError{Row: i + 1, Err: fmt.Errorf("invalid nivel %q", rawLevel)}
			}
			level = int(f)
		}

		parsed := dto.BOMTreeRow{
			Row:         i + 1,
			Code:        strings.ToUpper(code),
			Description: optionalCell(row, cols.description),
			Level:       level,
		}
		if rawQty := strings.ReplaceAll(optionalCell(row, cols.quantity), " ", ""); rawQty != "" {
			qty, err := parseNumber(rawQty)
			if err != nil {
				return nil, RowError{Row: i + 1, Err: fmt.Errorf("invalid cantidad %q", rawQty)}
			}
			parsed.Quantity = &qty
		}
		out = append(out, parsed)
	}
	return out, nil
}

type treeColumns struct {
	code, level, quantity, description int
}

func findTreeHeader(rows [][]string) (int, treeColumns) {
	for i := 0; i < len(rows) && i < headerSearchRows; i++ {
		index := make(map[string]int, len(rows[i]))
		for col, v := range rows[i] {
			key := strings.ToLower(strings.TrimSpace(v))
			if _, seen := index[key]; !seen {
				index[key] = col
			}
		}
		cols := treeColumns{
			code:        firstColumn(index, treeCodeColumns),
			level:       firstColumn(index, []string{"nivel"}),
			quantity:    firstColumn(index, treeQuantityColumns),
			description: firstColumn(index, []string{"descripcion"}),
		}
		if cols.code >= 0 && cols.level >= 0 {
			return i, cols
		}
	}
	return -1, treeColumns{}
}

func firstColumn(index map[string]int, names []string) int {
	for _, name := range names {
		if col, ok := index[name]; ok {
			return col
		}
	}
	return -1
}

func optionalCell(row []string, col int) string {
	if col < 0 {
		return ""
	}
	return cell(row, col)
}

// readDelimited decodes a CSV export, guessing the separator from the first line
func readDelimited(r io.Reader) ([][]string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	var text io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		text = transform.NewReader(text, charmap.ISO8859_1.NewDecoder())
	}

	firstLine := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		firstLine = raw[:i]
	}
	sep, best := ';', 0
	for _, candidate := range []rune{';', ',', '\t'} {
		if n := bytes.Count(firstLine, []byte(string(candidate))); n > best {
			sep, best = candidate, n
		}
	}

	reader := csv.NewReader(text)
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}
