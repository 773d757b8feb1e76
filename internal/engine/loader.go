package engine

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/text/encoding/charmap"
)

// Encoding selects how source bytes are decoded.
type Encoding string

const (
	UTF8        Encoding = "utf-8"
	Latin1      Encoding = "latin1"
	Windows1252 Encoding = "windows-1252"
)

// ParseEncoding validates an encoding name; the empty string means UTF-8.
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(s)); e {
	case "", UTF8, "utf8":
		return UTF8, nil
	case Latin1, "iso-8859-1":
		return Latin1, nil
	case Windows1252, "cp1252":
		return Windows1252, nil
	}
	return "", fmt.Errorf("unsupported encoding %q", s)
}

// column keys: header names lowercased with spaces, '-' and '_' removed
const (
	colOrderDate    = "orderdate"
	colShipDate     = "shipdate"
	colCustomerName = "customername"
	colRegion       = "region"
	colCategory     = "category"
	colSales        = "sales"
	colQuantity     = "quantity"
	colDiscount     = "discount"
	colProfit       = "profit"
	colSegment      = "segment"
	colSubCategory  = "subcategory"
	colShipMode     = "shipmode"
)

var requiredColumns = []string{
	colOrderDate, colShipDate, colCustomerName, colRegion, colCategory,
	colSales, colQuantity, colDiscount, colProfit,
}

// dateLayouts are tried in order.
var dateLayouts = []string{
	"1/2/2006",
	"01/02/2006",
	"2006-01-02",
	"2006/01/02",
	"02-01-2006",
	time.RFC3339,
}

// Loader turns a tabular CSV source into a Dataset.
type Loader struct {
	Encoding Encoding
}

// Load reads a UTF-8 source.
func Load(r io.Reader) (*Dataset, error) {
	return Loader{}.Load(r)
}

// LoadFile reads a UTF-8 file.
func LoadFile(path string) (*Dataset, error) {
	return Loader{}.LoadFile(path)
}

// LoadFile opens path and loads it.
func (l Loader) LoadFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &SourceNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.Load(f)
}

type rawRow struct {
	line   int
	fields []string
}

// Load parses, deduplicates, drops rows without a customer name and parses
// dates and numbers, in that order.
func (l Loader) Load(r io.Reader) (*Dataset, error) {
	switch l.Encoding {
	case Latin1:
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	case Windows1252:
		r = charmap.Windows1252.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)

	// 1. Header
	header, err := reader.Read()
	if err == io.EOF {
		return nil, &SchemaError{Missing: slices.Clone(requiredColumns)}
	}
	if err != nil {
		return nil, csvError(err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	// 2. Rows, dropping exact duplicates of the raw text
	seen := make(map[uint64][]int)
	var rows []rawRow
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		line, _ := reader.FieldPos(0)

		h := rowHash(fields)
		dup := false
		for _, k := range seen[h] {
			if slices.Equal(rows[k].fields, fields) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[h] = append(seen[h], len(rows))
		rows = append(rows, rawRow{line: line, fields: fields})
	}

	// 3. Customer name required
	kept := rows[:0]
	for _, row := range rows {
		if strings.TrimSpace(row.fields[index[colCustomerName]]) != "" {
			kept = append(kept, row)
		}
	}

	// 4. Typed records
	records := make([]Record, 0, len(kept))
	for _, row := range kept {
		rec, err := parseRecord(row, index)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return newDataset(records), nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		key := normalizeColumn(h)
		if _, exists := index[key]; !exists {
			index[key] = i
		}
	}
	var missing []string
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}
	return index, nil
}

func normalizeColumn(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(s)
}

func rowHash(fields []string) uint64 {
	return xxh3.HashString(strings.Join(fields, "\x1f"))
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Column: strconv.Itoa(pe.Column), Err: pe.Err}
	}
	return fmt.Errorf("read csv: %w", err)
}

func parseRecord(row rawRow, index map[string]int) (Record, error) {
	cell := func(col string) string {
		i, ok := index[col]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row.fields[i])
	}
	fail := func(col string, err error) error {
		return &ParseError{Line: row.line, Column: col, Value: cell(col), Err: err}
	}

	var (
		rec Record
		err error
	)
	if rec.OrderDate, err = parseDate(cell(colOrderDate)); err != nil {
		return rec, fail(colOrderDate, err)
	}
	if rec.ShipDate, err = parseDate(cell(colShipDate)); err != nil {
		return rec, fail(colShipDate, err)
	}
	if rec.Sales, err = parseAmount(cell(colSales), 0, -1); err != nil {
		return rec, fail(colSales, err)
	}
	if rec.Quantity, err = parseQuantity(cell(colQuantity)); err != nil {
		return rec, fail(colQuantity, err)
	}
	if rec.Discount, err = parseAmount(cell(colDiscount), 0, 1); err != nil {
		return rec, fail(colDiscount, err)
	}
	if rec.Profit, err = parseAmount(cell(colProfit), math.Inf(-1), math.Inf(1)); err != nil {
		return rec, fail(colProfit, err)
	}
	if rec.Region = cell(colRegion); rec.Region == "" {
		return rec, fail(colRegion, errMissingValue)
	}
	if rec.Category = cell(colCategory); rec.Category == "" {
		return rec, fail(colCategory, errMissingValue)
	}

	rec.CustomerName = cell(colCustomerName)
	rec.Segment = cell(colSegment)
	rec.SubCategory = cell(colSubCategory)
	rec.ShipMode = cell(colShipMode)
	return rec, nil
}

var (
	errOutOfRange   = errors.New("value out of range")
	errMissingValue = errors.New("value is required")
)

// parseDate accepts the layouts in dateLayouts and returns a UTC date.
func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount parses a finite float bounded below by lo and, when hi >= lo,
// above by hi.
func parseAmount(s string, lo, hi float64) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) || v < lo || (hi >= lo && v > hi) {
		return 0, errOutOfRange
	}
	return v, nil
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errOutOfRange
	}
	return n, nil
}
