package engine

import (
	"fmt"
	"time"
)

// Dimension names a categorical column usable as a grouping or filter key.
type Dimension string

const (
	Region      Dimension = "region"
	Category    Dimension = "category"
	Segment     Dimension = "segment"
	SubCategory Dimension = "sub_category"
	ShipMode    Dimension = "ship_mode"
)

// Measure names a numeric column.
type Measure string

const (
	Sales    Measure = "sales"
	Quantity Measure = "quantity"
	Discount Measure = "discount"
	Profit   Measure = "profit"
)

// DateField names one of the two calendar columns.
type DateField string

const (
	OrderDate DateField = "order_date"
	ShipDate  DateField = "ship_date"
)

// NumericMeasures is the column set of the correlation heatmap.
var NumericMeasures = []Measure{Sales, Quantity, Discount, Profit}

// Record is one sales transaction. Segment, SubCategory and ShipMode are
// empty when the source lacks those columns.
type Record struct {
	OrderDate    time.Time `json:"order_date"`
	ShipDate     time.Time `json:"ship_date"`
	CustomerName string    `json:"customer_name"`
	Region       string    `json:"region"`
	Category     string    `json:"category"`
	Segment      string    `json:"segment,omitempty"`
	SubCategory  string    `json:"sub_category,omitempty"`
	ShipMode     string    `json:"ship_mode,omitempty"`
	Sales        float64   `json:"sales"`
	Quantity     int       `json:"quantity"`
	Discount     float64   `json:"discount"`
	Profit       float64   `json:"profit"`
}

// Dataset is an immutable ordered collection of records.
// Derived datasets (filters) share no mutable state with their parent.
type Dataset struct {
	records []Record

	// Observed values per dimension, first-appearance order. Blank optional
	// dimensions are not recorded; a blank region or category is.
	dicts map[Dimension][]string
}

// NewDataset builds a dataset over a copy of records.
func NewDataset(records []Record) *Dataset {
	cp := make([]Record, len(records))
	copy(cp, records)
	return newDataset(cp)
}

func newDataset(records []Record) *Dataset {
	ds := &Dataset{
		records: records,
		dicts:   make(map[Dimension][]string),
	}
	seen := make(map[Dimension]map[string]struct{})
	for _, d := range []Dimension{Region, Category, Segment, SubCategory, ShipMode} {
		seen[d] = make(map[string]struct{})
		ds.dicts[d] = []string{}
	}
	for i := range records {
		for d, set := range seen {
			v := records[i].dimension(d)
			if v == "" && d != Region && d != Category {
				continue
			}
			if _, ok := set[v]; !ok {
				set[v] = struct{}{}
				ds.dicts[d] = append(ds.dicts[d], v)
			}
		}
	}
	return ds
}

// Len returns the number of records.
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	return len(ds.records)
}

// At returns the i-th record by value.
func (ds *Dataset) At(i int) Record { return ds.records[i] }

// Records returns a copy of the records.
func (ds *Dataset) Records() []Record {
	out := make([]Record, ds.Len())
	if ds != nil {
		copy(out, ds.records)
	}
	return out
}

// Values returns the distinct values of a dimension in first-appearance order.
func (ds *Dataset) Values(d Dimension) []string {
	if ds == nil {
		return []string{}
	}
	vals := ds.dicts[d]
	out := make([]string, len(vals))
	copy(out, vals)
	return out
}

func (r *Record) dimension(d Dimension) string {
	switch d {
	case Region:
		return r.Region
	case Category:
		return r.Category
	case Segment:
		return r.Segment
	case SubCategory:
		return r.SubCategory
	case ShipMode:
		return r.ShipMode
	}
	return ""
}

func (r *Record) measure(m Measure) float64 {
	switch m {
	case Sales:
		return r.Sales
	case Quantity:
		return float64(r.Quantity)
	case Discount:
		return r.Discount
	case Profit:
		return r.Profit
	}
	return 0
}

func (r *Record) date(f DateField) time.Time {
	if f == ShipDate {
		return r.ShipDate
	}
	return r.OrderDate
}

// ParseDimension validates a dimension name.
func ParseDimension(s string) (Dimension, error) {
	switch d := Dimension(s); d {
	case Region, Category, Segment, SubCategory, ShipMode:
		return d, nil
	}
	return "", fmt.Errorf("dimension %q: %w", s, ErrUnknownField)
}

// ParseMeasure validates a measure name.
func ParseMeasure(s string) (Measure, error) {
	switch m := Measure(s); m {
	case Sales, Quantity, Discount, Profit:
		return m, nil
	}
	return "", fmt.Errorf("measure %q: %w", s, ErrUnknownField)
}

// ParseDateField validates a date field name.
func ParseDateField(s string) (DateField, error) {
	switch f := DateField(s); f {
	case OrderDate, ShipDate:
		return f, nil
	}
	return "", fmt.Errorf("date field %q: %w", s, ErrUnknownField)
}
