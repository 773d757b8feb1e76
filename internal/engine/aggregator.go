package engine

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Reducer collapses the values of one group into a scalar.
type Reducer string

const (
	ReduceSum   Reducer = "sum"
	ReduceMean  Reducer = "mean"
	ReduceCount Reducer = "count"
	ReduceMin   Reducer = "min"
	ReduceMax   Reducer = "max"
)

// ParseReducer validates a reducer name.
func ParseReducer(s string) (Reducer, error) {
	switch r := Reducer(s); r {
	case ReduceSum, ReduceMean, ReduceCount, ReduceMin, ReduceMax:
		return r, nil
	case "avg":
		return ReduceMean, nil
	}
	return "", fmt.Errorf("reducer %q: %w", s, ErrUnknownField)
}

// Reduce applies r to values. Mean, min and max of nothing fail with
// ErrEmptyGroup.
func (r Reducer) Reduce(values []float64) (float64, error) {
	switch r {
	case ReduceSum:
		return sum(values), nil
	case ReduceCount:
		return float64(len(values)), nil
	}
	if len(values) == 0 {
		return 0, ErrEmptyGroup
	}
	switch r {
	case ReduceMean:
		return sum(values) / float64(len(values)), nil
	case ReduceMin:
		m := math.Inf(1)
		for _, v := range values {
			m = math.Min(m, v)
		}
		return m, nil
	case ReduceMax:
		m := math.Inf(-1)
		for _, v := range values {
			m = math.Max(m, v)
		}
		return m, nil
	}
	return 0, fmt.Errorf("reducer %q: %w", string(r), ErrUnknownField)
}

// sum adds in decimal so group totals and the grand total agree exactly.
func sum(values []float64) float64 {
	acc := decimal.Zero
	for _, v := range values {
		acc = acc.Add(decimal.NewFromFloat(v))
	}
	return acc.InexactFloat64()
}

// Group is one entry of an aggregation result.
type Group struct {
	Key   string  `json:"key"`
	Value float64 `json:"value"`
	Count int     `json:"count"`
	Bin   *Bin    `json:"bin,omitempty"`
}

// Result is an ordered aggregation result. Groups without records are never
// present.
type Result struct {
	Groups []Group `json:"groups"`
}

// Len returns the number of groups.
func (r Result) Len() int { return len(r.Groups) }

// Get returns the value stored for key.
func (r Result) Get(key string) (float64, bool) {
	for _, g := range r.Groups {
		if g.Key == key {
			return g.Value, true
		}
	}
	return 0, false
}

// Map returns key → value.
func (r Result) Map() map[string]float64 {
	m := make(map[string]float64, len(r.Groups))
	for _, g := range r.Groups {
		m[g.Key] = g.Value
	}
	return m
}

// Total sums the group values.
func (r Result) Total() float64 {
	values := make([]float64, len(r.Groups))
	for i, g := range r.Groups {
		values[i] = g.Value
	}
	return sum(values)
}

// Where keeps the groups matching keep, preserving order.
func (r Result) Where(keep func(Group) bool) Result {
	out := Result{Groups: []Group{}}
	for _, g := range r.Groups {
		if keep(g) {
			out.Groups = append(out.Groups, g)
		}
	}
	return out
}

// collect buckets measure values by dimension value. Keys come back sorted;
// records with an empty key are skipped.
func collect(ds *Dataset, key Dimension, value Measure) ([]string, map[string][]float64, error) {
	if _, err := ParseDimension(string(key)); err != nil {
		return nil, nil, err
	}
	if _, err := ParseMeasure(string(value)); err != nil {
		return nil, nil, err
	}
	buckets := make(map[string][]float64)
	for i := 0; i < ds.Len(); i++ {
		rec := &ds.records[i]
		k := rec.dimension(key)
		if k == "" {
			continue
		}
		buckets[k] = append(buckets[k], rec.measure(value))
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, buckets, nil
}

// GroupBy reduces value per distinct key. Groups are ordered by key.
func GroupBy(ds *Dataset, key Dimension, value Measure, reducer Reducer) (Result, error) {
	keys, buckets, err := collect(ds, key, value)
	if err != nil {
		return Result{}, err
	}
	res := Result{Groups: make([]Group, 0, len(keys))}
	for _, k := range keys {
		v, err := reducer.Reduce(buckets[k])
		if err != nil {
			return Result{}, fmt.Errorf("group %q: %w", k, err)
		}
		res.Groups = append(res.Groups, Group{Key: k, Value: v, Count: len(buckets[k])})
	}
	return res, nil
}

// GroupSum sums value per distinct key.
func GroupSum(ds *Dataset, key Dimension, value Measure) (Result, error) {
	return GroupBy(ds, key, value, ReduceSum)
}

// GroupMean averages value per distinct key.
func GroupMean(ds *Dataset, key Dimension, value Measure) (Result, error) {
	return GroupBy(ds, key, value, ReduceMean)
}

// GroupCount counts records per distinct key.
func GroupCount(ds *Dataset, key Dimension) (Result, error) {
	return GroupBy(ds, key, Sales, ReduceCount)
}

// PivotTable is a two-dimensional aggregation. Combinations without records
// are absent from Cells.
type PivotTable struct {
	Rows    []string                      `json:"rows"`
	Columns []string                      `json:"columns"`
	Cells   map[string]map[string]float64 `json:"cells"`
}

// Get returns the cell at (row, col).
func (p *PivotTable) Get(row, col string) (float64, bool) {
	v, ok := p.Cells[row][col]
	return v, ok
}

// Pivot reduces value over (rowKey, colKey) pairs. Labels are sorted.
func Pivot(ds *Dataset, rowKey, colKey Dimension, value Measure, reducer Reducer) (*PivotTable, error) {
	for _, d := range []Dimension{rowKey, colKey} {
		if _, err := ParseDimension(string(d)); err != nil {
			return nil, err
		}
	}
	if _, err := ParseMeasure(string(value)); err != nil {
		return nil, err
	}
	if reducer == "" {
		reducer = ReduceSum
	}

	type cell struct{ row, col string }
	buckets := make(map[cell][]float64)
	rows := make(map[string]struct{})
	cols := make(map[string]struct{})
	for i := 0; i < ds.Len(); i++ {
		rec := &ds.records[i]
		c := cell{rec.dimension(rowKey), rec.dimension(colKey)}
		if c.row == "" || c.col == "" {
			continue
		}
		buckets[c] = append(buckets[c], rec.measure(value))
		rows[c.row] = struct{}{}
		cols[c.col] = struct{}{}
	}

	p := &PivotTable{
		Rows:    sortedKeys(rows),
		Columns: sortedKeys(cols),
		Cells:   make(map[string]map[string]float64, len(rows)),
	}
	for c, values := range buckets {
		v, err := reducer.Reduce(values)
		if err != nil {
			return nil, fmt.Errorf("cell %q/%q: %w", c.row, c.col, err)
		}
		if p.Cells[c.row] == nil {
			p.Cells[c.row] = make(map[string]float64)
		}
		p.Cells[c.row][c.col] = v
	}
	return p, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MonthlyPoint is one month of a resampled series. Month is the first day
// of the month, UTC.
type MonthlyPoint struct {
	Month time.Time `json:"month"`
	Value float64   `json:"value"`
	Count int       `json:"count"`
}

// Label formats the month as YYYY-MM.
func (p MonthlyPoint) Label() string { return p.Month.Format("2006-01") }

// MonthlyResample sums value per calendar month of dateField, oldest first.
func MonthlyResample(ds *Dataset, dateField DateField, value Measure) ([]MonthlyPoint, error) {
	if _, err := ParseDateField(string(dateField)); err != nil {
		return nil, err
	}
	if _, err := ParseMeasure(string(value)); err != nil {
		return nil, err
	}

	buckets := make(map[time.Time][]float64)
	for i := 0; i < ds.Len(); i++ {
		rec := &ds.records[i]
		m := MonthOf(rec.date(dateField))
		buckets[m] = append(buckets[m], rec.measure(value))
	}

	series := make([]MonthlyPoint, 0, len(buckets))
	for m, values := range buckets {
		series = append(series, MonthlyPoint{Month: m, Value: sum(values), Count: len(values)})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month.Before(series[j].Month) })
	return series, nil
}

// MonthOf truncates t to the first day of its month in UTC.
func MonthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
