package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix holds pairwise Pearson coefficients. Values[i][j]
// correlates Fields[i] with Fields[j]. A pair involving a zero-variance
// field is NaN, except on the diagonal.
type CorrelationMatrix struct {
	Fields []Measure   `json:"fields"`
	Values [][]float64 `json:"values"`
}

// At returns the coefficient for (a, b).
func (c *CorrelationMatrix) At(a, b Measure) (float64, bool) {
	i, j := -1, -1
	for k, f := range c.Fields {
		if f == a {
			i = k
		}
		if f == b {
			j = k
		}
	}
	if i < 0 || j < 0 {
		return 0, false
	}
	return c.Values[i][j], true
}

// Correlate computes the Pearson correlation matrix over fields.
func Correlate(ds *Dataset, fields []Measure) (*CorrelationMatrix, error) {
	for _, f := range fields {
		if _, err := ParseMeasure(string(f)); err != nil {
			return nil, err
		}
	}
	if ds.Len() < 2 {
		return nil, fmt.Errorf("correlation over %d records: %w", ds.Len(), ErrInsufficientData)
	}

	columns := make([][]float64, len(fields))
	for k, f := range fields {
		col := make([]float64, ds.Len())
		for i := range col {
			col[i] = ds.records[i].measure(f)
		}
		columns[k] = col
	}

	m := &CorrelationMatrix{
		Fields: append([]Measure(nil), fields...),
		Values: make([][]float64, len(fields)),
	}
	for i := range fields {
		m.Values[i] = make([]float64, len(fields))
	}
	for i := range fields {
		m.Values[i][i] = 1.0
		for j := i + 1; j < len(fields); j++ {
			r := pearson(columns[i], columns[j])
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m, nil
}

func pearson(x, y []float64) float64 {
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// MarshalJSON writes undefined coefficients as null.
func (c *CorrelationMatrix) MarshalJSON() ([]byte, error) {
	values := make([][]*float64, len(c.Values))
	for i, row := range c.Values {
		values[i] = make([]*float64, len(row))
		for j := range row {
			if !math.IsNaN(row[j]) {
				values[i][j] = &row[j]
			}
		}
	}
	return json.Marshal(struct {
		Fields []Measure    `json:"fields"`
		Values [][]*float64 `json:"values"`
	}{c.Fields, values})
}
