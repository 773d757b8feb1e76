package engine

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// BoxSummary is the five-number summary of one group.
type BoxSummary struct {
	Key    string  `json:"key"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
}

// Describe summarizes value per key, ordered by key.
func Describe(ds *Dataset, key Dimension, value Measure) ([]BoxSummary, error) {
	keys, buckets, err := collect(ds, key, value)
	if err != nil {
		return nil, err
	}
	out := make([]BoxSummary, 0, len(keys))
	for _, k := range keys {
		x := append([]float64(nil), buckets[k]...)
		sort.Float64s(x)
		out = append(out, BoxSummary{
			Key:    k,
			Count:  len(x),
			Min:    x[0],
			Q1:     stat.Quantile(0.25, stat.Empirical, x, nil),
			Median: stat.Quantile(0.5, stat.Empirical, x, nil),
			Q3:     stat.Quantile(0.75, stat.Empirical, x, nil),
			Max:    x[len(x)-1],
			Mean:   stat.Mean(x, nil),
		})
	}
	return out, nil
}

// Trendline is an ordinary least squares fit y = Intercept + Slope*x.
type Trendline struct {
	Key       string  `json:"key"`
	Count     int     `json:"count"`
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	// RSquared is nil when y has no variance.
	RSquared *float64 `json:"r_squared,omitempty"`
}

// Trend fits y against x per key. Groups with fewer than two records or no
// spread in x cannot be fitted and are omitted.
func Trend(ds *Dataset, key Dimension, x, y Measure) ([]Trendline, error) {
	keys, xs, err := collect(ds, key, x)
	if err != nil {
		return nil, err
	}
	_, ys, err := collect(ds, key, y)
	if err != nil {
		return nil, err
	}
	out := make([]Trendline, 0, len(keys))
	for _, k := range keys {
		if len(xs[k]) < 2 || stat.Variance(xs[k], nil) == 0 {
			continue
		}
		alpha, beta := stat.LinearRegression(xs[k], ys[k], nil, false)
		t := Trendline{Key: k, Count: len(xs[k]), Intercept: alpha, Slope: beta}
		if stat.Variance(ys[k], nil) > 0 {
			r2 := stat.RSquared(xs[k], ys[k], nil, alpha, beta)
			t.RSquared = &r2
		}
		out = append(out, t)
	}
	return out, nil
}

// Extent returns the smallest and largest value of a measure.
func Extent(ds *Dataset, value Measure) (lo, hi float64, err error) {
	if _, err := ParseMeasure(string(value)); err != nil {
		return 0, 0, err
	}
	if ds.Len() == 0 {
		return 0, 0, ErrEmptyResult
	}
	lo, hi = ds.records[0].measure(value), ds.records[0].measure(value)
	for i := 1; i < ds.Len(); i++ {
		v := ds.records[i].measure(value)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}
