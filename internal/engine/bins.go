package engine

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Bins is an ordered list of boundaries b0 < b1 < ... < bn describing the
// partition [b0,b1), [b1,b2), ..., [bn-1,bn]. The last interval is closed.
type Bins []float64

// DefaultDiscountBins is the discount partition of the profit-by-discount chart.
var DefaultDiscountBins = Bins{0, 0.1, 0.2, 0.3, 0.4, 0.5, 1.0}

// NewBins validates boundaries.
func NewBins(boundaries []float64) (Bins, error) {
	if len(boundaries) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 boundaries, got %d", ErrInvalidBins, len(boundaries))
	}
	for i, b := range boundaries {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return nil, fmt.Errorf("%w: boundary %d is not finite", ErrInvalidBins, i)
		}
		if i > 0 && b <= boundaries[i-1] {
			return nil, fmt.Errorf("%w: boundaries must be strictly increasing", ErrInvalidBins)
		}
	}
	out := make(Bins, len(boundaries))
	copy(out, boundaries)
	return out, nil
}

// EqualWidthBins splits [lo, hi] into n intervals of equal width. A
// degenerate range is widened by 0.5 on each side.
func EqualWidthBins(lo, hi float64, n int) (Bins, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: bin count %d", ErrInvalidBins, n)
	}
	if hi <= lo {
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / float64(n)
	b := make(Bins, n+1)
	for i := range b {
		b[i] = lo + float64(i)*width
	}
	b[n] = hi
	return NewBins(b)
}

// Bin is one interval of a partition.
type Bin struct {
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Closed bool    `json:"closed"`
}

// Label renders the interval in half-open notation, e.g. "[0.1, 0.2)".
func (b Bin) Label() string {
	right := ")"
	if b.Closed {
		right = "]"
	}
	return "[" + formatBound(b.Lower) + ", " + formatBound(b.Upper) + right
}

// Contains reports whether v falls in the interval.
func (b Bin) Contains(v float64) bool {
	if b.Closed {
		return v >= b.Lower && v <= b.Upper
	}
	return v >= b.Lower && v < b.Upper
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// Len returns the number of intervals.
func (bs Bins) Len() int {
	if len(bs) < 2 {
		return 0
	}
	return len(bs) - 1
}

// Bin returns the i-th interval.
func (bs Bins) Bin(i int) Bin {
	return Bin{Lower: bs[i], Upper: bs[i+1], Closed: i == bs.Len()-1}
}

// Index returns the interval holding v, or -1 when v lies outside the partition.
func (bs Bins) Index(v float64) int {
	n := bs.Len()
	if n == 0 || math.IsNaN(v) || v < bs[0] || v > bs[n] {
		return -1
	}
	if v == bs[n] {
		return n - 1
	}
	// first boundary strictly greater than v closes the interval
	i := sort.Search(len(bs), func(i int) bool { return bs[i] > v })
	return i - 1
}

// BinAndReduce assigns each record to the interval holding its value field
// and reduces target per interval. Empty intervals and out-of-range records
// are omitted. Groups keep partition order.
func BinAndReduce(ds *Dataset, value Measure, bins Bins, reducer Reducer, target Measure) (Result, error) {
	if _, err := NewBins(bins); err != nil {
		return Result{}, err
	}
	for _, m := range []Measure{value, target} {
		if _, err := ParseMeasure(string(m)); err != nil {
			return Result{}, err
		}
	}

	buckets := make([][]float64, bins.Len())
	for i := 0; i < ds.Len(); i++ {
		rec := &ds.records[i]
		idx := bins.Index(rec.measure(value))
		if idx < 0 {
			continue
		}
		buckets[idx] = append(buckets[idx], rec.measure(target))
	}

	res := Result{Groups: []Group{}}
	for i, values := range buckets {
		if len(values) == 0 {
			continue
		}
		v, err := reducer.Reduce(values)
		if err != nil {
			return Result{}, err
		}
		bin := bins.Bin(i)
		res.Groups = append(res.Groups, Group{Key: bin.Label(), Value: v, Count: len(values), Bin: &bin})
	}
	return res, nil
}
