package engine

import "fmt"

// Extreme selects the largest or smallest group.
type Extreme int

const (
	Max Extreme = iota
	Min
)

func (e Extreme) String() string {
	if e == Min {
		return "min"
	}
	return "max"
}

// Extremum returns the key and value of the largest (Max) or smallest (Min)
// group. Ties go to the lexicographically smallest key regardless of the
// order of result.
func Extremum(result Result, which Extreme) (string, float64, error) {
	if result.Len() == 0 {
		return "", 0, fmt.Errorf("%s of nothing: %w", which, ErrEmptyResult)
	}
	best := result.Groups[0]
	for _, g := range result.Groups[1:] {
		better := g.Value > best.Value
		if which == Min {
			better = g.Value < best.Value
		}
		if better || (g.Value == best.Value && g.Key < best.Key) {
			best = g
		}
	}
	return best.Key, best.Value, nil
}

// ThresholdInsight reports whether predicate holds for every group of a
// non-empty result. Narrow the result with Result.Where first to scope the
// claim, e.g. to bins above a discount.
func ThresholdInsight(result Result, predicate func(Group) bool) bool {
	if result.Len() == 0 {
		return false
	}
	for _, g := range result.Groups {
		if !predicate(g) {
			return false
		}
	}
	return true
}

// BinsFrom keeps bin groups whose lower bound is at least lo. Non-bin groups
// are dropped.
func BinsFrom(lo float64) func(Group) bool {
	return func(g Group) bool { return g.Bin != nil && g.Bin.Lower >= lo }
}

// Negative is true for groups with a value below zero.
func Negative(g Group) bool { return g.Value < 0 }
