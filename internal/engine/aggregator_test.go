package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupSumScenario(t *testing.T) {
	res, err := GroupSum(scenario(), Region, Profit)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"East": 50, "West": 20}, res.Map())
	assert.Equal(t, []string{"East", "West"}, []string{res.Groups[0].Key, res.Groups[1].Key})
	assert.Equal(t, 2, res.Groups[0].Count)

	key, v, err := Extremum(res, Max)
	require.NoError(t, err)
	assert.Equal(t, "East", key)
	assert.Equal(t, 50.0, v)
}

func TestGroupSumConservation(t *testing.T) {
	ds, err := Load(strings.NewReader(superstoreHeader + superstoreRows))
	require.NoError(t, err)

	for _, key := range []Dimension{Region, Category, Segment, SubCategory, ShipMode} {
		for _, m := range NumericMeasures {
			res, err := GroupSum(ds, key, m)
			require.NoError(t, err)

			whole, err := ReduceSum.Reduce(column(ds, m))
			require.NoError(t, err)
			assert.InDelta(t, whole, res.Total(), 1e-9, "%s/%s", key, m)
		}
	}
}

func column(ds *Dataset, m Measure) []float64 {
	out := make([]float64, ds.Len())
	for i := range out {
		rec := ds.At(i)
		out[i] = rec.measure(m)
	}
	return out
}

func TestGroupMeanAndCount(t *testing.T) {
	mean, err := GroupMean(scenario(), Category, Sales)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Furniture": 120, "Tech": 125}, mean.Map())

	count, err := GroupCount(scenario(), Region)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"East": 2, "West": 1}, count.Map())
}

func TestGroupByOmitsEmptyGroupsAndRejectsUnknownFields(t *testing.T) {
	res, err := GroupSum(NewDataset(nil), Region, Profit)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())

	_, err = GroupSum(scenario(), Dimension("country"), Profit)
	assert.ErrorIs(t, err, ErrUnknownField)
	_, err = GroupSum(scenario(), Region, Measure("margin"))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestReducers(t *testing.T) {
	values := []float64{4, -2, 10}
	cases := map[Reducer]float64{
		ReduceSum:   12,
		ReduceMean:  4,
		ReduceCount: 3,
		ReduceMin:   -2,
		ReduceMax:   10,
	}
	for r, want := range cases {
		got, err := r.Reduce(values)
		require.NoError(t, err, r)
		assert.Equal(t, want, got, r)
	}

	_, err := ReduceMean.Reduce(nil)
	assert.ErrorIs(t, err, ErrEmptyGroup)
	zero, err := ReduceSum.Reduce(nil)
	require.NoError(t, err)
	assert.Zero(t, zero)

	r, err := ParseReducer("avg")
	require.NoError(t, err)
	assert.Equal(t, ReduceMean, r)
	_, err = ParseReducer("median")
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestSumIsExact(t *testing.T) {
	got, err := ReduceSum.Reduce([]float64{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, 0.3, got)
}

func TestPivotLeavesMissingCellsAbsent(t *testing.T) {
	p, err := Pivot(scenario(), Region, Category, Profit, ReduceSum)
	require.NoError(t, err)

	assert.Equal(t, []string{"East", "West"}, p.Rows)
	assert.Equal(t, []string{"Furniture", "Tech"}, p.Columns)

	v, ok := p.Get("East", "Tech")
	require.True(t, ok)
	assert.Equal(t, 50.0, v)

	_, ok = p.Get("East", "Furniture")
	assert.False(t, ok)
	_, ok = p.Get("West", "Tech")
	assert.False(t, ok)
}

func TestPivotDefaultsToSum(t *testing.T) {
	p, err := Pivot(scenario(), Category, Region, Sales, "")
	require.NoError(t, err)
	v, ok := p.Get("Tech", "East")
	require.True(t, ok)
	assert.Equal(t, 250.0, v)
}

func TestMonthlyResample(t *testing.T) {
	ds := NewDataset([]Record{
		{OrderDate: day(2017, 3, 30), Sales: 5},
		{OrderDate: day(2016, 12, 1), Sales: 10},
		{OrderDate: day(2017, 3, 1), Sales: 7},
		{OrderDate: day(2016, 1, 31), Sales: 1},
	})
	series, err := MonthlyResample(ds, OrderDate, Sales)
	require.NoError(t, err)
	require.Len(t, series, 3)

	for i := 1; i < len(series); i++ {
		assert.True(t, series[i-1].Month.Before(series[i].Month), "series out of order at %d", i)
	}
	assert.Equal(t, "2016-01", series[0].Label())
	assert.Equal(t, 10.0, series[1].Value)
	assert.Equal(t, 12.0, series[2].Value)
	assert.Equal(t, 2, series[2].Count)
}

func TestMonthlyResampleShipDate(t *testing.T) {
	ds := NewDataset([]Record{
		{OrderDate: day(2016, 1, 30), ShipDate: day(2016, 2, 2), Sales: 5},
	})
	series, err := MonthlyResample(ds, ShipDate, Sales)
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, day(2016, 2, 1), series[0].Month)
}

func TestResultWhere(t *testing.T) {
	res, err := GroupSum(scenario(), Region, Profit)
	require.NoError(t, err)
	west := res.Where(func(g Group) bool { return g.Key == "West" })
	assert.Equal(t, map[string]float64{"West": 20}, west.Map())
	assert.Equal(t, 2, res.Len())
}
