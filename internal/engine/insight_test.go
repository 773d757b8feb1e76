package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtremumTieBreaksOnKey(t *testing.T) {
	res := Result{Groups: []Group{
		{Key: "West", Value: 20},
		{Key: "Central", Value: -7},
		{Key: "East", Value: 20},
		{Key: "South", Value: -7},
	}}

	key, v, err := Extremum(res, Max)
	require.NoError(t, err)
	assert.Equal(t, "East", key)
	assert.Equal(t, 20.0, v)

	key, v, err = Extremum(res, Min)
	require.NoError(t, err)
	assert.Equal(t, "Central", key)
	assert.Equal(t, -7.0, v)
}

func TestExtremumEmpty(t *testing.T) {
	_, _, err := Extremum(Result{}, Min)
	assert.ErrorIs(t, err, ErrEmptyResult)
	assert.True(t, IsRecoverable(err))
}

func TestThresholdInsight(t *testing.T) {
	res := Result{Groups: []Group{{Key: "a", Value: -1}, {Key: "b", Value: -3}}}
	assert.True(t, ThresholdInsight(res, Negative))
	assert.False(t, ThresholdInsight(res, func(g Group) bool { return g.Value < -2 }))
	assert.False(t, ThresholdInsight(Result{}, Negative))
	assert.False(t, ThresholdInsight(res.Where(BinsFrom(0.3)), Negative))
}
