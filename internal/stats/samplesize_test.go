package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imperius/imperius/internal/stats"
)

func TestMinSampleSize(t *testing.T) {
	// 10% baseline, +20% relative lift (to 12%): the standard formula at
	// 95%/80% lands on 3837 visitors per variant.
	n, err := stats.MinSampleSize(0.1, 0.2)
	require.NoError(t, err)
	assert.Equal(t, 3837, n)
}

func TestMinSampleSize_SmallerEffectNeedsMoreVisitors(t *testing.T) {
	large, err := stats.MinSampleSize(0.05, 0.5)
	require.NoError(t, err)

	small, err := stats.MinSampleSize(0.05, 0.1)
	require.NoError(t, err)

	assert.Greater(t, small, large)
}

func TestMinSampleSize_InvalidInputs(t *testing.T) {
	cases := []struct {
		name     string
		baseline float64
		mde      float64
	}{
		{"zero baseline", 0, 0.2},
		{"negative baseline", -0.1, 0.2},
		{"baseline of one", 1, 0.2},
		{"lift past one", 0.9, 0.2},
		{"zero effect", 0.1, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := stats.MinSampleSize(tc.baseline, tc.mde)
			assert.ErrorIs(t, err, stats.ErrInvalidRate)
		})
	}
}

func TestWilsonInterval(t *testing.T) {
	lower, upper := stats.WilsonInterval(50, 100)
	assert.Less(t, lower, 0.5)
	assert.Greater(t, upper, 0.5)
	assert.GreaterOrEqual(t, lower, 0.0)
	assert.LessOrEqual(t, upper, 1.0)
}

func TestWilsonInterval_NoTrials(t *testing.T) {
	lower, upper := stats.WilsonInterval(0, 0)
	assert.Zero(t, lower)
	assert.Zero(t, upper)
}

func TestWilsonInterval_SmallSampleIsWider(t *testing.T) {
	smallLower, smallUpper := stats.WilsonInterval(5, 10)
	bigLower, bigUpper := stats.WilsonInterval(500, 1000)

	assert.Greater(t, smallUpper-smallLower, bigUpper-bigLower)
}
