package stats

import (
	"math"
	"testing"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	s, err := Describe([]float64{4, 1, 3, 2})
	require.NoError(t, err)

	assert.Equal(t, 4.0, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, 1.2909944487, s.Std, 1e-9)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.Percentile25, 1e-12)
	assert.InDelta(t, 2.5, s.Percentile50, 1e-12)
	assert.InDelta(t, 3.25, s.Percentile75, 1e-12)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, s.Percentile50, s.Median)
}

func TestDescribe_SingleValue(t *testing.T) {
	s, err := Describe([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Std)
	assert.Equal(t, 7.0, s.Median)
	assert.Equal(t, 7.0, s.Percentile25)
}

func TestDescribe_Empty(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, analysis.ErrEmptyTrace)
}

func TestDescribe_DoesNotReorderInput(t *testing.T) {
	values := []float64{3, 1, 2}
	_, err := Describe(values)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, values)
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}

	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 50.0, Percentile(sorted, 1))
	assert.Equal(t, 30.0, Percentile(sorted, 0.5))
	assert.InDelta(t, 14.0, Percentile(sorted, 0.1), 1e-12)
	assert.True(t, math.IsNaN(Percentile(nil, 0.5)))
}
