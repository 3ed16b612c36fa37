// Package stats computes the descriptive summaries shown next to each trace:
// a describe-style table, resampled aggregates and weekday means.
package stats

import (
	"math"
	"sort"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary is the describe table of a value column.
type Summary struct {
	Count        float64 `json:"count"`
	Mean         float64 `json:"mean"`
	Std          float64 `json:"std"`
	Min          float64 `json:"min"`
	Percentile25 float64 `json:"percentile_25"`
	Percentile50 float64 `json:"percentile_50"`
	Percentile75 float64 `json:"percentile_75"`
	Max          float64 `json:"max"`
	Median       float64 `json:"median"`
}

// Describe summarises values. Std is the sample standard deviation and is 0
// for a single value.
func Describe(values []float64) (Summary, error) {
	if len(values) == 0 {
		return Summary{}, analysis.ErrEmptyTrace
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	std := 0.0
	if len(values) > 1 {
		std = stat.StdDev(values, nil)
	}

	median := Percentile(sorted, 0.5)
	return Summary{
		Count:        float64(len(values)),
		Mean:         stat.Mean(values, nil),
		Std:          std,
		Min:          floats.Min(values),
		Percentile25: Percentile(sorted, 0.25),
		Percentile50: median,
		Percentile75: Percentile(sorted, 0.75),
		Max:          floats.Max(values),
		Median:       median,
	}, nil
}

// Percentile returns the p-quantile (0 <= p <= 1) of sorted, interpolating
// linearly between the two closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return math.NaN()
	case 1:
		return sorted[0]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
