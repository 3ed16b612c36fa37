package analysis

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ComputeBands derives the five band boundaries from the minimum, mean and
// maximum of values:
//
//	b0 = min, b1 = (mean+min)/2, b2 = mean, b3 = (mean+max)/2, b4 = max
//
// A constant input yields five equal boundaries.
func ComputeBands(values []float64) (Bands, error) {
	if len(values) == 0 {
		return Bands{}, ErrEmptyTrace
	}

	minimum := floats.Min(values)
	maximum := floats.Max(values)
	mean := stat.Mean(values, nil)

	return Bands{
		minimum,
		(mean + minimum) / 2,
		mean,
		(mean + maximum) / 2,
		maximum,
	}, nil
}
