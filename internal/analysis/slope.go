package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// pendingStart is the start of the upward run currently being tracked.
type pendingStart struct {
	index int
	ok    bool
}

func (p *pendingStart) set(i int) {
	p.index = i
	p.ok = true
}

// slopeZone carries the fitted slope of a zone through the filter phase.
type slopeZone struct {
	Interval
	slope float64
}

// DetectSlopeZones returns the positive-slope zones over positions 0..n-1.
//
// Runs between a local minimum and the next local maximum are collected,
// runs separated by at most distToCheck positions whose trend resumes at or
// above the previous end are merged, and zones whose least-squares slope is
// below minSlope are removed. The last zone of the merged list is never
// evaluated by the slope filter. A minSlope of zero disables the filter.
func DetectSlopeZones(n int, valueOf ValueFunc, distToCheck int, minSlope float64) ([]Interval, error) {
	zones, err := scanExtrema(n, valueOf)
	if err != nil {
		return nil, err
	}

	zones = mergeZones(zones, valueOf, distToCheck)

	if minSlope == 0 {
		return zones, nil
	}
	return filterBySlope(zones, valueOf, minSlope)
}

// scanExtrema pairs each local maximum with the most recent local minimum.
func scanExtrema(n int, valueOf ValueFunc) ([]Interval, error) {
	zones := []Interval{}
	var start pendingStart

	closeAt := func(j int) error {
		if !start.ok {
			return fmt.Errorf("%w: maximum at position %d", ErrUndefinedStart, j)
		}
		zones = append(zones, Interval{Start: start.index, End: j})
		return nil
	}

	for j := 0; j < n; j++ {
		current := valueOf(j)
		left := current
		if j != 0 {
			left = valueOf(j - 1)
		}

		if j == n-1 {
			if current > left {
				if err := closeAt(j); err != nil {
					return nil, err
				}
			}
			continue
		}

		right := valueOf(j + 1)

		if j == 0 {
			if current <= right {
				start.set(j)
			}
			continue
		}

		if current <= left && current < right {
			start.set(j)
			continue
		}

		if current > left && current >= right {
			if err := closeAt(j); err != nil {
				return nil, err
			}
		}
	}

	return zones, nil
}

// mergeZones folds each zone into the last kept one when the gap between
// them is at most distToCheck and the value at the next start is not below
// the value at the current end. The kept zone is re-tested against every
// following zone until a gap fails, so chains collapse into one zone.
func mergeZones(zones []Interval, valueOf ValueFunc, distToCheck int) []Interval {
	merged := make([]Interval, 0, len(zones))
	for _, next := range zones {
		if len(merged) > 0 {
			cur := &merged[len(merged)-1]
			if next.Start-cur.End <= distToCheck && valueOf(next.Start) >= valueOf(cur.End) {
				cur.End = next.End
				continue
			}
		}
		merged = append(merged, next)
	}
	return merged
}

// filterBySlope drops every zone but the last whose slope is below minSlope.
func filterBySlope(zones []Interval, valueOf ValueFunc, minSlope float64) ([]Interval, error) {
	if len(zones) == 0 {
		return zones, nil
	}

	kept := make([]Interval, 0, len(zones))
	for _, z := range zones[:len(zones)-1] {
		sz, err := fitZone(z, valueOf)
		if err != nil {
			return nil, err
		}
		if sz.slope < minSlope {
			continue
		}
		kept = append(kept, sz.Interval)
	}

	return append(kept, zones[len(zones)-1]), nil
}

// fitZone fits value against position over the closed zone. A one-point zone
// has no trend and gets a slope of negative infinity so it never survives.
func fitZone(z Interval, valueOf ValueFunc) (slopeZone, error) {
	if z.Len() < 2 {
		return slopeZone{Interval: z, slope: math.Inf(-1)}, nil
	}

	slope, err := OLSSlope(z, valueOf)
	if err != nil {
		return slopeZone{}, err
	}
	return slopeZone{Interval: z, slope: slope}, nil
}

// OLSSlope returns the ordinary least-squares slope of value against
// position over the closed interval z.
//
// Positions are centred on the interval midpoint before the sums are taken.
// The midpoint is a whole or half integer, so for integer-valued samples
// both sums are exact and a zone rising by exactly k per step reports k.
func OLSSlope(z Interval, valueOf ValueFunc) (float64, error) {
	n := z.Len()
	if n < 2 {
		return 0, fmt.Errorf("cannot fit zone [%d, %d]: fewer than two points", z.Start, z.End)
	}

	mid := float64(z.Start+z.End) / 2
	dx := make([]float64, n)
	ys := make([]float64, n)
	for k := range dx {
		dx[k] = float64(z.Start+k) - mid
		ys[k] = valueOf(z.Start + k)
	}

	slope := floats.Dot(dx, ys) / floats.Dot(dx, dx)
	if math.IsNaN(slope) || math.IsInf(slope, 0) {
		return 0, fmt.Errorf("failed to fit zone [%d, %d]: non-finite slope", z.Start, z.End)
	}
	return slope, nil
}
