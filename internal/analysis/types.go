// Package analysis segments a power trace into night zones, positive-slope
// zones and severity bands. Every function in this package is pure: it reads
// the trace it is given and returns freshly allocated results.
package analysis

import "time"

// Sample is a single reading of a trace.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Trace is an ordered sequence of samples, ascending by timestamp.
type Trace []Sample

// Values returns a copy of the value column.
func (t Trace) Values() []float64 {
	values := make([]float64, len(t))
	for i, s := range t {
		values[i] = s.Value
	}
	return values
}

// ValueAt returns a ValueFunc reading the raw value column of t.
func (t Trace) ValueAt() ValueFunc {
	return func(i int) float64 { return t[i].Value }
}

// ValueFunc reads the analysed value at position i.
type ValueFunc func(i int) float64

// Interval is a closed range [Start, End] of trace positions.
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of positions covered by the interval.
func (iv Interval) Len() int {
	return iv.End - iv.Start + 1
}

// ZoneKind tags what an interval represents.
type ZoneKind string

const (
	ZoneNight         ZoneKind = "night"
	ZonePositiveSlope ZoneKind = "positive_slope"
)

// Zone is an interval tagged with its kind.
type Zone struct {
	Interval
	Kind ZoneKind `json:"kind"`
}

// Tag converts intervals into zones of the given kind.
func Tag(kind ZoneKind, intervals []Interval) []Zone {
	zones := make([]Zone, len(intervals))
	for i, iv := range intervals {
		zones[i] = Zone{Interval: iv, Kind: kind}
	}
	return zones
}

// Bands holds the five boundaries b0..b4 of the four severity bands.
type Bands [5]float64

// BandRange is one of the four contiguous magnitude ranges.
type BandRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Ranges returns [b0,b1), [b1,b2), [b2,b3) and [b3,b4], low to high.
func (b Bands) Ranges() [4]BandRange {
	var out [4]BandRange
	for i := range out {
		out[i] = BandRange{Low: b[i], High: b[i+1]}
	}
	return out
}

// Band returns the index (0-3) of the band containing v, or -1 when v lies
// outside [b0, b4]. Zero-width bands are skipped in favour of the highest
// band whose lower boundary matches.
func (b Bands) Band(v float64) int {
	if v < b[0] || v > b[4] {
		return -1
	}
	for i := 3; i >= 0; i-- {
		if v >= b[i] {
			return i
		}
	}
	return 0
}

// Result is the combined output of the three analyzers for one trace.
type Result struct {
	NightZones []Interval `json:"night_zones"`
	SlopeZones []Interval `json:"slope_zones"`
	Bands      Bands      `json:"bands"`
}

// Zones returns night and positive-slope zones tagged by kind.
func (r *Result) Zones() []Zone {
	zones := Tag(ZoneNight, r.NightZones)
	return append(zones, Tag(ZonePositiveSlope, r.SlopeZones)...)
}
