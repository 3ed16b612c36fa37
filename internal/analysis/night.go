package analysis

import "time"

// DetectNightZones scans tr once and returns the closed intervals whose hour
// falls in the window [startHour, endHour), wrapping past midnight.
//
// A zone is opened at the first sample with hour >= startHour and closed at
// the first later sample with hour < endHour. A zone still open when the
// trace ends is dropped. loc selects the clock the hour is read from; nil
// keeps each timestamp's own location.
func DetectNightZones(tr Trace, startHour, endHour int, loc *time.Location) []Interval {
	zones := []Interval{}
	inside := false
	pending := 0

	for i, s := range tr {
		ts := s.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		h := ts.Hour()

		if h >= startHour && !inside {
			pending = i
			inside = true
		} else if h < endHour && inside {
			zones = append(zones, Interval{Start: pending, End: i})
			inside = false
		}
	}

	return zones
}
