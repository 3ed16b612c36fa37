package stats

import (
	"fmt"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Period is a resampling interval.
type Period string

const (
	Hourly  Period = "hourly"
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
)

// Periods lists the resampling intervals in display order.
func Periods() []Period {
	return []Period{Hourly, Daily, Weekly, Monthly}
}

// Title returns the capitalised period name used in figure titles.
func (p Period) Title() string {
	return cases.Title(language.English).String(string(p))
}

// Bucket is the aggregate of every sample sharing one label.
type Bucket struct {
	Label time.Time `json:"label"`
	Count int       `json:"count"`
	Mean  float64   `json:"mean"`
	Max   float64   `json:"max"`
	Min   float64   `json:"min"`
}

// Series is a resampled trace.
type Series struct {
	Period  Period   `json:"period"`
	Title   string   `json:"title"`
	Buckets []Bucket `json:"buckets"`
}

// Aggregate resamples tr by period. Hourly and daily buckets are labelled by
// their start, weekly buckets by the Sunday closing the week and monthly
// buckets by the last day of the month. Buckets without samples are omitted.
// A nil loc keeps each timestamp's own location.
func Aggregate(tr analysis.Trace, period Period, loc *time.Location) (Series, error) {
	labelOf, err := labeler(period)
	if err != nil {
		return Series{}, err
	}

	series := Series{
		Period:  period,
		Title:   period.Title() + " Power Consumption",
		Buckets: []Bucket{},
	}

	var (
		cur *Bucket
		sum float64
	)
	flush := func() {
		if cur != nil {
			cur.Mean = sum / float64(cur.Count)
			series.Buckets = append(series.Buckets, *cur)
		}
	}

	for _, s := range tr {
		ts := s.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		label := labelOf(ts)

		if cur == nil || !cur.Label.Equal(label) {
			flush()
			cur = &Bucket{Label: label, Max: s.Value, Min: s.Value}
			sum = 0
		}
		cur.Count++
		sum += s.Value
		cur.Max = max(cur.Max, s.Value)
		cur.Min = min(cur.Min, s.Value)
	}
	flush()

	return series, nil
}

// AggregateAll resamples tr by every period.
func AggregateAll(tr analysis.Trace, loc *time.Location) (map[Period]Series, error) {
	out := make(map[Period]Series, 4)
	for _, p := range Periods() {
		s, err := Aggregate(tr, p, loc)
		if err != nil {
			return nil, err
		}
		out[p] = s
	}
	return out, nil
}

func labeler(period Period) (func(time.Time) time.Time, error) {
	switch period {
	case Hourly:
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
		}, nil
	case Daily:
		return startOfDay, nil
	case Weekly:
		return func(t time.Time) time.Time {
			daysToSunday := (7 - int(t.Weekday())) % 7
			return startOfDay(t).AddDate(0, 0, daysToSunday)
		}, nil
	case Monthly:
		return func(t time.Time) time.Time {
			return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
		}, nil
	default:
		return nil, fmt.Errorf("unknown aggregation period %q", period)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
