package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"github.com/shopspring/decimal"
)

// weekdays is Monday first.
var weekdays = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// DayMean is the mean daily power of one weekday within a month.
type DayMean struct {
	Day   string  `json:"day_name"`
	Power float64 `json:"power"`
}

// MonthBreakdown holds the seven weekday means of one month.
type MonthBreakdown struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Title string     `json:"title"`
	Days  [7]DayMean `json:"days"`
}

// WeekdayBreakdown averages samples per calendar day, then averages those
// daily means per (year, month, weekday). Means are rounded to two decimals,
// weekdays without data report 0 and months without data are omitted. The
// result is ordered by year then month.
func WeekdayBreakdown(tr analysis.Trace, loc *time.Location) []MonthBreakdown {
	type day struct {
		date  time.Time
		sum   float64
		count int
	}
	var days []*day
	for _, s := range tr {
		ts := s.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		d := startOfDay(ts)
		if len(days) == 0 || !days[len(days)-1].date.Equal(d) {
			days = append(days, &day{date: d})
		}
		days[len(days)-1].sum += s.Value
		days[len(days)-1].count++
	}

	type monthKey struct {
		year  int
		month time.Month
	}
	type acc struct {
		sum   [7]float64
		count [7]int
	}
	months := make(map[monthKey]*acc)
	for _, d := range days {
		k := monthKey{d.date.Year(), d.date.Month()}
		a, ok := months[k]
		if !ok {
			a = &acc{}
			months[k] = a
		}
		idx := (int(d.date.Weekday()) + 6) % 7
		a.sum[idx] += d.sum / float64(d.count)
		a.count[idx]++
	}

	keys := make([]monthKey, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return keys[i].month < keys[j].month
	})

	out := make([]MonthBreakdown, 0, len(keys))
	for _, k := range keys {
		a := months[k]
		mb := MonthBreakdown{
			Year:  k.year,
			Month: k.month,
			Title: fmt.Sprintf("%s, %d", k.month, k.year),
		}
		for i, wd := range weekdays {
			mb.Days[i].Day = wd.String()
			if a.count[i] > 0 {
				mb.Days[i].Power = round2(a.sum[i] / float64(a.count[i]))
			}
		}
		out = append(out, mb)
	}
	return out
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
