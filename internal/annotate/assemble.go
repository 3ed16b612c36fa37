package annotate

import (
	"errors"
	"fmt"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
)

// Options controls the labels of an assembled figure.
type Options struct {
	Title      string
	XLabel     string
	YLabel     string
	NightLabel string
}

// DefaultOptions returns the labels used by the dashboard.
func DefaultOptions() Options {
	return Options{
		Title:      "Power (W)",
		XLabel:     "Time",
		YLabel:     "Power (W)",
		NightLabel: "Night",
	}
}

// Assemble builds the figure for tr from a result computed on the same
// trace: the base line, one shaded region per night zone, one red segment
// per positive-slope zone and the four severity bands with their sample
// counts.
func Assemble(tr analysis.Trace, res *analysis.Result, opts Options) (*Figure, error) {
	if res == nil {
		return nil, errors.New("annotate: nil analysis result")
	}
	if err := checkIntervals("night zone", res.NightZones, len(tr)); err != nil {
		return nil, err
	}
	if err := checkIntervals("slope zone", res.SlopeZones, len(tr)); err != nil {
		return nil, err
	}

	fig := &Figure{
		Title:   opts.Title,
		XLabel:  opts.XLabel,
		YLabel:  opts.YLabel,
		Series:  make([]Series, 0, 1+len(res.SlopeZones)),
		Regions: make([]Region, 0, len(res.NightZones)),
		Bands:   make([]Band, 0, len(BandColors)),
	}

	fig.Series = append(fig.Series, Series{
		Name:   opts.Title,
		Role:   RoleBase,
		Color:  ColorLine,
		Points: points(tr, 0, len(tr)-1),
	})

	for _, z := range res.NightZones {
		fig.Regions = append(fig.Regions, Region{
			Start:   tr[z.Start].Timestamp,
			End:     tr[z.End].Timestamp,
			Label:   opts.NightLabel,
			Color:   ColorNight,
			Opacity: shadeOpacity,
		})
	}

	for i, z := range res.SlopeZones {
		fig.Series = append(fig.Series, Series{
			Name:   fmt.Sprintf("trend %d", i+1),
			Role:   RoleTrend,
			Color:  ColorTrend,
			Points: points(tr, z.Start, z.End),
		})
	}

	var counts [4]int
	for _, s := range tr {
		if level := res.Bands.Band(s.Value); level >= 0 {
			counts[level]++
		}
	}

	for i, r := range res.Bands.Ranges() {
		fig.Bands = append(fig.Bands, Band{
			Level:   i,
			Low:     r.Low,
			High:    r.High,
			Color:   BandColors[i],
			Opacity: shadeOpacity,
			Samples: counts[i],
		})
	}

	return fig, nil
}

func checkIntervals(what string, intervals []analysis.Interval, n int) error {
	for _, iv := range intervals {
		if iv.Start < 0 || iv.Start > iv.End || iv.End >= n {
			return fmt.Errorf("annotate: %s [%d, %d] outside trace of %d samples", what, iv.Start, iv.End, n)
		}
	}
	return nil
}

func points(tr analysis.Trace, start, end int) []Point {
	if end < start {
		return []Point{}
	}
	out := make([]Point, 0, end-start+1)
	for _, s := range tr[start : end+1] {
		out = append(out, Point{X: s.Timestamp, Y: s.Value})
	}
	return out
}
