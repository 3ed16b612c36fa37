// Package render draws annotate figures as PNG or SVG images with go-chart.
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/annotate"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrTooFewPoints is returned when the base line cannot span an x range.
var ErrTooFewPoints = errors.New("render: figure needs at least two samples")

var palette = map[string]drawing.Color{
	annotate.ColorLine:   {R: 70, G: 130, B: 180, A: 255},
	annotate.ColorNight:  {R: 128, G: 0, B: 128, A: 255},
	annotate.ColorGreen:  {R: 0, G: 128, B: 0, A: 255},
	annotate.ColorYellow: {R: 255, G: 255, B: 0, A: 255},
	annotate.ColorOrange: {R: 255, G: 165, B: 0, A: 255},
	annotate.ColorRed:    {R: 255, G: 0, B: 0, A: 255},
}

// ChartRenderer implements annotate.Renderer.
type ChartRenderer struct {
	Width  int
	Height int
	// TimeFormat labels the x axis ticks.
	TimeFormat string
}

// NewChartRenderer returns a renderer producing 1280x600 images.
func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{Width: 1280, Height: 600, TimeFormat: "2006-01-02 15:04"}
}

// Render writes fig to w as PNG or SVG. JSON output is delegated to
// annotate.JSONRenderer.
func (r *ChartRenderer) Render(fig *annotate.Figure, format annotate.Format, w io.Writer) error {
	var provider chart.RendererProvider
	switch format {
	case annotate.FormatPNG:
		provider = chart.PNG
	case annotate.FormatSVG:
		provider = chart.SVG
	case annotate.FormatJSON:
		return annotate.JSONRenderer{}.Render(fig, format, w)
	default:
		return fmt.Errorf("render: unsupported format %q", format)
	}

	ch, err := r.build(fig)
	if err != nil {
		return err
	}
	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

func (r *ChartRenderer) build(fig *annotate.Figure) (*chart.Chart, error) {
	base := fig.Base()
	if base == nil || len(base.Points) < 2 {
		return nil, ErrTooFewPoints
	}
	first, last := base.Points[0].X, base.Points[len(base.Points)-1].X
	if !last.After(first) {
		return nil, ErrTooFewPoints
	}

	yMin, yMax := valueRange(fig)

	series := make([]chart.Series, 0, len(fig.Bands)+2*len(fig.Regions)+len(fig.Series))

	// Bands and night regions are drawn as closed rectangles so the fill
	// does not depend on where zero sits in the value range.
	for _, b := range fig.Bands {
		series = append(series, rect(fmt.Sprintf("band %d (%d samples)", b.Level, b.Samples), first, last, b.Low, b.High, tint(b.Color, b.Opacity)))
	}

	var labels []chart.Value2
	for _, reg := range fig.Regions {
		series = append(series, rect(reg.Label, reg.Start, reg.End, yMin, yMax, translucent(reg.Color, reg.Opacity)))
		if reg.Label != "" {
			labels = append(labels, chart.Value2{
				XValue: chart.TimeToFloat64(reg.Start),
				YValue: yMax,
				Label:  reg.Label,
			})
		}
	}

	for _, s := range fig.Series {
		if len(s.Points) < 2 {
			continue
		}
		xs := make([]time.Time, len(s.Points))
		ys := make([]float64, len(s.Points))
		for i, p := range s.Points {
			xs[i], ys[i] = p.X, p.Y
		}
		width := 1.5
		if s.Role == annotate.RoleTrend {
			width = 2.5
		}
		series = append(series, chart.TimeSeries{
			Name:    s.Name,
			Style:   chart.Style{StrokeColor: color(s.Color), StrokeWidth: width},
			XValues: xs,
			YValues: ys,
		})
	}

	if len(labels) > 0 {
		series = append(series, chart.AnnotationSeries{Annotations: labels})
	}

	return &chart.Chart{
		Title:      fig.Title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:           fig.XLabel,
			ValueFormatter: chart.TimeValueFormatterWithFormat(r.TimeFormat),
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)},
		},
		YAxis: chart.YAxis{
			Name:  fig.YLabel,
			Range: &chart.ContinuousRange{Min: yMin, Max: yMax},
		},
		Series: series,
	}, nil
}

func rect(name string, x0, x1 time.Time, y0, y1 float64, fill drawing.Color) chart.TimeSeries {
	return chart.TimeSeries{
		Name: name,
		Style: chart.Style{
			StrokeColor: drawing.ColorTransparent,
			StrokeWidth: 1,
			FillColor:   fill,
		},
		XValues: []time.Time{x0, x1, x1, x0, x0},
		YValues: []float64{y1, y1, y0, y0, y1},
	}
}

// valueRange spans every plotted value and band boundary, padded when the
// trace is constant.
func valueRange(fig *annotate.Figure) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range fig.Series {
		for _, p := range s.Points {
			lo = math.Min(lo, p.Y)
			hi = math.Max(hi, p.Y)
		}
	}
	for _, b := range fig.Bands {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if hi-lo < 1e-9 {
		pad := math.Max(math.Abs(hi)*0.1, 1)
		return lo - pad, hi + pad
	}
	return lo, hi
}

func color(name string) drawing.Color {
	if c, ok := palette[name]; ok {
		return c
	}
	return chart.ColorBlack
}

// tint blends the named color with white at the given opacity.
func tint(name string, opacity float64) drawing.Color {
	c := color(name)
	mix := func(v uint8) uint8 {
		return uint8(math.Round(float64(v)*opacity + 255*(1-opacity)))
	}
	return drawing.Color{R: mix(c.R), G: mix(c.G), B: mix(c.B), A: 255}
}

func translucent(name string, opacity float64) drawing.Color {
	return color(name).WithAlpha(uint8(math.Round(255 * opacity)))
}
