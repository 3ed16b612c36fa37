// Package annotate packages analyzer output into a chart description that a
// plotting collaborator can draw. It performs no analysis of its own.
package annotate

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Color names used by the figure. Renderers map them to concrete colors.
const (
	ColorLine   = "steelblue"
	ColorNight  = "purple"
	ColorTrend  = "red"
	ColorGreen  = "green"
	ColorYellow = "yellow"
	ColorOrange = "orange"
	ColorRed    = "red"
)

// BandColors is the low-to-high ramp applied to the four severity bands.
var BandColors = [4]string{ColorGreen, ColorYellow, ColorOrange, ColorRed}

const shadeOpacity = 0.2

// Point is one plotted sample.
type Point struct {
	X time.Time `json:"x"`
	Y float64   `json:"y"`
}

// SeriesRole tells the renderer how to draw a series.
type SeriesRole string

const (
	RoleBase  SeriesRole = "base"
	RoleTrend SeriesRole = "trend"
)

// Series is a polyline.
type Series struct {
	Name   string     `json:"name"`
	Role   SeriesRole `json:"role"`
	Color  string     `json:"color"`
	Points []Point    `json:"points"`
}

// Region is a vertical shaded span between two timestamps.
type Region struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Label   string    `json:"label"`
	Color   string    `json:"color"`
	Opacity float64   `json:"opacity"`
}

// Band is a horizontal shaded strip between two values. Samples counts the
// trace samples that fall inside it.
type Band struct {
	Level   int     `json:"level"`
	Low     float64 `json:"low"`
	High    float64 `json:"high"`
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Samples int     `json:"samples"`
}

// Figure is the rendering request handed to a Renderer, and the chart
// payload cached for the API.
type Figure struct {
	Title   string   `json:"title"`
	XLabel  string   `json:"x_label"`
	YLabel  string   `json:"y_label"`
	Series  []Series `json:"series"`
	Regions []Region `json:"regions"`
	Bands   []Band   `json:"bands"`
}

// Base returns the base line series, or nil if the figure has none.
func (f *Figure) Base() *Series {
	for i := range f.Series {
		if f.Series[i].Role == RoleBase {
			return &f.Series[i]
		}
	}
	return nil
}

// Trends returns the highlighted trend segments.
func (f *Figure) Trends() []Series {
	var out []Series
	for _, s := range f.Series {
		if s.Role == RoleTrend {
			out = append(out, s)
		}
	}
	return out
}

// Format is an output encoding for a rendered figure.
type Format string

const (
	FormatJSON Format = "json"
	FormatPNG  Format = "png"
	FormatSVG  Format = "svg"
)

// ParseFormat accepts json, png or svg in any case. An empty string means
// JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatPNG, FormatSVG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported figure format %q", s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatSVG:
		return "image/svg+xml"
	default:
		return "application/json"
	}
}

// Renderer draws a figure. Implementations must not modify fig.
type Renderer interface {
	Render(fig *Figure, format Format, w io.Writer) error
}
