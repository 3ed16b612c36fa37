package annotate

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/analysis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var origin = time.Date(2021, 3, 1, 18, 0, 0, 0, time.UTC)

func hourly(values ...float64) analysis.Trace {
	tr := make(analysis.Trace, len(values))
	for i, v := range values {
		tr[i] = analysis.Sample{Timestamp: origin.Add(time.Duration(i) * time.Hour), Value: v}
	}
	return tr
}

func TestAssemble(t *testing.T) {
	tr := hourly(1, 2, 5, 3, 2, 8, 9, 1, 1, 1, 1, 1, 1)
	res := &analysis.Result{
		NightZones: []analysis.Interval{{Start: 2, End: 11}},
		SlopeZones: []analysis.Interval{{Start: 0, End: 2}, {Start: 4, End: 6}},
		Bands:      analysis.Bands{1, 1.5, 2, 5.5, 9},
	}

	fig, err := Assemble(tr, res, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, "Power (W)", fig.Title)
	assert.Equal(t, "Time", fig.XLabel)

	base := fig.Base()
	require.NotNil(t, base)
	assert.Len(t, base.Points, len(tr))
	assert.Equal(t, ColorLine, base.Color)

	require.Len(t, fig.Regions, 1)
	assert.Equal(t, Region{
		Start:   tr[2].Timestamp,
		End:     tr[11].Timestamp,
		Label:   "Night",
		Color:   "purple",
		Opacity: 0.2,
	}, fig.Regions[0])

	trends := fig.Trends()
	require.Len(t, trends, 2)
	assert.Equal(t, "red", trends[1].Color)
	assert.Equal(t, []Point{{X: tr[4].Timestamp, Y: 2}, {X: tr[5].Timestamp, Y: 8}, {X: tr[6].Timestamp, Y: 9}}, trends[1].Points)

	require.Len(t, fig.Bands, 4)
	for i, b := range fig.Bands {
		assert.Equal(t, i, b.Level)
		assert.Equal(t, res.Bands[i], b.Low)
		assert.Equal(t, res.Bands[i+1], b.High)
		assert.Equal(t, 0.2, b.Opacity)
	}
	assert.Equal(t, []string{"green", "yellow", "orange", "red"},
		[]string{fig.Bands[0].Color, fig.Bands[1].Color, fig.Bands[2].Color, fig.Bands[3].Color})
	assert.Equal(t, []int{7, 0, 4, 2},
		[]int{fig.Bands[0].Samples, fig.Bands[1].Samples, fig.Bands[2].Samples, fig.Bands[3].Samples})
}

func TestAssemble_EmptyZones(t *testing.T) {
	tr := hourly(7, 7, 7)
	res := &analysis.Result{
		NightZones: []analysis.Interval{},
		SlopeZones: []analysis.Interval{},
		Bands:      analysis.Bands{7, 7, 7, 7, 7},
	}

	fig, err := Assemble(tr, res, DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, fig.Regions)
	assert.Empty(t, fig.Trends())
	require.Len(t, fig.Bands, 4)
	assert.Equal(t, 0, fig.Bands[0].Samples)
	assert.Equal(t, 3, fig.Bands[3].Samples, "flat trace lands in the highest zero-width band")

	var buf bytes.Buffer
	require.NoError(t, JSONRenderer{}.Render(fig, FormatJSON, &buf))
	assert.Contains(t, buf.String(), `"regions":[]`)
}

func TestAssemble_Rejects(t *testing.T) {
	tr := hourly(1, 2, 3)

	_, err := Assemble(tr, nil, DefaultOptions())
	assert.Error(t, err)

	_, err = Assemble(tr, &analysis.Result{SlopeZones: []analysis.Interval{{Start: 1, End: 3}}}, DefaultOptions())
	assert.ErrorContains(t, err, "slope zone [1, 3]")

	_, err = Assemble(tr, &analysis.Result{NightZones: []analysis.Interval{{Start: 2, End: 1}}}, DefaultOptions())
	assert.ErrorContains(t, err, "night zone")
}

func TestAssemble_FromAnalyze(t *testing.T) {
	tr := hourly(1, 1, 1, 10, 1, 1, 1)
	res, err := analysis.Analyze(tr, analysis.DefaultParams())
	require.NoError(t, err)

	fig, err := Assemble(tr, res, DefaultOptions())
	require.NoError(t, err)

	// 18:00 opens, 00:00 closes.
	require.Len(t, fig.Regions, 1)
	assert.Equal(t, tr[2].Timestamp, fig.Regions[0].Start)
	assert.Equal(t, tr[6].Timestamp, fig.Regions[0].End)
	require.Len(t, fig.Trends(), 1)
}

func TestFigure_JSONShape(t *testing.T) {
	fig, err := Assemble(hourly(1, 3), &analysis.Result{Bands: analysis.Bands{1, 1.5, 2, 2.5, 3}}, DefaultOptions())
	require.NoError(t, err)

	raw, err := json.Marshal(fig)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	for _, key := range []string{"title", "x_label", "y_label", "series", "regions", "bands"} {
		assert.Contains(t, decoded, key)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "", want: FormatJSON},
		{in: "PNG", want: FormatPNG},
		{in: " svg ", want: FormatSVG},
		{in: "json", want: FormatJSON},
		{in: "gif", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseFormat(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	assert.Equal(t, "image/png", FormatPNG.ContentType())
	assert.Equal(t, "image/svg+xml", FormatSVG.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
}

func TestJSONRenderer_RejectsImages(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, JSONRenderer{}.Render(&Figure{}, FormatPNG, &buf))
}
