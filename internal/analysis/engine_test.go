package analysis

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
		field  string
	}{
		{name: "defaults are valid", modify: func(p *Params) {}},
		{name: "start hour too large", modify: func(p *Params) { p.StartHour = 24 }, field: "start_hour"},
		{name: "negative end hour", modify: func(p *Params) { p.EndHour = -1 }, field: "end_hour"},
		{name: "negative distance", modify: func(p *Params) { p.DistToCheck = -3 }, field: "dist_to_check"},
		{name: "nan slope", modify: func(p *Params) { p.MinSlope = math.NaN() }, field: "min_slope"},
		{name: "infinite slope", modify: func(p *Params) { p.MinSlope = math.Inf(1) }, field: "min_slope"},
		{name: "negative smoothing", modify: func(p *Params) { p.Smoothing = -1 }, field: "smoothing"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DefaultParams()
			tc.modify(&p)
			err := p.Validate()
			if tc.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.True(t, IsRejected(err))
		})
	}
}

func TestValidateTrace(t *testing.T) {
	assert.ErrorIs(t, ValidateTrace(nil), ErrEmptyTrace)

	tr := hourlyTrace(3)
	tr[1].Value = math.Inf(-1)
	assert.ErrorContains(t, ValidateTrace(tr), "sample 1")

	tr = hourlyTrace(3)
	tr[2].Timestamp = tr[0].Timestamp.Add(-time.Minute)
	err := ValidateTrace(tr)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "timestamp", verr.Field)

	tr = hourlyTrace(3)
	tr[1].Timestamp = tr[0].Timestamp
	assert.NoError(t, ValidateTrace(tr), "equal timestamps are allowed")
}

func TestAnalyze(t *testing.T) {
	tr := hourlyTrace(72)
	p := DefaultParams()
	p.MinSlope = 0.5

	res, err := Analyze(tr, p)
	require.NoError(t, err)

	assert.Equal(t, []Interval{{Start: 20, End: 24}, {Start: 44, End: 48}}, res.NightZones)
	assert.Equal(t, []Interval{{Start: 0, End: 23}, {Start: 24, End: 47}, {Start: 48, End: 71}}, res.SlopeZones)
	assert.InDeltaSlice(t, []float64{0, 5.75, 11.5, 17.25, 23}, res.Bands[:], 1e-9)

	zones := res.Zones()
	require.Len(t, zones, 5)
	assert.Equal(t, ZoneNight, zones[0].Kind)
	assert.Equal(t, ZonePositiveSlope, zones[4].Kind)
}

func TestAnalyze_DoesNotMutateTrace(t *testing.T) {
	tr := hourlyTrace(48)
	before := append(Trace(nil), tr...)

	_, err := Analyze(tr, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, before, tr)
}

func TestAnalyze_Rejected(t *testing.T) {
	_, err := Analyze(Trace{}, DefaultParams())
	assert.ErrorIs(t, err, ErrEmptyTrace)

	p := DefaultParams()
	p.StartHour = 30
	_, err = Analyze(hourlyTrace(10), p)
	assert.True(t, IsRejected(err))

	tr := hourlyTrace(10)
	tr[4].Value = math.NaN()
	_, err = Analyze(tr, DefaultParams())
	assert.True(t, IsRejected(err))
}

func TestAnalyze_SmoothingUsesRawBands(t *testing.T) {
	tr := hourlyTrace(5)
	for i, v := range []float64{0, 10, 0, 10, 0} {
		tr[i].Value = v
	}

	p := DefaultParams()
	p.Smoothing = 3
	res, err := Analyze(tr, p)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Bands[0])
	assert.Equal(t, 10.0, res.Bands[4])
}

func TestSmoothedValues(t *testing.T) {
	tr := hourlyTrace(4)
	for i, v := range []float64{3, 6, 9, 12} {
		tr[i].Value = v
	}

	smoothed := SmoothedValues(tr, 3)
	got := make([]float64, len(tr))
	for i := range got {
		got[i] = smoothed(i)
	}
	assert.InDeltaSlice(t, []float64{3, 6, 6, 9}, got, 1e-9)

	raw := SmoothedValues(tr, 1)
	assert.Equal(t, 12.0, raw(3))

	short := SmoothedValues(tr[:2], 3)
	assert.Equal(t, 6.0, short(1))
}

func TestAnalyzeBatch(t *testing.T) {
	defer goleak.VerifyNone(t)

	bad := hourlyTrace(4)
	bad[2].Value = math.NaN()
	traces := []Trace{hourlyTrace(48), {}, bad, hourlyTrace(24)}

	outcomes, err := AnalyzeBatch(context.Background(), traces, DefaultParams(), 2)
	require.NoError(t, err)
	require.Len(t, outcomes, len(traces))

	assert.NoError(t, outcomes[0].Err)
	assert.NotNil(t, outcomes[0].Result)
	assert.ErrorIs(t, outcomes[1].Err, ErrEmptyTrace)
	assert.True(t, IsRejected(outcomes[2].Err))
	assert.Nil(t, outcomes[2].Result)
	assert.NoError(t, outcomes[3].Err)

	single, err := Analyze(traces[3], DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, single, outcomes[3].Result)
}

func TestAnalyzeBatch_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := AnalyzeBatch(ctx, []Trace{hourlyTrace(24), hourlyTrace(24)}, DefaultParams(), 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, outcomes)
}
