package analysis

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

// Params tunes the three analyzers.
type Params struct {
	// StartHour opens a night zone (inclusive, 0-23).
	StartHour int `json:"start_hour"`
	// EndHour closes a night zone (exclusive, 0-23).
	EndHour int `json:"end_hour"`
	// DistToCheck is the largest gap, in positions, bridged when merging
	// positive-slope zones.
	DistToCheck int `json:"dist_to_check"`
	// MinSlope is the least-squares slope a zone needs to be kept. Zero
	// disables the filter.
	MinSlope float64 `json:"min_slope"`
	// Smoothing is the moving-average period applied to the values before
	// slope detection. Values below 2 analyse the raw trace.
	Smoothing int `json:"smoothing,omitempty"`
	// Location is the clock night hours are read in. Nil keeps the
	// location of each timestamp.
	Location *time.Location `json:"-"`
}

// DefaultParams returns the default analyzer parameters.
func DefaultParams() Params {
	return Params{
		StartHour:   20,
		EndHour:     6,
		DistToCheck: 5,
		MinSlope:    1,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.StartHour < 0 || p.StartHour > 23 {
		return newValidationError("start_hour", "must be between 0 and 23, got %d", p.StartHour)
	}
	if p.EndHour < 0 || p.EndHour > 23 {
		return newValidationError("end_hour", "must be between 0 and 23, got %d", p.EndHour)
	}
	if p.DistToCheck < 0 {
		return newValidationError("dist_to_check", "must not be negative, got %d", p.DistToCheck)
	}
	if math.IsNaN(p.MinSlope) || math.IsInf(p.MinSlope, 0) {
		return newValidationError("min_slope", "must be a finite number")
	}
	if p.Smoothing < 0 {
		return newValidationError("smoothing", "must not be negative, got %d", p.Smoothing)
	}
	return nil
}

// ValidateTrace checks the preconditions shared by all analyzers: at least
// one sample, finite values and non-decreasing timestamps.
func ValidateTrace(tr Trace) error {
	if len(tr) == 0 {
		return ErrEmptyTrace
	}
	for i, s := range tr {
		if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
			return newValidationError("value", "sample %d is not a finite number", i)
		}
		if i > 0 && s.Timestamp.Before(tr[i-1].Timestamp) {
			return newValidationError("timestamp", "sample %d is earlier than sample %d", i, i-1)
		}
	}
	return nil
}

// Analyze validates tr and p, then runs the night-zone detector, the
// positive-slope detector and the band calculator.
func Analyze(tr Trace, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateTrace(tr); err != nil {
		return nil, err
	}

	valueOf := tr.ValueAt()
	if p.Smoothing >= 2 {
		valueOf = SmoothedValues(tr, p.Smoothing)
	}

	slopeZones, err := DetectSlopeZones(len(tr), valueOf, p.DistToCheck, p.MinSlope)
	if err != nil {
		return nil, err
	}

	bands, err := ComputeBands(tr.Values())
	if err != nil {
		return nil, err
	}

	return &Result{
		NightZones: DetectNightZones(tr, p.StartHour, p.EndHour, p.Location),
		SlopeZones: slopeZones,
		Bands:      bands,
	}, nil
}

// Outcome is the result of one trace in a batch: either a computed Result
// or the error that rejected the trace.
type Outcome struct {
	Result   *Result
	Err      error
	Duration time.Duration
}

// AnalyzeBatch analyses traces concurrently with at most workers goroutines.
// Per-trace failures are reported in the matching Outcome; the returned
// error is only set when ctx is cancelled.
func AnalyzeBatch(ctx context.Context, traces []Trace, p Params, workers int) ([]Outcome, error) {
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]Outcome, len(traces))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range traces {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := Analyze(traces[i], p)
			outcomes[i] = Outcome{Result: res, Err: err, Duration: time.Since(start)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
