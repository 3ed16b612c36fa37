package analysis

import (
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
)

// SmoothedValues returns a ValueFunc over the simple moving average of the
// trace values. Positions inside the average's idle period keep their raw
// value so the result stays aligned with the trace. A period below 2 returns
// the raw value column.
func SmoothedValues(tr Trace, period int) ValueFunc {
	raw := tr.Values()
	if period < 2 || len(raw) < period {
		return func(i int) float64 { return raw[i] }
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	averaged := helper.ChanToSlice(sma.Compute(helper.SliceToChan(raw)))

	smoothed := make([]float64, len(raw))
	idle := sma.IdlePeriod()
	copy(smoothed[:idle], raw[:idle])
	copy(smoothed[idle:], averaged)

	return func(i int) float64 { return smoothed[i] }
}
