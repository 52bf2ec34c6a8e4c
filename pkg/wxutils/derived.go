package wxutils

import "math"

// Estimated hourly output of the station's wind turbine per m/s of wind.
const whPerMetrePerSecond = 20

func PowerGenerationWh(windSpeed float64) float64 {
	if windSpeed < 0 {
		return 0
	}
	return windSpeed * whPerMetrePerSecond
}

// PaddedRange returns [min-pad, max+pad] with pad = (max-min+0.01)/20,
// so a flat series (e.g. no rain) still gets a visible axis.
func PaddedRange(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo + 1e-2) / 20
	return lo - pad, hi + pad
}
