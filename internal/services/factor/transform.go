package factor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Band is the cross-sectional mean and sample standard deviation of the raw
// indicator values.
type Band struct {
	Mean float64
	Std  float64
}

// Upper is Mean+Std.
func (b Band) Upper() float64 { return b.Mean + b.Std }

// Lower is Mean-Std.
func (b Band) Lower() float64 { return b.Mean - b.Std }

// ComputeBand returns mean and sample (n-1) standard deviation of the finite
// values. NaN and Inf are skipped; fewer than two usable values give Std NaN.
func ComputeBand(values []float64) Band {
	finite := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		finite = append(finite, v)
	}
	switch len(finite) {
	case 0:
		return Band{Mean: math.NaN(), Std: math.NaN()}
	case 1:
		return Band{Mean: finite[0], Std: math.NaN()}
	}
	mean, std := stat.MeanStdDev(finite, nil)
	return Band{Mean: mean, Std: std}
}

// Reflect folds values outside [Mean-Std, Mean+Std] back across the nearest
// band edge: v > upper -> 2*upper - v, v < lower -> 2*lower - v. Values inside
// the band, and NaN, are returned unchanged. A value more than 2*Std past an
// edge lands beyond the opposite side of the mean.
func (b Band) Reflect(v float64) float64 {
	switch {
	case math.IsNaN(v) || math.IsNaN(b.Std):
		return v
	case math.Abs(v-b.Mean) <= b.Std:
		return v
	case v > b.Upper():
		return 2*b.Upper() - v
	default:
		return 2*b.Lower() - v
	}
}
