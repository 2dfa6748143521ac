package features

import "math"

// TradingDays is the length of a year in bars.
const TradingDays = 252

// SimpleReturn computes c1/c0 - 1, or NaN when either close is unusable.
func SimpleReturn(c0, c1 float64) float64 {
	if c0 <= 0 || c1 <= 0 || math.IsNaN(c0) || math.IsNaN(c1) || math.IsInf(c0, 0) || math.IsInf(c1, 0) {
		return math.NaN()
	}
	return c1/c0 - 1
}

// RateOfReturn converts a return over period bars into the equivalent return
// over base bars: (1+r)^(base/period) - 1.
func RateOfReturn(ret float64, period, base int) float64 {
	if period <= 0 || base <= 0 || period == base {
		return ret
	}
	return math.Pow(1+ret, float64(base)/float64(period)) - 1
}

// StdConversion rescales a standard deviation measured over period bars to
// base bars under the square-root-of-time rule.
func StdConversion(std float64, period, base int) float64 {
	if period <= 0 || base <= 0 || period == base {
		return std
	}
	return std / math.Sqrt(float64(period)/float64(base))
}

// AnnualizeAlpha compounds a per-period alpha to a 252-bar year.
func AnnualizeAlpha(alpha float64, period int) float64 {
	if period <= 0 {
		period = 1
	}
	return math.Pow(1+alpha, TradingDays/float64(period)) - 1
}
