package indicators

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Series helpers operate on float slices where NaN marks an undefined value,
// mirroring the warm-up behaviour of rolling windows.

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// rollingMean is the simple moving average over window values. The first
// window-1 entries are undefined.
func rollingMean(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingStd is the sample standard deviation (n-1) over window values.
func rollingStd(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window < 2 {
		return out
	}
	for i := window - 1; i < len(x); i++ {
		out[i] = stat.StdDev(x[i-window+1:i+1], nil)
	}
	return out
}

func rollingMin(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	for i := window - 1; i < len(x) && window > 0; i++ {
		out[i] = floats.Min(x[i-window+1 : i+1])
	}
	return out
}

func rollingMax(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	for i := window - 1; i < len(x) && window > 0; i++ {
		out[i] = floats.Max(x[i-window+1 : i+1])
	}
	return out
}

// ewm is the exponentially weighted mean with span and adjusted weights:
// y[t] = sum (1-a)^i x[t-i] / sum (1-a)^i with a = 2/(span+1).
// Undefined inputs are skipped, as are the leading undefined values.
func ewm(x []float64, span int) []float64 {
	out := nanSlice(len(x))
	alpha := 2.0 / (float64(span) + 1.0)
	decay := 1 - alpha
	num, den := 0.0, 0.0
	started := false
	for i, v := range x {
		if math.IsNaN(v) {
			if started {
				num *= decay
				den *= decay
				out[i] = num / den
			}
			continue
		}
		num = v + decay*num
		den = 1 + decay*den
		started = true
		out[i] = num / den
	}
	return out
}

// pctChange is x[t]/x[t-periods] - 1
func pctChange(x []float64, periods int) []float64 {
	out := nanSlice(len(x))
	for i := periods; i < len(x); i++ {
		prev := x[i-periods]
		if prev == 0 || math.IsNaN(prev) || math.IsNaN(x[i]) {
			continue
		}
		out[i] = x[i]/prev - 1
	}
	return out
}

// cumulativeReturns is prod(1+r) - 1 over a return series
func cumulativeReturns(returns []float64) []float64 {
	out := make([]float64, len(returns))
	acc := 1.0
	for i, r := range returns {
		acc *= 1 + r
		out[i] = acc - 1
	}
	return out
}

func last(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return x[len(x)-1]
}

// ptr returns a pointer to v, or nil when v is not finite
func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
