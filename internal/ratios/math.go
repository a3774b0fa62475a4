package ratios

import "math"

// divide is element-wise a/b. A NaN operand, a zero denominator or a
// non-finite quotient yields NaN.
func divide(a, b column) column {
	out := make(column, len(a))
	for i := range a {
		out[i] = safeDivide(a[i], b[i])
	}
	return out
}

func safeDivide(num, den float64) float64 {
	if math.IsNaN(num) || math.IsNaN(den) || den == 0 {
		return math.NaN()
	}
	q := num / den
	if math.IsInf(q, 0) || math.IsNaN(q) {
		return math.NaN()
	}
	return q
}

func subtract(a, b column) column {
	out := make(column, len(a))
	for i := range a {
		out[i] = a[i] - b[i] // NaN propagates
	}
	return out
}

// trailingMean averages the non-null values in a window of the current and
// previous window-1 rows. At least one non-null value is required.
func trailingMean(c column, window int) column {
	out := make(column, len(c))
	for i := range c {
		sum, n := 0.0, 0
		for j := i - window + 1; j <= i; j++ {
			if j < 0 || math.IsNaN(c[j]) {
				continue
			}
			sum += c[j]
			n++
		}
		if n == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}

// growth is (current - previous) / previous against the previous joined row.
// The first row has no previous value.
func growth(c column) column {
	out := make(column, len(c))
	for i := range c {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = safeDivide(c[i]-c[i-1], c[i-1])
	}
	return out
}
