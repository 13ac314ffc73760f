package features

import "math"

// Tail returns the last n values, or all of them when fewer exist.
func Tail(values []float64, n int) []float64 {
	if n >= len(values) {
		return values
	}
	return values[len(values)-n:]
}

// Mean returns the arithmetic mean, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SMA is the mean of the last n values. ok is false when fewer than n exist.
func SMA(values []float64, n int) (float64, bool) {
	if n <= 0 || len(values) < n {
		return 0, false
	}
	return Mean(Tail(values, n)), true
}

// MinMax returns the extremes of values. Both are 0 for an empty slice.
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// SimpleReturns computes r_i = (c_i - c_{i-1}) / c_{i-1}; length len(closes)-1.
// A non-positive predecessor yields a zero return.
func SimpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		if prev <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (closes[i]-prev)/prev)
	}
	return out
}

// PopulationStdDev divides by N.
func PopulationStdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// AnnualizedVolatility is the population standard deviation of simple returns
// scaled by sqrt(periodsPerYear).
func AnnualizedVolatility(closes []float64, periodsPerYear float64) float64 {
	r := SimpleReturns(closes)
	if len(r) == 0 {
		return 0
	}
	return PopulationStdDev(r) * math.Sqrt(periodsPerYear)
}

// PricePosition locates price inside [support, resistance]: 0 at support, 1 at resistance.
// A collapsed range yields exactly 0.5.
func PricePosition(price, support, resistance float64) float64 {
	if resistance == support {
		return 0.5
	}
	return (price - support) / (resistance - support)
}
