package features

import "math"

// EMA returns the exponential moving average series seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period <= 0 {
		return nil
	}
	k := 2 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// RSI uses simple averages of gains and losses over the last period changes.
// Returns 50 when there is not enough data and 100 when there are no losses.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return 50
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100
	}
	rs := (gain / float64(period)) / (loss / float64(period))
	return 100 - 100/(1+rs)
}

// MACD returns the latest MACD line, signal line and histogram.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist float64) {
	if len(closes) == 0 {
		return 0, 0, 0
	}
	ef, es := EMA(closes, fast), EMA(closes, slow)
	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = ef[i] - es[i]
	}
	sigSeries := EMA(macd, signal)
	line = macd[len(macd)-1]
	sig = sigSeries[len(sigSeries)-1]
	return line, sig, line - sig
}

// Bollinger returns the bands over the last period closes (population deviation).
func Bollinger(closes []float64, period int, width float64) (upper, middle, lower float64) {
	w := Tail(closes, period)
	if len(w) == 0 {
		return 0, 0, 0
	}
	middle = Mean(w)
	sd := PopulationStdDev(w)
	return middle + width*sd, middle, middle - width*sd
}

// ATR is the simple average true range over the last period bars.
func ATR(highs, lows, closes []float64, period int) float64 {
	n := len(closes)
	if period <= 0 || n < 2 || len(highs) != n || len(lows) != n {
		return 0
	}
	start := n - period
	if start < 1 {
		start = 1
	}
	sum := 0.0
	for i := start; i < n; i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
		sum += tr
	}
	return sum / float64(n-start)
}
