package features

import "TrendPull/internal/domain/models"

// Trend labels price against the short and long moving averages.
func Trend(price, smaShort, smaLong float64) models.Trend {
	switch {
	case price > smaShort && smaShort > smaLong:
		return models.TrendBullish
	case price < smaShort && smaShort < smaLong:
		return models.TrendBearish
	default:
		return models.TrendNeutral
	}
}

// Breakout compares price with the range of the period closes that precede the
// current bar. closes must end with the current bar.
func Breakout(closes []float64, period int, multiplier float64) *models.BreakoutSignal {
	if period <= 0 || len(closes) < period+1 || multiplier <= 0 {
		return nil
	}
	price := closes[len(closes)-1]
	lo, hi := MinMax(closes[len(closes)-1-period : len(closes)-1])

	if price > hi*multiplier {
		return &models.BreakoutSignal{
			Direction: models.Long,
			Level:     hi,
			Percent:   (price/hi - 1) * 100,
		}
	}
	if price < lo/multiplier {
		return &models.BreakoutSignal{
			Direction: models.Short,
			Level:     lo,
			Percent:   (1 - price/lo) * 100,
		}
	}
	return nil
}

// Momentum measures the change from closes[len-lookback] to price.
func Momentum(closes []float64, price float64, lookback int, threshold float64) *models.MomentumSignal {
	if lookback <= 0 || len(closes) < lookback {
		return nil
	}
	ref := closes[len(closes)-lookback]
	if ref <= 0 {
		return nil
	}
	m := (price - ref) / ref

	switch {
	case m > threshold:
		return &models.MomentumSignal{Direction: models.Long, Change: m, Percent: m * 100}
	case m < -threshold:
		return &models.MomentumSignal{Direction: models.Short, Change: m, Percent: m * 100}
	default:
		return nil
	}
}
