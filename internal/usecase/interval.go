package usecase

import (
	"math"
	"time"

	"TrendPull/pkg/config"
)

// IntervalInput is what the scheduler looks at after each tick.
type IntervalInput struct {
	Volatility  float64 // annualized
	PriceChange float64 // fractional change since the previous tick
	HasPosition bool
	Now         time.Time
}

// IntervalScheduler decides how long the loop sleeps between ticks.
type IntervalScheduler struct {
	fixed time.Duration
	cfg   config.Interval
}

func NewIntervalScheduler(fixed time.Duration, cfg config.Interval) *IntervalScheduler {
	return &IntervalScheduler{fixed: fixed, cfg: cfg}
}

// Next returns the fixed interval, or the tightest band clamped to [min, max] when dynamic.
func (s *IntervalScheduler) Next(in IntervalInput) time.Duration {
	if !s.cfg.Enabled {
		return s.fixed
	}
	d := volatilityBand(in.Volatility)
	d = minDuration(d, priceChangeBand(math.Abs(in.PriceChange)))
	d = minDuration(d, positionBand(in.HasPosition))
	d = minDuration(d, sessionBand(in.Now.UTC().Hour()))

	if d < s.cfg.Min {
		d = s.cfg.Min
	}
	if d > s.cfg.Max {
		d = s.cfg.Max
	}
	return d
}

func volatilityBand(v float64) time.Duration {
	switch {
	case v > 0.8:
		return 8 * time.Second
	case v > 0.4:
		return 12 * time.Second
	case v > 0.2:
		return 20 * time.Second
	default:
		return 30 * time.Second
	}
}

func priceChangeBand(c float64) time.Duration {
	switch {
	case c > 0.002:
		return 5 * time.Second
	case c > 0.001:
		return 8 * time.Second
	case c > 0.0005:
		return 12 * time.Second
	default:
		return 20 * time.Second
	}
}

func positionBand(open bool) time.Duration {
	if open {
		return 8 * time.Second
	}
	return 15 * time.Second
}

// sessionBand follows the Asian, European and US sessions in UTC.
func sessionBand(hour int) time.Duration {
	switch {
	case hour < 8:
		return 15 * time.Second
	case hour < 16:
		return 10 * time.Second
	default:
		return 8 * time.Second
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
