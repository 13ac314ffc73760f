package repository

import "time"

// Timeframe is an exchange bar label.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1H  Timeframe = "1H"
)

// IsValidTimeframe returns true if tf is a supported timeframe.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1H:
		return true
	default:
		return false
	}
}

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
// "1h" is accepted as an alias of the exchange's "1H".
func NormalizeTimeframe(s string) Timeframe {
	if s == "1h" {
		return TF1H
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return TF15m
}

// Duration is the bar length.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1m:
		return time.Minute
	case TF5m:
		return 5 * time.Minute
	case TF1H:
		return time.Hour
	default:
		return 15 * time.Minute
	}
}

// PeriodsPerYear is the annualization factor for returns sampled at tf.
func (tf Timeframe) PeriodsPerYear() float64 {
	return float64(365*24*time.Hour) / float64(tf.Duration())
}
