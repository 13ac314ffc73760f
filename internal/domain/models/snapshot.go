package models

import "time"

type Trend string

const (
	TrendBullish Trend = "bullish"
	TrendBearish Trend = "bearish"
	TrendNeutral Trend = "neutral"
)

type VolTier string

const (
	VolLow    VolTier = "low"
	VolMedium VolTier = "medium"
	VolHigh   VolTier = "high"
)

// BreakoutSignal flags a close beyond the recent range.
type BreakoutSignal struct {
	Direction Direction `json:"direction"`
	Level     float64   `json:"level"`   // range max (up) or min (down)
	Percent   float64   `json:"percent"` // distance past the level, in percent
}

// MomentumSignal flags a short-horizon move beyond the momentum threshold.
type MomentumSignal struct {
	Direction Direction `json:"direction"`
	Change    float64   `json:"change"` // fractional change over the lookback
	Percent   float64   `json:"percent"`
}

// Indicators are reported alongside the snapshot; the evaluator does not read them.
type Indicators struct {
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	MACDSignal    float64 `json:"macd_signal"`
	MACDHistogram float64 `json:"macd_histogram"`
	BollUpper     float64 `json:"boll_upper"`
	BollMiddle    float64 `json:"boll_middle"`
	BollLower     float64 `json:"boll_lower"`
	ATR           float64 `json:"atr"`
}

// MarketSnapshot is the per-cycle reduction of recent candles. Built fresh every cycle.
type MarketSnapshot struct {
	Timestamp     time.Time       `json:"timestamp"`
	Symbol        string          `json:"symbol"`
	Price         float64         `json:"price"`
	SMAShort      float64         `json:"sma_20"`
	SMALong       float64         `json:"sma_50"`
	Support       float64         `json:"support"`
	Resistance    float64         `json:"resistance"`
	PricePosition float64         `json:"price_position"` // 0 at support, 1 at resistance
	Volatility    float64         `json:"volatility"`     // annualized
	VolTier       VolTier         `json:"volatility_tier"`
	Trend         Trend           `json:"trend"`
	Breakout      *BreakoutSignal `json:"breakout,omitempty"`
	Momentum      *MomentumSignal `json:"momentum,omitempty"`
	Indicators    Indicators      `json:"indicators"`
}
