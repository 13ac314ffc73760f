package models

import (
	"fmt"
	"time"
)

// Candle represents one OHLCV bar.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// CandleSeries is an ordered run of bars for one instrument, oldest first.
type CandleSeries struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles"`
}

// Len returns the number of bars.
func (s CandleSeries) Len() int { return len(s.Candles) }

// Last returns the newest bar. The series must not be empty.
func (s CandleSeries) Last() Candle { return s.Candles[len(s.Candles)-1] }

// Closes returns the close vector in series order.
func (s CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high vector in series order.
func (s CandleSeries) Highs() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low vector in series order.
func (s CandleSeries) Lows() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Low
	}
	return out
}

// Validate rejects series that are too short, out of order, or carry non-positive closes.
func (s CandleSeries) Validate(minLen int) error {
	if len(s.Candles) < minLen {
		return fmt.Errorf("series %s/%s has %d bars, need %d", s.Symbol, s.Timeframe, len(s.Candles), minLen)
	}
	for i, c := range s.Candles {
		if c.Close <= 0 {
			return fmt.Errorf("series %s/%s bar %d has non-positive close", s.Symbol, s.Timeframe, i)
		}
		if i > 0 && !c.Time.After(s.Candles[i-1].Time) {
			return fmt.Errorf("series %s/%s bar %d is not after its predecessor", s.Symbol, s.Timeframe, i)
		}
	}
	return nil
}

// Window returns the series truncated to the first n bars, sharing the backing array.
func (s CandleSeries) Window(n int) CandleSeries {
	if n > len(s.Candles) {
		n = len(s.Candles)
	}
	s.Candles = s.Candles[:n]
	return s
}
