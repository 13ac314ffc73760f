package models

import "time"

// StrategyStats counts signals per strategy plus sizing rejections.
type StrategyStats struct {
	Breakout       int `json:"breakout"`
	Momentum       int `json:"momentum"`
	TrendFollowing int `json:"trend_following"`
	MeanReversion  int `json:"mean_reversion"`
	Rejected       int `json:"rejected"`
}

// Inc bumps the counter for s.
func (st *StrategyStats) Inc(s Strategy) {
	switch s {
	case StrategyBreakout:
		st.Breakout++
	case StrategyMomentum:
		st.Momentum++
	case StrategyTrendFollowing:
		st.TrendFollowing++
	case StrategyMeanReversion:
		st.MeanReversion++
	}
}

// TradingState is the trader's mutable day state. Date is the UTC calendar day.
type TradingState struct {
	Date              string        `json:"date"`
	TradesToday       int           `json:"trades_today"`
	ConsecutiveLosses int           `json:"consecutive_losses"`
	ConsecutiveWins   int           `json:"consecutive_wins"`
	DailyPnL          float64       `json:"daily_pnl"`
	ActivePositions   []Position    `json:"active_positions"`
	Stats             StrategyStats `json:"strategy_stats"`
	LastCheck         time.Time     `json:"last_check"`
}

// Clone returns a deep copy.
func (s TradingState) Clone() TradingState {
	if s.ActivePositions != nil {
		s.ActivePositions = append([]Position(nil), s.ActivePositions...)
	}
	return s
}

// HasOpenPosition reports whether any position is open.
func (s TradingState) HasOpenPosition() bool {
	return len(s.ActivePositions) > 0
}
