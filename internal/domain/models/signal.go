package models

type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// OrderSide maps a direction to the exchange order side.
func (d Direction) OrderSide() string {
	if d == Short {
		return "sell"
	}
	return "buy"
}

// Sign is +1 for LONG and -1 for SHORT.
func (d Direction) Sign() float64 {
	if d == Short {
		return -1
	}
	return 1
}

type Strategy string

const (
	StrategyBreakout       Strategy = "breakout"
	StrategyMomentum       Strategy = "momentum"
	StrategyTrendFollowing Strategy = "trend-following"
	StrategyMeanReversion  Strategy = "mean-reversion"
)

// TradeSignal is the evaluator's decision for one cycle.
type TradeSignal struct {
	Direction  Direction `json:"direction"`
	Strategy   Strategy  `json:"strategy"`
	Reason     string    `json:"reason"`
	Confidence float64   `json:"confidence"`
}

// TradeParameters is the sized order derived from a signal.
type TradeParameters struct {
	Contracts       float64 `json:"contracts"`
	Leverage        int     `json:"leverage"`
	EntryPrice      float64 `json:"entry_price"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`
	StopLossPct     float64 `json:"stop_loss_pct"`
	TakeProfitPct   float64 `json:"take_profit_pct"`
	RiskAmount      float64 `json:"risk_amount"`
	PositionValue   float64 `json:"position_value"`
	PotentialReward float64 `json:"potential_reward"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
}
