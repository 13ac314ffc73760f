package models

import "time"

// BacktestTrade is one simulated round trip.
type BacktestTrade struct {
	Strategy   Strategy  `json:"strategy"`
	Direction  Direction `json:"direction"`
	EntryTime  time.Time `json:"entry_time"`
	ExitTime   time.Time `json:"exit_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Contracts  float64   `json:"contracts"`
	PnL        float64   `json:"pnl"`
	ExitReason string    `json:"exit_reason"` // stop_loss | take_profit | end_of_data
}

// BacktestResult summarizes a replay.
type BacktestResult struct {
	InitialBalance float64          `json:"initial_balance"`
	FinalBalance   float64          `json:"final_balance"`
	TotalReturn    float64          `json:"total_return"` // percent
	Trades         []BacktestTrade  `json:"trades"`
	Wins           int              `json:"wins"`
	Losses         int              `json:"losses"`
	WinRate        float64          `json:"win_rate"`     // percent
	MaxDrawdown    float64          `json:"max_drawdown"` // percent
	ProfitFactor   float64          `json:"profit_factor"`
	Rejected       int              `json:"rejected"`
	PerStrategy    map[Strategy]int `json:"per_strategy"`
	Bars           int              `json:"bars"`
	From           time.Time        `json:"from"`
	To             time.Time        `json:"to"`
}
