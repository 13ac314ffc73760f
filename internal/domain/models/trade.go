package models

import "time"

type TradeStatus string

const (
	TradeOpen   TradeStatus = "open"
	TradeDryRun TradeStatus = "dry_run"
	TradeClosed TradeStatus = "closed"
)

// TradeRecord is one line of the trade log and the payload of a trade event.
type TradeRecord struct {
	Timestamp       time.Time   `json:"timestamp"`
	OrderID         string      `json:"order_id"`
	ClientOrderID   string      `json:"client_order_id"`
	Symbol          string      `json:"symbol"`
	Direction       Direction   `json:"direction"`
	Contracts       float64     `json:"contracts"`
	EntryPrice      float64     `json:"entry_price"`
	StopLossPrice   float64     `json:"stop_loss_price"`
	TakeProfitPrice float64     `json:"take_profit_price"`
	StopLossPct     float64     `json:"stop_loss_pct"`
	TakeProfitPct   float64     `json:"take_profit_pct"`
	Leverage        int         `json:"leverage"`
	Reason          string      `json:"reason"`
	Strategy        Strategy    `json:"strategy"`
	Confidence      float64     `json:"confidence"`
	RiskAmount      float64     `json:"risk_amount"`
	RiskRewardRatio float64     `json:"risk_reward_ratio"`
	Status          TradeStatus `json:"status"`
}

// NewTradeRecord joins a signal, its sizing and the exchange acknowledgement.
func NewTradeRecord(ts time.Time, symbol string, sig TradeSignal, p TradeParameters, order Order, status TradeStatus) TradeRecord {
	return TradeRecord{
		Timestamp:       ts.UTC(),
		OrderID:         order.ID,
		ClientOrderID:   order.ClientOrderID,
		Symbol:          symbol,
		Direction:       sig.Direction,
		Contracts:       p.Contracts,
		EntryPrice:      p.EntryPrice,
		StopLossPrice:   p.StopLossPrice,
		TakeProfitPrice: p.TakeProfitPrice,
		StopLossPct:     p.StopLossPct,
		TakeProfitPct:   p.TakeProfitPct,
		Leverage:        p.Leverage,
		Reason:          sig.Reason,
		Strategy:        sig.Strategy,
		Confidence:      sig.Confidence,
		RiskAmount:      p.RiskAmount,
		RiskRewardRatio: p.RiskRewardRatio,
		Status:          status,
	}
}

// TradeEvent is published to Kafka for every recorded trade.
type TradeEvent struct {
	EventID string      `json:"event_id"`
	Trade   TradeRecord `json:"trade"`
}
