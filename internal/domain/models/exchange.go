package models

import "time"

// Position is an open exchange position.
type Position struct {
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"` // long | short
	Contracts     float64   `json:"contracts"`
	EntryPrice    float64   `json:"entry_price"`
	Leverage      int       `json:"leverage"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	MarginMode    string    `json:"margin_mode"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Balance is the account balance for one currency.
type Balance struct {
	Currency string  `json:"currency"`
	Total    float64 `json:"total"`
	Free     float64 `json:"free"`
	Used     float64 `json:"used"`
}

type Ticker struct {
	Symbol string    `json:"symbol"`
	Last   float64   `json:"last"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Order is the exchange acknowledgement of a placed order.
type Order struct {
	ID            string    `json:"id"`
	ClientOrderID string    `json:"client_order_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Contracts     float64   `json:"contracts"`
	AvgPrice      float64   `json:"avg_price"`
	State         string    `json:"state"`
	CreatedAt     time.Time `json:"created_at"`
}

// ClosedPosition is a settled position from the exchange history.
type ClosedPosition struct {
	Symbol      string    `json:"symbol"`
	Side        string    `json:"side"`
	RealizedPnL float64   `json:"realized_pnl"`
	OpenPrice   float64   `json:"open_price"`
	ClosePrice  float64   `json:"close_price"`
	ClosedAt    time.Time `json:"closed_at"`
}
