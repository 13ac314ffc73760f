package repository

import (
	"context"

	"TrendPull/internal/domain/models"
)

// TickerStream is a live last-price feed.
type TickerStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols ...string) error
	Read(ctx context.Context) (<-chan models.Ticker, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// TradeLog is the append-only record of opened trades.
type TradeLog interface {
	Append(ctx context.Context, rec models.TradeRecord) error
	Recent(ctx context.Context, n int) ([]models.TradeRecord, error)
	Close() error
}

// TradeEventPublisher fans trade records out to downstream consumers.
type TradeEventPublisher interface {
	PublishTrade(ctx context.Context, rec models.TradeRecord) error
	Close() error
}

// TradeArchive stores trade events for analysis.
type TradeArchive interface {
	Init(ctx context.Context) error
	StoreTrades(ctx context.Context, events []models.TradeEvent) error
}

// StateStore persists the trading state across restarts.
type StateStore interface {
	Load(ctx context.Context, date string) (models.TradingState, error) // ErrNotFound when absent
	Save(ctx context.Context, st models.TradingState) error
}

type Metrics interface {
	RecordMessageSent(backend, topic string)
	RecordError(kind string)
	RecordSignal(kind, direction string)
	RecordTrade(direction string, dryRun bool)
	RecordRejection(reason string)
	RecordLastPrice(symbol string, price float64)
	SetGauge(name string, v float64)
	RecordLatency(op string, seconds float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordMessageSent(string, string) {}
func (NopMetrics) RecordError(string) {}
func (NopMetrics) RecordSignal(string, string) {}
func (NopMetrics) RecordTrade(string, bool) {}
func (NopMetrics) RecordRejection(string) {}
func (NopMetrics) RecordLastPrice(string, float64) {}
func (NopMetrics) SetGauge(string, float64) {}
func (NopMetrics) RecordLatency(string, float64) {}
