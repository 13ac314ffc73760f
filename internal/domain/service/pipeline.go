package service

import (
	"context"

	"TrendPull/internal/domain/models"
)

// SnapshotBuilder reduces recent market data to a MarketSnapshot.
type SnapshotBuilder interface {
	Build(ctx context.Context) (models.MarketSnapshot, error)
}

// SignalEvaluator picks at most one signal. Implementations must be pure.
type SignalEvaluator interface {
	Evaluate(snap models.MarketSnapshot, st models.TradingState) (models.TradeSignal, bool)
}

// PositionSizer turns a signal into order parameters or a rejection.
type PositionSizer interface {
	Size(sig models.TradeSignal, snap models.MarketSnapshot, balance float64) (models.TradeParameters, error)
}
