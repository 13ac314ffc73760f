package repository

import (
	"context"
	"time"

	"TrendPull/internal/domain/models"
)

// CandleStore persists exchange candles and serves them back for replay.
type CandleStore interface {
	Init(ctx context.Context) error
	SaveCandles(ctx context.Context, series models.CandleSeries) error
	GetCandles(ctx context.Context, symbol string, tf Timeframe, from, to time.Time) (models.CandleSeries, error)
	GetLatestNCandles(ctx context.Context, symbol string, tf Timeframe, n int) (models.CandleSeries, error)
}
