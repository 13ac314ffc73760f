package repository

import (
	"context"
	"errors"

	"TrendPull/internal/domain/models"
)

var (
	// ErrExchange marks any failure talking to the exchange. Always transient to the loop.
	ErrExchange = errors.New("exchange error")
	ErrNotFound = errors.New("not found")
)

// ExchangeClient is the exchange surface the trading pipeline needs.
type ExchangeClient interface {
	FetchOHLCV(ctx context.Context, symbol string, tf Timeframe, limit int) (models.CandleSeries, error)
	FetchTicker(ctx context.Context, symbol string) (models.Ticker, error)
	FetchBalance(ctx context.Context, currency string) (models.Balance, error)
	FetchPositions(ctx context.Context, symbol string) ([]models.Position, error)
	SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error
	PlaceMarketOrder(ctx context.Context, symbol string, side string, contracts float64, clientOrderID string) (models.Order, error)
	FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error)
	FetchClosedPositions(ctx context.Context, symbol string, limit int) ([]models.ClosedPosition, error)
}
