package usecase

import (
	"context"
	"testing"
	"time"

	"TrendPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBacktestTakeProfit(t *testing.T) {
	closes := append(flat(59, 100), 103, 110)
	closes = append(closes, flat(5, 110)...)
	series := seriesFrom("15m", closes...)

	bt := NewBacktester(testConfig())
	calls := 0
	bt.OnProgress(func(done, total int) { calls++ })

	res, err := bt.Run(context.Background(), series)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)

	first := res.Trades[0]
	assert.Equal(t, models.StrategyBreakout, first.Strategy)
	assert.Equal(t, models.Long, first.Direction)
	assert.Equal(t, 103.0, first.EntryPrice)
	assert.Equal(t, "take_profit", first.ExitReason)
	assert.Greater(t, first.PnL, 0.0)
	assert.Greater(t, res.FinalBalance, res.InitialBalance)
	assert.GreaterOrEqual(t, res.PerStrategy[models.StrategyBreakout], 1)
	assert.Equal(t, len(closes)-50, calls)
	assert.Equal(t, len(closes), res.Bars)
}

func TestBacktestStopLossFirst(t *testing.T) {
	closes := append(flat(59, 100), 103)
	series := seriesFrom("15m", closes...)
	// one wide bar touching both the stop and the target
	series.Candles = append(series.Candles, models.Candle{
		Time: series.Candles[len(series.Candles)-1].Time.Add(15 * time.Minute),
		Open: 103, High: 120, Low: 90, Close: 103, Volume: 1,
	})

	res, err := NewBacktester(testConfig()).Run(context.Background(), series)
	require.NoError(t, err)
	require.NotEmpty(t, res.Trades)
	first := res.Trades[0]
	assert.Equal(t, "stop_loss", first.ExitReason)
	assert.Less(t, first.PnL, 0.0)
	assert.GreaterOrEqual(t, res.Losses, 1)
	assert.Greater(t, res.MaxDrawdown, 0.0)
}

func TestBacktestRejectsShortSeries(t *testing.T) {
	_, err := NewBacktester(testConfig()).Run(context.Background(), seriesFrom("15m", flat(10, 100)...))
	assert.Error(t, err)
}

func TestBacktestFlatMarketHasNoTrades(t *testing.T) {
	res, err := NewBacktester(testConfig()).Run(context.Background(), seriesFrom("15m", flat(120, 100)...))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, res.InitialBalance, res.FinalBalance)
	assert.Equal(t, 0.0, res.WinRate)
}
