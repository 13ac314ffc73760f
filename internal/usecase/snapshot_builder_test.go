package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuilder(ex drepo.ExchangeClient) *SnapshotBuilder {
	c := testConfig()
	return NewSnapshotBuilder(ex, c.Trading, c.Strategy, c.Risk)
}

func TestSnapshotFlatMarket(t *testing.T) {
	ex := newFakeExchange()
	ex.series[drepo.TF15m] = seriesFrom("15m", flat(60, 100)...)

	snap, err := newBuilder(ex).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.Support)
	assert.Equal(t, 100.0, snap.Resistance)
	assert.Equal(t, 0.5, snap.PricePosition)
	assert.Equal(t, 0.0, snap.Volatility)
	assert.Equal(t, models.TrendNeutral, snap.Trend)
	assert.Equal(t, models.VolLow, snap.VolTier)
	assert.Nil(t, snap.Breakout)
	assert.Nil(t, snap.Momentum)
	assert.Equal(t, t0, snap.Timestamp)
}

func TestSnapshotBullishTrend(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	ex := newFakeExchange()
	ex.series[drepo.TF15m] = seriesFrom("15m", closes...)

	snap, err := newBuilder(ex).Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 159.0, snap.Price)
	assert.InDelta(t, 149.5, snap.SMAShort, 1e-9)
	assert.InDelta(t, 134.5, snap.SMALong, 1e-9)
	assert.Equal(t, 140.0, snap.Support)
	assert.Equal(t, 159.0, snap.Resistance)
	assert.Equal(t, 1.0, snap.PricePosition)
	assert.Equal(t, models.TrendBullish, snap.Trend)
	assert.Nil(t, snap.Breakout)
	assert.Greater(t, snap.Indicators.RSI, 50.0)
}

func TestSnapshotBreakoutUp(t *testing.T) {
	ex := newFakeExchange()
	ex.series[drepo.TF15m] = seriesFrom("15m", append(flat(59, 100), 103)...)

	snap, err := newBuilder(ex).Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Breakout)
	assert.Equal(t, models.Long, snap.Breakout.Direction)
	assert.Equal(t, 100.0, snap.Breakout.Level)
	assert.InDelta(t, 3.0, snap.Breakout.Percent, 1e-9)
	assert.Equal(t, models.VolHigh, snap.VolTier)
}

func TestSnapshotMomentumUsesPrimaryPrice(t *testing.T) {
	c := testConfig()
	c.Strategy.Momentum.Enabled = true
	ex := newFakeExchange()
	ex.series[drepo.TF15m] = seriesFrom("15m", append(flat(59, 100), 101)...)
	ex.series[drepo.TF5m] = seriesFrom("5m", flat(50, 100)...)

	b := NewSnapshotBuilder(ex, c.Trading, c.Strategy, c.Risk)
	snap, err := b.Build(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Momentum)
	assert.Equal(t, models.Long, snap.Momentum.Direction)
	assert.InDelta(t, 1.0, snap.Momentum.Percent, 1e-9)
	assert.Equal(t, 2, ex.ohlcvCall)
}

func TestSnapshotUnavailable(t *testing.T) {
	t.Run("too few bars", func(t *testing.T) {
		ex := newFakeExchange()
		ex.series[drepo.TF15m] = seriesFrom("15m", flat(50, 100)...)
		_, err := newBuilder(ex).Build(context.Background())
		assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	})
	t.Run("fetch error", func(t *testing.T) {
		ex := newFakeExchange()
		ex.ohlcvErr = errBoom
		_, err := newBuilder(ex).Build(context.Background())
		assert.ErrorIs(t, err, ErrSnapshotUnavailable)
		assert.True(t, errors.Is(err, errBoom))
	})
	t.Run("momentum fetch error", func(t *testing.T) {
		c := testConfig()
		c.Strategy.Momentum.Enabled = true
		ex := newFakeExchange()
		ex.series[drepo.TF15m] = seriesFrom("15m", flat(60, 100)...)
		_, err := NewSnapshotBuilder(ex, c.Trading, c.Strategy, c.Risk).Build(context.Background())
		assert.ErrorIs(t, err, ErrSnapshotUnavailable)
	})
	t.Run("fetch timeout", func(t *testing.T) {
		c := testConfig()
		c.Trading.FetchTimeout = 20 * time.Millisecond
		ex := stallingExchange{newFakeExchange()}
		start := time.Now()
		_, err := NewSnapshotBuilder(ex, c.Trading, c.Strategy, c.Risk).Build(context.Background())
		assert.ErrorIs(t, err, ErrSnapshotUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

// stallingExchange never answers candle requests before the context ends.
type stallingExchange struct{ *fakeExchange }

func (stallingExchange) FetchOHLCV(ctx context.Context, _ string, _ drepo.Timeframe, _ int) (models.CandleSeries, error) {
	<-ctx.Done()
	return models.CandleSeries{}, ctx.Err()
}

func TestMinBars(t *testing.T) {
	c := testConfig()
	assert.Equal(t, 51, NewSnapshotBuilder(nil, c.Trading, c.Strategy, c.Risk).MinBars())
	c.Strategy.Breakout.Period = 80
	assert.Equal(t, 81, NewSnapshotBuilder(nil, c.Trading, c.Strategy, c.Risk).MinBars())
}

func TestClassifyVolatility(t *testing.T) {
	r := testConfig().Risk
	assert.Equal(t, models.VolLow, ClassifyVolatility(0.29, r))
	assert.Equal(t, models.VolMedium, ClassifyVolatility(0.3, r))
	assert.Equal(t, models.VolMedium, ClassifyVolatility(0.69, r))
	assert.Equal(t, models.VolHigh, ClassifyVolatility(0.7, r))
}
