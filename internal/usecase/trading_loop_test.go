package usecase

import (
	"context"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loopFixture struct {
	ex    *fakeExchange
	log   *memTradeLog
	pub   *memPublisher
	state *StateStore
	sizer *PositionSizer
	loop  *TradingLoop
	now   time.Time
}

func newLoopFixture(t *testing.T, mutate func(c *config.Config)) *loopFixture {
	t.Helper()
	c := testConfig()
	if mutate != nil {
		mutate(c)
	}
	f := &loopFixture{
		ex:    newFakeExchange(),
		log:   &memTradeLog{},
		pub:   &memPublisher{},
		state: NewStateStore(nil, nil),
		now:   t0,
	}
	// breakout up on the last bar
	f.ex.series[drepo.TF15m] = seriesFrom("15m", append(flat(59, 100), 103)...)
	f.sizer = NewPositionSizer(c.Risk, c.Trading)
	f.loop = NewTradingLoop(
		f.ex,
		NewSnapshotBuilder(f.ex, c.Trading, c.Strategy, c.Risk),
		NewSignalEvaluator(c.Strategy, c.Risk),
		f.sizer,
		f.state,
		f.log,
		NewIntervalScheduler(c.Trading.CheckInterval, c.Interval),
		c.Trading,
		WithPublisher(f.pub),
		WithClock(func() time.Time { return f.now }),
	)
	return f
}

func TestRunOncePlacesOrder(t *testing.T) {
	f := newLoopFixture(t, nil)

	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Trade)
	assert.Empty(t, res.Skipped)

	assert.Equal(t, []string{"buy"}, f.ex.orders)
	require.Len(t, f.log.recs, 1)
	rec := f.log.recs[0]
	assert.Equal(t, models.TradeOpen, rec.Status)
	assert.Equal(t, models.StrategyBreakout, rec.Strategy)
	assert.Equal(t, models.Long, rec.Direction)
	assert.Equal(t, "ord-1", rec.OrderID)
	assert.Len(t, rec.ClientOrderID, 32)
	assert.Equal(t, f.sizer.Tier(res.Snapshot.VolTier).Leverage, rec.Leverage)
	assert.Equal(t, []int{rec.Leverage}, f.ex.leverage)
	assert.Len(t, f.pub.recs, 1)

	st := f.state.Snapshot()
	assert.Equal(t, 1, st.TradesToday)
	assert.Equal(t, 1, st.Stats.Breakout)

	snap, ok := f.loop.LastSnapshot()
	require.True(t, ok)
	assert.Equal(t, 103.0, snap.Price)
}

func TestRunOnceDryRun(t *testing.T) {
	f := newLoopFixture(t, func(c *config.Config) { c.Trading.DryRun = true })

	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Trade)
	assert.Empty(t, f.ex.orders)
	assert.Empty(t, f.ex.leverage)
	require.Len(t, f.log.recs, 1)
	assert.Equal(t, models.TradeDryRun, f.log.recs[0].Status)
	assert.Equal(t, 1, f.state.Snapshot().TradesToday)
}

func TestRunOnceSkipsWhenPositionOpen(t *testing.T) {
	f := newLoopFixture(t, nil)
	f.ex.positions = []models.Position{{Symbol: "BTC-USDT-SWAP", Side: "long", Contracts: 0.05}}

	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "position_open", res.Skipped)
	require.NotNil(t, res.Signal)
	assert.Empty(t, f.ex.orders)
	assert.Empty(t, f.log.recs)
}

func TestRunOnceOrderFailureLeavesStateUntouched(t *testing.T) {
	f := newLoopFixture(t, nil)
	f.ex.orderErr = errBoom

	_, err := f.loop.RunOnce(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Empty(t, f.log.recs)
	assert.Empty(t, f.pub.recs)
	assert.Equal(t, 0, f.state.Snapshot().TradesToday)
}

func TestRunOncePositionsError(t *testing.T) {
	f := newLoopFixture(t, nil)
	f.ex.posErr = errBoom

	res, err := f.loop.RunOnce(context.Background())
	require.ErrorIs(t, err, errBoom)
	assert.Nil(t, res.Snapshot)
	assert.Equal(t, 0, f.ex.ohlcvCall)
}

func TestRunOnceSnapshotUnavailable(t *testing.T) {
	f := newLoopFixture(t, nil)
	f.ex.ohlcvErr = errBoom

	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "snapshot_unavailable", res.Skipped)
}

func TestRunOnceRiskRewardRejection(t *testing.T) {
	f := newLoopFixture(t, func(c *config.Config) { c.Risk.RiskRewardRatioMin = 3 })

	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "risk_reward", res.Skipped)
	assert.Equal(t, 1, f.sizer.Rejected())
	assert.Equal(t, 1, f.state.Snapshot().Stats.Rejected)
	assert.Empty(t, f.ex.orders)
}

func TestRunOnceTracksClosedPositions(t *testing.T) {
	f := newLoopFixture(t, nil)
	f.ex.series[drepo.TF15m] = seriesFrom("15m", flat(60, 100)...)
	f.ex.positions = []models.Position{{Symbol: "BTC-USDT-SWAP", Side: "long", Contracts: 0.05}}

	_, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)

	f.now = t0.Add(time.Minute)
	f.ex.positions = nil
	f.ex.closed = []models.ClosedPosition{
		{Side: "long", RealizedPnL: -5, ClosedAt: t0.Add(30 * time.Second)},
		{Side: "long", RealizedPnL: 7, ClosedAt: t0.Add(-time.Hour)}, // before the loop started
	}
	_, err = f.loop.RunOnce(context.Background())
	require.NoError(t, err)

	st := f.state.Snapshot()
	assert.Equal(t, 1, st.ConsecutiveLosses)
	assert.InDelta(t, -5.0, st.DailyPnL, 1e-9)
	assert.Empty(t, st.ActivePositions)
}

func TestRunOnceTracksPositionClosedBetweenTicks(t *testing.T) {
	f := newLoopFixture(t, nil)

	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Trade)

	// opened and stopped out before the next tick saw it
	f.now = t0.Add(time.Minute)
	f.ex.positions = nil
	f.ex.closed = []models.ClosedPosition{{Side: "long", RealizedPnL: -10, ClosedAt: t0.Add(30 * time.Second)}}
	_, err = f.loop.RunOnce(context.Background())
	require.NoError(t, err)

	st := f.state.Snapshot()
	assert.Equal(t, 1, st.ConsecutiveLosses)
	assert.InDelta(t, -10.0, st.DailyPnL, 1e-9)
}

func TestRunOnceDryRunSkipsOutcomeLookup(t *testing.T) {
	f := newLoopFixture(t, func(c *config.Config) { c.Trading.DryRun = true })

	_, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)

	f.now = t0.Add(time.Minute)
	f.ex.closed = []models.ClosedPosition{{Side: "long", RealizedPnL: -10, ClosedAt: t0.Add(30 * time.Second)}}
	_, err = f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, f.state.Snapshot().ConsecutiveLosses)
}

func TestRunOnceHonoursLossGate(t *testing.T) {
	f := newLoopFixture(t, nil)
	for i := 0; i < 4; i++ {
		f.state.RecordOutcome(-1)
	}
	res, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "no_signal", res.Skipped)
	assert.Empty(t, f.ex.orders)
}

type staticPrices map[string]models.Ticker

func (s staticPrices) LastTicker(symbol string) (models.Ticker, bool) {
	t, ok := s[symbol]
	return t, ok
}

func TestNextWaitPrefersStreamPrice(t *testing.T) {
	f := newLoopFixture(t, func(c *config.Config) { c.Interval.Enabled = true })
	f.ex.series[drepo.TF15m] = seriesFrom("15m", flat(60, 100)...)
	prices := staticPrices{}
	f.loop.prices = prices
	f.now = time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)

	_, err := f.loop.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, f.loop.nextWait())

	prices["BTC-USDT-SWAP"] = models.Ticker{Symbol: "BTC-USDT-SWAP", Last: 100.5}
	assert.Equal(t, 5*time.Second, f.loop.nextWait())
	assert.Equal(t, 5*time.Second, f.loop.NextInterval())
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newLoopFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- f.loop.Run(ctx) }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
