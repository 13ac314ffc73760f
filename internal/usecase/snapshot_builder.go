package usecase

import (
	"context"
	"errors"
	"fmt"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/internal/services/features"
	"TrendPull/pkg/config"
	applogger "TrendPull/pkg/logger"
)

// ErrSnapshotUnavailable means the cycle has no usable market data and must be skipped.
var ErrSnapshotUnavailable = errors.New("snapshot unavailable")

// SnapshotBuilder reduces recent candles to a MarketSnapshot.
type SnapshotBuilder struct {
	ex      drepo.ExchangeClient
	trading config.Trading
	strat   config.Strategy
	risk    config.Risk
	archive drepo.CandleStore
	log     *applogger.Logger
}

type SnapshotOption func(*SnapshotBuilder)

// WithCandleArchive upserts every fetched primary series into store.
func WithCandleArchive(store drepo.CandleStore) SnapshotOption {
	return func(b *SnapshotBuilder) { b.archive = store }
}

func WithSnapshotLogger(l *applogger.Logger) SnapshotOption {
	return func(b *SnapshotBuilder) {
		if l != nil {
			b.log = l
		}
	}
}

func NewSnapshotBuilder(ex drepo.ExchangeClient, trading config.Trading, strat config.Strategy, risk config.Risk, opts ...SnapshotOption) *SnapshotBuilder {
	b := &SnapshotBuilder{
		ex:      ex,
		trading: trading,
		strat:   strat,
		risk:    risk,
		log:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// MinBars is the shortest primary series a snapshot can be built from.
func (b *SnapshotBuilder) MinBars() int {
	n := b.strat.SMALong
	if b.strat.SupportWindow > n {
		n = b.strat.SupportWindow
	}
	if b.strat.Breakout.Enabled && b.strat.Breakout.Period > n {
		n = b.strat.Breakout.Period
	}
	return n + 1
}

// Build fetches the primary and momentum series concurrently and computes the snapshot.
func (b *SnapshotBuilder) Build(ctx context.Context) (models.MarketSnapshot, error) {
	if b.trading.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.trading.FetchTimeout)
		defer cancel()
	}

	type result struct {
		series models.CandleSeries
		err    error
	}
	fetch := func(tf string, limit int) <-chan result {
		ch := make(chan result, 1)
		go func() {
			s, err := b.ex.FetchOHLCV(ctx, b.trading.Symbol, drepo.NormalizeTimeframe(tf), limit)
			ch <- result{series: s, err: err}
		}()
		return ch
	}

	primaryCh := fetch(b.trading.PrimaryTimeframe, b.trading.PrimaryLimit)
	var momentumCh <-chan result
	if b.strat.Momentum.Enabled {
		momentumCh = fetch(b.trading.MomentumTimeframe, b.trading.MomentumLimit)
	}

	primary := <-primaryCh
	if primary.err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: primary candles: %w", ErrSnapshotUnavailable, primary.err)
	}
	var momentum *models.CandleSeries
	if momentumCh != nil {
		m := <-momentumCh
		if m.err != nil {
			return models.MarketSnapshot{}, fmt.Errorf("%w: momentum candles: %w", ErrSnapshotUnavailable, m.err)
		}
		momentum = &m.series
	}

	snap, err := b.BuildFrom(primary.series, momentum)
	if err != nil {
		return models.MarketSnapshot{}, err
	}

	if b.archive != nil {
		if err := b.archive.SaveCandles(ctx, primary.series); err != nil {
			b.log.Warn("candle archive failed", applogger.Error(err))
		}
	}
	return snap, nil
}

// BuildFrom computes a snapshot from already fetched series. momentum may be nil.
func (b *SnapshotBuilder) BuildFrom(primary models.CandleSeries, momentum *models.CandleSeries) (models.MarketSnapshot, error) {
	if err := primary.Validate(b.MinBars()); err != nil {
		return models.MarketSnapshot{}, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	closes := primary.Closes()
	price := closes[len(closes)-1]

	smaShort, _ := features.SMA(closes, b.strat.SMAShort)
	smaLong, _ := features.SMA(closes, b.strat.SMALong)
	support, resistance := features.MinMax(features.Tail(closes, b.strat.SupportWindow))
	tf := drepo.NormalizeTimeframe(primary.Timeframe)
	vol := features.AnnualizedVolatility(closes, tf.PeriodsPerYear())

	snap := models.MarketSnapshot{
		Timestamp:     primary.Last().Time,
		Symbol:        primary.Symbol,
		Price:         price,
		SMAShort:      smaShort,
		SMALong:       smaLong,
		Support:       support,
		Resistance:    resistance,
		PricePosition: features.PricePosition(price, support, resistance),
		Volatility:    vol,
		VolTier:       ClassifyVolatility(vol, b.risk),
		Trend:         features.Trend(price, smaShort, smaLong),
	}
	if snap.Symbol == "" {
		snap.Symbol = b.trading.Symbol
	}

	if b.strat.Breakout.Enabled {
		snap.Breakout = features.Breakout(closes, b.strat.Breakout.Period, b.strat.Breakout.Multiplier)
	}
	if b.strat.Momentum.Enabled && momentum != nil {
		if err := momentum.Validate(b.strat.Momentum.Lookback); err != nil {
			return models.MarketSnapshot{}, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
		}
		snap.Momentum = features.Momentum(momentum.Closes(), price, b.strat.Momentum.Lookback, b.strat.Momentum.Threshold)
	}

	macd, sig, hist := features.MACD(closes, 12, 26, 9)
	upper, middle, lower := features.Bollinger(closes, 20, 2)
	snap.Indicators = models.Indicators{
		RSI:           features.RSI(closes, 14),
		MACD:          macd,
		MACDSignal:    sig,
		MACDHistogram: hist,
		BollUpper:     upper,
		BollMiddle:    middle,
		BollLower:     lower,
		ATR:           features.ATR(primary.Highs(), primary.Lows(), closes, 14),
	}
	return snap, nil
}

// ClassifyVolatility maps annualized volatility to a tier using the configured thresholds.
func ClassifyVolatility(vol float64, risk config.Risk) models.VolTier {
	switch {
	case vol < risk.Tiers.Low.Threshold:
		return models.VolLow
	case vol < risk.Tiers.Medium.Threshold:
		return models.VolMedium
	default:
		return models.VolHigh
	}
}
