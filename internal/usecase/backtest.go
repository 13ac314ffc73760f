package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"

	"TrendPull/internal/domain/models"
	"TrendPull/pkg/config"
	"TrendPull/pkg/util"
)

// Backtester replays a candle series through the live builder, evaluator and sizer.
type Backtester struct {
	builder   *SnapshotBuilder
	evaluator *SignalEvaluator
	sizer     *PositionSizer
	cfg       config.Backtest
	trading   config.Trading
	progress  func(done, total int)
}

type openTrade struct {
	sig    models.TradeSignal
	params models.TradeParameters
	bar    int
	trade  models.BacktestTrade
}

// NewBacktester builds its own evaluator and sizer so rejection counts are per run.
func NewBacktester(cfg *config.Config) *Backtester {
	trading := cfg.Trading
	strat := cfg.Strategy
	// replay only has the primary series
	strat.Momentum.Enabled = false
	return &Backtester{
		builder:   NewSnapshotBuilder(nil, trading, strat, cfg.Risk),
		evaluator: NewSignalEvaluator(strat, cfg.Risk),
		sizer:     NewPositionSizer(cfg.Risk, trading),
		cfg:       cfg.Backtest,
		trading:   trading,
	}
}

// OnProgress registers a callback invoked once per replayed bar.
func (b *Backtester) OnProgress(fn func(done, total int)) { b.progress = fn }

// Run replays series bar by bar. Entries fill at the signal bar's close; exits trigger on
// later bars whose range touches the stop or target, the stop winning when both do.
func (b *Backtester) Run(ctx context.Context, series models.CandleSeries) (models.BacktestResult, error) {
	minBars := b.builder.MinBars()
	if err := series.Validate(minBars); err != nil {
		return models.BacktestResult{}, fmt.Errorf("backtest: %w", err)
	}
	candles := series.Candles
	window := b.trading.PrimaryLimit
	if window < minBars {
		window = minBars
	}

	res := models.BacktestResult{
		InitialBalance: b.cfg.InitialBalance,
		PerStrategy:    make(map[models.Strategy]int),
		Bars:           len(candles),
		From:           candles[0].Time,
		To:             candles[len(candles)-1].Time,
	}
	balance := b.cfg.InitialBalance
	peak := balance
	grossProfit, grossLoss := 0.0, 0.0
	var st models.TradingState
	var open *openTrade
	rejectedBefore := b.sizer.Rejected()

	closeTrade := func(i int, exit float64, reason string) {
		t := open.trade
		t.ExitTime = candles[i].Time
		t.ExitPrice = exit
		t.ExitReason = reason
		notional := t.Contracts * b.trading.ContractMultiplier
		fees := (t.EntryPrice + exit) * notional * b.cfg.FeeRate
		t.PnL = open.sig.Direction.Sign()*(exit-t.EntryPrice)*notional - fees
		balance += t.PnL
		st.DailyPnL += t.PnL
		if t.PnL > 0 {
			res.Wins++
			grossProfit += t.PnL
			st.ConsecutiveWins++
			st.ConsecutiveLosses = 0
		} else {
			res.Losses++
			grossLoss -= t.PnL
			st.ConsecutiveLosses++
			st.ConsecutiveWins = 0
		}
		res.Trades = append(res.Trades, t)
		open = nil
		if balance > peak {
			peak = balance
		}
		if peak > 0 {
			res.MaxDrawdown = math.Max(res.MaxDrawdown, (peak-balance)/peak*100)
		}
	}

	total := len(candles) - (minBars - 1)
	for i := minBars - 1; i < len(candles); i++ {
		if err := ctx.Err(); err != nil {
			return models.BacktestResult{}, err
		}
		bar := candles[i]

		if day := util.DayKey(bar.Time); day != st.Date {
			st = models.TradingState{Date: day}
		}

		if open != nil && i > open.bar {
			if exit, reason, hit := exitFor(open, bar); hit {
				closeTrade(i, exit, reason)
			}
		}

		if open == nil && balance > 0 {
			start := i + 1 - window
			if start < 0 {
				start = 0
			}
			view := series
			view.Candles = candles[start : i+1]
			snap, err := b.builder.BuildFrom(view, nil)
			if err != nil && !errors.Is(err, ErrSnapshotUnavailable) {
				return models.BacktestResult{}, err
			}
			if err == nil {
				if sig, ok := b.evaluator.Evaluate(snap, st); ok {
					params, err := b.sizer.Size(sig, snap, balance)
					if err == nil {
						open = &openTrade{sig: sig, params: params, bar: i, trade: models.BacktestTrade{
							Strategy:   sig.Strategy,
							Direction:  sig.Direction,
							EntryTime:  bar.Time,
							EntryPrice: params.EntryPrice,
							Contracts:  params.Contracts,
						}}
						st.TradesToday++
						res.PerStrategy[sig.Strategy]++
					} else if !errors.Is(err, ErrRiskRewardTooLow) {
						return models.BacktestResult{}, err
					}
				}
			}
		}

		if b.progress != nil {
			b.progress(i-(minBars-1)+1, total)
		}
	}

	if open != nil {
		closeTrade(len(candles)-1, candles[len(candles)-1].Close, "end_of_data")
	}

	res.FinalBalance = balance
	res.Rejected = b.sizer.Rejected() - rejectedBefore
	if res.InitialBalance > 0 {
		res.TotalReturn = (balance - res.InitialBalance) / res.InitialBalance * 100
	}
	if n := len(res.Trades); n > 0 {
		res.WinRate = float64(res.Wins) / float64(n) * 100
	}
	if grossLoss > 0 {
		res.ProfitFactor = grossProfit / grossLoss
	}
	return res, nil
}

func exitFor(o *openTrade, bar models.Candle) (float64, string, bool) {
	sl, tp := o.params.StopLossPrice, o.params.TakeProfitPrice
	if o.sig.Direction == models.Long {
		switch {
		case bar.Low <= sl:
			return sl, "stop_loss", true
		case bar.High >= tp:
			return tp, "take_profit", true
		}
		return 0, "", false
	}
	switch {
	case bar.High >= sl:
		return sl, "stop_loss", true
	case bar.Low <= tp:
		return tp, "take_profit", true
	}
	return 0, "", false
}
