package usecase

import (
	"fmt"

	"TrendPull/internal/domain/models"
	"TrendPull/pkg/config"
)

// SignalEvaluator applies the gates and the fixed-priority strategy list.
// It holds only configuration, so Evaluate is a pure function of its arguments.
type SignalEvaluator struct {
	strat config.Strategy
	risk  config.Risk
}

func NewSignalEvaluator(strat config.Strategy, risk config.Risk) *SignalEvaluator {
	return &SignalEvaluator{strat: strat, risk: risk}
}

// Evaluate returns the first matching signal, or false when gated or nothing fires.
func (e *SignalEvaluator) Evaluate(snap models.MarketSnapshot, st models.TradingState) (models.TradeSignal, bool) {
	if _, gated := e.Gated(st); gated {
		return models.TradeSignal{}, false
	}

	if sig, ok := e.breakout(snap); ok {
		return sig, true
	}
	if sig, ok := e.momentum(snap); ok {
		return sig, true
	}
	if sig, ok := e.trendFollowing(snap); ok {
		return sig, true
	}
	return e.meanReversion(snap)
}

// Gated reports which gate, if any, suppresses evaluation for st.
func (e *SignalEvaluator) Gated(st models.TradingState) (string, bool) {
	switch {
	case st.ConsecutiveLosses >= e.risk.ConsecutiveLossLimit:
		return "consecutive_loss_limit", true
	case st.TradesToday >= e.risk.MaxDailyTrades:
		return "max_daily_trades", true
	default:
		return "", false
	}
}

func (e *SignalEvaluator) breakout(snap models.MarketSnapshot) (models.TradeSignal, bool) {
	b := snap.Breakout
	if b == nil {
		return models.TradeSignal{}, false
	}
	verb := "above high"
	if b.Direction == models.Short {
		verb = "below low"
	}
	return models.TradeSignal{
		Direction:  b.Direction,
		Strategy:   models.StrategyBreakout,
		Reason:     fmt.Sprintf("breakout: price %.2f %s %.2f by %.2f%%", snap.Price, verb, b.Level, b.Percent),
		Confidence: e.strat.Breakout.Confidence,
	}, true
}

func (e *SignalEvaluator) momentum(snap models.MarketSnapshot) (models.TradeSignal, bool) {
	m := snap.Momentum
	if m == nil {
		return models.TradeSignal{}, false
	}
	return models.TradeSignal{
		Direction:  m.Direction,
		Strategy:   models.StrategyMomentum,
		Reason:     fmt.Sprintf("momentum: %+.2f%% over %d bars (threshold %.2f%%)", m.Percent, e.strat.Momentum.Lookback, e.strat.Momentum.Threshold*100),
		Confidence: e.strat.Momentum.Confidence,
	}, true
}

func (e *SignalEvaluator) trendFollowing(snap models.MarketSnapshot) (models.TradeSignal, bool) {
	tf := e.strat.TrendFollowing
	switch {
	case snap.Trend == models.TrendBullish && snap.PricePosition < tf.LongSupportThreshold:
		return models.TradeSignal{
			Direction:  models.Long,
			Strategy:   models.StrategyTrendFollowing,
			Reason:     fmt.Sprintf("trend-following: bullish, price position %.3f < %.2f", snap.PricePosition, tf.LongSupportThreshold),
			Confidence: tf.Confidence,
		}, true
	case snap.Trend == models.TrendBearish && snap.PricePosition > tf.ShortResistanceThreshold:
		return models.TradeSignal{
			Direction:  models.Short,
			Strategy:   models.StrategyTrendFollowing,
			Reason:     fmt.Sprintf("trend-following: bearish, price position %.3f > %.2f", snap.PricePosition, tf.ShortResistanceThreshold),
			Confidence: tf.Confidence,
		}, true
	}
	return models.TradeSignal{}, false
}

func (e *SignalEvaluator) meanReversion(snap models.MarketSnapshot) (models.TradeSignal, bool) {
	mr := e.strat.MeanReversion
	if !mr.Enabled || snap.Trend != models.TrendNeutral || snap.Volatility <= mr.VolatilityThreshold {
		return models.TradeSignal{}, false
	}
	switch {
	case snap.PricePosition < mr.LongSupportThreshold:
		return models.TradeSignal{
			Direction:  models.Long,
			Strategy:   models.StrategyMeanReversion,
			Reason:     fmt.Sprintf("mean-reversion: volatility %.3f, price position %.3f < %.2f", snap.Volatility, snap.PricePosition, mr.LongSupportThreshold),
			Confidence: mr.Confidence,
		}, true
	case snap.PricePosition > mr.ShortResistanceThreshold:
		return models.TradeSignal{
			Direction:  models.Short,
			Strategy:   models.StrategyMeanReversion,
			Reason:     fmt.Sprintf("mean-reversion: volatility %.3f, price position %.3f > %.2f", snap.Volatility, snap.PricePosition, mr.ShortResistanceThreshold),
			Confidence: mr.Confidence,
		}, true
	}
	return models.TradeSignal{}, false
}
