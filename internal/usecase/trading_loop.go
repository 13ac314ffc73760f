package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	domsvc "TrendPull/internal/domain/service"
	"TrendPull/pkg/config"
	applogger "TrendPull/pkg/logger"

	"github.com/google/uuid"
)

// PriceSource gives the latest streamed ticker for a symbol, when one is available.
type PriceSource interface {
	LastTicker(symbol string) (models.Ticker, bool)
}

// TickResult describes what one evaluation cycle did.
type TickResult struct {
	Snapshot *models.MarketSnapshot
	Signal   *models.TradeSignal
	Params   *models.TradeParameters
	Trade    *models.TradeRecord
	Skipped  string // why the cycle stopped early, empty when it ran to the end
}

// TradingLoop is the single-goroutine evaluation loop.
type TradingLoop struct {
	ex        drepo.ExchangeClient
	builder   domsvc.SnapshotBuilder
	evaluator domsvc.SignalEvaluator
	sizer     domsvc.PositionSizer
	state     *StateStore
	tradeLog  drepo.TradeLog
	publisher drepo.TradeEventPublisher
	prices    PriceSource
	scheduler *IntervalScheduler
	metrics   drepo.Metrics
	log       *applogger.Logger

	symbol     string
	currency   string
	marginMode string
	dryRun     bool

	now   func() time.Time
	newID func() string

	mu         sync.RWMutex
	last       *models.MarketSnapshot
	prevPrice  float64
	interval   time.Duration
	sinceClose time.Time
	// set after a live order until the position is seen open or its close is found
	awaitingClose bool
}

type LoopOption func(*TradingLoop)

// WithPublisher fans every recorded trade out as an event.
func WithPublisher(p drepo.TradeEventPublisher) LoopOption {
	return func(l *TradingLoop) { l.publisher = p }
}

// WithPriceSource prefers streamed prices for the price-change band.
func WithPriceSource(p PriceSource) LoopOption {
	return func(l *TradingLoop) { l.prices = p }
}

func WithLoopLogger(lg *applogger.Logger) LoopOption {
	return func(l *TradingLoop) {
		if lg != nil {
			l.log = lg
		}
	}
}

func WithLoopMetrics(m drepo.Metrics) LoopOption {
	return func(l *TradingLoop) {
		if m != nil {
			l.metrics = m
		}
	}
}

func WithClock(now func() time.Time) LoopOption {
	return func(l *TradingLoop) { l.now = now }
}

func NewTradingLoop(
	ex drepo.ExchangeClient,
	builder domsvc.SnapshotBuilder,
	evaluator domsvc.SignalEvaluator,
	sizer domsvc.PositionSizer,
	state *StateStore,
	tradeLog drepo.TradeLog,
	scheduler *IntervalScheduler,
	trading config.Trading,
	opts ...LoopOption,
) *TradingLoop {
	l := &TradingLoop{
		ex:         ex,
		builder:    builder,
		evaluator:  evaluator,
		sizer:      sizer,
		state:      state,
		tradeLog:   tradeLog,
		scheduler:  scheduler,
		metrics:    drepo.NopMetrics{},
		log:        applogger.Nop(),
		symbol:     trading.Symbol,
		currency:   "USDT",
		marginMode: trading.MarginMode,
		dryRun:     trading.DryRun,
		now:        time.Now,
		newID:      newClientOrderID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// newClientOrderID returns a 32 character alphanumeric id accepted as clOrdId.
func newClientOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// LastSnapshot returns the snapshot of the most recent successful cycle.
func (l *TradingLoop) LastSnapshot() (models.MarketSnapshot, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.last == nil {
		return models.MarketSnapshot{}, false
	}
	return *l.last, true
}

// DryRun reports whether orders are simulated.
func (l *TradingLoop) DryRun() bool { return l.dryRun }

// Symbol is the traded instrument.
func (l *TradingLoop) Symbol() string { return l.symbol }

// NextInterval is the wait chosen after the latest cycle, zero before the first.
func (l *TradingLoop) NextInterval() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.interval
}

// Run ticks until ctx is cancelled. Errors never stop the loop.
func (l *TradingLoop) Run(ctx context.Context) error {
	l.log.Info("trading loop started",
		applogger.String("symbol", l.symbol),
		applogger.Bool("dry_run", l.dryRun),
	)
	for {
		start := l.now()
		res, err := l.RunOnce(ctx)
		if err != nil {
			l.log.Error("tick failed", applogger.Error(err))
		} else if res.Skipped != "" {
			l.log.Debug("tick skipped", applogger.String("reason", res.Skipped))
		}
		l.metrics.RecordLatency("tick", l.now().Sub(start).Seconds())

		wait := l.nextWait()
		l.metrics.SetGauge("interval_seconds", wait.Seconds())

		select {
		case <-ctx.Done():
			l.log.Info("trading loop stopped")
			return nil
		case <-time.After(wait):
		}
	}
}

// RunOnce executes one evaluation cycle. Exchange failures are returned; "no trade"
// outcomes are reported through TickResult.Skipped.
func (l *TradingLoop) RunOnce(ctx context.Context) (TickResult, error) {
	var res TickResult
	now := l.now()
	if l.state.RollDay(now) {
		l.log.Info("new trading day", applogger.String("date", l.state.Snapshot().Date))
	}
	if l.sinceClose.IsZero() {
		l.sinceClose = now
	}

	prev := l.state.Snapshot().ActivePositions
	positions, err := l.ex.FetchPositions(ctx, l.symbol)
	if err != nil {
		l.metrics.RecordError("positions")
		return res, fmt.Errorf("fetch positions: %w", err)
	}
	if len(prev) > len(positions) || (l.awaitingClose && len(positions) == 0) {
		if n := l.trackOutcomes(ctx); n > 0 {
			l.awaitingClose = false
		}
	}
	if len(positions) > 0 {
		l.awaitingClose = false
	}
	l.state.SetPositions(positions)
	l.state.Touch(now)
	l.metrics.SetGauge("open_positions", float64(len(positions)))

	snap, err := l.builder.Build(ctx)
	if err != nil {
		l.metrics.RecordError("snapshot")
		l.log.Warn("snapshot unavailable", applogger.Error(err))
		res.Skipped = "snapshot_unavailable"
		return res, nil
	}
	res.Snapshot = &snap
	l.mu.Lock()
	l.last = &snap
	l.mu.Unlock()
	l.metrics.RecordLastPrice(l.symbol, snap.Price)
	l.metrics.SetGauge("volatility", snap.Volatility)

	st := l.state.Snapshot()
	l.metrics.SetGauge("trades_today", float64(st.TradesToday))
	l.metrics.SetGauge("loss_streak", float64(st.ConsecutiveLosses))

	sig, ok := l.evaluator.Evaluate(snap, st)
	if !ok {
		res.Skipped = "no_signal"
		return res, nil
	}
	res.Signal = &sig
	l.state.RecordSignal(sig.Strategy)
	l.metrics.RecordSignal(string(sig.Strategy), string(sig.Direction))
	l.log.Info("signal",
		applogger.String("strategy", string(sig.Strategy)),
		applogger.String("direction", string(sig.Direction)),
		applogger.String("reason", sig.Reason),
		applogger.Float64("confidence", sig.Confidence),
	)

	if st.HasOpenPosition() {
		l.metrics.RecordRejection("position_open")
		res.Skipped = "position_open"
		return res, nil
	}

	bal, err := l.ex.FetchBalance(ctx, l.currency)
	if err != nil {
		l.metrics.RecordError("balance")
		return res, fmt.Errorf("fetch balance: %w", err)
	}
	l.metrics.SetGauge("balance", bal.Total)

	params, err := l.sizer.Size(sig, snap, bal.Total)
	if errors.Is(err, ErrRiskRewardTooLow) {
		l.state.RecordRejection()
		l.metrics.RecordRejection("risk_reward")
		l.log.Info("signal rejected", applogger.Error(err))
		res.Skipped = "risk_reward"
		return res, nil
	}
	if err != nil {
		l.metrics.RecordError("sizing")
		return res, fmt.Errorf("size position: %w", err)
	}
	res.Params = &params

	rec, err := l.execute(ctx, now, sig, params)
	if err != nil {
		return res, err
	}
	res.Trade = &rec
	return res, nil
}

// execute places the order and records the trade. Nothing is recorded when the order fails.
func (l *TradingLoop) execute(ctx context.Context, now time.Time, sig models.TradeSignal, params models.TradeParameters) (models.TradeRecord, error) {
	clientID := l.newID()
	status := models.TradeOpen
	var order models.Order

	if l.dryRun {
		status = models.TradeDryRun
		order = models.Order{ID: "dry-" + clientID, ClientOrderID: clientID, Symbol: l.symbol, Side: sig.Direction.OrderSide(), Contracts: params.Contracts, State: "simulated", CreatedAt: now}
	} else {
		if err := l.ex.SetLeverage(ctx, l.symbol, params.Leverage, l.marginMode); err != nil {
			l.metrics.RecordError("leverage")
			return models.TradeRecord{}, fmt.Errorf("set leverage: %w", err)
		}
		o, err := l.ex.PlaceMarketOrder(ctx, l.symbol, sig.Direction.OrderSide(), params.Contracts, clientID)
		if err != nil {
			l.metrics.RecordError("order")
			return models.TradeRecord{}, fmt.Errorf("place order: %w", err)
		}
		order = o
		l.awaitingClose = true
	}

	rec := models.NewTradeRecord(now, l.symbol, sig, params, order, status)
	if err := l.tradeLog.Append(ctx, rec); err != nil {
		l.metrics.RecordError("trade_log")
		l.log.Error("trade log append failed", applogger.Error(err), applogger.String("order_id", rec.OrderID))
	}
	if l.publisher != nil {
		if err := l.publisher.PublishTrade(ctx, rec); err != nil {
			l.metrics.RecordError("trade_publish")
			l.log.Warn("trade event publish failed", applogger.Error(err))
		}
	}
	l.state.RecordTrade()
	l.metrics.RecordTrade(string(sig.Direction), l.dryRun)
	if err := l.state.Save(ctx); err != nil {
		l.log.Warn("state save failed", applogger.Error(err))
	}

	l.log.Info("trade opened",
		applogger.String("order_id", rec.OrderID),
		applogger.String("direction", string(rec.Direction)),
		applogger.Float64("contracts", rec.Contracts),
		applogger.Float64("entry_price", rec.EntryPrice),
		applogger.Float64("stop_loss", rec.StopLossPrice),
		applogger.Float64("take_profit", rec.TakeProfitPrice),
		applogger.Int("leverage", rec.Leverage),
		applogger.String("status", string(rec.Status)),
	)
	return rec, nil
}

// trackOutcomes feeds realized P&L of positions closed since the last check into the state
// and reports how many were recorded.
func (l *TradingLoop) trackOutcomes(ctx context.Context) int {
	closed, err := l.ex.FetchClosedPositions(ctx, l.symbol, 10)
	if err != nil {
		l.metrics.RecordError("closed_positions")
		l.log.Warn("closed positions unavailable", applogger.Error(err))
		return 0
	}
	n := 0
	latest := l.sinceClose
	for _, cp := range closed {
		if !cp.ClosedAt.After(l.sinceClose) {
			continue
		}
		l.state.RecordOutcome(cp.RealizedPnL)
		n++
		l.log.Info("position closed",
			applogger.String("side", cp.Side),
			applogger.Float64("realized_pnl", cp.RealizedPnL),
		)
		if cp.ClosedAt.After(latest) {
			latest = cp.ClosedAt
		}
	}
	l.sinceClose = latest
	if n == 0 {
		return 0
	}
	if err := l.state.Save(ctx); err != nil {
		l.log.Warn("state save failed", applogger.Error(err))
	}
	return n
}

func (l *TradingLoop) nextWait() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	in := IntervalInput{Now: l.now(), HasPosition: l.state.Snapshot().HasOpenPosition()}
	price := 0.0
	if l.last != nil {
		in.Volatility = l.last.Volatility
		price = l.last.Price
	}
	if l.prices != nil {
		if t, ok := l.prices.LastTicker(l.symbol); ok && t.Last > 0 {
			price = t.Last
		}
	}
	if l.prevPrice > 0 && price > 0 {
		in.PriceChange = (price - l.prevPrice) / l.prevPrice
	}
	if price > 0 {
		l.prevPrice = price
	}
	l.interval = l.scheduler.Next(in)
	return l.interval
}
