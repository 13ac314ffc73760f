package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/pkg/config"
)

var t0 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// seriesFrom builds a 15m series ending at t0 with the given closes.
func seriesFrom(tf string, closes ...float64) models.CandleSeries {
	step := drepo.NormalizeTimeframe(tf).Duration()
	s := models.CandleSeries{Symbol: "BTC-USDT-SWAP", Timeframe: tf}
	start := t0.Add(-time.Duration(len(closes)-1) * step)
	for i, c := range closes {
		s.Candles = append(s.Candles, models.Candle{
			Time: start.Add(time.Duration(i) * step), Open: c, High: c, Low: c, Close: c, Volume: 1,
		})
	}
	return s
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func testConfig() *config.Config {
	c := config.Default()
	c.Trading.FetchTimeout = time.Second
	return c
}

type fakeExchange struct {
	mu        sync.Mutex
	series    map[drepo.Timeframe]models.CandleSeries
	ohlcvErr  error
	positions []models.Position
	posErr    error
	closed    []models.ClosedPosition
	balance   models.Balance
	orderErr  error
	orders    []string // side per order
	leverage  []int
	ohlcvCall int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		series:  make(map[drepo.Timeframe]models.CandleSeries),
		balance: models.Balance{Currency: "USDT", Total: 1000, Free: 1000},
	}
}

func (f *fakeExchange) FetchOHLCV(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) (models.CandleSeries, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ohlcvCall++
	if f.ohlcvErr != nil {
		return models.CandleSeries{}, f.ohlcvErr
	}
	s, ok := f.series[tf]
	if !ok {
		return models.CandleSeries{}, drepo.ErrNotFound
	}
	return s, nil
}

func (f *fakeExchange) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	return models.Ticker{Symbol: symbol, Last: 100, Time: t0}, nil
}

func (f *fakeExchange) FetchBalance(ctx context.Context, currency string) (models.Balance, error) {
	return f.balance, nil
}

func (f *fakeExchange) FetchPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Position(nil), f.positions...), f.posErr
}

func (f *fakeExchange) SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leverage = append(f.leverage, leverage)
	return nil
}

func (f *fakeExchange) PlaceMarketOrder(ctx context.Context, symbol, side string, contracts float64, clientOrderID string) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.orderErr != nil {
		return models.Order{}, f.orderErr
	}
	f.orders = append(f.orders, side)
	return models.Order{ID: "ord-1", ClientOrderID: clientOrderID, Symbol: symbol, Side: side, Contracts: contracts}, nil
}

func (f *fakeExchange) FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	return nil, nil
}

func (f *fakeExchange) FetchClosedPositions(ctx context.Context, symbol string, limit int) ([]models.ClosedPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, nil
}

type memTradeLog struct {
	mu   sync.Mutex
	recs []models.TradeRecord
}

func (m *memTradeLog) Append(_ context.Context, rec models.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memTradeLog) Recent(_ context.Context, n int) ([]models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.recs) {
		n = len(m.recs)
	}
	return append([]models.TradeRecord(nil), m.recs[len(m.recs)-n:]...), nil
}

func (m *memTradeLog) Close() error { return nil }

type memPublisher struct {
	recs []models.TradeRecord
	err  error
}

func (p *memPublisher) PublishTrade(_ context.Context, rec models.TradeRecord) error {
	if p.err != nil {
		return p.err
	}
	p.recs = append(p.recs, rec)
	return nil
}

func (p *memPublisher) Close() error { return nil }

type memStatePersist struct {
	saved map[string]models.TradingState
}

func (m *memStatePersist) Load(_ context.Context, date string) (models.TradingState, error) {
	st, ok := m.saved[date]
	if !ok {
		return models.TradingState{}, drepo.ErrNotFound
	}
	return st, nil
}

func (m *memStatePersist) Save(_ context.Context, st models.TradingState) error {
	if m.saved == nil {
		m.saved = make(map[string]models.TradingState)
	}
	m.saved[st.Date] = st
	return nil
}

var errBoom = errors.New("boom")
