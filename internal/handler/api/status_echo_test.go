package api

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    models "TrendPull/internal/domain/models"
    domrepo "TrendPull/internal/domain/repository"
    "TrendPull/internal/usecase"
    "TrendPull/pkg/cache"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

type fakeLoop struct {
    snap *models.MarketSnapshot
}

func (f fakeLoop) LastSnapshot() (models.MarketSnapshot, bool) {
    if f.snap == nil {
        return models.MarketSnapshot{}, false
    }
    return *f.snap, true
}
func (fakeLoop) DryRun() bool                { return true }
func (fakeLoop) Symbol() string              { return "BTC-USDT-SWAP" }
func (fakeLoop) NextInterval() time.Duration { return 15 * time.Second }

type fakeState struct{ st models.TradingState }

func (f fakeState) Snapshot() models.TradingState { return f.st }

type fakeBuilder struct {
    calls int
    price float64
    err   error
}

func (b *fakeBuilder) Build(context.Context) (models.MarketSnapshot, error) {
    b.calls++
    if b.err != nil {
        return models.MarketSnapshot{}, b.err
    }
    return models.MarketSnapshot{Symbol: "BTC-USDT-SWAP", Price: b.price}, nil
}

type fakeRejections int

func (f fakeRejections) Rejected() int { return int(f) }

type fakeExchange struct {
    domrepo.ExchangeClient
    positions []models.Position
    err       error
}

func (f fakeExchange) FetchPositions(context.Context, string) ([]models.Position, error) {
    return f.positions, f.err
}

func (f fakeExchange) FetchBalance(_ context.Context, ccy string) (models.Balance, error) {
    if f.err != nil {
        return models.Balance{}, f.err
    }
    return models.Balance{Currency: ccy, Total: 1000, Free: 900}, nil
}

type fakeTrades struct{ rows []models.TradeRecord }

func (f fakeTrades) Append(context.Context, models.TradeRecord) error { return nil }
func (f fakeTrades) Close() error                                     { return nil }
func (f fakeTrades) Recent(_ context.Context, n int) ([]models.TradeRecord, error) {
    if len(f.rows) > n {
        return f.rows[len(f.rows)-n:], nil
    }
    return f.rows, nil
}

type envelope struct {
    Status int             `json:"status"`
    Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *StatusEchoHandler, path string) (int, envelope) {
    t.Helper()
    e := echo.New()
    h.RegisterRoutes(e)
    req := httptest.NewRequest(http.MethodGet, path, nil)
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    var env envelope
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
    return rec.Code, env
}

func newHandler(ex domrepo.ExchangeClient, b *fakeBuilder, loop fakeLoop, opts ...StatusOption) *StatusEchoHandler {
    st := models.TradingState{Date: "2024-03-01", TradesToday: 2}
    rows := make([]models.TradeRecord, 0, 60)
    for i := 0; i < 60; i++ {
        rows = append(rows, models.TradeRecord{OrderID: fmt.Sprint(i)})
    }
    return NewStatusEchoHandler(nil, loop, fakeState{st}, b, fakeRejections(3), ex, fakeTrades{rows}, opts...)
}

func TestStatus(t *testing.T) {
    h := newHandler(fakeExchange{}, &fakeBuilder{}, fakeLoop{})
    code, env := serve(t, h, "/api/status")
    require.Equal(t, http.StatusOK, code)

    var res models.StatusResponse
    require.NoError(t, json.Unmarshal(env.Data, &res))
    assert.Equal(t, "BTC-USDT-SWAP", res.Symbol)
    assert.True(t, res.DryRun)
    assert.Equal(t, "15s", res.Interval)
    assert.Equal(t, 3, res.Rejected)
    assert.Equal(t, 2, res.State.TradesToday)
}

func TestSnapshotPrefersLoopThenCache(t *testing.T) {
    mem := cache.NewMemoryCache()
    defer mem.Close()
    b := &fakeBuilder{price: 101}
    h := newHandler(fakeExchange{}, b, fakeLoop{snap: &models.MarketSnapshot{Price: 99}}, WithSnapshotCache(mem, time.Minute))

    _, env := serve(t, h, "/api/snapshot")
    var snap models.MarketSnapshot
    require.NoError(t, json.Unmarshal(env.Data, &snap))
    assert.Equal(t, 99.0, snap.Price)
    assert.Equal(t, 0, b.calls)

    _, env = serve(t, h, "/api/snapshot?refresh=true")
    require.NoError(t, json.Unmarshal(env.Data, &snap))
    assert.Equal(t, 101.0, snap.Price)
    assert.Equal(t, 1, b.calls)

    // the refreshed build is now cached
    b.price = 105
    _, env = serve(t, h, "/api/snapshot")
    require.NoError(t, json.Unmarshal(env.Data, &snap))
    assert.Equal(t, 101.0, snap.Price)
    assert.Equal(t, 1, b.calls)
}

func TestSnapshotUnavailable(t *testing.T) {
    b := &fakeBuilder{err: fmt.Errorf("build: %w", usecase.ErrSnapshotUnavailable)}
    h := newHandler(fakeExchange{}, b, fakeLoop{})
    code, _ := serve(t, h, "/api/snapshot")
    assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestTradesLimit(t *testing.T) {
    h := newHandler(fakeExchange{}, &fakeBuilder{}, fakeLoop{})

    code, env := serve(t, h, "/api/trades")
    require.Equal(t, http.StatusOK, code)
    var list struct {
        Rows  []models.TradeRecord `json:"rows"`
        Total int64                `json:"total"`
    }
    require.NoError(t, json.Unmarshal(env.Data, &list))
    assert.Len(t, list.Rows, 50)
    assert.Equal(t, "59", list.Rows[49].OrderID)

    _, env = serve(t, h, "/api/trades?limit=5")
    require.NoError(t, json.Unmarshal(env.Data, &list))
    assert.Equal(t, int64(5), list.Total)

    code, _ = serve(t, h, "/api/trades?limit=5000")
    assert.Equal(t, http.StatusBadRequest, code)
}

func TestPositionsAndBalance(t *testing.T) {
    ex := fakeExchange{positions: []models.Position{{Symbol: "BTC-USDT-SWAP", Side: "long", Contracts: 0.05}}}
    h := newHandler(ex, &fakeBuilder{}, fakeLoop{})

    code, env := serve(t, h, "/api/positions")
    require.Equal(t, http.StatusOK, code)
    assert.Contains(t, string(env.Data), `"side":"long"`)

    code, env = serve(t, h, "/api/balance")
    require.Equal(t, http.StatusOK, code)
    var bal models.Balance
    require.NoError(t, json.Unmarshal(env.Data, &bal))
    assert.Equal(t, 900.0, bal.Free)
}

func TestExchangeFailureIsBadGateway(t *testing.T) {
    ex := fakeExchange{err: fmt.Errorf("positions: %w", domrepo.ErrExchange)}
    h := newHandler(ex, &fakeBuilder{}, fakeLoop{})
    code, _ := serve(t, h, "/api/positions")
    assert.Equal(t, http.StatusBadGateway, code)
}

func TestUnexpectedFailureIsInternal(t *testing.T) {
    ex := fakeExchange{err: errors.New("decode balance")}
    h := newHandler(ex, &fakeBuilder{}, fakeLoop{})
    code, env := serve(t, h, "/api/balance")
    assert.Equal(t, http.StatusInternalServerError, code)
    assert.Contains(t, string(env.Data), "ERR_INTERNAL")
    assert.Contains(t, string(env.Data), "balance failed")
}

func TestHealth(t *testing.T) {
    h := newHandler(fakeExchange{}, &fakeBuilder{}, fakeLoop{},
        WithHealthCheck("cache", func(context.Context) error { return nil }))
    code, env := serve(t, h, "/health")
    assert.Equal(t, http.StatusOK, code)
    assert.Contains(t, string(env.Data), `"cache":"ok"`)

    h = newHandler(fakeExchange{}, &fakeBuilder{}, fakeLoop{},
        WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("down") }))
    code, _ = serve(t, h, "/health")
    assert.Equal(t, http.StatusServiceUnavailable, code)
}
