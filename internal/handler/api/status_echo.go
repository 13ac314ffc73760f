package api

import (
    "context"
    "errors"
    "net/http"
    "time"

    models "TrendPull/internal/domain/models"
    domrepo "TrendPull/internal/domain/repository"
    domsvc "TrendPull/internal/domain/service"
    "TrendPull/internal/service/metrics"
    "TrendPull/internal/usecase"
    "TrendPull/pkg/cache"
    xhttp "TrendPull/pkg/http"
    xlogger "TrendPull/pkg/logger"

    "github.com/labstack/echo/v4"
)

// LoopView is the read side of the trading loop.
type LoopView interface {
    LastSnapshot() (models.MarketSnapshot, bool)
    DryRun() bool
    Symbol() string
    NextInterval() time.Duration
}

// StateView exposes a copy of the day state.
type StateView interface {
    Snapshot() models.TradingState
}

// RejectionCounter reports how many signals the sizer refused.
type RejectionCounter interface {
    Rejected() int
}

// HealthCheck returns nil when a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// StatusEchoHandler serves the read-only status API.
type StatusEchoHandler struct {
    logger   *xlogger.Logger
    loop     LoopView
    state    StateView
    builder  domsvc.SnapshotBuilder
    sizer    RejectionCounter
    ex       domrepo.ExchangeClient
    trades   domrepo.TradeLog
    cache    cache.Service
    cacheTTL time.Duration
    checks   map[string]HealthCheck
}

type StatusOption func(*StatusEchoHandler)

// WithSnapshotCache caches built snapshots for ttl.
func WithSnapshotCache(c cache.Service, ttl time.Duration) StatusOption {
    return func(h *StatusEchoHandler) {
        h.cache = c
        h.cacheTTL = ttl
    }
}

// WithHealthCheck adds a named dependency probe to /health.
func WithHealthCheck(name string, fn HealthCheck) StatusOption {
    return func(h *StatusEchoHandler) { h.checks[name] = fn }
}

func NewStatusEchoHandler(
    logger *xlogger.Logger,
    loop LoopView,
    state StateView,
    builder domsvc.SnapshotBuilder,
    sizer RejectionCounter,
    ex domrepo.ExchangeClient,
    trades domrepo.TradeLog,
    opts ...StatusOption,
) *StatusEchoHandler {
    if logger == nil {
        logger = xlogger.Nop()
    }
    metrics.Register()
    h := &StatusEchoHandler{
        logger:  logger,
        loop:    loop,
        state:   state,
        builder: builder,
        sizer:   sizer,
        ex:      ex,
        trades:  trades,
        checks:  make(map[string]HealthCheck),
    }
    for _, opt := range opts {
        opt(h)
    }
    return h
}

func (h *StatusEchoHandler) RegisterRoutes(e *echo.Echo) {
    e.GET("/health", h.Health)
    g := e.Group("/api")
    g.GET("/status", h.Status)
    g.GET("/snapshot", h.Snapshot)
    g.GET("/trades", h.Trades)
    g.GET("/positions", h.Positions)
    g.GET("/balance", h.Balance)
}

func observe(endpoint string, start time.Time) {
    metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (h *StatusEchoHandler) fail(c echo.Context, endpoint string, err error) error {
    metrics.APIErrors.WithLabelValues(endpoint).Inc()
    h.logger.Error(endpoint+" error", xlogger.Error(err))
    switch {
    case errors.Is(err, usecase.ErrSnapshotUnavailable):
        return xhttp.AppErrorResponse(c, xhttp.UnavailableError("market data unavailable").WithError(err))
    case errors.Is(err, domrepo.ErrNotFound):
        return xhttp.AppErrorResponse(c, xhttp.NotFoundError("not found").WithError(err))
    case errors.Is(err, domrepo.ErrExchange):
        return xhttp.AppErrorResponse(c, xhttp.BadGatewayError("exchange request failed").WithError(err))
    }
    return xhttp.AppErrorResponse(c, xhttp.InternalErrorf("%s failed", endpoint).WithError(err))
}

func (h *StatusEchoHandler) Status(c echo.Context) error {
    defer observe("status", time.Now())
    res := models.StatusResponse{
        State:    h.state.Snapshot(),
        Symbol:   h.loop.Symbol(),
        DryRun:   h.loop.DryRun(),
        Interval: h.loop.NextInterval().String(),
    }
    if h.sizer != nil {
        res.Rejected = h.sizer.Rejected()
    }
    return xhttp.SuccessResponse(c, res)
}

func snapshotKey(symbol string) string { return cache.Key("api", "snapshot", symbol) }

// Snapshot serves the cached snapshot, else the loop's latest, else a fresh build.
// refresh=true always builds.
func (h *StatusEchoHandler) Snapshot(c echo.Context) error {
    defer observe("snapshot", time.Now())
    req := &models.SnapshotRequest{}
    if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
        return xhttp.BadRequestResponse(c, verr)
    }
    ctx := c.Request().Context()
    key := snapshotKey(h.loop.Symbol())

    if !req.Refresh {
        if h.cache != nil {
            var snap models.MarketSnapshot
            if err := h.cache.Get(ctx, key, &snap); err == nil {
                metrics.APICache.WithLabelValues("hit").Inc()
                return xhttp.CachedResponse(c, h.cacheTTL, snap)
            } else if !errors.Is(err, cache.ErrCacheMiss) {
                h.logger.Warn("snapshot cache_get_error", xlogger.Error(err))
            }
            metrics.APICache.WithLabelValues("miss").Inc()
        }
        if snap, ok := h.loop.LastSnapshot(); ok {
            return xhttp.SuccessResponse(c, snap)
        }
    }

    snap, err := h.builder.Build(ctx)
    if err != nil {
        return h.fail(c, "snapshot", err)
    }
    if h.cache != nil {
        if err := h.cache.Set(ctx, key, snap, h.cacheTTL); err != nil {
            h.logger.Warn("snapshot cache_set_error", xlogger.Error(err))
        }
    }
    return xhttp.CachedResponse(c, h.cacheTTL, snap)
}

func (h *StatusEchoHandler) Trades(c echo.Context) error {
    defer observe("trades", time.Now())
    req := &models.TradesRequest{}
    if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
        return xhttp.BadRequestResponse(c, verr)
    }
    rows, err := h.trades.Recent(c.Request().Context(), req.Limit)
    if err != nil {
        return h.fail(c, "trades", err)
    }
    if rows == nil {
        rows = []models.TradeRecord{}
    }
    return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StatusEchoHandler) Positions(c echo.Context) error {
    defer observe("positions", time.Now())
    ps, err := h.ex.FetchPositions(c.Request().Context(), h.loop.Symbol())
    if err != nil {
        return h.fail(c, "positions", err)
    }
    if ps == nil {
        ps = []models.Position{}
    }
    return xhttp.ListResponse(c, ps, int64(len(ps)))
}

func (h *StatusEchoHandler) Balance(c echo.Context) error {
    defer observe("balance", time.Now())
    b, err := h.ex.FetchBalance(c.Request().Context(), "USDT")
    if err != nil {
        return h.fail(c, "balance", err)
    }
    return xhttp.SuccessResponse(c, b)
}

// Health reports 503 when any registered probe fails.
func (h *StatusEchoHandler) Health(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    deps := make(map[string]string, len(h.checks))
    for name, check := range h.checks {
        if err := check(ctx); err != nil {
            deps[name] = err.Error()
            status = http.StatusServiceUnavailable
            continue
        }
        deps[name] = "ok"
    }
    return xhttp.DataResponse(c, status, map[string]interface{}{
        "symbol":       h.loop.Symbol(),
        "dependencies": deps,
        "time":         time.Now().UTC(),
    })
}
