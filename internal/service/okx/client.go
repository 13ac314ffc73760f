package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/internal/service/ratelimit"
	xhttp "TrendPull/pkg/http"
	applogger "TrendPull/pkg/logger"
	"TrendPull/pkg/util"
)

// Option configures Client.
type Option func(*Client)

// Client implements repository.ExchangeClient over the OKX v5 REST API.
type Client struct {
	baseURL    string
	apiKey     string
	secret     string
	passphrase string
	simulated  bool
	marginMode string
	proxy      string
	timeout    time.Duration

	http    *xhttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger
	now     func() time.Time
}

var _ drepo.ExchangeClient = (*Client)(nil)

// New builds a client for baseURL (https://www.okx.com in production).
func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:    baseURL,
		marginMode: "cross",
		timeout:    15 * time.Second,
		limiter:    ratelimit.New(5, 5),
		log:        applogger.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	hc, err := xhttp.NewClient(xhttp.WithTimeout(c.timeout), xhttp.WithProxy(c.proxy))
	if err != nil {
		return nil, fmt.Errorf("okx http client: %w", err)
	}
	c.http = hc
	return c, nil
}

// WithCredentials sets the API key triple used to sign private calls.
func WithCredentials(apiKey, secret, passphrase string) Option {
	return func(c *Client) {
		c.apiKey, c.secret, c.passphrase = apiKey, secret, passphrase
	}
}

// WithSimulated routes orders to the demo trading environment.
func WithSimulated(on bool) Option {
	return func(c *Client) { c.simulated = on }
}

func WithMarginMode(mode string) Option {
	return func(c *Client) {
		if mode != "" {
			c.marginMode = mode
		}
	}
}

func WithProxy(proxy string) Option {
	return func(c *Client) { c.proxy = proxy }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		if l != nil {
			c.limiter = l
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// HasCredentials reports whether private endpoints can be called.
func (c *Client) HasCredentials() bool {
	return c.apiKey != "" && c.secret != "" && c.passphrase != ""
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, private bool, out interface{}) error {
	if err := c.limiter.Wait(ctx, path); err != nil {
		return &APIError{Path: path, Msg: "rate limited", Err: err}
	}

	requestPath := path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("okx %s: marshal body: %w", path, err)
		}
		payload = b
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if private {
		if !c.HasCredentials() {
			return &APIError{Path: path, Msg: "api credentials not configured"}
		}
		ts := Timestamp(c.now())
		headers["OK-ACCESS-KEY"] = c.apiKey
		headers["OK-ACCESS-SIGN"] = Sign(c.secret, ts, method, requestPath, string(payload))
		headers["OK-ACCESS-TIMESTAMP"] = ts
		headers["OK-ACCESS-PASSPHRASE"] = c.passphrase
	}
	if c.simulated {
		headers["x-simulated-trading"] = "1"
	}

	opts := &xhttp.RequestOptions{Method: method, URL: c.baseURL + requestPath, Headers: headers}
	if payload != nil {
		opts.Body = payload
	}

	start := c.now()
	var raw []byte
	if err := c.http.SendAndParse(ctx, opts, &raw); err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			apiErr := &APIError{Path: path, HTTPStatus: se.StatusCode, Msg: string(se.Body)}
			var env envelope
			if json.Unmarshal(se.Body, &env) == nil && env.Code != "" {
				apiErr.Code, apiErr.Msg = env.Code, env.Msg
			}
			return apiErr
		}
		return &APIError{Path: path, Msg: "transport failure", Err: err}
	}
	c.log.Debug("okx call",
		applogger.String("method", method),
		applogger.String("path", path),
		applogger.Duration("latency_ms", c.now().Sub(start)),
	)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Path: path, Msg: "malformed response", Err: err}
	}
	if env.Code != "0" {
		return &APIError{Path: path, Code: env.Code, Msg: env.Msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &APIError{Path: path, Msg: "malformed data", Err: err}
	}
	return nil
}

// FetchOHLCV returns up to limit bars, oldest first. The newest bar may still be forming.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf drepo.Timeframe, limit int) (models.CandleSeries, error) {
	q := url.Values{}
	q.Set("instId", InstID(symbol))
	q.Set("bar", string(tf))
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]string
	if err := c.do(ctx, xhttp.MethodGet, "/api/v5/market/candles", q, nil, false, &rows); err != nil {
		return models.CandleSeries{}, err
	}

	series := models.CandleSeries{Symbol: symbol, Timeframe: string(tf), Candles: make([]models.Candle, 0, len(rows))}
	// rows arrive newest first
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if len(r) < 6 {
			return models.CandleSeries{}, &APIError{Path: "/api/v5/market/candles", Msg: fmt.Sprintf("short candle row %d", i)}
		}
		ts, ok := util.ParseTime(r[0])
		if !ok {
			return models.CandleSeries{}, &APIError{Path: "/api/v5/market/candles", Msg: "bad candle timestamp " + r[0]}
		}
		series.Candles = append(series.Candles, models.Candle{
			Time:   ts,
			Open:   util.ParseFloatDefault(r[1], 0),
			High:   util.ParseFloatDefault(r[2], 0),
			Low:    util.ParseFloatDefault(r[3], 0),
			Close:  util.ParseFloatDefault(r[4], 0),
			Volume: util.ParseFloatDefault(r[5], 0),
		})
	}
	return series, nil
}

func (c *Client) FetchTicker(ctx context.Context, symbol string) (models.Ticker, error) {
	q := url.Values{}
	q.Set("instId", InstID(symbol))

	var rows []tickerRow
	if err := c.do(ctx, xhttp.MethodGet, "/api/v5/market/ticker", q, nil, false, &rows); err != nil {
		return models.Ticker{}, err
	}
	if len(rows) == 0 {
		return models.Ticker{}, fmt.Errorf("ticker %s: %w", symbol, drepo.ErrNotFound)
	}
	return toTicker(symbol, rows[0]), nil
}

func toTicker(symbol string, r tickerRow) models.Ticker {
	return models.Ticker{
		Symbol: symbol,
		Last:   util.ParseFloatDefault(r.Last, 0),
		Bid:    util.ParseFloatDefault(r.BidPx, 0),
		Ask:    util.ParseFloatDefault(r.AskPx, 0),
		Time:   util.ParseTimeDefault(r.Ts, time.Time{}),
	}
}

// FetchBalance returns the balance of currency. A currency absent from the account is zero.
func (c *Client) FetchBalance(ctx context.Context, currency string) (models.Balance, error) {
	q := url.Values{}
	q.Set("ccy", currency)

	var rows []balanceRow
	if err := c.do(ctx, xhttp.MethodGet, "/api/v5/account/balance", q, nil, true, &rows); err != nil {
		return models.Balance{}, err
	}
	bal := models.Balance{Currency: currency}
	for _, r := range rows {
		for _, d := range r.Details {
			if d.Ccy != currency {
				continue
			}
			bal.Total = util.ParseFloatDefault(d.Eq, 0)
			bal.Free = util.ParseFloatDefault(d.AvailBal, 0)
			bal.Used = util.ParseFloatDefault(d.FrozenBal, 0)
		}
	}
	return bal, nil
}

// FetchPositions returns non-empty positions for symbol.
func (c *Client) FetchPositions(ctx context.Context, symbol string) ([]models.Position, error) {
	q := url.Values{}
	q.Set("instId", InstID(symbol))

	var rows []positionRow
	if err := c.do(ctx, xhttp.MethodGet, "/api/v5/account/positions", q, nil, true, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(rows))
	for _, r := range rows {
		size := util.ParseFloatDefault(r.Pos, 0)
		if size == 0 {
			continue
		}
		side := r.PosSide
		if side == "net" || side == "" {
			side = "long"
			if size < 0 {
				side = "short"
			}
		}
		out = append(out, models.Position{
			Symbol:        symbol,
			Side:          side,
			Contracts:     math.Abs(size),
			EntryPrice:    util.ParseFloatDefault(r.AvgPx, 0),
			Leverage:      int(util.ParseFloatDefault(r.Lever, 0)),
			UnrealizedPnL: util.ParseFloatDefault(r.Upl, 0),
			MarginMode:    r.MgnMode,
			OpenedAt:      util.ParseTimeDefault(r.CTime, time.Time{}),
		})
	}
	return out, nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int, marginMode string) error {
	if marginMode == "" {
		marginMode = c.marginMode
	}
	req := leverageRequest{InstID: InstID(symbol), Lever: strconv.Itoa(leverage), MgnMode: marginMode}
	return c.do(ctx, xhttp.MethodPost, "/api/v5/account/set-leverage", nil, req, true, nil)
}

// PlaceMarketOrder submits a market order of contracts. side is "buy" or "sell".
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol, side string, contracts float64, clientOrderID string) (models.Order, error) {
	req := orderRequest{
		InstID:  InstID(symbol),
		TdMode:  c.marginMode,
		Side:    side,
		OrdType: "market",
		Sz:      util.FormatFloat(contracts),
		ClOrdID: clientOrderID,
	}

	var acks []orderAck
	if err := c.do(ctx, xhttp.MethodPost, "/api/v5/trade/order", nil, req, true, &acks); err != nil {
		return models.Order{}, err
	}
	if len(acks) == 0 {
		return models.Order{}, &APIError{Path: "/api/v5/trade/order", Msg: "empty order acknowledgement"}
	}
	ack := acks[0]
	if ack.SCode != "" && ack.SCode != "0" {
		return models.Order{}, &APIError{Path: "/api/v5/trade/order", Code: ack.SCode, Msg: ack.SMsg}
	}
	return models.Order{
		ID:            ack.OrdID,
		ClientOrderID: ack.ClOrdID,
		Symbol:        symbol,
		Side:          side,
		Contracts:     contracts,
		State:         "submitted",
		CreatedAt:     c.now().UTC(),
	}, nil
}

func (c *Client) FetchOrderHistory(ctx context.Context, symbol string, limit int) ([]models.Order, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", InstID(symbol))
	q.Set("limit", strconv.Itoa(limit))

	var rows []orderRow
	if err := c.do(ctx, xhttp.MethodGet, "/api/v5/trade/orders-history", q, nil, true, &rows); err != nil {
		return nil, err
	}
	out := make([]models.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Order{
			ID:            r.OrdID,
			ClientOrderID: r.ClOrdID,
			Symbol:        symbol,
			Side:          r.Side,
			Contracts:     util.ParseFloatDefault(r.Sz, 0),
			AvgPrice:      util.ParseFloatDefault(r.AvgPx, 0),
			State:         r.State,
			CreatedAt:     util.ParseTimeDefault(r.CTime, time.Time{}),
		})
	}
	return out, nil
}

// FetchClosedPositions returns settled positions, newest first.
func (c *Client) FetchClosedPositions(ctx context.Context, symbol string, limit int) ([]models.ClosedPosition, error) {
	q := url.Values{}
	q.Set("instType", "SWAP")
	q.Set("instId", InstID(symbol))
	q.Set("limit", strconv.Itoa(limit))

	var rows []closedPositionRow
	if err := c.do(ctx, xhttp.MethodGet, "/api/v5/account/positions-history", q, nil, true, &rows); err != nil {
		return nil, err
	}
	out := make([]models.ClosedPosition, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ClosedPosition{
			Symbol:      symbol,
			Side:        r.Direction,
			RealizedPnL: util.ParseFloatDefault(r.RealizedPnl, 0),
			OpenPrice:   util.ParseFloatDefault(r.OpenAvgPx, 0),
			ClosePrice:  util.ParseFloatDefault(r.CloseAvgPx, 0),
			ClosedAt:    util.ParseTimeDefault(r.UTime, time.Time{}),
		})
	}
	return out, nil
}
