package okx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "TrendPull/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 123_000_000, time.UTC)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]Option{WithCredentials("key", "secret", "pass")}, opts...)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func writeEnvelope(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"code":"0","msg":"","data":`+data+`}`)
}

func TestSignKnownVector(t *testing.T) {
	// hmac-sha256("secret", "2024-03-01T12:00:00.123ZGET/api/v5/account/balance?ccy=USDT")
	got := Sign("secret", "2024-03-01T12:00:00.123Z", "GET", "/api/v5/account/balance?ccy=USDT", "")
	again := Sign("secret", "2024-03-01T12:00:00.123Z", "GET", "/api/v5/account/balance?ccy=USDT", "")
	assert.Equal(t, got, again)
	assert.NotEqual(t, got, Sign("other", "2024-03-01T12:00:00.123Z", "GET", "/api/v5/account/balance?ccy=USDT", ""))
	assert.Len(t, got, 44)
	assert.Equal(t, "2024-03-01T12:00:00.123Z", Timestamp(fixedNow))
}

func TestInstID(t *testing.T) {
	assert.Equal(t, "BTC-USDT-SWAP", InstID("BTC/USDT:USDT"))
	assert.Equal(t, "BTC-USDT", InstID("BTC/USDT"))
	assert.Equal(t, "BTC-USDT-SWAP", InstID("BTC-USDT-SWAP"))
}

func TestPrivateCallIsSigned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/account/balance", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("OK-ACCESS-KEY"))
		assert.Equal(t, "pass", r.Header.Get("OK-ACCESS-PASSPHRASE"))
		assert.Equal(t, "2024-03-01T12:00:00.123Z", r.Header.Get("OK-ACCESS-TIMESTAMP"))
		want := Sign("secret", "2024-03-01T12:00:00.123Z", "GET", "/api/v5/account/balance?ccy=USDT", "")
		assert.Equal(t, want, r.Header.Get("OK-ACCESS-SIGN"))
		assert.Equal(t, "1", r.Header.Get("x-simulated-trading"))
		writeEnvelope(w, `[{"details":[{"ccy":"USDT","eq":"1000.5","availBal":"900","frozenBal":"100.5"}]}]`)
	}, WithSimulated(true))

	bal, err := c.FetchBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1000.5, bal.Total)
	assert.Equal(t, 900.0, bal.Free)
	assert.Equal(t, 100.5, bal.Used)
}

func TestPrivateCallWithoutCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer srv.Close()
	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.FetchPositions(context.Background(), "BTC-USDT-SWAP")
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrExchange))
}

func TestFetchOHLCVReversesRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "BTC-USDT-SWAP", r.URL.Query().Get("instId"))
		assert.Equal(t, "15m", r.URL.Query().Get("bar"))
		assert.Equal(t, "3", r.URL.Query().Get("limit"))
		assert.Empty(t, r.Header.Get("OK-ACCESS-SIGN"))
		writeEnvelope(w, `[
			["1709294400000","103","104","102","103.5","10","0","0","0"],
			["1709293500000","102","103","101","102.5","11","0","0","1"],
			["1709292600000","101","102","100","101.5","12","0","0","1"]
		]`)
	})

	s, err := c.FetchOHLCV(context.Background(), "BTC/USDT:USDT", drepo.TF15m, 3)
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())
	assert.Equal(t, []float64{101.5, 102.5, 103.5}, s.Closes())
	assert.True(t, s.Candles[0].Time.Before(s.Candles[2].Time))
	assert.Equal(t, "15m", s.Timeframe)
}

func TestEnvelopeErrorBecomesAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"code":"50011","msg":"Too Many Requests","data":[]}`)
	})

	_, err := c.FetchTicker(context.Background(), "BTC-USDT-SWAP")
	require.Error(t, err)
	assert.True(t, errors.Is(err, drepo.ErrExchange))
	assert.True(t, IsCode(err, "50011"))
	assert.Contains(t, err.Error(), "Too Many Requests")
}

func TestHTTPStatusErrorKeepsExchangeCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":"50113","msg":"Invalid Sign"}`)
	})

	_, err := c.FetchBalance(context.Background(), "USDT")
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusUnauthorized, ae.HTTPStatus)
	assert.Equal(t, "50113", ae.Code)
}

func TestFetchTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `[{"instId":"BTC-USDT-SWAP","last":"65000.1","bidPx":"65000","askPx":"65000.2","ts":"1709294400000"}]`)
	})

	tk, err := c.FetchTicker(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	assert.Equal(t, 65000.1, tk.Last)
	assert.Equal(t, 65000.0, tk.Bid)
	assert.Equal(t, time.UnixMilli(1709294400000).UTC(), tk.Time)
}

func TestFetchPositionsNetModeAndEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `[
			{"instId":"BTC-USDT-SWAP","pos":"-0.05","posSide":"net","avgPx":"64000","upl":"1.2","lever":"15","mgnMode":"cross","cTime":"1709294400000"},
			{"instId":"BTC-USDT-SWAP","pos":"0","posSide":"long","avgPx":"","upl":"0","lever":"20","mgnMode":"cross","cTime":"1709294400000"}
		]`)
	})

	ps, err := c.FetchPositions(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "short", ps[0].Side)
	assert.Equal(t, 0.05, ps[0].Contracts)
	assert.Equal(t, 15, ps[0].Leverage)
}

func TestPlaceMarketOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var req orderRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "BTC-USDT-SWAP", req.InstID)
		assert.Equal(t, "buy", req.Side)
		assert.Equal(t, "market", req.OrdType)
		assert.Equal(t, "0.03", req.Sz)
		assert.Equal(t, "cross", req.TdMode)
		want := Sign("secret", "2024-03-01T12:00:00.123Z", "POST", "/api/v5/trade/order", string(body))
		assert.Equal(t, want, r.Header.Get("OK-ACCESS-SIGN"))
		writeEnvelope(w, `[{"ordId":"123","clOrdId":"`+req.ClOrdID+`","sCode":"0","sMsg":""}]`)
	})

	o, err := c.PlaceMarketOrder(context.Background(), "BTC-USDT-SWAP", "buy", 0.03, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "123", o.ID)
	assert.Equal(t, "abc123", o.ClientOrderID)
	assert.Equal(t, 0.03, o.Contracts)
}

func TestPlaceMarketOrderRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `[{"ordId":"","clOrdId":"x","sCode":"51008","sMsg":"Insufficient balance"}]`)
	})

	_, err := c.PlaceMarketOrder(context.Background(), "BTC-USDT-SWAP", "sell", 0.01, "x")
	require.Error(t, err)
	assert.True(t, IsCode(err, "51008"))
	assert.True(t, errors.Is(err, drepo.ErrExchange))
}

func TestSetLeverageBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/account/set-leverage", r.URL.Path)
		var req leverageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "15", req.Lever)
		assert.Equal(t, "isolated", req.MgnMode)
		writeEnvelope(w, `[{"lever":"15"}]`)
	})

	require.NoError(t, c.SetLeverage(context.Background(), "BTC-USDT-SWAP", 15, "isolated"))
}

func TestFetchClosedPositions(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SWAP", r.URL.Query().Get("instType"))
		writeEnvelope(w, `[{"instId":"BTC-USDT-SWAP","direction":"long","realizedPnl":"-3.5","openAvgPx":"64000","closeAvgPx":"63000","uTime":"1709294400000"}]`)
	})

	cps, err := c.FetchClosedPositions(context.Background(), "BTC-USDT-SWAP", 5)
	require.NoError(t, err)
	require.Len(t, cps, 1)
	assert.Equal(t, -3.5, cps[0].RealizedPnL)
	assert.Equal(t, "long", cps[0].Side)
}

func TestFetchOrderHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v5/trade/orders-history", r.URL.Path)
		writeEnvelope(w, `[{"ordId":"9","clOrdId":"c","instId":"BTC-USDT-SWAP","side":"sell","sz":"0.02","avgPx":"64100","state":"filled","cTime":"1709294400000"}]`)
	})

	orders, err := c.FetchOrderHistory(context.Background(), "BTC-USDT-SWAP", 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "filled", orders[0].State)
	assert.Equal(t, 64100.0, orders[0].AvgPrice)
}
