package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStreamDeliversTickers(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Op != "subscribe" || len(req.Args) != 1 || req.Args[0].InstID != "BTC-USDT-SWAP" {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","code":"60018","msg":"bad subscribe"}`))
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("pong"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT-SWAP"},"data":[{"instId":"BTC-USDT-SWAP","last":"65000.5","bidPx":"65000","askPx":"65001","ts":"1709294400000"}]}`))
		time.Sleep(200 * time.Millisecond)
	})

	s := NewStream(url, 10*time.Millisecond, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Subscribe(ctx, "BTC/USDT:USDT"))
	assert.True(t, s.IsConnected())

	tickers, _ := s.Read(ctx)
	select {
	case tk := <-tickers:
		assert.Equal(t, "BTC/USDT:USDT", tk.Symbol)
		assert.Equal(t, 65000.5, tk.Last)
	case <-ctx.Done():
		t.Fatal("no ticker received")
	}
	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
}

func TestStreamEventErrorIsReported(t *testing.T) {
	url := newWSServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","code":"60012","msg":"Invalid request"}`))
		time.Sleep(100 * time.Millisecond)
	})

	s := NewStream(url, 10*time.Millisecond, time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx))

	_, errs := s.Read(ctx)
	select {
	case err := <-errs:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "60012")
	case <-ctx.Done():
		t.Fatal("no error received")
	}
	_ = s.Close()
}

func TestStreamSubscribeRequiresConnection(t *testing.T) {
	s := NewStream("ws://127.0.0.1:1", time.Millisecond, time.Second, nil)
	assert.Error(t, s.Subscribe(context.Background(), "BTC-USDT-SWAP"))

	tickers, errs := s.Read(context.Background())
	assert.Error(t, <-errs)
	_, ok := <-tickers
	assert.False(t, ok)
}
