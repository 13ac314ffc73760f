package okx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	applogger "TrendPull/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements repository.TickerStream over the public tickers channel.
type Stream struct {
	websocketURL   string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	mu        sync.Mutex // guards conn, connected and symbols
	writeMu   sync.Mutex // gorilla allows one concurrent writer
	conn      *websocket.Conn
	connected bool
	symbols   []string
}

var _ drepo.TickerStream = (*Stream)(nil)

// NewStream creates a ticker stream. The connection is opened by Connect.
func NewStream(websocketURL string, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Stream {
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 25 * time.Second
	}
	return &Stream{
		websocketURL:   websocketURL,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            l,
	}
}

func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("okx stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.log.Info("okx stream connected", applogger.String("url", s.websocketURL))
	return nil
}

type wsArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

type wsRequest struct {
	Op   string  `json:"op"`
	Args []wsArg `json:"args"`
}

type wsMessage struct {
	Event string      `json:"event"`
	Code  string      `json:"code"`
	Msg   string      `json:"msg"`
	Arg   wsArg       `json:"arg"`
	Data  []tickerRow `json:"data"`
}

// Subscribe adds symbols to the tickers subscription. They are replayed on Reconnect.
func (s *Stream) Subscribe(ctx context.Context, symbols ...string) error {
	s.mu.Lock()
	conn, connected := s.conn, s.connected
	for _, sym := range symbols {
		if !contains(s.symbols, sym) {
			s.symbols = append(s.symbols, sym)
		}
	}
	s.mu.Unlock()
	if conn == nil || !connected {
		return errors.New("okx stream not connected")
	}

	req := wsRequest{Op: "subscribe"}
	for _, sym := range symbols {
		req.Args = append(req.Args, wsArg{Channel: "tickers", InstID: InstID(sym)})
	}
	if err := s.writeJSON(conn, req); err != nil {
		return fmt.Errorf("okx subscribe: %w", err)
	}
	s.log.Info("okx stream subscribed", applogger.Strings("symbols", symbols))
	return nil
}

func (s *Stream) writeJSON(conn *websocket.Conn, v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(v)
}

func (s *Stream) writeText(conn *websocket.Conn, msg string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// Read streams tickers until ctx ends or the connection fails. Both channels close on exit.
func (s *Stream) Read(ctx context.Context) (<-chan models.Ticker, <-chan error) {
	tickers := make(chan models.Ticker, 256)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	symbols := append([]string(nil), s.symbols...)
	s.mu.Unlock()

	if conn == nil {
		errs <- errors.New("okx stream conn nil")
		close(tickers)
		close(errs)
		return tickers, errs
	}

	byInst := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		byInst[InstID(sym)] = sym
	}

	done := make(chan struct{})

	// keepalive: the server drops idle connections after 30s
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := s.writeText(conn, "ping"); err != nil {
					s.log.Warn("okx stream ping failed", applogger.Error(err))
				}
			}
		}
	}()

	// unblock ReadMessage on cancellation
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	go func() {
		defer close(tickers)
		defer close(errs)
		defer close(done)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					s.markDisconnected(conn)
					errs <- fmt.Errorf("okx stream read: %w", err)
				}
				return
			}
			if string(b) == "pong" {
				continue
			}
			var m wsMessage
			if err := json.Unmarshal(b, &m); err != nil {
				s.log.Debug("okx stream: skip frame", applogger.Error(err))
				continue
			}
			if m.Event == "error" {
				errs <- fmt.Errorf("okx stream event error %s: %s", m.Code, m.Msg)
				return
			}
			if m.Event != "" || m.Arg.Channel != "tickers" {
				continue
			}
			for _, d := range m.Data {
				sym, ok := byInst[d.InstID]
				if !ok {
					sym = d.InstID
				}
				t := toTicker(sym, d)
				if t.Last <= 0 {
					continue
				}
				select {
				case tickers <- t:
				case <-ctx.Done():
					return
				default:
					// drop on backpressure; the next push supersedes it
				}
			}
		}
	}()

	return tickers, errs
}

func (s *Stream) markDisconnected(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn == conn {
		s.connected = false
	}
	s.mu.Unlock()
}

// Reconnect closes the current connection, waits reconnectDelay and resubscribes.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	symbols := append([]string(nil), s.symbols...)
	s.mu.Unlock()
	if len(symbols) == 0 {
		return nil
	}
	return s.Subscribe(ctx, symbols...)
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
