package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TrendPull/internal/usecase"
	"TrendPull/pkg/cache"
	pkgch "TrendPull/pkg/clickhouse"
	"TrendPull/pkg/config"
	xhttp "TrendPull/pkg/http"
	pkgkafka "TrendPull/pkg/kafka"
	applogger "TrendPull/pkg/logger"
)

// ErrLockHeld is returned when another trader instance owns the single-writer lock.
var ErrLockHeld = errors.New("trader lock held by another instance")

type closer interface {
	Close() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	loop       *usecase.TradingLoop
	state      *usecase.StateStore
	cache      cache.Service
	tradeLog   closer
	publisher  closer
	collector  *usecase.TickerCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	chClient   *pkgch.Client
	httpServer *xhttp.Server
	handler    xhttp.Handler
	loopDone   chan struct{}
}

// New creates a new App instance with its required dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	loop *usecase.TradingLoop,
	state *usecase.StateStore,
	c cache.Service,
	tradeLog closer,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:      cfg,
		log:      l,
		loop:     loop,
		state:    state,
		cache:    c,
		tradeLog: tradeLog,
	}
}

// SetHTTPHandler allows DI to inject HTTP handlers; they share one server.
func (a *App) SetHTTPHandler(hs ...xhttp.Handler) { a.handler = xhttp.Handlers(hs) }

// SetPublisher registers the trade event publisher for shutdown.
func (a *App) SetPublisher(p closer) { a.publisher = p }

// SetCollector enables the live ticker stream.
func (a *App) SetCollector(c *usecase.TickerCollector) { a.collector = c }

// SetConsumer enables the trade archiver.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// SetClickHouse registers the ClickHouse pool for shutdown.
func (a *App) SetClickHouse(c *pkgch.Client) { a.chClient = c }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done.
func (a *App) RunContext(ctx context.Context) error {
	if err := a.acquireLock(ctx); err != nil {
		return err
	}
	if err := a.state.Restore(ctx, time.Now()); err != nil {
		a.log.Warn("state restore failed, starting fresh", applogger.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go a.refreshLock(runCtx)

	if a.collector != nil {
		if err := a.collector.Start(runCtx); err != nil {
			// the loop falls back to REST prices
			a.log.Error("ticker stream start failed", applogger.Error(err))
		} else {
			a.log.Info("ticker stream started", applogger.String("symbol", a.cfg.Trading.Symbol))
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		} else {
			a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if a.cfg.Server.Enabled {
		a.httpServer = xhttp.NewServer(a.handler,
			xhttp.WithPort(a.cfg.Server.Port),
			xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
			xhttp.WithRateLimit(a.cfg.Server.RateLimitRPS, a.cfg.Server.RateLimitBurst),
			xhttp.WithCORS(a.cfg.Server.CORS),
			xhttp.WithLogger(a.log),
		)
		if err := a.httpServer.Start(); err != nil {
			a.log.Error("http server start error", applogger.Error(err))
			return err
		}
	}

	a.loopDone = make(chan struct{})
	go func() {
		defer close(a.loopDone)
		if err := a.loop.Run(runCtx); err != nil {
			a.log.Error("trading loop exited", applogger.Error(err))
		}
	}()

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

func (a *App) acquireLock(ctx context.Context) error {
	if a.cache == nil || a.cfg.State.LockKey == "" {
		return nil
	}
	ok, err := a.cache.TryLock(ctx, a.cfg.State.LockKey, a.cfg.State.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire trader lock: %w", err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

// refreshLock extends the lock TTL while the app runs.
func (a *App) refreshLock(ctx context.Context) {
	if a.cache == nil || a.cfg.State.LockKey == "" || a.cfg.State.LockTTL <= 0 {
		return
	}
	t := time.NewTicker(a.cfg.State.LockTTL / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.cache.Expire(ctx, a.cfg.State.LockKey, a.cfg.State.LockTTL); err != nil {
				a.log.Warn("trader lock refresh failed", applogger.Error(err))
			}
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	a.log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.loopDone != nil {
		select {
		case <-a.loopDone:
		case <-ctx.Done():
			a.log.Warn("trading loop did not stop in time")
		}
	}

	if err := a.state.Save(ctx); err != nil {
		a.log.Warn("state save error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}

	if a.httpServer != nil {
		if err := a.httpServer.Stop(ctx); err != nil {
			a.log.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// drain collected errors before the producer closes
	a.log.RemoveCollector()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.tradeLog != nil {
		if err := a.tradeLog.Close(); err != nil {
			a.log.Warn("trade log close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.cache != nil {
		if a.cfg.State.LockKey != "" {
			if err := a.cache.Unlock(ctx, a.cfg.State.LockKey); err != nil {
				a.log.Warn("trader lock release error", applogger.Error(err))
			}
		}
		if err := a.cache.Close(); err != nil {
			a.log.Warn("cache close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
