package usecase

import (
	"context"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	mid "TrendPull/internal/middleware"
	"TrendPull/pkg/cache"
	applogger "TrendPull/pkg/logger"
)

// TickerCollector keeps the latest streamed ticker per symbol.
// It is the downstream of the ticker pipeline and the loop's PriceSource.
type TickerCollector struct {
	stream   drepo.TickerStream
	symbols  []string
	metrics  drepo.Metrics
	pipe     *mid.TickerPipeline
	cache    cache.Service
	cacheTTL time.Duration
	log      *applogger.Logger

	mu     sync.RWMutex
	latest map[string]models.Ticker
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTickerCollector wires the stream through a pipeline into the collector. c may be nil.
func NewTickerCollector(stream drepo.TickerStream, symbols []string, metrics drepo.Metrics, c cache.Service, l *applogger.Logger, pipeOpts ...mid.PipelineOption) *TickerCollector {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	tc := &TickerCollector{
		stream:   stream,
		symbols:  symbols,
		metrics:  metrics,
		cache:    c,
		cacheTTL: time.Minute,
		log:      l,
		latest:   make(map[string]models.Ticker),
	}
	tc.pipe = mid.NewTickerPipeline(tc, metrics, pipeOpts...)
	return tc
}

// TickerKey is the cache key of the latest ticker for symbol.
func TickerKey(symbol string) string { return cache.Key("ticker", symbol) }

// IsConnected returns true if the stream is connected.
func (c *TickerCollector) IsConnected() bool { return c.stream.IsConnected() }

// Start connects, subscribes and consumes in the background.
func (c *TickerCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.symbols...); err != nil {
		return err
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.pipe.Start(ctx)
	go c.consume(ctx)
	return nil
}

func (c *TickerCollector) consume(ctx context.Context) {
	defer close(c.done)
	trCh, errCh := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err != nil {
				c.metrics.RecordError("stream")
				c.log.Warn("ticker stream error", applogger.Error(err))
			}
			// the read goroutine is gone after any error or close
			if err := c.stream.Reconnect(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Error("ticker stream reconnect failed", applogger.Error(err))
				continue
			}
			trCh, errCh = c.stream.Read(ctx)
		case t, ok := <-trCh:
			if !ok {
				trCh = nil
				continue
			}
			if err := c.pipe.Process(ctx, t); err != nil {
				c.log.Debug("ticker dropped", applogger.Error(err))
			}
		}
	}
}

// Process stores t. It implements middleware.Proc.
func (c *TickerCollector) Process(ctx context.Context, t models.Ticker) error {
	c.mu.Lock()
	c.latest[t.Symbol] = t
	c.mu.Unlock()
	c.metrics.RecordLastPrice(t.Symbol, t.Last)
	if c.cache != nil {
		return c.cache.Set(ctx, TickerKey(t.Symbol), t, c.cacheTTL)
	}
	return nil
}

// LastTicker implements PriceSource.
func (c *TickerCollector) LastTicker(symbol string) (models.Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.latest[symbol]
	return t, ok
}

// Shutdown stops the pipeline and closes the stream.
func (c *TickerCollector) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.pipe.Stop()
	err := c.stream.Close()
	if c.done != nil {
		select {
		case <-c.done:
		case <-ctx.Done():
		}
	}
	return err
}
