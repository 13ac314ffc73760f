package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	domrepo "TrendPull/internal/domain/repository"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	Process(ctx context.Context, t models.Ticker) error
}

var (
	ErrInvalidTicker = errors.New("invalid ticker")
	ErrStaleTicker   = errors.New("stale ticker")
)

// TickerPipeline sits between the WebSocket stream and the ticker collector.
// It validates, drops stale pushes, throttles per symbol and buffers when downstream fails.
type TickerPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	maxAge   time.Duration
	bufCh    chan models.Ticker
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
	now      func() time.Time
}

type PipelineOption func(*TickerPipeline)

// WithMaxRPS caps accepted tickers per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *TickerPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer used while downstream is failing.
func WithBufferSize(n int) PipelineOption {
	return func(p *TickerPipeline) {
		if n > 0 {
			p.bufCh = make(chan models.Ticker, n)
		}
	}
}

// WithMaxAge drops tickers whose exchange timestamp is older than d. Zero disables the check.
func WithMaxAge(d time.Duration) PipelineOption {
	return func(p *TickerPipeline) { p.maxAge = d }
}

func withPipelineClock(now func() time.Time) PipelineOption {
	return func(p *TickerPipeline) { p.now = now }
}

func NewTickerPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *TickerPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &TickerPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   10,
		maxAge:   30 * time.Second,
		bufCh:    make(chan models.Ticker, 256),
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background retry of buffered tickers.
func (p *TickerPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stop := p.stopCh
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case t := <-p.bufCh:
				if err := p.proc.Process(ctx, t); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- t:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop ends the flusher. A later Start runs a new one on a fresh channel.
func (p *TickerPipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.started = false
	close(p.stopCh)
	p.stopCh = make(chan struct{})
}

// Process validates, throttles and forwards t, buffering it when downstream fails.
func (p *TickerPipeline) Process(ctx context.Context, t models.Ticker) error {
	start := p.now()
	if err := validateTicker(t); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.maxAge > 0 && start.Sub(t.Time) > p.maxAge {
		p.metrics.RecordError("pipeline_stale")
		return fmt.Errorf("%w: %s at %s", ErrStaleTicker, t.Symbol, t.Time.Format(time.RFC3339))
	}
	if !p.allow(t.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, t); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- t:
			p.metrics.SetGauge("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

func validateTicker(t models.Ticker) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol empty", ErrInvalidTicker)
	case t.Time.IsZero():
		return fmt.Errorf("%w: timestamp missing", ErrInvalidTicker)
	case t.Last <= 0:
		return fmt.Errorf("%w: non-positive last price", ErrInvalidTicker)
	case t.Bid < 0 || t.Ask < 0:
		return fmt.Errorf("%w: negative bid/ask", ErrInvalidTicker)
	}
	return nil
}

func (p *TickerPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
