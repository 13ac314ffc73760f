package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TrendPull/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProc struct {
	mu   sync.Mutex
	got  []models.Ticker
	fail bool
}

func (r *recordingProc) Process(_ context.Context, t models.Ticker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("downstream down")
	}
	r.got = append(r.got, t)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func ticker(ts time.Time) models.Ticker {
	return models.Ticker{Symbol: "BTC-USDT-SWAP", Last: 65000, Bid: 64999, Ask: 65001, Time: ts}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewTickerPipeline(&recordingProc{}, nil, withPipelineClock(func() time.Time { return now }))

	bad := ticker(now)
	bad.Last = 0
	assert.ErrorIs(t, p.Process(context.Background(), bad), ErrInvalidTicker)

	bad = ticker(time.Time{})
	assert.ErrorIs(t, p.Process(context.Background(), bad), ErrInvalidTicker)

	assert.ErrorIs(t, p.Process(context.Background(), ticker(now.Add(-time.Minute))), ErrStaleTicker)
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	proc := &recordingProc{}
	p := NewTickerPipeline(proc, nil, WithMaxRPS(2), withPipelineClock(func() time.Time { return now }))

	require.NoError(t, p.Process(context.Background(), ticker(now)))
	require.NoError(t, p.Process(context.Background(), ticker(now)))
	assert.Equal(t, 1, proc.count())

	now = now.Add(600 * time.Millisecond)
	require.NoError(t, p.Process(context.Background(), ticker(now)))
	assert.Equal(t, 2, proc.count())

	other := ticker(now)
	other.Symbol = "ETH-USDT-SWAP"
	require.NoError(t, p.Process(context.Background(), other))
	assert.Equal(t, 3, proc.count())
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &recordingProc{fail: true}
	p := NewTickerPipeline(proc, nil, WithMaxAge(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := p.Process(ctx, ticker(time.Now()))
	require.Error(t, err)

	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()
	require.Eventually(t, func() bool { return proc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestPipelineStopHaltsFlushUntilRestart(t *testing.T) {
	proc := &recordingProc{}
	p := NewTickerPipeline(proc, nil, WithMaxAge(0))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	p.Stop()
	time.Sleep(50 * time.Millisecond)

	proc.mu.Lock()
	proc.fail = true
	proc.mu.Unlock()
	require.Error(t, p.Process(ctx, ticker(time.Now())))
	proc.mu.Lock()
	proc.fail = false
	proc.mu.Unlock()

	assert.Never(t, func() bool { return proc.count() > 0 }, 200*time.Millisecond, 10*time.Millisecond)

	p.Start(ctx)
	defer p.Stop()
	require.Eventually(t, func() bool { return proc.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
