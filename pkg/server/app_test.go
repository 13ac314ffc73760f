package server

import (
	"context"
	"testing"
	"time"

	"TrendPull/internal/usecase"
	"TrendPull/pkg/cache"
	"TrendPull/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRefusesWhenLockHeld(t *testing.T) {
	cfg := config.Default()
	mem := cache.NewMemoryCache()
	defer mem.Close()

	ok, err := mem.TryLock(context.Background(), cfg.State.LockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	app := New(cfg, nil, nil, usecase.NewStateStore(nil, nil), mem, nil)
	err = app.RunContext(context.Background())
	assert.ErrorIs(t, err, ErrLockHeld)
}

func TestAcquireLockWithoutCache(t *testing.T) {
	app := New(config.Default(), nil, nil, usecase.NewStateStore(nil, nil), nil, nil)
	assert.NoError(t, app.acquireLock(context.Background()))
}
