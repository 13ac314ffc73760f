package repository

import (
	"context"
	"testing"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheStateStoreRoundTrip(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	s := NewCacheStateStore(mem, time.Hour)
	ctx := context.Background()

	_, err := s.Load(ctx, "2024-03-01")
	assert.ErrorIs(t, err, drepo.ErrNotFound)

	st := models.TradingState{
		Date:              "2024-03-01",
		TradesToday:       3,
		ConsecutiveLosses: 1,
		DailyPnL:          -2.5,
		ActivePositions:   []models.Position{{Symbol: "BTC-USDT-SWAP", Side: "long", Contracts: 0.05}},
	}
	st.Stats.Inc(models.StrategyBreakout)
	require.NoError(t, s.Save(ctx, st))

	got, err := s.Load(ctx, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, 3, got.TradesToday)
	assert.Equal(t, -2.5, got.DailyPnL)
	assert.Equal(t, 1, got.Stats.Breakout)
	require.Len(t, got.ActivePositions, 1)

	_, err = s.Load(ctx, "2024-03-02")
	assert.ErrorIs(t, err, drepo.ErrNotFound)
}

func TestCacheStateStoreRequiresDate(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	s := NewCacheStateStore(mem, 0)
	assert.Error(t, s.Save(context.Background(), models.TradingState{}))
	assert.Equal(t, "state:2024-03-01", StateKey("2024-03-01"))
}
