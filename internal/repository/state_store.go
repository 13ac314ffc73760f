package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	"TrendPull/pkg/cache"
)

// CacheStateStore keeps the day state in the shared cache under state:<date>.
type CacheStateStore struct {
	c   cache.Service
	ttl time.Duration
}

var _ drepo.StateStore = (*CacheStateStore)(nil)

func NewCacheStateStore(c cache.Service, ttl time.Duration) *CacheStateStore {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &CacheStateStore{c: c, ttl: ttl}
}

// StateKey is the cache key of the state for a UTC date.
func StateKey(date string) string { return cache.Key("state", date) }

func (s *CacheStateStore) Load(ctx context.Context, date string) (models.TradingState, error) {
	var st models.TradingState
	if err := s.c.Get(ctx, StateKey(date), &st); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return models.TradingState{}, drepo.ErrNotFound
		}
		return models.TradingState{}, fmt.Errorf("load state %s: %w", date, err)
	}
	return st, nil
}

func (s *CacheStateStore) Save(ctx context.Context, st models.TradingState) error {
	if st.Date == "" {
		return fmt.Errorf("save state: date is required")
	}
	if err := s.c.Set(ctx, StateKey(st.Date), st, s.ttl); err != nil {
		return fmt.Errorf("save state %s: %w", st.Date, err)
	}
	return nil
}
