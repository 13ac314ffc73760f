package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	applogger "TrendPull/pkg/logger"
	"TrendPull/pkg/util"
)

// StateStore owns the TradingState. The loop is the only writer; readers get copies.
type StateStore struct {
	mu      sync.RWMutex
	st      models.TradingState
	persist drepo.StateStore
	log     *applogger.Logger
}

// NewStateStore creates an empty state. persist may be nil.
func NewStateStore(persist drepo.StateStore, l *applogger.Logger) *StateStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &StateStore{persist: persist, log: l}
}

// Restore loads the persisted state for the UTC day of now, if any.
func (s *StateStore) Restore(ctx context.Context, now time.Time) error {
	day := util.DayKey(now)
	if s.persist == nil {
		s.mu.Lock()
		s.st.Date = day
		s.mu.Unlock()
		return nil
	}
	st, err := s.persist.Load(ctx, day)
	if errors.Is(err, drepo.ErrNotFound) {
		s.mu.Lock()
		s.st.Date = day
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore trading state: %w", err)
	}
	st.Date = day
	s.mu.Lock()
	s.st = st.Clone()
	s.mu.Unlock()
	s.log.Info("trading state restored",
		applogger.String("date", day),
		applogger.Int("trades_today", st.TradesToday),
		applogger.Int("consecutive_losses", st.ConsecutiveLosses),
	)
	return nil
}

// Save persists the current state. A nil backend is a no-op.
func (s *StateStore) Save(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.Save(ctx, s.Snapshot()); err != nil {
		return fmt.Errorf("save trading state: %w", err)
	}
	return nil
}

// Snapshot returns a deep copy safe to hand to readers.
func (s *StateStore) Snapshot() models.TradingState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.Clone()
}

// RollDay resets the daily counters when the UTC date of now differs from the state's.
// Strategy stats survive. Returns true when a reset happened.
func (s *StateStore) RollDay(now time.Time) bool {
	day := util.DayKey(now)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.st.Date == day {
		return false
	}
	if s.st.Date == "" {
		s.st.Date = day
		return false
	}
	s.st.Date = day
	s.st.TradesToday = 0
	s.st.DailyPnL = 0
	s.st.ConsecutiveLosses = 0
	s.st.ConsecutiveWins = 0
	return true
}

func (s *StateStore) RecordTrade() {
	s.mu.Lock()
	s.st.TradesToday++
	s.mu.Unlock()
}

func (s *StateStore) RecordSignal(strategy models.Strategy) {
	s.mu.Lock()
	s.st.Stats.Inc(strategy)
	s.mu.Unlock()
}

func (s *StateStore) RecordRejection() {
	s.mu.Lock()
	s.st.Stats.Rejected++
	s.mu.Unlock()
}

// RecordOutcome applies a realized P&L. A win resets the loss streak and vice versa.
func (s *StateStore) RecordOutcome(pnl float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.DailyPnL += pnl
	switch {
	case pnl > 0:
		s.st.ConsecutiveWins++
		s.st.ConsecutiveLosses = 0
	case pnl < 0:
		s.st.ConsecutiveLosses++
		s.st.ConsecutiveWins = 0
	}
}

func (s *StateStore) SetPositions(ps []models.Position) {
	s.mu.Lock()
	s.st.ActivePositions = append([]models.Position(nil), ps...)
	s.mu.Unlock()
}

func (s *StateStore) Touch(now time.Time) {
	s.mu.Lock()
	s.st.LastCheck = now.UTC()
	s.mu.Unlock()
}
