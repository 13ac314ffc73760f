package usecase

import (
	"testing"
	"time"

	"TrendPull/pkg/config"
)

func TestIntervalFixedWhenDisabled(t *testing.T) {
	s := NewIntervalScheduler(45*time.Second, config.Interval{Min: 5 * time.Second, Max: 30 * time.Second})
	if got := s.Next(IntervalInput{Volatility: 2, PriceChange: 0.1, Now: t0}); got != 45*time.Second {
		t.Fatalf("got %v", got)
	}
}

func TestIntervalDynamicBands(t *testing.T) {
	s := NewIntervalScheduler(45*time.Second, config.Interval{Enabled: true, Min: 5 * time.Second, Max: 30 * time.Second})
	asia := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	europe := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	us := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   IntervalInput
		want time.Duration
	}{
		{"calm asia", IntervalInput{Volatility: 0.1, Now: asia}, 15 * time.Second},
		{"calm europe", IntervalInput{Volatility: 0.1, Now: europe}, 10 * time.Second},
		{"calm us", IntervalInput{Volatility: 0.1, Now: us}, 8 * time.Second},
		{"open position", IntervalInput{Volatility: 0.1, HasPosition: true, Now: asia}, 8 * time.Second},
		{"high volatility", IntervalInput{Volatility: 0.9, Now: asia}, 8 * time.Second},
		{"sharp drop", IntervalInput{Volatility: 0.1, PriceChange: -0.003, Now: asia}, 5 * time.Second},
		{"small move", IntervalInput{Volatility: 0.1, PriceChange: 0.0015, Now: asia}, 8 * time.Second},
		{"tiny move", IntervalInput{Volatility: 0.1, PriceChange: 0.0007, Now: asia}, 12 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Next(tc.in); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntervalClamp(t *testing.T) {
	s := NewIntervalScheduler(45*time.Second, config.Interval{Enabled: true, Min: 10 * time.Second, Max: 12 * time.Second})
	if got := s.Next(IntervalInput{PriceChange: 0.01, Now: t0}); got != 10*time.Second {
		t.Fatalf("min clamp: got %v", got)
	}
	asia := time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)
	if got := s.Next(IntervalInput{Now: asia}); got != 12*time.Second {
		t.Fatalf("max clamp: got %v", got)
	}
}
