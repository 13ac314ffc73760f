package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	cases := map[string]Timeframe{
		"":    TF15m,
		"5m":  TF5m,
		"1h":  TF1H,
		"1H":  TF1H,
		"7m":  TF15m,
		"15m": TF15m,
	}
	for in, want := range cases {
		if got := NormalizeTimeframe(in); got != want {
			t.Fatalf("NormalizeTimeframe(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestPeriodsPerYear(t *testing.T) {
	if got := TF15m.PeriodsPerYear(); got != 365*24*4 {
		t.Fatalf("unexpected 15m periods %v", got)
	}
	if got := TF5m.Duration(); got != 5*time.Minute {
		t.Fatalf("unexpected 5m duration %v", got)
	}
}
