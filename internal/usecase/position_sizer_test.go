package usecase

import (
	"testing"

	"TrendPull/internal/domain/models"
	"TrendPull/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizerUsesTierTable(t *testing.T) {
	c := testConfig()
	s := NewPositionSizer(c.Risk, c.Trading)
	tiers := map[models.VolTier]config.Tier{
		models.VolLow:    c.Risk.Tiers.Low,
		models.VolMedium: c.Risk.Tiers.Medium,
		models.VolHigh:   c.Risk.Tiers.High,
	}
	for tier, want := range tiers {
		p, err := s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 50000, VolTier: tier}, 1000)
		require.NoError(t, err, tier)
		assert.Equal(t, want.StopLoss, p.StopLossPct, tier)
		assert.Equal(t, want.TakeProfit, p.TakeProfitPct, tier)
		assert.Equal(t, want.Leverage, p.Leverage, tier)
	}
}

func TestSizerArithmetic(t *testing.T) {
	c := testConfig()
	c.Risk.Tiers.Medium = config.Tier{Threshold: 0.7, StopLoss: 1.5, TakeProfit: 3.0, Leverage: 10}
	s := NewPositionSizer(c.Risk, c.Trading)

	p, err := s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 50000, VolTier: models.VolMedium}, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, p.RiskAmount, 1e-9)
	assert.InDelta(t, 666.6667, p.PositionValue, 1e-4)
	// 666.67 / (50000 * 0.01) = 1.33 contracts, clamped to the maximum
	assert.Equal(t, 0.1, p.Contracts)
	assert.InDelta(t, 49250.0, p.StopLossPrice, 1e-6)
	assert.InDelta(t, 51500.0, p.TakeProfitPrice, 1e-6)
	assert.InDelta(t, 2.0, p.RiskRewardRatio, 1e-9)
	assert.InDelta(t, 20.0, p.PotentialReward, 1e-6)
}

func TestSizerRoundsToLotStep(t *testing.T) {
	c := testConfig()
	s := NewPositionSizer(c.Risk, c.Trading)

	// low tier: pv = 10 / 0.01 = 1000; 1000 / (3e6 * 0.01) = 0.0333
	p, err := s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 3_000_000, VolTier: models.VolLow}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0.03, p.Contracts)

	// tiny accounts are lifted to the minimum
	p, err = s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 3_000_000, VolTier: models.VolLow}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0.01, p.Contracts)
}

func TestSizerShortPrices(t *testing.T) {
	c := testConfig()
	s := NewPositionSizer(c.Risk, c.Trading)
	p, err := s.Size(models.TradeSignal{Direction: models.Short}, models.MarketSnapshot{Price: 100, VolTier: models.VolLow}, 1000)
	require.NoError(t, err)
	assert.InDelta(t, 101.0, p.StopLossPrice, 1e-9)
	assert.InDelta(t, 98.0, p.TakeProfitPrice, 1e-9)
}

func TestSizerRejectsLowRiskReward(t *testing.T) {
	c := testConfig()
	c.Risk.RiskRewardRatioMin = 1.5
	c.Risk.Tiers.Low = config.Tier{Threshold: 0.3, StopLoss: 2.0, TakeProfit: 2.4, Leverage: 10}
	s := NewPositionSizer(c.Risk, c.Trading)

	before := s.Rejected()
	_, err := s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 100, VolTier: models.VolLow}, 1000)
	require.ErrorIs(t, err, ErrRiskRewardTooLow)
	assert.Equal(t, before+1, s.Rejected())

	// other tiers still pass and do not touch the counter
	_, err = s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 100, VolTier: models.VolMedium}, 1000)
	require.NoError(t, err)
	assert.Equal(t, before+1, s.Rejected())
}

func TestSizerInvalidInput(t *testing.T) {
	c := testConfig()
	s := NewPositionSizer(c.Risk, c.Trading)
	_, err := s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 100}, 0)
	assert.ErrorIs(t, err, ErrInvalidSizingInput)
	_, err = s.Size(models.TradeSignal{Direction: models.Long}, models.MarketSnapshot{Price: 0}, 100)
	assert.ErrorIs(t, err, ErrInvalidSizingInput)
	assert.Equal(t, 0, s.Rejected())
}
