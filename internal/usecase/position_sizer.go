package usecase

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"TrendPull/internal/domain/models"
	"TrendPull/pkg/config"
)

var (
	// ErrRiskRewardTooLow is a "no trade" outcome, not a failure.
	ErrRiskRewardTooLow = errors.New("risk/reward ratio below minimum")
	// ErrInvalidSizingInput is returned for a non-positive balance or price.
	ErrInvalidSizingInput = errors.New("invalid sizing input")
)

// PositionSizer converts signals into order parameters using the volatility-tiered risk table.
type PositionSizer struct {
	risk               config.Risk
	contractMultiplier float64
	lotStep            float64
	rejected           atomic.Int64
}

func NewPositionSizer(risk config.Risk, trading config.Trading) *PositionSizer {
	step := trading.LotStep
	if step <= 0 {
		step = 0.01
	}
	return &PositionSizer{risk: risk, contractMultiplier: trading.ContractMultiplier, lotStep: step}
}

// Tier returns the risk table row for t.
func (s *PositionSizer) Tier(t models.VolTier) config.Tier {
	switch t {
	case models.VolLow:
		return s.risk.Tiers.Low
	case models.VolMedium:
		return s.risk.Tiers.Medium
	default:
		return s.risk.Tiers.High
	}
}

// Rejected is the number of signals refused for a low risk/reward ratio.
func (s *PositionSizer) Rejected() int { return int(s.rejected.Load()) }

// Size computes the order parameters for sig. The risk/reward check runs after sizing.
func (s *PositionSizer) Size(sig models.TradeSignal, snap models.MarketSnapshot, balance float64) (models.TradeParameters, error) {
	price := snap.Price
	if balance <= 0 || price <= 0 || s.contractMultiplier <= 0 {
		return models.TradeParameters{}, fmt.Errorf("%w: balance %.4f, price %.4f", ErrInvalidSizingInput, balance, price)
	}

	tier := s.Tier(snap.VolTier)
	slPct, tpPct := tier.StopLoss, tier.TakeProfit

	riskAmount := balance * s.risk.RiskPerTrade
	positionValue := riskAmount / (slPct / 100)
	contracts := positionValue / (price * s.contractMultiplier)
	contracts = math.Max(s.risk.MinPositionSize, math.Min(contracts, s.risk.MaxPositionSize))
	contracts = roundToStep(contracts, s.lotStep)

	sign := sig.Direction.Sign()
	p := models.TradeParameters{
		Contracts:       contracts,
		Leverage:        tier.Leverage,
		EntryPrice:      price,
		StopLossPrice:   price * (1 - sign*slPct/100),
		TakeProfitPrice: price * (1 + sign*tpPct/100),
		StopLossPct:     slPct,
		TakeProfitPct:   tpPct,
		RiskAmount:      riskAmount,
		PositionValue:   positionValue,
		PotentialReward: positionValue * (tpPct / 100),
		RiskRewardRatio: tpPct / slPct,
	}

	if p.RiskRewardRatio < s.risk.RiskRewardRatioMin {
		s.rejected.Add(1)
		return models.TradeParameters{}, fmt.Errorf("%w: %.2f < %.2f", ErrRiskRewardTooLow, p.RiskRewardRatio, s.risk.RiskRewardRatioMin)
	}
	return p, nil
}

// roundToStep rounds v to the nearest multiple of step and strips float noise.
func roundToStep(v, step float64) float64 {
	n := math.Round(v / step)
	return math.Round(n*step*1e8) / 1e8
}
