// Package bot drives the evaluation loop: filtering tradable tokens through
// user policy and executing approved trades, simulated or real.
package bot

import (
	"solana-sniper/internal/domain"
)

// SizingConfig bounds position sizing.
type SizingConfig struct {
	ConfiguredAmountSol float64
	MinPositionSol      float64
	MaxPositionSol      float64
}

// Confidence-to-multiplier tiers. Monotonic: higher confidence, larger size.
var sizingTiers = []struct {
	minScore   int
	multiplier float64
}{
	{80, 1.0},
	{60, 0.75},
	{40, 0.5},
	{20, 0.25},
	{1, 0.1},
}

// ComputePositionSize derives the order size from a 0-100 confidence score.
// Score 0 blocks the trade outright regardless of any approval elsewhere.
// The result is clamped to [MinPositionSol, MaxPositionSol].
func ComputePositionSize(cfg SizingConfig, score int) domain.PositionSizeResult {
	if score <= 0 {
		return domain.PositionSizeResult{Blocked: true, Reason: "confidence score is zero"}
	}

	multiplier := 0.0
	for _, tier := range sizingTiers {
		if score >= tier.minScore {
			multiplier = tier.multiplier
			break
		}
	}
	if multiplier == 0 {
		return domain.PositionSizeResult{Blocked: true, Reason: "confidence below minimum tier"}
	}

	amount := cfg.ConfiguredAmountSol * multiplier
	if cfg.MaxPositionSol > 0 && amount > cfg.MaxPositionSol {
		amount = cfg.MaxPositionSol
	}
	if cfg.MinPositionSol > 0 && amount < cfg.MinPositionSol {
		amount = cfg.MinPositionSol
	}

	return domain.PositionSizeResult{FinalAmountSol: amount, Multiplier: multiplier}
}
