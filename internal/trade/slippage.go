package trade

import "fmt"

// Slippage policy bounds, in basis points.
const (
	BaseBuySlippageBps  = 100
	BaseSellSlippageBps = 250 // exiting a thin position is more time-critical
	MaxSlippageBps      = 2500

	// MaxSellRetries bounds the escalating-slippage retry loop.
	MaxSellRetries = 3
)

// Liquidity tiers in SOL. Thinner pools need wider tolerance.
var liquidityTiers = []struct {
	belowSol float64
	bps      int
}{
	{25, 1200},
	{100, 600},
	{500, 350},
}

// Price-impact tiers in percent.
var impactTiers = []struct {
	abovePct float64
	bps      int
}{
	{5, 900},
	{2, 450},
}

// SlippageInput feeds the dynamic slippage calculation.
type SlippageInput struct {
	LiquiditySol   float64
	PriceImpactPct float64
	IsSell         bool
	RetryCount     int // 0 on the first attempt
}

// SlippageResult is the computed tolerance and the binding constraint.
type SlippageResult struct {
	Bps    int
	Reason string
}

// CalculateDynamicSlippage computes the slippage tolerance for an attempt.
// The liquidity-driven and impact-driven bounds are combined by maximum,
// never summed. Retries multiply the result by 1 + 0.5*retryCount, capped at
// the absolute ceiling.
func CalculateDynamicSlippage(in SlippageInput) SlippageResult {
	bps := BaseBuySlippageBps
	reason := "base buy tolerance"
	if in.IsSell {
		bps = BaseSellSlippageBps
		reason = "base sell tolerance"
	}

	for _, tier := range liquidityTiers {
		if in.LiquiditySol > 0 && in.LiquiditySol < tier.belowSol {
			if tier.bps > bps {
				bps = tier.bps
				reason = fmt.Sprintf("liquidity below %.0f SOL", tier.belowSol)
			}
			break
		}
	}

	for _, tier := range impactTiers {
		if in.PriceImpactPct > tier.abovePct {
			if tier.bps > bps {
				bps = tier.bps
				reason = fmt.Sprintf("price impact above %.0f%%", tier.abovePct)
			}
			break
		}
	}

	if in.RetryCount > 0 {
		scaled := float64(bps) * (1 + 0.5*float64(in.RetryCount))
		bps = int(scaled)
		reason = fmt.Sprintf("%s, escalated for retry %d", reason, in.RetryCount)
	}
	if bps > MaxSlippageBps {
		bps = MaxSlippageBps
		reason = "capped at ceiling"
	}

	return SlippageResult{Bps: bps, Reason: reason}
}
