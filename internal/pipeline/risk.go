package pipeline

import (
	"solana-sniper/internal/domain"
	"solana-sniper/internal/quote"
)

// scoreRisk derives a composite 0-100 risk score from market shape and the
// safety verdict. Higher is riskier. The score is advisory sizing input only;
// hard blocks never flow through it.
func scoreRisk(pool *domain.DiscoveredPool, probe *quote.ProbeResult, lp *domain.LpVerificationResult) int {
	score := 50

	switch {
	case pool.LiquiditySol >= 500:
		score -= 20
	case pool.LiquiditySol >= 100:
		score -= 10
	case pool.LiquiditySol < 25:
		score += 20
	}

	if pool.Volume24hUSD >= 50_000 {
		score -= 10
	}

	if probe != nil && probe.BuyQuote != nil && probe.BuyQuote.PriceImpactPct > 3 {
		score += 15
	}

	if lp != nil {
		if lp.IsSafe {
			score -= 20
		}
		if lp.BurnedPct+lp.LockedPct >= 95 {
			score -= 5
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}
