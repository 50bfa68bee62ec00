package domain

// WSOLMint is the wrapped SOL mint, the quote-side asset for every pair.
const WSOLMint = "So11111111111111111111111111111111111111112"

// DiscoveredPool is a raw pool detection record produced by a source adapter.
// Ephemeral: overwritten on the next discovery cycle, deduplicated by mint.
type DiscoveredPool struct {
	Mint           string  `json:"mint"` // token mint address (dedup key)
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	LiquiditySol   float64 `json:"liquiditySol"` // native-asset-equivalent liquidity
	LiquidityUSD   float64 `json:"liquidityUsd"`
	Source         string  `json:"source"`        // adapter that produced this record
	Dex            string  `json:"dex"`           // DEX identifier (raydium, orca, pumpfun, ...)
	PoolCreatedAt  int64   `json:"poolCreatedAt"` // Unix timestamp in milliseconds
	PriceUSD       float64 `json:"priceUsd"`
	Volume24hUSD   float64 `json:"volume24hUsd"`
	PriceChange24h float64 `json:"priceChange24h"` // percent, signed
}

// Merge refreshes market fields from a fresher record for the same mint.
// Identity fields (name, symbol, source, dex) are kept from the first sighting.
func (p *DiscoveredPool) Merge(fresh *DiscoveredPool) {
	if fresh == nil || fresh.Mint != p.Mint {
		return
	}
	if fresh.PriceUSD > 0 {
		p.PriceUSD = fresh.PriceUSD
	}
	if fresh.LiquiditySol > 0 {
		p.LiquiditySol = fresh.LiquiditySol
	}
	if fresh.LiquidityUSD > 0 {
		p.LiquidityUSD = fresh.LiquidityUSD
	}
	if fresh.Volume24hUSD > 0 {
		p.Volume24hUSD = fresh.Volume24hUSD
	}
	if fresh.PriceChange24h != 0 {
		p.PriceChange24h = fresh.PriceChange24h
	}
	if p.PoolCreatedAt == 0 {
		p.PoolCreatedAt = fresh.PoolCreatedAt
	}
}
