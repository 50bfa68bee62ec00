package sources

import (
	"context"
	"net/http"
	"strconv"

	"solana-sniper/internal/domain"
)

const dexScreenerBaseURL = "https://api.dexscreener.com"

// Approximate SOL/USD rate used only to derive native-equivalent liquidity
// when the provider reports USD figures. Discovery-stage precision is enough;
// the tradability stage re-checks liquidity against live quotes.
const solUsdEstimate = 150.0

// DexScreenerSource fetches recently active Solana pairs from DexScreener.
type DexScreenerSource struct {
	baseURL string
	client  *http.Client
}

// NewDexScreenerSource creates a new DexScreener adapter.
func NewDexScreenerSource() *DexScreenerSource {
	return &DexScreenerSource{baseURL: dexScreenerBaseURL, client: newHTTPClient()}
}

// WithBaseURL overrides the endpoint. Test helper.
func (s *DexScreenerSource) WithBaseURL(url string) *DexScreenerSource {
	s.baseURL = url
	return s
}

// Compile-time interface check.
var _ PoolSource = (*DexScreenerSource)(nil)

// Name identifies the adapter.
func (s *DexScreenerSource) Name() string { return "dexscreener" }

// Fetch returns Solana pairs above the liquidity floor.
func (s *DexScreenerSource) Fetch(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error) {
	var resp dexScreenerResponse
	if err := getJSON(ctx, s.client, s.baseURL+"/latest/dex/search?q=SOL", &resp); err != nil {
		return nil, err
	}

	var pools []*domain.DiscoveredPool
	for _, pair := range resp.Pairs {
		if pair.ChainID != "solana" || pair.BaseToken.Address == "" {
			continue
		}

		liqSol := 0.0
		liqUSD := 0.0
		if pair.Liquidity != nil {
			liqUSD = pair.Liquidity.Usd
			liqSol = pair.Liquidity.Quote // quote side is SOL for x/SOL pairs
			if liqSol == 0 && liqUSD > 0 {
				liqSol = liqUSD / solUsdEstimate
			}
		}
		if liqSol < minLiquiditySol {
			continue
		}

		price, _ := strconv.ParseFloat(pair.PriceUsd, 64)
		pools = append(pools, &domain.DiscoveredPool{
			Mint:           pair.BaseToken.Address,
			Name:           pair.BaseToken.Name,
			Symbol:         pair.BaseToken.Symbol,
			LiquiditySol:   liqSol,
			LiquidityUSD:   liqUSD,
			Source:         s.Name(),
			Dex:            pair.DexID,
			PoolCreatedAt:  pair.PairCreatedAt,
			PriceUSD:       price,
			Volume24hUSD:   pair.Volume.H24,
			PriceChange24h: pair.PriceChange.H24,
		})
	}
	return pools, nil
}

// dexScreenerResponse mirrors the DexScreener pair search payload.
type dexScreenerResponse struct {
	Pairs []dexScreenerPair `json:"pairs"`
}

type dexScreenerPair struct {
	ChainID       string                 `json:"chainId"`
	DexID         string                 `json:"dexId"`
	PairAddress   string                 `json:"pairAddress"`
	BaseToken     dexScreenerToken       `json:"baseToken"`
	QuoteToken    dexScreenerToken       `json:"quoteToken"`
	PriceUsd      string                 `json:"priceUsd"`
	Volume        dexScreenerVolume      `json:"volume"`
	PriceChange   dexScreenerPriceChange `json:"priceChange"`
	Liquidity     *dexScreenerLiquidity  `json:"liquidity"`
	PairCreatedAt int64                  `json:"pairCreatedAt"`
}

type dexScreenerToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type dexScreenerVolume struct {
	H24 float64 `json:"h24"`
}

type dexScreenerPriceChange struct {
	H24 float64 `json:"h24"`
}

type dexScreenerLiquidity struct {
	Usd   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}
