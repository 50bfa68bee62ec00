package sources

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"solana-sniper/internal/domain"
)

const geckoTerminalBaseURL = "https://api.geckoterminal.com/api/v2"

// GeckoTerminalSource fetches freshly created Solana pools from GeckoTerminal.
type GeckoTerminalSource struct {
	baseURL string
	client  *http.Client
}

// NewGeckoTerminalSource creates a new GeckoTerminal adapter.
func NewGeckoTerminalSource() *GeckoTerminalSource {
	return &GeckoTerminalSource{baseURL: geckoTerminalBaseURL, client: newHTTPClient()}
}

// WithBaseURL overrides the endpoint. Test helper.
func (s *GeckoTerminalSource) WithBaseURL(url string) *GeckoTerminalSource {
	s.baseURL = url
	return s
}

// Compile-time interface check.
var _ PoolSource = (*GeckoTerminalSource)(nil)

// Name identifies the adapter.
func (s *GeckoTerminalSource) Name() string { return "geckoterminal" }

// Fetch returns new Solana pools above the liquidity floor.
func (s *GeckoTerminalSource) Fetch(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error) {
	var resp geckoTerminalResponse
	if err := getJSON(ctx, s.client, s.baseURL+"/networks/solana/new_pools?page=1", &resp); err != nil {
		return nil, err
	}

	var pools []*domain.DiscoveredPool
	for _, item := range resp.Data {
		attrs := item.Attributes

		// Token IDs are encoded as "solana_<mint>".
		mint := strings.TrimPrefix(item.Relationships.BaseToken.Data.ID, "solana_")
		if mint == "" {
			continue
		}

		liqUSD, _ := strconv.ParseFloat(attrs.ReserveInUsd, 64)
		liqSol := liqUSD / solUsdEstimate
		if liqSol < minLiquiditySol {
			continue
		}

		price, _ := strconv.ParseFloat(attrs.BaseTokenPriceUsd, 64)
		vol, _ := strconv.ParseFloat(attrs.VolumeUsd.H24, 64)

		var createdAt int64
		if t, err := time.Parse(time.RFC3339, attrs.PoolCreatedAt); err == nil {
			createdAt = t.UnixMilli()
		}

		name, symbol := splitPoolName(attrs.Name)
		pools = append(pools, &domain.DiscoveredPool{
			Mint:          mint,
			Name:          name,
			Symbol:        symbol,
			LiquiditySol:  liqSol,
			LiquidityUSD:  liqUSD,
			Source:        s.Name(),
			Dex:           strings.TrimPrefix(item.Relationships.Dex.Data.ID, "solana_"),
			PoolCreatedAt: createdAt,
			PriceUSD:      price,
			Volume24hUSD:  vol,
		})
	}
	return pools, nil
}

// splitPoolName splits "WIF / SOL" style pool names into name and symbol.
func splitPoolName(poolName string) (string, string) {
	parts := strings.SplitN(poolName, "/", 2)
	symbol := strings.TrimSpace(parts[0])
	return symbol, symbol
}

// geckoTerminalResponse mirrors the JSON:API new_pools payload.
type geckoTerminalResponse struct {
	Data []geckoTerminalPool `json:"data"`
}

type geckoTerminalPool struct {
	ID            string                  `json:"id"`
	Attributes    geckoTerminalAttributes `json:"attributes"`
	Relationships geckoTerminalRels       `json:"relationships"`
}

type geckoTerminalAttributes struct {
	Name              string              `json:"name"`
	BaseTokenPriceUsd string              `json:"base_token_price_usd"`
	ReserveInUsd      string              `json:"reserve_in_usd"`
	PoolCreatedAt     string              `json:"pool_created_at"`
	VolumeUsd         geckoTerminalVolume `json:"volume_usd"`
}

type geckoTerminalVolume struct {
	H24 string `json:"h24"`
}

type geckoTerminalRels struct {
	BaseToken geckoTerminalRel `json:"base_token"`
	Dex       geckoTerminalRel `json:"dex"`
}

type geckoTerminalRel struct {
	Data geckoTerminalRelData `json:"data"`
}

type geckoTerminalRelData struct {
	ID string `json:"id"`
}
