package sources

import (
	"context"
	"net/http"

	"solana-sniper/internal/domain"
)

const raydiumBaseURL = "https://api-v3.raydium.io"

const wsolMint = "So11111111111111111111111111111111111111112"

// RaydiumSource fetches recent pools from the Raydium v3 API.
type RaydiumSource struct {
	baseURL string
	client  *http.Client
}

// NewRaydiumSource creates a new Raydium adapter.
func NewRaydiumSource() *RaydiumSource {
	return &RaydiumSource{baseURL: raydiumBaseURL, client: newHTTPClient()}
}

// WithBaseURL overrides the endpoint. Test helper.
func (s *RaydiumSource) WithBaseURL(url string) *RaydiumSource {
	s.baseURL = url
	return s
}

// Compile-time interface check.
var _ PoolSource = (*RaydiumSource)(nil)

// Name identifies the adapter.
func (s *RaydiumSource) Name() string { return "raydium" }

// Fetch returns recent token/SOL pools above the liquidity floor.
func (s *RaydiumSource) Fetch(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error) {
	url := s.baseURL + "/pools/info/list?poolType=standard&poolSortField=created&sortType=desc&pageSize=100&page=1"

	var resp raydiumResponse
	if err := getJSON(ctx, s.client, url, &resp); err != nil {
		return nil, err
	}

	var pools []*domain.DiscoveredPool
	for _, p := range resp.Data.Data {
		// Only token/WSOL pools; the token side is the discovery target.
		var token raydiumMintInfo
		switch {
		case p.MintB.Address == wsolMint:
			token = p.MintA
		case p.MintA.Address == wsolMint:
			token = p.MintB
		default:
			continue
		}

		liqSol := p.Tvl / solUsdEstimate
		if liqSol < minLiquiditySol {
			continue
		}

		pools = append(pools, &domain.DiscoveredPool{
			Mint:          token.Address,
			Name:          token.Name,
			Symbol:        token.Symbol,
			LiquiditySol:  liqSol,
			LiquidityUSD:  p.Tvl,
			Source:        s.Name(),
			Dex:           "raydium",
			PoolCreatedAt: p.OpenTime * 1000,
			PriceUSD:      p.Price,
			Volume24hUSD:  p.Day.Volume,
		})
	}
	return pools, nil
}

// raydiumResponse mirrors the Raydium v3 pool list payload.
type raydiumResponse struct {
	Success bool        `json:"success"`
	Data    raydiumData `json:"data"`
}

type raydiumData struct {
	Data []raydiumPool `json:"data"`
}

type raydiumPool struct {
	MintA    raydiumMintInfo `json:"mintA"`
	MintB    raydiumMintInfo `json:"mintB"`
	Price    float64         `json:"price"`
	Tvl      float64         `json:"tvl"`
	OpenTime int64           `json:"openTime,string"`
	Day      raydiumDayStats `json:"day"`
}

type raydiumMintInfo struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type raydiumDayStats struct {
	Volume float64 `json:"volume"`
}
