package backend

import (
	"context"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/sources"
)

// DiscoverySource exposes the server-side discovery RPC as a pool source so
// the racer can merge its results with the public market-data adapters.
type DiscoverySource struct {
	client *Client
}

// NewDiscoverySource wraps a backend client as a pool source.
func NewDiscoverySource(client *Client) *DiscoverySource {
	return &DiscoverySource{client: client}
}

// Compile-time interface check.
var _ sources.PoolSource = (*DiscoverySource)(nil)

// Name identifies the adapter.
func (s *DiscoverySource) Name() string { return "backend" }

// Fetch runs a discovery-stage scan and returns the raw detections.
func (s *DiscoverySource) Fetch(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error) {
	resp, err := s.client.RunDiscovery(ctx, DiscoveryRequest{
		MinLiquidity: minLiquiditySol,
		Chains:       []string{"solana"},
		Stage:        "discovery",
	})
	if err != nil {
		return nil, err
	}
	return resp.DiscoveredTokens, nil
}
