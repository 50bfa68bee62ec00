// Package sources provides market-data source adapters and the discovery
// racer that merges them. Each adapter performs a single bounded HTTP fetch
// and normalizes provider payloads into domain.DiscoveredPool records.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"solana-sniper/internal/domain"
)

// PoolSource is one external market-data provider.
type PoolSource interface {
	// Name identifies the adapter in merged records and logs.
	Name() string

	// Fetch returns pools with at least minLiquiditySol of native liquidity.
	// Implementations must honor ctx cancellation; a single call maps to a
	// single bounded network request.
	Fetch(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error)
}

const defaultFetchTimeout = 10 * time.Second

// getJSON performs one bounded GET and decodes the JSON body into out.
func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultFetchTimeout}
}
