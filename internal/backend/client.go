// Package backend is the client for the platform's three external RPCs:
// discovery/tradability, swap quote/execute, and trade confirmation. Auth
// failures trigger exactly one session refresh and retry of the originating
// call before the error surfaces.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"solana-sniper/internal/domain"
)

// TokenSource supplies and refreshes the session auth token.
type TokenSource interface {
	// Token returns the current bearer token.
	Token() string

	// Refresh obtains a new token after an auth failure.
	Refresh(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource with no refresh capability.
type StaticToken string

func (s StaticToken) Token() string { return string(s) }

func (s StaticToken) Refresh(_ context.Context) (string, error) {
	return "", fmt.Errorf("static token cannot be refreshed")
}

// Client talks to the platform backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger

	mu     sync.Mutex
	tokens TokenSource
	token  string
}

// NewClient creates a backend client.
func NewClient(baseURL string, tokens TokenSource, logger *log.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
		tokens:  tokens,
		token:   tokens.Token(),
	}
}

// WithHTTPClient overrides the HTTP client. Test helper.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// QuoteRequest asks the swap RPC for a quote.
type QuoteRequest struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippageBps"`
}

// SwapExecution is the execute-action response: an unsigned transaction the
// caller must sign through the wallet boundary, plus the position handle.
type SwapExecution struct {
	Quote      *domain.TradeQuote
	UnsignedTx string // base64
	PositionID string
}

// ConfirmRequest reports a broadcast signature for server-side confirmation.
type ConfirmRequest struct {
	Signature     string `json:"signature"`
	PositionID    string `json:"positionId"`
	Action        string `json:"action"` // buy | sell
	WalletAddress string `json:"walletAddress"`
}

// ConfirmResult is the confirmation verdict.
type ConfirmResult struct {
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
}

// DiscoveryRequest asks the discovery RPC for a scan.
type DiscoveryRequest struct {
	MinLiquidity float64  `json:"minLiquidity"`
	Chains       []string `json:"chains"`
	Stage        string   `json:"stage"` // discovery | both
}

// DiscoveryStats is the discovery RPC's per-scan accounting.
type DiscoveryStats struct {
	Discovered int `json:"discovered"`
	Total      int `json:"total"`
	Tradeable  int `json:"tradeable"`
	Pending    int `json:"pending"`
	Rejected   int `json:"rejected"`
	Filtered   int `json:"filtered"`
}

// DiscoveryResponse is the discovery RPC payload.
type DiscoveryResponse struct {
	DiscoveredTokens []*domain.DiscoveredPool `json:"discoveredTokens"`
	Tokens           []*domain.TradableToken  `json:"tokens"`
	PendingTokens    []*domain.PendingToken   `json:"pendingTokens"`
	Stats            DiscoveryStats           `json:"stats"`
	Timestamp        int64                    `json:"timestamp"`
}

// Quote fetches a swap quote.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*domain.TradeQuote, error) {
	payload := swapRequest{Action: "quote", QuoteRequest: req}
	var resp swapResponse
	if err := c.post(ctx, "/swap", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("swap quote: %s", resp.Error)
	}
	if resp.Quote == nil {
		return nil, fmt.Errorf("swap quote: empty response")
	}
	return resp.Quote, nil
}

// ExecuteSwap builds the swap server-side and returns the unsigned
// transaction and position handle.
func (c *Client) ExecuteSwap(ctx context.Context, req QuoteRequest) (*SwapExecution, error) {
	payload := swapRequest{Action: "execute", QuoteRequest: req}
	var resp swapResponse
	if err := c.post(ctx, "/swap", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("swap execute: %s", resp.Error)
	}
	if resp.UnsignedTx == "" || resp.PositionID == "" {
		return nil, fmt.Errorf("swap execute: incomplete response")
	}
	return &SwapExecution{Quote: resp.Quote, UnsignedTx: resp.UnsignedTx, PositionID: resp.PositionID}, nil
}

// ConfirmTrade reports a broadcast trade for confirmation.
func (c *Client) ConfirmTrade(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	var resp ConfirmResult
	if err := c.post(ctx, "/confirm", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunDiscovery runs a server-side discovery scan.
func (c *Client) RunDiscovery(ctx context.Context, req DiscoveryRequest) (*DiscoveryResponse, error) {
	var resp DiscoveryResponse
	if err := c.post(ctx, "/discovery", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type swapRequest struct {
	Action string `json:"action"`
	QuoteRequest
}

type swapResponse struct {
	Quote      *domain.TradeQuote `json:"quote"`
	UnsignedTx string             `json:"unsignedTransaction,omitempty"`
	PositionID string             `json:"positionId,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// post sends one authenticated JSON request. On an auth failure it refreshes
// the session token and retries the call exactly once.
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	err := c.doPost(ctx, path, body, out)
	if err == nil || !isAuthError(err) {
		return err
	}

	c.logf("auth failure on %s, refreshing session: %v", path, err)
	token, refreshErr := c.tokens.Refresh(ctx)
	if refreshErr != nil {
		return fmt.Errorf("session refresh after auth failure: %w", refreshErr)
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	return c.doPost(ctx, path, body, out)
}

func (c *Client) doPost(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.Unlock()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("POST %s read body: %w", path, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("POST %s: status 401: %s", path, strings.TrimSpace(string(respBody)))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("POST %s decode: %w", path, err)
	}
	return nil
}

// isAuthError matches expired-session failures: a 401 status or a JWT expiry
// signature in the error body.
func isAuthError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "status 401") ||
		strings.Contains(msg, "jwt expired") ||
		strings.Contains(msg, "token expired") ||
		strings.Contains(msg, "invalid jwt")
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf("[backend] "+format, args...)
	}
}
