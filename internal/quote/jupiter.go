package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-sniper/internal/domain"
)

const (
	jupiterBaseURL     = "https://quote-api.jup.ag/v6"
	jupiterLiteBaseURL = "https://lite-api.jup.ag/swap/v1"
)

// Error codes Jupiter returns when a pair genuinely has no route.
var jupiterNoRouteCodes = map[string]bool{
	"COULD_NOT_FIND_ANY_ROUTE":  true,
	"TOKEN_NOT_TRADABLE":        true,
	"ROUTE_PLAN_DOES_NOT_EXIST": true,
}

// JupiterEndpoint quotes swaps against a Jupiter-compatible aggregator API.
// The primary and lite deployments share the payload shape, so both are
// served by this one type with different base URLs.
type JupiterEndpoint struct {
	name    string
	baseURL string
	client  *http.Client
}

// NewJupiterEndpoint creates the primary Jupiter quote endpoint.
func NewJupiterEndpoint() *JupiterEndpoint {
	return &JupiterEndpoint{
		name:    "jupiter",
		baseURL: jupiterBaseURL,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

// NewJupiterLiteEndpoint creates the fallback endpoint on the lite deployment.
func NewJupiterLiteEndpoint() *JupiterEndpoint {
	return &JupiterEndpoint{
		name:    "jupiter-lite",
		baseURL: jupiterLiteBaseURL,
		client:  &http.Client{Timeout: 8 * time.Second},
	}
}

// WithBaseURL overrides the endpoint. Test helper.
func (e *JupiterEndpoint) WithBaseURL(u string) *JupiterEndpoint {
	e.baseURL = u
	return e
}

// Compile-time interface check.
var _ Endpoint = (*JupiterEndpoint)(nil)

// Name identifies the endpoint.
func (e *JupiterEndpoint) Name() string { return e.name }

// Quote fetches the best route for the pair.
func (e *JupiterEndpoint) Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.TradeQuote, error) {
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/quote?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s quote: %w", e.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", e.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		// 400-class answers can still be an authoritative no-route verdict.
		var apiErr jupiterError
		if json.Unmarshal(body, &apiErr) == nil && apiErr.isNoRoute() {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("%s quote: status %d", e.name, resp.StatusCode)
	}

	var payload jupiterQuoteResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%s decode: %w", e.name, err)
	}
	if payload.ErrorCode != "" || payload.Error != "" {
		if (jupiterError{Error: payload.Error, ErrorCode: payload.ErrorCode}).isNoRoute() {
			return nil, ErrNoRoute
		}
		return nil, fmt.Errorf("%s quote: %s", e.name, payload.Error)
	}
	if len(payload.RoutePlan) == 0 {
		return nil, ErrNoRoute
	}

	inAmount, err := strconv.ParseUint(payload.InAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s parse inAmount %q: %w", e.name, payload.InAmount, err)
	}
	outAmount, err := strconv.ParseUint(payload.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s parse outAmount %q: %w", e.name, payload.OutAmount, err)
	}
	impact, _ := strconv.ParseFloat(payload.PriceImpactPct, 64)

	var hops []string
	for _, step := range payload.RoutePlan {
		hops = append(hops, step.SwapInfo.Label)
	}

	return &domain.TradeQuote{
		InputMint:      payload.InputMint,
		OutputMint:     payload.OutputMint,
		InputAmount:    inAmount,
		OutputAmount:   outAmount,
		PriceImpactPct: impact,
		SlippageBps:    slippageBps,
		Route:          strings.Join(hops, ">"),
	}, nil
}

type jupiterError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

func (e jupiterError) isNoRoute() bool {
	if jupiterNoRouteCodes[e.ErrorCode] {
		return true
	}
	return strings.Contains(strings.ToLower(e.Error), "no route")
}

// jupiterQuoteResponse mirrors the v6 quote payload.
type jupiterQuoteResponse struct {
	InputMint      string            `json:"inputMint"`
	InAmount       string            `json:"inAmount"`
	OutputMint     string            `json:"outputMint"`
	OutAmount      string            `json:"outAmount"`
	PriceImpactPct string            `json:"priceImpactPct"`
	RoutePlan      []jupiterRouteHop `json:"routePlan"`
	Error          string            `json:"error"`
	ErrorCode      string            `json:"errorCode"`
}

type jupiterRouteHop struct {
	SwapInfo jupiterSwapInfo `json:"swapInfo"`
}

type jupiterSwapInfo struct {
	Label string `json:"label"`
}
