// Package quote probes swap routability for discovered tokens. A token is
// tradable only when a quote endpoint confirms a live route both into and out
// of the token; an endpoint outage is never treated as evidence of no route.
package quote

import (
	"context"
	"errors"

	"solana-sniper/internal/domain"
)

// ErrNoRoute means an endpoint answered authoritatively that no swap route
// exists for the pair. Distinct from transport failures: only this error
// downgrades a token, everything else leaves it pending.
var ErrNoRoute = errors.New("no swap route")

// WSOLMint is the wrapped SOL mint used as the quote-side asset.
const WSOLMint = "So11111111111111111111111111111111111111112"

// Endpoint produces swap quotes for a token pair.
type Endpoint interface {
	// Name identifies the endpoint for logging.
	Name() string

	// Quote returns the best route for swapping amount (raw units of
	// inputMint) into outputMint at the given slippage tolerance.
	// Returns ErrNoRoute when the endpoint confirms no route exists.
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*domain.TradeQuote, error)
}
