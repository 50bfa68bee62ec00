package quote

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/race"
)

// Default prober configuration.
const (
	DefaultProbeTimeout     = 5 * time.Second
	DefaultProbeConcurrency = 8
	DefaultProbeSlippageBps = 300

	// ProbeAmountLamports is the nominal buy size used to test routability,
	// 0.01 SOL. Small enough to quote on thin pools, large enough to expose
	// dust-only liquidity.
	ProbeAmountLamports = 10_000_000
)

// ProbeResult is the tradability verdict for a single token.
type ProbeResult struct {
	Mint      string
	CanBuy    bool
	CanSell   bool
	BuyQuote  *domain.TradeQuote
	SellQuote *domain.TradeQuote
	LatencyMs int64 // wall time of the whole probe, both directions

	// PendingReason is set when the probe could not produce a verdict or
	// confirmed the token is not routable. Empty means fully tradable.
	PendingReason string
}

// Tradable reports whether the token passed both probe directions.
func (r *ProbeResult) Tradable() bool { return r.CanBuy && r.CanSell }

// Prober checks swap routability by quoting both directions of a token pair
// against a set of aggregator endpoints raced for the first success.
type Prober struct {
	endpoints   []Endpoint
	timeout     time.Duration
	concurrency int
	slippageBps int
	metrics     *observability.Metrics // optional
	logger      *log.Logger
}

// ProberOptions configures the Prober.
type ProberOptions struct {
	Endpoints   []Endpoint
	Timeout     time.Duration // per-direction probe timeout
	Concurrency int           // batch fan-out bound
	SlippageBps int           // slippage tolerance used for probes
	Metrics     *observability.Metrics
	Logger      *log.Logger
}

// NewProber creates a tradability prober.
func NewProber(opts ProberOptions) *Prober {
	p := &Prober{
		endpoints:   opts.Endpoints,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		slippageBps: opts.SlippageBps,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultProbeTimeout
	}
	if p.concurrency <= 0 {
		p.concurrency = DefaultProbeConcurrency
	}
	if p.slippageBps <= 0 {
		p.slippageBps = DefaultProbeSlippageBps
	}
	return p
}

// FastQuote races all endpoints for the pair and returns the first successful
// quote. Returns ErrNoRoute only when at least one endpoint answered
// authoritatively that no route exists; plain transport failures surface as a
// joined race error instead.
func (p *Prober) FastQuote(ctx context.Context, inputMint, outputMint string, amount uint64) (*domain.TradeQuote, error) {
	var noRoute atomic.Bool

	fns := make([]race.Fn[*domain.TradeQuote], len(p.endpoints))
	for i, ep := range p.endpoints {
		fns[i] = race.Fn[*domain.TradeQuote]{
			Name: ep.Name(),
			Run: func(ctx context.Context) (*domain.TradeQuote, error) {
				q, err := ep.Quote(ctx, inputMint, outputMint, amount, p.slippageBps)
				if errors.Is(err, ErrNoRoute) {
					noRoute.Store(true)
				}
				return q, err
			},
		}
	}

	res, err := race.First(ctx, p.timeout, fns)
	if err != nil {
		if noRoute.Load() {
			return nil, ErrNoRoute
		}
		return nil, err
	}
	if p.metrics != nil {
		p.metrics.ProbeLatency.Observe(res.Took.Seconds())
	}
	return res.Value, nil
}

// ProbeToken checks both swap directions for a token. The sell probe reuses
// the buy quote's output amount so it reflects a realistic round trip.
func (p *Prober) ProbeToken(ctx context.Context, mint string) *ProbeResult {
	result := &ProbeResult{Mint: mint}
	start := time.Now()
	defer func() { result.LatencyMs = time.Since(start).Milliseconds() }()

	buy, err := p.FastQuote(ctx, WSOLMint, mint, ProbeAmountLamports)
	switch {
	case errors.Is(err, ErrNoRoute):
		result.PendingReason = domain.PendingNoRoute
		return result
	case err != nil:
		p.logf("buy probe %s failed: %v", mint, err)
		result.PendingReason = domain.PendingProbeFailed
		return result
	}
	result.CanBuy = true
	result.BuyQuote = buy

	sellAmount := buy.OutputAmount
	if sellAmount == 0 {
		result.PendingReason = domain.PendingLowLiquidity
		return result
	}

	sell, err := p.FastQuote(ctx, mint, WSOLMint, sellAmount)
	switch {
	case errors.Is(err, ErrNoRoute):
		// Buyable but not sellable is the honeypot shape; treat as no route.
		result.PendingReason = domain.PendingNoRoute
		return result
	case err != nil:
		p.logf("sell probe %s failed: %v", mint, err)
		result.PendingReason = domain.PendingProbeFailed
		return result
	}
	result.CanSell = true
	result.SellQuote = sell
	return result
}

// ProbeBatch probes many tokens with bounded concurrency. The result slice
// is ordered to match mints; a cancelled context marks the remainder as
// probe failures rather than dropping them.
func (p *Prober) ProbeBatch(ctx context.Context, mints []string) []*ProbeResult {
	results := make([]*ProbeResult, len(mints))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, mint := range mints {
		wg.Add(1)
		go func(i int, mint string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = &ProbeResult{Mint: mint, PendingReason: domain.PendingProbeFailed}
				return
			}
			results[i] = p.ProbeToken(ctx, mint)
		}(i, mint)
	}
	wg.Wait()
	return results
}

func (p *Prober) logf(format string, args ...interface{}) {
	if p.logger != nil {
		p.logger.Printf("[probe] "+format, args...)
	}
}
