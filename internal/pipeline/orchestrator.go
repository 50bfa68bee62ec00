// Package pipeline coordinates the two-stage token pipeline: broad discovery
// across racing source adapters, then strict tradability checking through
// quote probes and on-chain safety verification, with the token state
// registry recording every verdict.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/quote"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/storage"
)

// DefaultPendingTTL bounds how long a PENDING verdict defers re-evaluation.
const DefaultPendingTTL = 10 * time.Minute

// earlyBuyWindow bounds how much of a mint's transaction history counts as
// the launch window when estimating early buyers.
const earlyBuyWindow = 32

// Discoverer races source adapters. Satisfied by *sources.Racer.
type Discoverer interface {
	RaceDiscovery(ctx context.Context, minLiquiditySol float64) ([]*domain.DiscoveredPool, error)
}

// TokenProber checks swap routability. Satisfied by *quote.Prober.
type TokenProber interface {
	ProbeBatch(ctx context.Context, mints []string) []*quote.ProbeResult
}

// LpVerifier derives on-chain safety verdicts. Satisfied by *safety.Verifier.
type LpVerifier interface {
	VerifyLpIntegrity(ctx context.Context, lpMint, creator string) (*domain.LpVerificationResult, error)
}

// ChainReader supplies on-chain enrichment lookups. Satisfied by
// solana.RPCClient.
type ChainReader interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)
}

// Stats is one cycle's accounting.
//
// Invariant: Tradeable + Filtered <= Discovered for the same cycle.
type Stats struct {
	Discovered int
	Tradeable  int
	Pending    int
	Rejected   int
	Filtered   int
	DurationMs int64
	Timestamp  int64
}

// Result is a pipeline stage outcome. Partial marks a snapshot of the prior
// cycle returned because a cycle was already in flight.
type Result struct {
	Discovered    []*domain.DiscoveredPool
	Tokens        []*domain.TradableToken
	PendingTokens []*domain.PendingToken
	Stats         Stats
	Partial       bool
}

// Config tunes the orchestrator.
type Config struct {
	MinLiquiditySol float64
	PendingTTL      time.Duration
}

// Orchestrator owns the pipeline cycles. At most one discovery cycle and one
// tradability cycle run at a time; an overlapping call returns the prior
// partial result instead of blocking, because the upstream APIs rate-limit
// and overlapping cycles would double-count statistics.
type Orchestrator struct {
	racer    Discoverer
	prober   TokenProber
	verifier LpVerifier  // optional
	chain    ChainReader // optional early-activity enrichment
	registry storage.TokenStateStore
	cycles   storage.CycleStatStore // optional analytics sink
	metrics  *observability.Metrics // optional
	config   Config
	logger   *log.Logger

	discoveryBusy   atomic.Bool
	tradabilityBusy atomic.Bool

	mu             sync.Mutex
	lastDiscovered []*domain.DiscoveredPool
	lastTokens     []*domain.TradableToken
	lastPending    []*domain.PendingToken
	lastStats      Stats
}

// Options wires the Orchestrator.
type Options struct {
	Racer    Discoverer
	Prober   TokenProber
	Verifier LpVerifier
	Chain    ChainReader
	Registry storage.TokenStateStore
	Cycles   storage.CycleStatStore
	Metrics  *observability.Metrics
	Config   Config
	Logger   *log.Logger
}

// NewOrchestrator creates the pipeline orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	cfg := opts.Config
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = DefaultPendingTTL
	}
	return &Orchestrator{
		racer:    opts.Racer,
		prober:   opts.Prober,
		verifier: opts.Verifier,
		chain:    opts.Chain,
		registry: opts.Registry,
		cycles:   opts.Cycles,
		metrics:  opts.Metrics,
		config:   cfg,
		logger:   opts.Logger,
	}
}

// RunDiscovery executes stage 1: race the adapters, register unseen mints.
// May run on its own faster cadence than the tradability stage.
func (o *Orchestrator) RunDiscovery(ctx context.Context) (*Result, error) {
	if !o.discoveryBusy.CompareAndSwap(false, true) {
		o.countSkip(domain.StageDiscovery)
		return o.snapshot(true), nil
	}
	defer o.discoveryBusy.Store(false)

	start := time.Now()
	pools, err := o.racer.RaceDiscovery(ctx, o.config.MinLiquiditySol)
	if err != nil {
		o.countCycle(domain.StageDiscovery, "error", start)
		return nil, fmt.Errorf("discovery race: %w", err)
	}

	mints := make([]string, 0, len(pools))
	for _, p := range pools {
		mints = append(mints, p.Mint)
	}
	if err := o.registry.RegisterBatch(ctx, mints); err != nil {
		o.countCycle(domain.StageDiscovery, "error", start)
		return nil, fmt.Errorf("register batch: %w", err)
	}

	stats := Stats{
		Discovered: len(pools),
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  time.Now().UnixMilli(),
	}

	o.mu.Lock()
	o.lastDiscovered = pools
	o.lastStats = stats
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.PoolsDiscovered.Add(float64(len(pools)))
		for _, p := range pools {
			o.metrics.PoolsBySource.WithLabelValues(p.Source).Inc()
		}
	}
	o.countCycle(domain.StageDiscovery, "ok", start)
	o.recordCycleStat(ctx, domain.StageDiscovery, stats)
	o.logf("discovery: %d pools in %dms", len(pools), stats.DurationMs)

	return o.snapshot(false), nil
}

// RunTradabilityCheck executes stage 2 against the latest discovery snapshot:
// liquidity floor, quote probe, safety verification, risk scoring, and the
// TradableToken/PendingToken partition with registry updates.
func (o *Orchestrator) RunTradabilityCheck(ctx context.Context) (*Result, error) {
	if !o.tradabilityBusy.CompareAndSwap(false, true) {
		o.countSkip(domain.StageTradability)
		return o.snapshot(true), nil
	}
	defer o.tradabilityBusy.Store(false)

	start := time.Now()

	o.mu.Lock()
	candidates := append([]*domain.DiscoveredPool(nil), o.lastDiscovered...)
	o.mu.Unlock()

	stats := Stats{Discovered: len(candidates)}
	var tokens []*domain.TradableToken
	var pending []*domain.PendingToken

	// Liquidity floor and registry eligibility first; probing is the
	// expensive step and runs only on survivors.
	var probeList []*domain.DiscoveredPool
	for _, pool := range candidates {
		if pool.LiquiditySol < o.config.MinLiquiditySol {
			// Filtered, not deferred: a PENDING mark would block the mint
			// for the full TTL even after liquidity crosses the floor.
			// PENDING is reserved for probe and verification outcomes.
			stats.Filtered++
			continue
		}
		ok, err := o.registry.CanTrade(ctx, pool.Mint, o.config.PendingTTL)
		if err != nil {
			o.logf("registry check %s: %v", pool.Mint, err)
			stats.Filtered++
			continue
		}
		if !ok {
			stats.Filtered++
			continue
		}
		probeList = append(probeList, pool)
	}

	mints := make([]string, len(probeList))
	for i, pool := range probeList {
		mints[i] = pool.Mint
	}
	probes := o.prober.ProbeBatch(ctx, mints)

	for i, pool := range probeList {
		probe := probes[i]
		if !probe.Tradable() {
			pending = append(pending, o.deferToken(ctx, pool, probe.PendingReason))
			stats.Pending++
			continue
		}

		var lp *domain.LpVerificationResult
		if o.verifier != nil {
			var err error
			lp, err = o.verifier.VerifyLpIntegrity(ctx, pool.Mint, "")
			if err != nil {
				// Verification outage defers, it never approves.
				pending = append(pending, o.deferToken(ctx, pool, domain.PendingProbeFailed))
				stats.Pending++
				o.logf("verify %s: %v", pool.Mint, err)
				continue
			}
			if !lp.IsSafe {
				// Reason preserved verbatim for audit.
				if err := o.registry.MarkRejected(ctx, pool.Mint, lp.HardBlockReason); err != nil {
					o.logf("mark rejected %s: %v", pool.Mint, err)
				}
				if o.metrics != nil {
					o.metrics.TokensRejected.WithLabelValues(lp.HardBlockReason).Inc()
				}
				stats.Rejected++
				continue
			}
		}

		token := buildTradableToken(pool, probe, lp)
		o.enrichEarlyActivity(ctx, token)
		token.RiskScore = scoreRisk(pool, probe, lp)
		if err := o.registry.MarkTradeable(ctx, pool.Mint); err != nil {
			o.logf("mark tradeable %s: %v", pool.Mint, err)
		}
		tokens = append(tokens, token)
		stats.Tradeable++
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	stats.Timestamp = time.Now().UnixMilli()

	o.mu.Lock()
	o.lastTokens = tokens
	o.lastPending = pending
	o.lastStats = stats
	o.mu.Unlock()

	if o.metrics != nil {
		o.metrics.TokensTradeable.Add(float64(stats.Tradeable))
		o.metrics.LastSuccessfulCycle.SetToCurrentTime()
	}
	o.countCycle(domain.StageTradability, "ok", start)
	o.recordCycleStat(ctx, domain.StageTradability, stats)
	o.logf("tradability: %d tradeable, %d pending, %d rejected, %d filtered of %d in %dms",
		stats.Tradeable, stats.Pending, stats.Rejected, stats.Filtered, stats.Discovered, stats.DurationMs)

	return o.snapshot(false), nil
}

// RunFullPipeline executes both stages in one synchronous pass, for callers
// that need a combined result such as a manual scan.
func (o *Orchestrator) RunFullPipeline(ctx context.Context) (*Result, error) {
	if _, err := o.RunDiscovery(ctx); err != nil {
		return nil, err
	}
	return o.RunTradabilityCheck(ctx)
}

// CleanupPending purges expired PENDING registry entries so their tokens
// become re-discoverable.
func (o *Orchestrator) CleanupPending(ctx context.Context) (int, error) {
	return o.registry.CleanupExpiredPending(ctx, o.config.PendingTTL)
}

// TradableTokens returns the latest tradability snapshot. Suits the bot
// loop's token supplier.
func (o *Orchestrator) TradableTokens(_ context.Context) []*domain.TradableToken {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*domain.TradableToken(nil), o.lastTokens...)
}

// deferToken records a pending verdict in the registry and builds the
// PendingToken record.
func (o *Orchestrator) deferToken(ctx context.Context, pool *domain.DiscoveredPool, reason string) *domain.PendingToken {
	if err := o.registry.MarkPending(ctx, pool.Mint, reason); err != nil {
		o.logf("mark pending %s: %v", pool.Mint, err)
	}
	if o.metrics != nil {
		o.metrics.TokensPending.WithLabelValues(reason).Inc()
	}
	return &domain.PendingToken{
		Mint:         pool.Mint,
		Name:         pool.Name,
		Symbol:       pool.Symbol,
		LiquiditySol: pool.LiquiditySol,
		Reason:       reason,
		FirstSeenAt:  time.Now().UnixMilli(),
	}
}

// enrichEarlyActivity estimates how many buys the mint saw in its launch
// window. Best effort: a lookup failure leaves the count at zero rather than
// blocking the token.
func (o *Orchestrator) enrichEarlyActivity(ctx context.Context, token *domain.TradableToken) {
	if o.chain == nil {
		return
	}
	sigs, err := o.chain.GetSignaturesForAddress(ctx, token.Mint, earlyBuyWindow)
	if err != nil {
		o.logf("early activity %s: %v", token.Mint, err)
		return
	}
	buyers := 0
	for _, sig := range sigs {
		if sig.Err == nil {
			buyers++
		}
	}
	// The oldest transaction on a fresh mint is the pool creation, not a buy.
	if buyers > 0 && len(sigs) < earlyBuyWindow {
		buyers--
	}
	token.EarlyBuyerCount = buyers
}

func buildTradableToken(pool *domain.DiscoveredPool, probe *quote.ProbeResult, lp *domain.LpVerificationResult) *domain.TradableToken {
	token := &domain.TradableToken{
		DiscoveredPool: *pool,
		IsTradeable:    true,
		CanBuy:         probe.CanBuy,
		CanSell:        probe.CanSell,
		Status: domain.TokenStatus{
			Stage:          domain.StageTradability,
			JupiterIndexed: true,
			CheckedAt:      time.Now().UnixMilli(),
		},
	}
	if lp != nil {
		lockPct := lp.BurnedPct + lp.LockedPct
		token.LockPct = lockPct
		token.LiquidityLocked = lockPct >= 50
		if lp.HasMintAuthority {
			auth := "present"
			token.MintAuthority = &auth
		}
		if lp.HasFreezeAuthority {
			auth := "present"
			token.FreezeAuthority = &auth
		}
		token.HolderCount = len(lp.TopHolders)
	}
	return token
}

// snapshot copies the current cycle state under the lock.
func (o *Orchestrator) snapshot(partial bool) *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return &Result{
		Discovered:    append([]*domain.DiscoveredPool(nil), o.lastDiscovered...),
		Tokens:        append([]*domain.TradableToken(nil), o.lastTokens...),
		PendingTokens: append([]*domain.PendingToken(nil), o.lastPending...),
		Stats:         o.lastStats,
		Partial:       partial,
	}
}

func (o *Orchestrator) recordCycleStat(ctx context.Context, stage string, stats Stats) {
	if o.cycles == nil {
		return
	}
	row := &storage.CycleStat{
		Stage:      stage,
		Discovered: stats.Discovered,
		Tradeable:  stats.Tradeable,
		Pending:    stats.Pending,
		Rejected:   stats.Rejected,
		Filtered:   stats.Filtered,
		DurationMs: stats.DurationMs,
		Timestamp:  stats.Timestamp,
	}
	if err := o.cycles.Insert(ctx, row); err != nil {
		o.logf("record cycle stat: %v", err)
	}
}

func (o *Orchestrator) countCycle(stage, status string, start time.Time) {
	if o.metrics == nil {
		return
	}
	o.metrics.CycleRunsTotal.WithLabelValues(stage, status).Inc()
	o.metrics.CycleDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (o *Orchestrator) countSkip(stage string) {
	if o.metrics != nil {
		o.metrics.CycleSkipped.WithLabelValues(stage).Inc()
	}
}

func (o *Orchestrator) logf(format string, args ...interface{}) {
	if o.logger != nil {
		o.logger.Printf("[pipeline] "+format, args...)
	}
}
