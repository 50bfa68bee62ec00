package bot

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/storage"
)

// Default loop configuration. Demo ticks faster: no financial or rate-limit
// risk in simulation.
const (
	DefaultDemoInterval = 10 * time.Second
	DefaultLiveInterval = 30 * time.Second
	DefaultProcessedCap = 2000
)

// Executor runs a real buy. Satisfied by *trade.Engine.
type Executor interface {
	ExecuteTrade(ctx context.Context, params domain.TradeParams) *domain.TradeResult
}

// TokenSupplier returns the current tradable-token snapshot.
type TokenSupplier func(ctx context.Context) []*domain.TradableToken

// Config is the user-facing bot policy.
type Config struct {
	Demo             bool
	WalletAddress    string
	AmountSol        float64
	MinPositionSol   float64
	MaxPositionSol   float64
	MaxRiskScore     int // tokens riskier than this are skipped
	MaxBuyerPosition int // skip tokens where this wallet would enter later than this rank, 0 = no limit
	MaxOpenPositions int
	Blacklist        []string
	PendingTTL       time.Duration
	DemoInterval     time.Duration
	LiveInterval     time.Duration
	ProcessedCap     int
}

// Bot is the evaluation loop. One cycle filters the tradable-token snapshot
// down to approved candidates and executes them strictly sequentially,
// stopping at the first failure so errors do not compound.
type Bot struct {
	config    Config
	tokens    TokenSupplier
	engine    Executor
	demo      *DemoSimulator
	registry  storage.TokenStateStore // nil in demo mode
	positions storage.PositionStore
	events    storage.TradeEventStore // optional audit log
	metrics   *observability.Metrics  // optional
	logger    *log.Logger

	inFlight  atomic.Bool
	mu        sync.Mutex
	processed map[string]bool
	traded    map[string]bool
	blacklist map[string]bool
}

// Options wires the Bot.
type Options struct {
	Config    Config
	Tokens    TokenSupplier
	Engine    Executor
	Demo      *DemoSimulator
	Registry  storage.TokenStateStore
	Positions storage.PositionStore
	Events    storage.TradeEventStore
	Metrics   *observability.Metrics
	Logger    *log.Logger
}

// New creates the bot loop.
func New(opts Options) *Bot {
	cfg := opts.Config
	if cfg.DemoInterval <= 0 {
		cfg.DemoInterval = DefaultDemoInterval
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = DefaultLiveInterval
	}
	if cfg.ProcessedCap <= 0 {
		cfg.ProcessedCap = DefaultProcessedCap
	}
	if cfg.MaxRiskScore <= 0 {
		cfg.MaxRiskScore = 60
	}

	blacklist := make(map[string]bool, len(cfg.Blacklist))
	for _, mint := range cfg.Blacklist {
		blacklist[mint] = true
	}

	return &Bot{
		config:    cfg,
		tokens:    opts.Tokens,
		engine:    opts.Engine,
		demo:      opts.Demo,
		registry:  opts.Registry,
		positions: opts.Positions,
		events:    opts.Events,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		processed: make(map[string]bool),
		traded:    make(map[string]bool),
		blacklist: blacklist,
	}
}

// Interval returns the tick interval for the configured mode.
func (b *Bot) Interval() time.Duration {
	if b.config.Demo {
		return b.config.DemoInterval
	}
	return b.config.LiveInterval
}

// Run ticks EvaluateCycle until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	ticker := time.NewTicker(b.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := b.EvaluateCycle(ctx); err != nil {
				b.logf("cycle failed: %v", err)
			}
		}
	}
}

// EvaluateCycle runs one evaluation pass and returns the number of executed
// trades. A cycle arriving while another is in flight returns immediately.
func (b *Bot) EvaluateCycle(ctx context.Context) (int, error) {
	if !b.inFlight.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer b.inFlight.Store(false)

	candidates := b.tokens(ctx)
	if len(candidates) == 0 {
		return 0, nil
	}

	open, err := b.positions.GetOpenByWallet(ctx, b.config.WalletAddress)
	if err != nil {
		return 0, err
	}
	openMints := make(map[string]bool, len(open))
	for _, p := range open {
		openMints[p.Mint] = true
	}
	openCount := len(open)
	if b.metrics != nil {
		b.metrics.OpenPositions.Set(float64(openCount))
	}

	executed := 0
	for _, token := range candidates {
		if b.config.MaxOpenPositions > 0 && openCount+executed >= b.config.MaxOpenPositions {
			break
		}
		if !b.approve(ctx, token, openMints) {
			continue
		}

		size := ComputePositionSize(SizingConfig{
			ConfiguredAmountSol: b.config.AmountSol,
			MinPositionSol:      b.config.MinPositionSol,
			MaxPositionSol:      b.config.MaxPositionSol,
		}, 100-token.RiskScore)
		if size.Blocked {
			b.markProcessed(token.Mint)
			continue
		}

		result := b.execute(ctx, token, size.FinalAmountSol)
		b.recordEvent(ctx, token, size.FinalAmountSol, result)
		b.markProcessed(token.Mint)

		if !result.Success {
			// Stop the cycle: an insufficient-balance failure would cascade
			// into repeated failed attempts for every remaining candidate.
			b.logf("buy %s failed (%s), ending cycle: %s", token.Symbol, result.ErrorCode, result.Error)
			break
		}

		executed++
		b.mu.Lock()
		b.traded[token.Mint] = true
		b.mu.Unlock()
		b.logf("bought %s for %.4f SOL (risk %d)", token.Symbol, size.FinalAmountSol, token.RiskScore)
	}

	if b.metrics != nil {
		b.metrics.OpenPositions.Set(float64(openCount + executed))
	}
	b.trimProcessed()
	return executed, nil
}

// approve applies the filter chain: unseen, untraded, no open position, not
// blacklisted, registry-tradeable, sell route required, risk within policy,
// buyer position within target.
func (b *Bot) approve(ctx context.Context, token *domain.TradableToken, openMints map[string]bool) bool {
	mint := token.Mint

	b.mu.Lock()
	seen := b.processed[mint] || b.traded[mint]
	b.mu.Unlock()
	if seen || b.blacklist[mint] || openMints[mint] {
		return false
	}

	// Sell-route gate is absolute: a token that cannot be sold is never
	// auto-bought regardless of score.
	if !token.IsTradeable || !token.CanSell {
		b.markProcessed(mint)
		return false
	}
	if token.RiskScore > b.config.MaxRiskScore {
		b.markProcessed(mint)
		return false
	}

	// The rank this wallet would take on entry: one past the buyers already
	// observed in the launch window.
	if token.BuyerPosition == 0 {
		token.BuyerPosition = token.EarlyBuyerCount + 1
	}
	if b.config.MaxBuyerPosition > 0 && token.BuyerPosition > b.config.MaxBuyerPosition {
		b.markProcessed(mint)
		return false
	}

	// Registry is authoritative in live mode; demo runs on local sets only.
	if !b.config.Demo && b.registry != nil {
		ok, err := b.registry.CanTrade(ctx, mint, b.config.PendingTTL)
		if err != nil {
			b.logf("registry check %s: %v", mint, err)
			return false
		}
		if !ok {
			b.markProcessed(mint)
			return false
		}
	}
	return true
}

// execute routes to the demo simulator or the real engine. Demo mode never
// touches the engine.
func (b *Bot) execute(ctx context.Context, token *domain.TradableToken, amountSol float64) *domain.TradeResult {
	if b.config.Demo {
		result, err := b.demo.Buy(ctx, token, b.config.WalletAddress, amountSol)
		if err != nil {
			return &domain.TradeResult{Success: false, Error: err.Error()}
		}
		return result
	}

	result := b.engine.ExecuteTrade(ctx, domain.TradeParams{
		Mint:         token.Mint,
		Side:         domain.SideBuy,
		AmountSol:    amountSol,
		LiquiditySol: token.LiquiditySol,
	})
	if result.Success {
		if b.registry != nil {
			if err := b.registry.MarkTraded(ctx, token.Mint, result.Signature); err != nil {
				b.logf("mark traded %s: %v", token.Mint, err)
			}
		}
		pos := &domain.Position{
			PositionID:    result.PositionID,
			WalletAddress: b.config.WalletAddress,
			Mint:          token.Mint,
			Symbol:        token.Symbol,
			AmountSol:     amountSol,
			EntryPriceUSD: token.PriceUSD,
			OpenedAt:      time.Now().UnixMilli(),
		}
		if result.Quote != nil {
			pos.TokenAmount = result.Quote.OutputAmountDecimal
		}
		if err := b.positions.Insert(ctx, pos); err != nil {
			b.logf("insert position %s: %v", result.PositionID, err)
		}
	}
	return result
}

func (b *Bot) recordEvent(ctx context.Context, token *domain.TradableToken, amountSol float64, result *domain.TradeResult) {
	if b.events == nil {
		return
	}
	slippageBps := 0
	if result.Quote != nil {
		slippageBps = result.Quote.SlippageBps
	}
	event := &storage.TradeEvent{
		Mint:        token.Mint,
		Wallet:      b.config.WalletAddress,
		Side:        string(domain.SideBuy),
		AmountSol:   amountSol,
		SlippageBps: slippageBps,
		RetryCount:  result.RetryCount,
		Success:     result.Success,
		ErrorCode:   result.ErrorCode,
		Signature:   result.Signature,
		Timestamp:   time.Now().UnixMilli(),
	}
	if err := b.events.Insert(ctx, event); err != nil {
		b.logf("record trade event: %v", err)
	}
}

func (b *Bot) markProcessed(mint string) {
	b.mu.Lock()
	b.processed[mint] = true
	b.mu.Unlock()
}

// trimProcessed clears the processed set once it outgrows the cap. The set is
// an auxiliary cache; dropping it only means re-filtering on the next cycle.
func (b *Bot) trimProcessed() {
	b.mu.Lock()
	if len(b.processed) > b.config.ProcessedCap {
		b.processed = make(map[string]bool)
	}
	b.mu.Unlock()
}

func (b *Bot) logf(format string, args ...interface{}) {
	if b.logger != nil {
		b.logger.Printf("[bot] "+format, args...)
	}
}
