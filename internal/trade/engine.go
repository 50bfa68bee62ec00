package trade

import (
	"context"
	"fmt"
	"log"

	"solana-sniper/internal/backend"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/wallet"
)

// State is one step of the execution chain.
type State string

const (
	StateIdle              State = "idle"
	StateFetchingQuote     State = "fetching_quote"
	StateBuildingTx        State = "building_tx"
	StateAwaitingSignature State = "awaiting_signature"
	StateBroadcasting      State = "broadcasting"
	StateConfirming        State = "confirming"
	StateConfirmed         State = "confirmed"
	StateFailed            State = "failed"
	StateRetrying          State = "retrying"
)

const lamportsPerSol = 1_000_000_000

// Token amounts are converted to base units assuming 6 decimals, the common
// layout for launchpad mints. Known approximation carried from the sizing
// model; mints with other layouts sell slightly more or less than intended
// and settle on the realized quote.
const assumedTokenDecimals = 1_000_000

// Backend is the swap/confirmation surface the engine drives.
type Backend interface {
	Quote(ctx context.Context, req backend.QuoteRequest) (*domain.TradeQuote, error)
	ExecuteSwap(ctx context.Context, req backend.QuoteRequest) (*backend.SwapExecution, error)
	ConfirmTrade(ctx context.Context, req backend.ConfirmRequest) (*backend.ConfirmResult, error)
}

// Engine executes approved trades. Buys run the forward chain once; sells
// retry on slippage failures with escalating tolerance, serialized per mint.
type Engine struct {
	backend    Backend
	wallet     wallet.Provider
	locks      *sellLocks
	maxRetries int
	metrics    *observability.Metrics // optional
	logger     *log.Logger

	// OnConfirmed fires after a confirmed trade so position and balance
	// caches refresh as explicit downstream calls. Optional.
	OnConfirmed func(ctx context.Context, result *domain.TradeResult)

	// OnStateChange observes chain transitions per mint. Optional.
	OnStateChange func(mint string, state State)
}

// EngineOptions configures the Engine.
type EngineOptions struct {
	Backend    Backend
	Wallet     wallet.Provider
	MaxRetries int // sell retry cap, default MaxSellRetries
	Metrics    *observability.Metrics
	Logger     *log.Logger
}

// NewEngine creates a trade execution engine.
func NewEngine(opts EngineOptions) *Engine {
	e := &Engine{
		backend:    opts.Backend,
		wallet:     opts.Wallet,
		locks:      newSellLocks(),
		maxRetries: opts.MaxRetries,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if e.maxRetries <= 0 {
		e.maxRetries = MaxSellRetries
	}
	return e
}

// ExecuteTrade performs a buy through the full forward chain exactly once.
// Buys are never auto-retried: a failed buy leaves no position at risk, so
// the caller must consciously re-approve.
func (e *Engine) ExecuteTrade(ctx context.Context, params domain.TradeParams) *domain.TradeResult {
	slippageBps := params.SlippageBps
	if slippageBps == 0 {
		s := CalculateDynamicSlippage(SlippageInput{LiquiditySol: params.LiquiditySol})
		slippageBps = s.Bps
		e.logf("buy %s slippage %d bps (%s)", params.Mint, s.Bps, s.Reason)
	}

	e.observeSlippage(slippageBps)

	amount := uint64(params.AmountSol * lamportsPerSol)
	result, err := e.attempt(ctx, params.Mint, domain.SideBuy, amount, slippageBps, "")
	if err != nil {
		e.transition(params.Mint, StateFailed)
		e.countTrade(domain.SideBuy, "failed")
		return failedResult(result, err, 0)
	}
	e.transition(params.Mint, StateConfirmed)
	e.countTrade(domain.SideBuy, "confirmed")
	e.confirmed(ctx, result)
	return result
}

// SellPosition sells the full position with bounded escalating-slippage
// retries. Only slippage-classified failures re-enter the loop; everything
// else fails on the spot. Exhausting the cap surfaces the last error with
// RetryCount populated.
func (e *Engine) SellPosition(ctx context.Context, pos *domain.Position, liquiditySol float64) *domain.TradeResult {
	if err := e.locks.Acquire(pos.Mint); err != nil {
		return &domain.TradeResult{Success: false, ErrorCode: CodeSellLocked, Error: err.Error()}
	}
	defer e.locks.Release(pos.Mint)

	amount := uint64(pos.TokenAmount * assumedTokenDecimals)

	var lastResult *domain.TradeResult
	var lastErr error
	retries := 0
	for retry := 0; retry <= e.maxRetries; retry++ {
		retries = retry
		if retry > 0 {
			e.transition(pos.Mint, StateRetrying)
			if e.metrics != nil {
				e.metrics.TradeRetries.Inc()
			}
		}

		s := CalculateDynamicSlippage(SlippageInput{
			LiquiditySol: liquiditySol,
			IsSell:       true,
			RetryCount:   retry,
		})
		e.observeSlippage(s.Bps)
		e.logf("sell %s attempt %d slippage %d bps (%s)", pos.Mint, retry+1, s.Bps, s.Reason)

		result, err := e.attempt(ctx, pos.Mint, domain.SideSell, amount, s.Bps, pos.PositionID)
		if err == nil {
			result.RetryCount = retry
			e.transition(pos.Mint, StateConfirmed)
			e.countTrade(domain.SideSell, "confirmed")
			e.confirmed(ctx, result)
			return result
		}

		lastResult, lastErr = result, err
		if !Retryable(Classify(err)) {
			break
		}
	}

	// Retries counts the slippage re-attempts actually performed.
	e.transition(pos.Mint, StateFailed)
	e.countTrade(domain.SideSell, "failed")
	return failedResult(lastResult, lastErr, retries)
}

// attempt runs the forward chain once: quote, build, sign+broadcast, confirm.
// The returned result carries whatever was realized before a failure.
func (e *Engine) attempt(ctx context.Context, mint string, side domain.TradeSide, amount uint64, slippageBps int, positionID string) (*domain.TradeResult, error) {
	inputMint, outputMint := wsolMint, mint
	if side == domain.SideSell {
		inputMint, outputMint = mint, wsolMint
	}
	req := backend.QuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		SlippageBps: slippageBps,
	}
	result := &domain.TradeResult{}

	e.transition(mint, StateFetchingQuote)
	quote, err := e.backend.Quote(ctx, req)
	if err != nil {
		return result, fmt.Errorf("fetch quote: %w", err)
	}
	result.Quote = quote

	e.transition(mint, StateBuildingTx)
	exec, err := e.backend.ExecuteSwap(ctx, req)
	if err != nil {
		return result, fmt.Errorf("build swap: %w", err)
	}
	if exec.Quote != nil {
		result.Quote = exec.Quote
	}
	if positionID == "" {
		positionID = exec.PositionID
	}
	result.PositionID = positionID

	e.transition(mint, StateAwaitingSignature)
	e.transition(mint, StateBroadcasting)
	signature, err := e.wallet.SignAndSend(ctx, exec.UnsignedTx)
	if err != nil {
		return result, fmt.Errorf("sign and send: %w", err)
	}
	result.Signature = signature

	e.transition(mint, StateConfirming)
	confirm, err := e.backend.ConfirmTrade(ctx, backend.ConfirmRequest{
		Signature:     signature,
		PositionID:    positionID,
		Action:        string(side),
		WalletAddress: e.wallet.Address(),
	})
	if err != nil {
		return result, fmt.Errorf("confirm: %w", err)
	}
	if !confirm.Confirmed {
		return result, fmt.Errorf("confirm: %s: %s", CodeConfirmationFail, confirm.Error)
	}

	result.Success = true
	return result, nil
}

const wsolMint = "So11111111111111111111111111111111111111112"

func (e *Engine) confirmed(ctx context.Context, result *domain.TradeResult) {
	if e.OnConfirmed != nil {
		e.OnConfirmed(ctx, result)
	}
}

func (e *Engine) countTrade(side domain.TradeSide, outcome string) {
	if e.metrics != nil {
		e.metrics.TradesExecuted.WithLabelValues(string(side), outcome).Inc()
	}
}

func (e *Engine) observeSlippage(bps int) {
	if e.metrics != nil {
		e.metrics.SlippageApplied.Observe(float64(bps))
	}
}

func (e *Engine) transition(mint string, state State) {
	if e.OnStateChange != nil {
		e.OnStateChange(mint, state)
	}
}

func failedResult(partial *domain.TradeResult, err error, retryCount int) *domain.TradeResult {
	res := partial
	if res == nil {
		res = &domain.TradeResult{}
	}
	res.Success = false
	res.RetryCount = retryCount
	res.ErrorCode = Classify(err)
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Printf("[trade] "+format, args...)
	}
}
