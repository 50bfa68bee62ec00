package bot

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// DemoSimulator fills trades without touching the execution engine or any
// external system. Positions are marked Demo and settle take-profit or
// stop-loss asynchronously on a randomized delay to emulate market movement.
type DemoSimulator struct {
	positions storage.PositionStore
	logger    *log.Logger

	takeProfitPct float64
	stopLossPct   float64
	minDelay      time.Duration
	maxDelay      time.Duration

	mu  sync.Mutex
	rng *rand.Rand
	seq int

	wg sync.WaitGroup

	// OnSettled fires after a simulated position closes. Optional.
	OnSettled func(pos *domain.Position)
}

// DemoOptions configures the simulator.
type DemoOptions struct {
	Positions     storage.PositionStore
	TakeProfitPct float64 // default 50
	StopLossPct   float64 // default 30
	MinDelay      time.Duration
	MaxDelay      time.Duration
	Seed          int64 // 0 = time-based
	Logger        *log.Logger
}

// NewDemoSimulator creates a demo fill simulator.
func NewDemoSimulator(opts DemoOptions) *DemoSimulator {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d := &DemoSimulator{
		positions:     opts.Positions,
		logger:        opts.Logger,
		takeProfitPct: opts.TakeProfitPct,
		stopLossPct:   opts.StopLossPct,
		minDelay:      opts.MinDelay,
		maxDelay:      opts.MaxDelay,
		rng:           rand.New(rand.NewSource(seed)),
	}
	if d.takeProfitPct <= 0 {
		d.takeProfitPct = 50
	}
	if d.stopLossPct <= 0 {
		d.stopLossPct = 30
	}
	if d.minDelay <= 0 {
		d.minDelay = 5 * time.Second
	}
	if d.maxDelay <= d.minDelay {
		d.maxDelay = d.minDelay + 25*time.Second
	}
	return d
}

// Buy simulates a fill for the token and opens a demo position. The token
// amount assumes a 6-decimal mint, the common launchpad layout; the
// approximation only affects displayed quantities, not settlement math.
func (d *DemoSimulator) Buy(ctx context.Context, token *domain.TradableToken, wallet string, amountSol float64) (*domain.TradeResult, error) {
	if token.PriceUSD <= 0 {
		return nil, fmt.Errorf("demo buy %s: no price", token.Mint)
	}

	d.mu.Lock()
	d.seq++
	positionID := fmt.Sprintf("demo-%d-%d", time.Now().UnixMilli(), d.seq)
	slippagePct := d.rng.Float64() * 1.5 // simulated fill slippage, up to 1.5%
	d.mu.Unlock()

	fillPrice := token.PriceUSD * (1 + slippagePct/100)
	amountUSD := amountSol * solUsdEstimate
	tokenAmount := math.Floor(amountUSD/fillPrice*1e6) / 1e6

	pos := &domain.Position{
		PositionID:    positionID,
		WalletAddress: wallet,
		Mint:          token.Mint,
		Symbol:        token.Symbol,
		AmountSol:     amountSol,
		TokenAmount:   tokenAmount,
		EntryPriceUSD: fillPrice,
		OpenedAt:      time.Now().UnixMilli(),
		Demo:          true,
	}
	if err := d.positions.Insert(ctx, pos); err != nil {
		return nil, fmt.Errorf("insert demo position: %w", err)
	}

	d.logf("demo buy %s: %.4f SOL at %.8f (slippage %.2f%%)", token.Symbol, amountSol, fillPrice, slippagePct)
	d.settleAsync(pos)

	return &domain.TradeResult{
		Success:   true,
		Signature: positionID,
		Quote: &domain.TradeQuote{
			InputMint:           domain.WSOLMint,
			OutputMint:          token.Mint,
			InputAmountDecimal:  amountSol,
			OutputAmountDecimal: tokenAmount,
			PriceImpactPct:      slippagePct,
		},
	}, nil
}

// settleAsync closes the position after a randomized delay, flipping a coin
// between take-profit and stop-loss.
func (d *DemoSimulator) settleAsync(pos *domain.Position) {
	d.mu.Lock()
	delay := d.minDelay + time.Duration(d.rng.Int63n(int64(d.maxDelay-d.minDelay)))
	win := d.rng.Intn(2) == 0
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		time.Sleep(delay)

		exitReason := domain.ExitReasonTakeProfit
		pnl := pos.AmountSol * d.takeProfitPct / 100
		if !win {
			exitReason = domain.ExitReasonStopLoss
			pnl = -pos.AmountSol * d.stopLossPct / 100
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.positions.Close(ctx, pos.PositionID, exitReason, pnl, time.Now().UnixMilli()); err != nil {
			d.logf("settle %s: %v", pos.PositionID, err)
			return
		}
		d.logf("demo settle %s: %s pnl %.4f SOL after %s", pos.Symbol, exitReason, pnl, delay.Round(time.Second))

		if d.OnSettled != nil {
			closed := *pos
			closed.ClosedAt = time.Now().UnixMilli()
			closed.ExitReason = exitReason
			closed.PnlSol = pnl
			d.OnSettled(&closed)
		}
	}()
}

// Wait blocks until all pending settlements finish. Test helper.
func (d *DemoSimulator) Wait() { d.wg.Wait() }

// Rough SOL/USD rate for demo fills; precision is irrelevant in simulation.
const solUsdEstimate = 150.0

func (d *DemoSimulator) logf(format string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Printf("[demo] "+format, args...)
	}
}
