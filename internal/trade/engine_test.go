package trade

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"solana-sniper/internal/backend"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
)

// fakeBackend scripts the swap chain for engine tests.
type fakeBackend struct {
	quoteCalls   atomic.Int64
	executeCalls atomic.Int64
	confirmCalls atomic.Int64

	quoteErr   error
	executeErr error
	confirmErr error
	confirm    backend.ConfirmResult

	blockQuote chan struct{} // when set, Quote blocks until closed
}

func (f *fakeBackend) Quote(ctx context.Context, req backend.QuoteRequest) (*domain.TradeQuote, error) {
	f.quoteCalls.Add(1)
	if f.blockQuote != nil {
		select {
		case <-f.blockQuote:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return &domain.TradeQuote{
		InputMint:    req.InputMint,
		OutputMint:   req.OutputMint,
		InputAmount:  req.Amount,
		OutputAmount: req.Amount * 2,
		SlippageBps:  req.SlippageBps,
	}, nil
}

func (f *fakeBackend) ExecuteSwap(_ context.Context, req backend.QuoteRequest) (*backend.SwapExecution, error) {
	f.executeCalls.Add(1)
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return &backend.SwapExecution{
		Quote:      &domain.TradeQuote{InputAmount: req.Amount, OutputAmount: req.Amount * 2, SlippageBps: req.SlippageBps},
		UnsignedTx: "dW5zaWduZWQ=",
		PositionID: "pos-1",
	}, nil
}

func (f *fakeBackend) ConfirmTrade(_ context.Context, _ backend.ConfirmRequest) (*backend.ConfirmResult, error) {
	f.confirmCalls.Add(1)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	res := f.confirm
	if !res.Confirmed && res.Error == "" {
		res = backend.ConfirmResult{Confirmed: true}
	}
	return &res, nil
}

// fakeWallet signs everything unless scripted to fail.
type fakeWallet struct {
	signErr error
	signs   atomic.Int64
}

func (w *fakeWallet) Name() string    { return "test" }
func (w *fakeWallet) Address() string { return "Wallet111" }

func (w *fakeWallet) Sign(_ context.Context, tx string) (string, error) {
	return tx, w.signErr
}

func (w *fakeWallet) SignAndSend(_ context.Context, _ string) (string, error) {
	w.signs.Add(1)
	if w.signErr != nil {
		return "", w.signErr
	}
	return "sig-abc", nil
}

func (w *fakeWallet) GetBalance(_ context.Context) (uint64, error) { return 10 * lamportsPerSol, nil }

func testPosition() *domain.Position {
	return &domain.Position{PositionID: "pos-1", Mint: "mintAAA", TokenAmount: 1000, AmountSol: 0.5}
}

func TestExecuteTradeBuySucceeds(t *testing.T) {
	be := &fakeBackend{}
	wa := &fakeWallet{}
	var confirmed atomic.Int64
	e := NewEngine(EngineOptions{Backend: be, Wallet: wa})
	e.OnConfirmed = func(_ context.Context, _ *domain.TradeResult) { confirmed.Add(1) }

	res := e.ExecuteTrade(context.Background(), domain.TradeParams{Mint: "mintAAA", Side: domain.SideBuy, AmountSol: 0.5, LiquiditySol: 1000})
	if !res.Success {
		t.Fatalf("buy failed: %s", res.Error)
	}
	if res.Signature != "sig-abc" || res.Quote == nil {
		t.Errorf("incomplete result: %+v", res)
	}
	if confirmed.Load() != 1 {
		t.Error("confirmed callback did not fire")
	}
}

func TestExecuteTradeBuyNeverRetries(t *testing.T) {
	be := &fakeBackend{confirm: backend.ConfirmResult{Confirmed: false, Error: "slippage tolerance exceeded"}}
	e := NewEngine(EngineOptions{Backend: be, Wallet: &fakeWallet{}})

	res := e.ExecuteTrade(context.Background(), domain.TradeParams{Mint: "mintAAA", Side: domain.SideBuy, AmountSol: 0.5})
	if res.Success {
		t.Fatal("expected failure")
	}
	// Even a slippage failure does not retry a buy.
	if got := be.quoteCalls.Load(); got != 1 {
		t.Errorf("quote calls = %d, want 1", got)
	}
	if res.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", res.RetryCount)
	}
}

func TestSellPositionRetryCap(t *testing.T) {
	be := &fakeBackend{confirm: backend.ConfirmResult{Confirmed: false, Error: "slippage tolerance exceeded"}}
	e := NewEngine(EngineOptions{Backend: be, Wallet: &fakeWallet{}, MaxRetries: 3})

	res := e.SellPosition(context.Background(), testPosition(), 1000)
	if res.Success {
		t.Fatal("expected failure")
	}
	// maxRetries+1 total attempts, retryCount reports the re-attempts.
	if got := be.quoteCalls.Load(); got != 4 {
		t.Errorf("attempts = %d, want 4", got)
	}
	if res.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", res.RetryCount)
	}
	if res.ErrorCode != CodeSlippageExceeded {
		t.Errorf("error code = %s", res.ErrorCode)
	}
}

func TestSellPositionNonSlippageFailureDoesNotRetry(t *testing.T) {
	be := &fakeBackend{}
	wa := &fakeWallet{signErr: errors.New("User rejected the request")}
	e := NewEngine(EngineOptions{Backend: be, Wallet: wa, MaxRetries: 3})

	res := e.SellPosition(context.Background(), testPosition(), 1000)
	if res.Success {
		t.Fatal("expected failure")
	}
	if got := wa.signs.Load(); got != 1 {
		t.Errorf("sign attempts = %d, want 1", got)
	}
	if res.RetryCount != 0 {
		t.Errorf("retry count = %d, want 0", res.RetryCount)
	}
	if res.ErrorCode != CodeUserRejected {
		t.Errorf("error code = %s", res.ErrorCode)
	}
}

func TestSellPositionSucceedsAfterEscalation(t *testing.T) {
	// First two confirmations fail on slippage, third passes.
	var confirms atomic.Int64
	be := &scriptedBackend{confirmFn: func() (*backend.ConfirmResult, error) {
		if confirms.Add(1) <= 2 {
			return &backend.ConfirmResult{Confirmed: false, Error: "slippage tolerance exceeded"}, nil
		}
		return &backend.ConfirmResult{Confirmed: true}, nil
	}}
	e := NewEngine(EngineOptions{Backend: be, Wallet: &fakeWallet{}, MaxRetries: 3})

	res := e.SellPosition(context.Background(), testPosition(), 1000)
	if !res.Success {
		t.Fatalf("sell failed: %s", res.Error)
	}
	if res.RetryCount != 2 {
		t.Errorf("retry count = %d, want 2", res.RetryCount)
	}
}

func TestSellLockExclusivity(t *testing.T) {
	release := make(chan struct{})
	be := &fakeBackend{blockQuote: release}
	e := NewEngine(EngineOptions{Backend: be, Wallet: &fakeWallet{}})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.SellPosition(context.Background(), testPosition(), 1000)
	}()

	// Wait for the first sell to enter the chain and hold the lock.
	deadline := time.Now().Add(2 * time.Second)
	for be.quoteCalls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first sell never started")
		}
		time.Sleep(time.Millisecond)
	}

	second := e.SellPosition(context.Background(), testPosition(), 1000)
	if second.Success {
		t.Fatal("second concurrent sell must fail")
	}
	if second.ErrorCode != CodeSellLocked {
		t.Errorf("error code = %s, want %s", second.ErrorCode, CodeSellLocked)
	}
	// The second call must not have entered the quote/build/sign chain.
	if got := be.quoteCalls.Load(); got != 1 {
		t.Errorf("quote calls = %d, want 1", got)
	}

	close(release)
	wg.Wait()

	// Lock released after completion; a later sell proceeds.
	third := e.SellPosition(context.Background(), testPosition(), 1000)
	if third.ErrorCode == CodeSellLocked {
		t.Error("lock not released after sell completed")
	}
}

func TestExecuteTradeCountsExecutions(t *testing.T) {
	metrics := observability.NewMetrics("engine_executions_test")
	be := &fakeBackend{}
	e := NewEngine(EngineOptions{Backend: be, Wallet: &fakeWallet{}, Metrics: metrics})

	res := e.ExecuteTrade(context.Background(), domain.TradeParams{Mint: "mintAAA", Side: domain.SideBuy, AmountSol: 0.5, LiquiditySol: 1000})
	if !res.Success {
		t.Fatalf("buy failed: %s", res.Error)
	}
	if got := testutil.ToFloat64(metrics.TradesExecuted.WithLabelValues("buy", "confirmed")); got != 1 {
		t.Errorf("executed[buy,confirmed] = %v, want 1", got)
	}

	be.quoteErr = errors.New("upstream 503")
	if res := e.ExecuteTrade(context.Background(), domain.TradeParams{Mint: "mintBBB", Side: domain.SideBuy, AmountSol: 0.5}); res.Success {
		t.Fatal("expected failure")
	}
	if got := testutil.ToFloat64(metrics.TradesExecuted.WithLabelValues("buy", "failed")); got != 1 {
		t.Errorf("executed[buy,failed] = %v, want 1", got)
	}

	var m dto.Metric
	if err := metrics.SlippageApplied.Write(&m); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("slippage samples = %d, want 2", got)
	}
}

func TestSellPositionCountsRetries(t *testing.T) {
	metrics := observability.NewMetrics("engine_retries_test")
	be := &fakeBackend{confirm: backend.ConfirmResult{Confirmed: false, Error: "slippage tolerance exceeded"}}
	e := NewEngine(EngineOptions{Backend: be, Wallet: &fakeWallet{}, MaxRetries: 3, Metrics: metrics})

	if res := e.SellPosition(context.Background(), testPosition(), 1000); res.Success {
		t.Fatal("expected failure")
	}

	if got := testutil.ToFloat64(metrics.TradeRetries); got != 3 {
		t.Errorf("retries = %v, want 3", got)
	}
	if got := testutil.ToFloat64(metrics.TradesExecuted.WithLabelValues("sell", "failed")); got != 1 {
		t.Errorf("executed[sell,failed] = %v, want 1", got)
	}
	// One slippage observation per attempt.
	var m dto.Metric
	if err := metrics.SlippageApplied.Write(&m); err != nil {
		t.Fatalf("read histogram: %v", err)
	}
	if got := m.GetHistogram().GetSampleCount(); got != 4 {
		t.Errorf("slippage samples = %d, want 4", got)
	}
}

// scriptedBackend delegates confirmation to a closure.
type scriptedBackend struct {
	fakeBackend
	confirmFn func() (*backend.ConfirmResult, error)
}

func (s *scriptedBackend) ConfirmTrade(_ context.Context, _ backend.ConfirmRequest) (*backend.ConfirmResult, error) {
	return s.confirmFn()
}
