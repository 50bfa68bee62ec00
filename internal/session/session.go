// Package session ties one connected wallet to its scoped dependencies. All
// per-user state lives on the Session handle; nothing here is process-wide.
package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"solana-sniper/internal/backend"
	"solana-sniper/internal/bot"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/storage"
	"solana-sniper/internal/trade"
	"solana-sniper/internal/wallet"
)

// Options wires a Session at connect time.
type Options struct {
	// WalletType selects the provider factory from the registry.
	WalletType   string
	WalletConfig map[string]string

	Wallets   *wallet.Registry
	Backend   *backend.Client
	Registry  storage.TokenStateStore
	Positions storage.PositionStore
	Events    storage.TradeEventStore
	Tokens    bot.TokenSupplier
	BotConfig bot.Config
	Metrics   *observability.Metrics // optional
	Logger    *log.Logger
}

// Session is the per-connection handle: one wallet provider resolved at
// connect time, one engine, one bot loop. Close tears all of it down.
type Session struct {
	Wallet    wallet.Provider
	Engine    *trade.Engine
	Bot       *bot.Bot
	Positions storage.PositionStore

	logger *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Connect resolves the wallet provider and builds the session's engine and
// bot. The bot does not run until Start is called.
func Connect(opts Options) (*Session, error) {
	provider, err := opts.Wallets.Resolve(opts.WalletType, opts.WalletConfig)
	if err != nil {
		return nil, fmt.Errorf("connect wallet: %w", err)
	}

	engine := trade.NewEngine(trade.EngineOptions{
		Backend: opts.Backend,
		Wallet:  provider,
		Metrics: opts.Metrics,
		Logger:  opts.Logger,
	})

	cfg := opts.BotConfig
	if cfg.WalletAddress == "" {
		cfg.WalletAddress = provider.Address()
	}

	var demo *bot.DemoSimulator
	if cfg.Demo {
		demo = bot.NewDemoSimulator(bot.DemoOptions{
			Positions: opts.Positions,
			Logger:    opts.Logger,
		})
	}

	loop := bot.New(bot.Options{
		Config:    cfg,
		Tokens:    opts.Tokens,
		Engine:    engine,
		Demo:      demo,
		Registry:  opts.Registry,
		Positions: opts.Positions,
		Events:    opts.Events,
		Metrics:   opts.Metrics,
		Logger:    opts.Logger,
	})

	s := &Session{
		Wallet:    provider,
		Engine:    engine,
		Bot:       loop,
		Positions: opts.Positions,
		logger:    opts.Logger,
	}
	s.logf("session open: wallet %s (%s)", provider.Address(), provider.Name())
	return s, nil
}

// Start launches the bot loop. Idempotent while running.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Bot.Run(runCtx)
	}()
}

// Close stops the bot loop and releases the session. Safe to call twice.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	s.logf("session closed: wallet %s", s.Wallet.Address())
}

func (s *Session) logf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Printf("[session] "+format, args...)
	}
}
