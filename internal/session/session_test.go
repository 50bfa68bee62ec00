package session

import (
	"context"
	"testing"
	"time"

	"solana-sniper/internal/bot"
	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage/memory"
	"solana-sniper/internal/wallet"
)

type stubProvider struct {
	address string
}

func (p *stubProvider) Name() string    { return "stub" }
func (p *stubProvider) Address() string { return p.address }

func (p *stubProvider) Sign(_ context.Context, tx string) (string, error) { return tx, nil }

func (p *stubProvider) SignAndSend(_ context.Context, _ string) (string, error) {
	return "sig", nil
}

func (p *stubProvider) GetBalance(context.Context) (uint64, error) { return 0, nil }

func newTestRegistry() *wallet.Registry {
	reg := wallet.NewRegistry()
	reg.Register("stub", func(config map[string]string) (wallet.Provider, error) {
		return &stubProvider{address: config["address"]}, nil
	})
	return reg
}

func TestConnectResolvesWalletOnce(t *testing.T) {
	s, err := Connect(Options{
		WalletType:   "stub",
		WalletConfig: map[string]string{"address": "wallet1"},
		Wallets:      newTestRegistry(),
		Positions:    memory.NewPositionStore(),
		Tokens:       func(context.Context) []*domain.TradableToken { return nil },
		BotConfig:    bot.Config{Demo: true, AmountSol: 0.1},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Close()

	if s.Wallet.Address() != "wallet1" {
		t.Errorf("wallet address = %s", s.Wallet.Address())
	}
	if s.Bot == nil || s.Engine == nil {
		t.Error("session missing engine or bot")
	}
}

func TestConnectUnknownWalletType(t *testing.T) {
	_, err := Connect(Options{
		WalletType: "ghost",
		Wallets:    newTestRegistry(),
		Positions:  memory.NewPositionStore(),
		Tokens:     func(context.Context) []*domain.TradableToken { return nil },
	})
	if err == nil {
		t.Fatal("expected error for unregistered wallet type")
	}
}

func TestCloseStopsBotLoop(t *testing.T) {
	s, err := Connect(Options{
		WalletType:   "stub",
		WalletConfig: map[string]string{"address": "wallet1"},
		Wallets:      newTestRegistry(),
		Positions:    memory.NewPositionStore(),
		Tokens:       func(context.Context) []*domain.TradableToken { return nil },
		BotConfig:    bot.Config{Demo: true, AmountSol: 0.1, DemoInterval: 10 * time.Millisecond},
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	s.Start(context.Background())

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the bot loop")
	}

	// Second close is a no-op.
	s.Close()
}
