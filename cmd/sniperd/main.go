// Package main provides the sniper daemon that runs all components together:
// - Discovery (scheduled): adapter race, token registry
// - Tradability (scheduled): probe, safety verification, risk scoring
// - Bot (continuous): evaluation loop over the tradable snapshot
// - Payments (webhook): reconciliation of inbound SOL payments
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"solana-sniper/internal/backend"
	"solana-sniper/internal/bot"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/payments"
	"solana-sniper/internal/pipeline"
	"solana-sniper/internal/quote"
	"solana-sniper/internal/safety"
	"solana-sniper/internal/session"
	"solana-sniper/internal/solana"
	"solana-sniper/internal/sources"
	"solana-sniper/internal/storage"
	chstore "solana-sniper/internal/storage/clickhouse"
	"solana-sniper/internal/storage/memory"
	"solana-sniper/internal/storage/migrations"
	pgstore "solana-sniper/internal/storage/postgres"
	"solana-sniper/internal/wallet"
)

// Server holds all components of the sniper daemon.
type Server struct {
	discoveryInterval   time.Duration
	tradabilityInterval time.Duration
	cleanupInterval     time.Duration

	orchestrator *pipeline.Orchestrator
	watcher      *sources.PoolWatcher
	listener     *payments.Listener
	session      *session.Session
	logger       *log.Logger

	mu               sync.Mutex
	started          time.Time
	lastDiscovery    time.Time
	lastTradability  time.Time
	discoveryCycles  int
	tradabilityRuns  int
	paymentsAccepted int
}

// allStores holds all storage implementations.
type allStores struct {
	tokenStates storage.TokenStateStore
	positions   storage.PositionStore
	payments    storage.PaymentStore
	settler     storage.PaymentSettler
	balances    storage.BalanceStore
	tradeEvents storage.TradeEventStore
	cycleStats  storage.CycleStatStore
}

func main() {
	// Load .env if present; system env vars win.
	godotenv.Load()

	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("SOLANA_RPC_ENDPOINT"), "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("SOLANA_WS_ENDPOINT"), "Solana WebSocket endpoint (optional pool watcher)")
	backendURL := flag.String("backend-url", os.Getenv("BACKEND_URL"), "Platform backend base URL")
	backendToken := flag.String("backend-token", os.Getenv("BACKEND_TOKEN"), "Platform backend bearer token")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL/ClickHouse")
	treasury := flag.String("treasury", os.Getenv("TREASURY_ADDRESS"), "Treasury wallet receiving payments")
	memoPrefix := flag.String("memo-prefix", payments.DefaultMemoPrefix, "Payment memo prefix")
	minConfirmations := flag.Int("min-confirmations", 3, "Confirmation depth required before crediting payments")
	minLiquidity := flag.Float64("min-liquidity", 50, "Minimum pool liquidity in SOL")
	discoveryInterval := flag.Duration("discovery-interval", 30*time.Second, "Discovery cycle interval")
	tradabilityInterval := flag.Duration("tradability-interval", 60*time.Second, "Tradability cycle interval")
	cleanupInterval := flag.Duration("cleanup-interval", 5*time.Minute, "Pending-registry cleanup interval")
	demo := flag.Bool("demo", false, "Run the bot in demo mode (simulated fills)")
	walletType := flag.String("wallet-type", "demo", "Wallet provider type tag")
	walletAddress := flag.String("wallet-address", os.Getenv("WALLET_ADDRESS"), "Wallet public key")
	amountSol := flag.Float64("amount-sol", 0.1, "Base position size in SOL")
	maxRiskScore := flag.Int("max-risk", 60, "Maximum acceptable token risk score")
	maxOpenPositions := flag.Int("max-open", 5, "Maximum concurrent open positions")
	maxBuyerPosition := flag.Int("max-buyer-position", 0, "Skip tokens entered later than this early-buyer rank (0 = no limit)")
	httpAddr := flag.String("http-addr", ":9090", "HTTP address for health/metrics/webhook")

	flag.Parse()

	logger := log.New(os.Stdout, "[sniperd] ", log.LstdFlags|log.Lshortfile)

	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if !*useMemory && (*postgresDSN == "" || *clickhouseDSN == "") {
		logger.Fatal("--postgres-dsn and --clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	if !*demo && *backendURL == "" {
		logger.Fatal("--backend-url is required for live trading (use --demo for simulated fills)")
	}
	if *walletAddress == "" {
		logger.Fatal("--wallet-address is required")
	}
	if !*demo && *walletType == "demo" {
		logger.Println("Warning: live mode with the demo wallet provider; trades will fail at signing")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	metrics := observability.NewMetrics("solana_sniper")
	rpc := solana.NewHTTPClient(*rpcEndpoint)

	// Backend client is optional in demo mode.
	var client *backend.Client
	if *backendURL != "" {
		client = backend.NewClient(*backendURL, backend.StaticToken(*backendToken), logger)
	}

	// Discovery adapters: the three HTTP scanners, the on-chain watcher when a
	// WebSocket endpoint is configured, and the backend scan when connected.
	adapters := []sources.PoolSource{
		sources.NewDexScreenerSource(),
		sources.NewGeckoTerminalSource(),
		sources.NewRaydiumSource(),
	}
	var watcher *sources.PoolWatcher
	if *wsEndpoint != "" {
		watcher = sources.NewPoolWatcher(*wsEndpoint, rpc, nil, logger)
		adapters = append(adapters, watcher)
	}
	if client != nil {
		adapters = append(adapters, backend.NewDiscoverySource(client))
	}

	racer := sources.NewRacer(sources.RacerOptions{
		Adapters: adapters,
		Metrics:  metrics,
		Logger:   logger,
	})

	prober := quote.NewProber(quote.ProberOptions{
		Endpoints: []quote.Endpoint{quote.NewJupiterEndpoint(), quote.NewJupiterLiteEndpoint()},
		Metrics:   metrics,
		Logger:    logger,
	})

	verifier := safety.NewVerifier(rpc, nil, logger)

	orch := pipeline.NewOrchestrator(pipeline.Options{
		Racer:    racer,
		Prober:   prober,
		Verifier: verifier,
		Registry: stores.tokenStates,
		Cycles:   stores.cycleStats,
		Chain:    rpc,
		Metrics:  metrics,
		Config: pipeline.Config{
			MinLiquiditySol: *minLiquidity,
		},
		Logger: logger,
	})

	listener := payments.NewListener(rpc, stores.payments, stores.settler, metrics, payments.ListenerConfig{
		MemoPrefix:       *memoPrefix,
		TreasuryAddress:  *treasury,
		MinConfirmations: *minConfirmations,
	}, logger)

	wallets := wallet.NewRegistry()
	wallets.Register("demo", demoWalletFactory)

	sess, err := session.Connect(session.Options{
		WalletType:   *walletType,
		WalletConfig: map[string]string{"address": *walletAddress},
		Wallets:      wallets,
		Backend:      client,
		Registry:     stores.tokenStates,
		Positions:    stores.positions,
		Events:       stores.tradeEvents,
		Tokens:       orch.TradableTokens,
		BotConfig: bot.Config{
			Demo:             *demo,
			WalletAddress:    *walletAddress,
			AmountSol:        *amountSol,
			MaxRiskScore:     *maxRiskScore,
			MaxOpenPositions: *maxOpenPositions,
			MaxBuyerPosition: *maxBuyerPosition,
		},
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatalf("Failed to open session: %v", err)
	}

	server := &Server{
		discoveryInterval:   *discoveryInterval,
		tradabilityInterval: *tradabilityInterval,
		cleanupInterval:     *cleanupInterval,
		orchestrator:        orch,
		watcher:             watcher,
		listener:            listener,
		session:             sess,
		logger:              logger,
		started:             time.Now(),
	}

	done := make(chan error, 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	go server.startHTTPServer(*httpAddr)

	err = server.Run(ctx)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores creates all required stores.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		pay := memory.NewPaymentStore()
		bal := memory.NewBalanceStore()
		stores := &allStores{
			tokenStates: memory.NewTokenStateStore(),
			positions:   memory.NewPositionStore(),
			payments:    pay,
			settler:     memory.NewPaymentSettler(pay, bal),
			balances:    bal,
			tradeEvents: memory.NewTradeEventStore(),
			cycleStats:  memory.NewCycleStatStore(),
		}
		return stores, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	chConn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, chConn); err != nil {
		chConn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("migrate clickhouse: %w", err)
	}

	// The postgres payment store settles confirm-and-credit in one transaction.
	paymentStore := pgstore.NewPaymentStore(pool)

	stores := &allStores{
		// PostgreSQL: transactional state
		tokenStates: pgstore.NewTokenStateStore(pool),
		positions:   pgstore.NewPositionStore(pool),
		payments:    paymentStore,
		settler:     paymentStore,
		balances:    pgstore.NewBalanceStore(pool),

		// ClickHouse: append-only analytics
		tradeEvents: chstore.NewTradeEventStore(chConn),
		cycleStats:  chstore.NewCycleStatStore(chConn),
	}

	cleanup := func() {
		chConn.Close()
		pool.Close()
	}
	return stores, cleanup, nil
}

// demoWalletFactory builds a non-signing provider for demo sessions. Demo
// fills never reach the chain, so signing always fails loudly.
func demoWalletFactory(config map[string]string) (wallet.Provider, error) {
	address := config["address"]
	if address == "" {
		return nil, fmt.Errorf("demo wallet requires an address")
	}
	return &demoWallet{address: address}, nil
}

type demoWallet struct {
	address string
}

func (w *demoWallet) Name() string    { return "demo" }
func (w *demoWallet) Address() string { return w.address }

func (w *demoWallet) Sign(context.Context, string) (string, error) {
	return "", fmt.Errorf("demo wallet cannot sign transactions")
}

func (w *demoWallet) SignAndSend(context.Context, string) (string, error) {
	return "", fmt.Errorf("demo wallet cannot sign transactions")
}

func (w *demoWallet) GetBalance(context.Context) (uint64, error) { return 0, nil }

// Run starts all components and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Println("Starting sniper daemon...")

	if s.watcher != nil {
		s.watcher.Start(ctx)
		defer s.watcher.Stop()
	}

	s.session.Start(ctx)
	defer s.session.Close()

	errCh := make(chan error, 2)

	go func() {
		if err := s.runDiscoveryScheduler(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("discovery scheduler: %w", err)
		}
	}()
	go func() {
		if err := s.runTradabilityScheduler(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("tradability scheduler: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// runDiscoveryScheduler runs stage 1 on its own faster cadence so new pools
// enter the registry before the next tradability pass.
func (s *Server) runDiscoveryScheduler(ctx context.Context) error {
	s.logger.Printf("Starting discovery scheduler (interval: %v)...", s.discoveryInterval)

	s.runDiscovery(ctx)

	ticker := time.NewTicker(s.discoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runDiscovery(ctx)
		}
	}
}

func (s *Server) runDiscovery(ctx context.Context) {
	res, err := s.orchestrator.RunDiscovery(ctx)
	if err != nil {
		s.logger.Printf("Discovery error: %v", err)
		return
	}
	s.mu.Lock()
	s.lastDiscovery = time.Now()
	s.discoveryCycles++
	s.mu.Unlock()
	if !res.Partial {
		s.logger.Printf("Discovery: %d pools", res.Stats.Discovered)
	}
}

// runTradabilityScheduler runs stage 2 and periodic pending cleanup.
func (s *Server) runTradabilityScheduler(ctx context.Context) error {
	s.logger.Printf("Starting tradability scheduler (interval: %v)...", s.tradabilityInterval)

	ticker := time.NewTicker(s.tradabilityInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(s.cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runTradability(ctx)
		case <-cleanup.C:
			removed, err := s.orchestrator.CleanupPending(ctx)
			if err != nil {
				s.logger.Printf("Pending cleanup error: %v", err)
			} else if removed > 0 {
				s.logger.Printf("Pending cleanup: %d entries expired", removed)
			}
		}
	}
}

func (s *Server) runTradability(ctx context.Context) {
	res, err := s.orchestrator.RunTradabilityCheck(ctx)
	if err != nil {
		s.logger.Printf("Tradability error: %v", err)
		return
	}
	s.mu.Lock()
	s.lastTradability = time.Now()
	s.tradabilityRuns++
	s.mu.Unlock()
	if !res.Partial {
		s.logger.Printf("Tradability: %d tradeable, %d pending, %d rejected, %d filtered",
			res.Stats.Tradeable, res.Stats.Pending, res.Stats.Rejected, res.Stats.Filtered)
	}
}

// startHTTPServer serves health, metrics, status and the payment webhook.
func (s *Server) startHTTPServer(addr string) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/payments/webhook", s.handlePaymentWebhook)

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// handlePaymentWebhook accepts a JSON array of payment notifications and
// reconciles each against chain state.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var items []payments.WebhookPayment
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
		return
	}

	credited := s.listener.ProcessBatch(r.Context(), items)

	s.mu.Lock()
	s.paymentsAccepted += credited
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"received": len(items), "credited": credited})
}

// StatusResponse is the JSON response for the /status endpoint.
type StatusResponse struct {
	Status           string    `json:"status"`
	Uptime           string    `json:"uptime"`
	Wallet           string    `json:"wallet"`
	LastDiscovery    time.Time `json:"last_discovery,omitempty"`
	LastTradability  time.Time `json:"last_tradability,omitempty"`
	DiscoveryCycles  int       `json:"discovery_cycles"`
	TradabilityRuns  int       `json:"tradability_runs"`
	PaymentsAccepted int       `json:"payments_accepted"`
	TradableTokens   int       `json:"tradable_tokens"`
}

// handleStatus returns daemon status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tokens := len(s.orchestrator.TradableTokens(r.Context()))

	s.mu.Lock()
	resp := StatusResponse{
		Status:           "running",
		Uptime:           time.Since(s.started).String(),
		Wallet:           s.session.Wallet.Address(),
		LastDiscovery:    s.lastDiscovery,
		LastTradability:  s.lastTradability,
		DiscoveryCycles:  s.discoveryCycles,
		TradabilityRuns:  s.tradabilityRuns,
		PaymentsAccepted: s.paymentsAccepted,
		TradableTokens:   tokens,
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
