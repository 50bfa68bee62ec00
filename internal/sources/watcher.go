package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"filippo.io/edwards25519"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/solana"
)

// RaydiumAMMV4 is the Raydium AMM v4 program ID.
const RaydiumAMMV4 = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

// Known non-mint account keys skipped during mint inference.
var watcherSkipKeys = map[string]bool{
	RaydiumAMMV4: true,
	wsolMint:     true,
	"11111111111111111111111111111111":            true, // system program
	"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA": true, // SPL token program
	"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL": true, // associated token program
	"ComputeBudget111111111111111111111111111111":  true,
	"SysvarRent111111111111111111111111111111111":  true,
}

// PoolWatcherConfig configures the watcher.
type PoolWatcherConfig struct {
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	BufferSize        int           // ring buffer of recent pool events
	Freshness         time.Duration // Fetch only returns events younger than this
}

// DefaultPoolWatcherConfig returns default watcher configuration.
func DefaultPoolWatcherConfig() PoolWatcherConfig {
	return PoolWatcherConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		BufferSize:        256,
		Freshness:         2 * time.Minute,
	}
}

// PoolWatcher subscribes to Raydium AMM program logs over WebSocket and keeps
// a ring buffer of freshly created pools. It doubles as a PoolSource so the
// racer can merge push-detected pools with the HTTP adapters.
//
// Liquidity is unknown at creation time; records carry zero liquidity and are
// refreshed by the tradability stage before any trading decision.
type PoolWatcher struct {
	endpoint string
	rpc      solana.RPCClient
	config   PoolWatcherConfig
	logger   *log.Logger

	mu     sync.Mutex
	buf    []*domain.DiscoveredPool
	seen   map[string]bool
	closed atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPoolWatcher creates a new pool watcher.
func NewPoolWatcher(endpoint string, rpc solana.RPCClient, config *PoolWatcherConfig, logger *log.Logger) *PoolWatcher {
	cfg := DefaultPoolWatcherConfig()
	if config != nil {
		cfg = *config
	}
	return &PoolWatcher{
		endpoint: endpoint,
		rpc:      rpc,
		config:   cfg,
		logger:   logger,
		seen:     make(map[string]bool),
	}
}

// Compile-time interface check.
var _ PoolSource = (*PoolWatcher)(nil)

// Name identifies the adapter.
func (w *PoolWatcher) Name() string { return "ws-watcher" }

// Start launches the subscription loop. Returns immediately; the watcher
// reconnects with capped backoff until Stop is called or ctx is cancelled.
func (w *PoolWatcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop terminates the subscription loop and waits for it to exit.
func (w *PoolWatcher) Stop() {
	w.closed.Store(true)
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

// Fetch returns buffered pool-creation events younger than the freshness
// window. The liquidity floor is ignored: liquidity is unknown at creation,
// and the tradability stage is the authority on it.
func (w *PoolWatcher) Fetch(_ context.Context, _ float64) ([]*domain.DiscoveredPool, error) {
	cutoff := time.Now().Add(-w.config.Freshness).UnixMilli()

	w.mu.Lock()
	defer w.mu.Unlock()

	var out []*domain.DiscoveredPool
	for _, p := range w.buf {
		if p.PoolCreatedAt >= cutoff {
			poolCopy := *p
			out = append(out, &poolCopy)
		}
	}
	return out, nil
}

func (w *PoolWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	delay := w.config.ReconnectDelay
	for {
		if ctx.Err() != nil || w.closed.Load() {
			return
		}

		err := w.subscribe(ctx)
		if err != nil && ctx.Err() == nil {
			w.logf("subscription dropped: %v (reconnecting in %s)", err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > w.config.MaxReconnectDelay {
			delay = w.config.MaxReconnectDelay
		}
	}
}

// subscribe opens one WebSocket connection, issues logsSubscribe for the
// Raydium program, and consumes notifications until the connection breaks.
func (w *PoolWatcher) subscribe(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, w.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	defer conn.Close()

	sub := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "logsSubscribe",
		"params": []interface{}{
			map[string]interface{}{"mentions": []string{RaydiumAMMV4}},
			map[string]interface{}{"commitment": "confirmed"},
		},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("write subscribe: %w", err)
	}

	// Close the connection when ctx is cancelled to unblock ReadMessage.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var notif logsNotification
		if err := json.Unmarshal(message, &notif); err != nil || notif.Method != "logsNotification" {
			continue
		}

		value := notif.Params.Result.Value
		if value.Err != nil || !hasPoolInitLog(value.Logs) {
			continue
		}
		w.handlePoolInit(ctx, value.Signature, notif.Params.Result.Context.Slot)
	}
}

// hasPoolInitLog reports whether the log lines carry a Raydium pool
// initialization instruction.
func hasPoolInitLog(logs []string) bool {
	for _, line := range logs {
		if strings.Contains(line, "initialize2") || strings.Contains(line, "InitializeInstruction2") {
			return true
		}
	}
	return false
}

// handlePoolInit resolves the created pool's token mint from the transaction
// and records it in the ring buffer.
func (w *PoolWatcher) handlePoolInit(ctx context.Context, signature string, slot int64) {
	tx, err := w.rpc.GetTransaction(ctx, signature)
	if err != nil || tx == nil || tx.Message == nil {
		w.logf("resolve pool init tx %s: %v", signature, err)
		return
	}

	mint := inferTokenMint(tx.Message.AccountKeys)
	if mint == "" {
		return
	}

	createdAt := tx.BlockTime * 1000
	if createdAt == 0 {
		createdAt = time.Now().UnixMilli()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.seen[mint] {
		return
	}
	w.seen[mint] = true
	w.buf = append(w.buf, &domain.DiscoveredPool{
		Mint:          mint,
		Source:        w.Name(),
		Dex:           "raydium",
		PoolCreatedAt: createdAt,
	})
	if len(w.buf) > w.config.BufferSize {
		evicted := w.buf[0]
		w.buf = w.buf[1:]
		delete(w.seen, evicted.Mint)
	}
	w.logf("pool init detected: mint=%s slot=%d", mint, slot)
}

// inferTokenMint picks the first plausible token mint from account keys:
// a valid on-curve-or-PDA base58 key that is not a known program account.
// Raydium initialize2 transactions list the new token mint ahead of the
// derived pool accounts.
func inferTokenMint(accountKeys []string) string {
	for _, key := range accountKeys {
		if watcherSkipKeys[key] {
			continue
		}
		if isValidPoint(key) {
			return key
		}
	}
	return ""
}

// isValidPoint reports whether the base58 key decodes to 32 bytes that form
// a valid edwards25519 point. Mint accounts are regular on-curve keys.
func isValidPoint(key string) bool {
	raw, err := base58.Decode(key)
	if err != nil || len(raw) != 32 {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

func (w *PoolWatcher) logf(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Printf("[ws-watcher] "+format, args...)
	}
}

// logsNotification mirrors the logsSubscribe push payload.
type logsNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Context struct {
				Slot int64 `json:"slot"`
			} `json:"context"`
			Value struct {
				Signature string      `json:"signature"`
				Err       interface{} `json:"err"`
				Logs      []string    `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}
