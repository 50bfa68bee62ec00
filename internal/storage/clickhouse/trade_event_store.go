package clickhouse

import (
	"context"
	"fmt"

	"solana-sniper/internal/storage"
)

// TradeEventStore implements storage.TradeEventStore using ClickHouse.
// Append-only: execution attempts are logged for post-hoc analytics,
// duplicates are tolerated by the MergeTree engine.
type TradeEventStore struct {
	conn *Conn
}

// NewTradeEventStore creates a new TradeEventStore.
func NewTradeEventStore(conn *Conn) *TradeEventStore {
	return &TradeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert appends one trade event.
func (s *TradeEventStore) Insert(ctx context.Context, e *storage.TradeEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}
	return s.InsertBulk(ctx, []*storage.TradeEvent{e})
}

// InsertBulk appends multiple events in one batch.
func (s *TradeEventStore) InsertBulk(ctx context.Context, events []*storage.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_events (
			mint, wallet, side, amount_sol, slippage_bps, retry_count,
			success, error_code, signature, timestamp
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		success := uint8(0)
		if e.Success {
			success = 1
		}
		err = batch.Append(
			e.Mint, e.Wallet, e.Side, e.AmountSol,
			int32(e.SlippageBps), int32(e.RetryCount),
			success, e.ErrorCode, e.Signature, e.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
