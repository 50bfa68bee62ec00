package clickhouse

import (
	"context"
	"fmt"

	"solana-sniper/internal/storage"
)

// CycleStatStore implements storage.CycleStatStore using ClickHouse.
type CycleStatStore struct {
	conn *Conn
}

// NewCycleStatStore creates a new CycleStatStore.
func NewCycleStatStore(conn *Conn) *CycleStatStore {
	return &CycleStatStore{conn: conn}
}

// Compile-time interface check.
var _ storage.CycleStatStore = (*CycleStatStore)(nil)

// Insert appends one cycle stat row.
func (s *CycleStatStore) Insert(ctx context.Context, stat *storage.CycleStat) error {
	if stat == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO cycle_stats (
			stage, discovered, tradeable, pending, rejected, filtered, duration_ms, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	err := s.conn.Exec(ctx, query,
		stat.Stage,
		int32(stat.Discovered),
		int32(stat.Tradeable),
		int32(stat.Pending),
		int32(stat.Rejected),
		int32(stat.Filtered),
		stat.DurationMs,
		stat.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert cycle stat: %w", err)
	}
	return nil
}
