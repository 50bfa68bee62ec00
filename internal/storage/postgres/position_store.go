package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO positions (
			position_id, wallet_address, mint, symbol, amount_sol, token_amount,
			entry_price_usd, opened_at, closed_at, exit_reason, pnl_sol, demo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := s.pool.Exec(ctx, query,
		p.PositionID,
		p.WalletAddress,
		p.Mint,
		p.Symbol,
		p.AmountSol,
		p.TokenAmount,
		p.EntryPriceUSD,
		p.OpenedAt,
		p.ClosedAt,
		p.ExitReason,
		p.PnlSol,
		p.Demo,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert position: %w", err)
	}
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(ctx context.Context, positionID string) (*domain.Position, error) {
	query := `
		SELECT position_id, wallet_address, mint, symbol, amount_sol, token_amount,
		       entry_price_usd, opened_at, closed_at, exit_reason, pnl_sol, demo
		FROM positions
		WHERE position_id = $1
	`

	row := s.pool.QueryRow(ctx, query, positionID)
	p, err := scanPosition(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position by id: %w", err)
	}
	return p, nil
}

// GetOpenByWallet retrieves all open positions for a wallet.
func (s *PositionStore) GetOpenByWallet(ctx context.Context, walletAddress string) ([]*domain.Position, error) {
	query := `
		SELECT position_id, wallet_address, mint, symbol, amount_sol, token_amount,
		       entry_price_usd, opened_at, closed_at, exit_reason, pnl_sol, demo
		FROM positions
		WHERE wallet_address = $1 AND closed_at = 0
		ORDER BY opened_at ASC, position_id ASC
	`

	rows, err := s.pool.Query(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("get open positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Close marks a position closed. Returns ErrNotFound if not exists.
func (s *PositionStore) Close(ctx context.Context, positionID, exitReason string, pnlSol float64, closedAt int64) error {
	query := `
		UPDATE positions
		SET closed_at = $2, exit_reason = $3, pnl_sol = $4
		WHERE position_id = $1
	`

	tag, err := s.pool.Exec(ctx, query, positionID, closedAt, exitReason, pnlSol)
	if err != nil {
		return fmt.Errorf("close position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanPosition(row pgx.Row) (*domain.Position, error) {
	var p domain.Position
	err := row.Scan(
		&p.PositionID,
		&p.WalletAddress,
		&p.Mint,
		&p.Symbol,
		&p.AmountSol,
		&p.TokenAmount,
		&p.EntryPriceUSD,
		&p.OpenedAt,
		&p.ClosedAt,
		&p.ExitReason,
		&p.PnlSol,
		&p.Demo,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
