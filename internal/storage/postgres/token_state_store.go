package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TokenStateStore implements storage.TokenStateStore using PostgreSQL.
//
// Terminal-state-wins is enforced in SQL: every transition statement carries
// a WHERE guard excluding TRADED and REJECTED rows, so two cycles racing to
// mark the same address resolve deterministically inside the database.
type TokenStateStore struct {
	pool *Pool
}

// NewTokenStateStore creates a new TokenStateStore.
func NewTokenStateStore(pool *Pool) *TokenStateStore {
	return &TokenStateStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenStateStore = (*TokenStateStore)(nil)

// RegisterBatch upserts NEW-state records for unseen addresses.
func (s *TokenStateStore) RegisterBatch(ctx context.Context, addresses []string) error {
	if len(addresses) == 0 {
		return nil
	}
	for _, addr := range addresses {
		if addr == "" {
			return storage.ErrInvalidInput
		}
	}

	query := `
		INSERT INTO token_states (address, state, updated_at)
		SELECT unnest($1::text[]), 'NEW', $2
		ON CONFLICT (address) DO NOTHING
	`

	_, err := s.pool.Exec(ctx, query, addresses, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("register token batch: %w", err)
	}
	return nil
}

// Get retrieves the state record for an address.
func (s *TokenStateStore) Get(ctx context.Context, address string) (*domain.TokenStateRecord, error) {
	query := `
		SELECT address, state, reason, tx_hash, updated_at
		FROM token_states
		WHERE address = $1
	`

	var rec domain.TokenStateRecord
	var state string
	err := s.pool.QueryRow(ctx, query, address).Scan(
		&rec.Address, &state, &rec.Reason, &rec.TxHash, &rec.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token state: %w", err)
	}
	rec.State = domain.TokenState(state)
	return &rec, nil
}

// CanTrade reports whether the address is eligible for auto-trading.
func (s *TokenStateStore) CanTrade(ctx context.Context, address string, pendingTTL time.Duration) (bool, error) {
	query := `
		SELECT state, updated_at
		FROM token_states
		WHERE address = $1
	`

	var state string
	var updatedAt int64
	err := s.pool.QueryRow(ctx, query, address).Scan(&state, &updatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return true, nil
		}
		return false, fmt.Errorf("check can trade: %w", err)
	}

	st := domain.TokenState(state)
	if st.Terminal() {
		return false, nil
	}
	if st == domain.StatePending {
		age := time.Now().UnixMilli() - updatedAt
		if age < pendingTTL.Milliseconds() {
			return false, nil
		}
	}
	return true, nil
}

// MarkTraded transitions the address to TRADED. No-op if already terminal.
func (s *TokenStateStore) MarkTraded(ctx context.Context, address, txHash string) error {
	return s.transition(ctx, address, domain.StateTraded, "", txHash)
}

// MarkPending transitions the address to PENDING. No-op if terminal.
func (s *TokenStateStore) MarkPending(ctx context.Context, address, reason string) error {
	return s.transition(ctx, address, domain.StatePending, reason, "")
}

// MarkRejected transitions the address to REJECTED. No-op if already terminal.
func (s *TokenStateStore) MarkRejected(ctx context.Context, address, reason string) error {
	return s.transition(ctx, address, domain.StateRejected, reason, "")
}

// MarkTradeable transitions the address to TRADEABLE. No-op if terminal.
func (s *TokenStateStore) MarkTradeable(ctx context.Context, address string) error {
	return s.transition(ctx, address, domain.StateTradeable, "", "")
}

func (s *TokenStateStore) transition(ctx context.Context, address string, to domain.TokenState, reason, txHash string) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO token_states (address, state, reason, tx_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE
		SET state = EXCLUDED.state,
		    reason = EXCLUDED.reason,
		    tx_hash = CASE WHEN EXCLUDED.tx_hash <> '' THEN EXCLUDED.tx_hash ELSE token_states.tx_hash END,
		    updated_at = EXCLUDED.updated_at
		WHERE token_states.state NOT IN ('TRADED', 'REJECTED')
	`

	_, err := s.pool.Exec(ctx, query, address, string(to), reason, txHash, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("transition token state to %s: %w", to, err)
	}
	return nil
}

// CleanupExpiredPending removes PENDING entries older than ttl.
func (s *TokenStateStore) CleanupExpiredPending(ctx context.Context, ttl time.Duration) (int, error) {
	query := `
		DELETE FROM token_states
		WHERE state = 'PENDING' AND updated_at < $1
	`

	cutoff := time.Now().UnixMilli() - ttl.Milliseconds()
	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired pending: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
