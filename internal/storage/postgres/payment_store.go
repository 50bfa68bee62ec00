package postgres

import (
	"context"
	"fmt"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PaymentStore implements storage.PaymentStore using PostgreSQL.
// Idempotency is anchored on the tx signature primary key.
type PaymentStore struct {
	pool *Pool
}

// NewPaymentStore creates a new PaymentStore.
func NewPaymentStore(pool *Pool) *PaymentStore {
	return &PaymentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PaymentStore = (*PaymentStore)(nil)

// InsertPending records a newly seen payment.
func (s *PaymentStore) InsertPending(ctx context.Context, p *domain.PaymentRecord) error {
	if p == nil || p.Signature == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO payment_records (
			signature, user_id, pack_id, nonce, lamports, status, reason, slot, created_at, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, 'PENDING', '', $6, $7, 0)
	`

	_, err := s.pool.Exec(ctx, query,
		p.Signature, p.UserID, p.PackID, p.Nonce, p.Lamports, p.Slot, p.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert pending payment: %w", err)
	}
	return nil
}

// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
func (s *PaymentStore) GetBySignature(ctx context.Context, signature string) (*domain.PaymentRecord, error) {
	query := `
		SELECT signature, user_id, pack_id, nonce, lamports, status, reason, slot, created_at, confirmed_at
		FROM payment_records
		WHERE signature = $1
	`

	var p domain.PaymentRecord
	var status string
	err := s.pool.QueryRow(ctx, query, signature).Scan(
		&p.Signature, &p.UserID, &p.PackID, &p.Nonce, &p.Lamports,
		&status, &p.Reason, &p.Slot, &p.CreatedAt, &p.ConfirmedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get payment by signature: %w", err)
	}
	p.Status = domain.PaymentStatus(status)
	return &p, nil
}

// MarkConfirmed transitions a record to CONFIRMED. Idempotent: rows already
// confirmed are not touched, so redelivery never double-credits.
func (s *PaymentStore) MarkConfirmed(ctx context.Context, signature string, slot int64, confirmedAt int64) error {
	query := `
		UPDATE payment_records
		SET status = 'CONFIRMED', reason = '', slot = $2, confirmed_at = $3
		WHERE signature = $1 AND status <> 'CONFIRMED'
	`

	_, err := s.pool.Exec(ctx, query, signature, slot, confirmedAt)
	if err != nil {
		return fmt.Errorf("mark payment confirmed: %w", err)
	}
	return nil
}

// MarkFailed transitions a record to FAILED with an auditable reason.
// Confirmed records are never demoted.
func (s *PaymentStore) MarkFailed(ctx context.Context, signature, reason string) error {
	query := `
		UPDATE payment_records
		SET status = 'FAILED', reason = $2
		WHERE signature = $1 AND status <> 'CONFIRMED'
	`

	_, err := s.pool.Exec(ctx, query, signature, reason)
	if err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return nil
}

// Compile-time interface check.
var _ storage.PaymentSettler = (*PaymentStore)(nil)

// ConfirmAndCredit marks the payment CONFIRMED and credits the user inside
// one transaction: a crash between the two writes can never strand a
// confirmed-but-uncredited payment. The credit runs only when this call won
// the CONFIRMED transition, so redelivery credits exactly once.
func (s *PaymentStore) ConfirmAndCredit(ctx context.Context, signature string, slot, confirmedAt int64, userID string, lamports uint64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin settle: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE payment_records
		SET status = 'CONFIRMED', reason = '', slot = $2, confirmed_at = $3
		WHERE signature = $1 AND status <> 'CONFIRMED'
	`, signature, slot, confirmedAt)
	if err != nil {
		return false, fmt.Errorf("mark payment confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already confirmed, or never recorded.
		return false, nil
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO user_balances (user_id, lamports)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET lamports = user_balances.lamports + EXCLUDED.lamports
	`, userID, lamports); err != nil {
		return false, fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit settle: %w", err)
	}
	return true, nil
}

// BalanceStore implements storage.BalanceStore using PostgreSQL.
type BalanceStore struct {
	pool *Pool
}

// NewBalanceStore creates a new BalanceStore.
func NewBalanceStore(pool *Pool) *BalanceStore {
	return &BalanceStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Credit atomically adds lamports to a user balance.
func (s *BalanceStore) Credit(ctx context.Context, userID string, lamports uint64) error {
	if userID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO user_balances (user_id, lamports)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET lamports = user_balances.lamports + EXCLUDED.lamports
	`

	_, err := s.pool.Exec(ctx, query, userID, lamports)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}
	return nil
}

// Get retrieves the balance in lamports. Unknown users have zero balance.
func (s *BalanceStore) Get(ctx context.Context, userID string) (uint64, error) {
	query := `SELECT lamports FROM user_balances WHERE user_id = $1`

	var lamports uint64
	err := s.pool.QueryRow(ctx, query, userID).Scan(&lamports)
	if err != nil {
		if isNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return lamports, nil
}
