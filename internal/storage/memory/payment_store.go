package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PaymentStore is an in-memory implementation of storage.PaymentStore.
type PaymentStore struct {
	mu   sync.Mutex
	data map[string]*domain.PaymentRecord // keyed by tx signature
}

// NewPaymentStore creates a new in-memory payment store.
func NewPaymentStore() *PaymentStore {
	return &PaymentStore{
		data: make(map[string]*domain.PaymentRecord),
	}
}

// Compile-time interface check.
var _ storage.PaymentStore = (*PaymentStore)(nil)

// InsertPending records a newly seen payment.
func (s *PaymentStore) InsertPending(_ context.Context, p *domain.PaymentRecord) error {
	if p == nil || p.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	recCopy := *p
	recCopy.Status = domain.PaymentPending
	s.data[p.Signature] = &recCopy
	return nil
}

// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
func (s *PaymentStore) GetBySignature(_ context.Context, signature string) (*domain.PaymentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

// MarkConfirmed transitions a record to CONFIRMED. Idempotent.
func (s *PaymentStore) MarkConfirmed(_ context.Context, signature string, slot int64, confirmedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[signature]
	if !exists {
		return storage.ErrNotFound
	}
	if rec.Status == domain.PaymentConfirmed {
		return nil
	}
	rec.Status = domain.PaymentConfirmed
	rec.Slot = slot
	rec.ConfirmedAt = confirmedAt
	rec.Reason = ""
	return nil
}

// MarkFailed transitions a record to FAILED with an auditable reason.
func (s *PaymentStore) MarkFailed(_ context.Context, signature, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[signature]
	if !exists {
		return storage.ErrNotFound
	}
	// A confirmed payment is never demoted on webhook redelivery.
	if rec.Status == domain.PaymentConfirmed {
		return nil
	}
	rec.Status = domain.PaymentFailed
	rec.Reason = reason
	return nil
}

// BalanceStore is an in-memory implementation of storage.BalanceStore.
type BalanceStore struct {
	mu   sync.Mutex
	data map[string]uint64 // lamports keyed by user_id
}

// NewBalanceStore creates a new in-memory balance store.
func NewBalanceStore() *BalanceStore {
	return &BalanceStore{data: make(map[string]uint64)}
}

// Compile-time interface check.
var _ storage.BalanceStore = (*BalanceStore)(nil)

// Credit atomically adds lamports to a user balance.
func (s *BalanceStore) Credit(_ context.Context, userID string, lamports uint64) error {
	if userID == "" {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[userID] += lamports
	return nil
}

// Get retrieves the balance in lamports.
func (s *BalanceStore) Get(_ context.Context, userID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[userID], nil
}

// PaymentSettler is an in-memory implementation of storage.PaymentSettler
// over a payment store and a balance store.
type PaymentSettler struct {
	payments *PaymentStore
	balances *BalanceStore
}

// NewPaymentSettler creates a settler over the given stores.
func NewPaymentSettler(payments *PaymentStore, balances *BalanceStore) *PaymentSettler {
	return &PaymentSettler{payments: payments, balances: balances}
}

// Compile-time interface check.
var _ storage.PaymentSettler = (*PaymentSettler)(nil)

// ConfirmAndCredit marks the payment CONFIRMED and credits the user. The
// credit happens only when this call performed the transition, so concurrent
// redeliveries credit exactly once.
func (s *PaymentSettler) ConfirmAndCredit(ctx context.Context, signature string, slot, confirmedAt int64, userID string, lamports uint64) (bool, error) {
	s.payments.mu.Lock()
	rec, exists := s.payments.data[signature]
	if !exists || rec.Status == domain.PaymentConfirmed {
		s.payments.mu.Unlock()
		return false, nil
	}
	rec.Status = domain.PaymentConfirmed
	rec.Slot = slot
	rec.ConfirmedAt = confirmedAt
	rec.Reason = ""
	s.payments.mu.Unlock()

	return true, s.balances.Credit(ctx, userID, lamports)
}
