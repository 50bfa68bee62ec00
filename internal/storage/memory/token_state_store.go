package memory

import (
	"context"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// TokenStateStore is an in-memory implementation of storage.TokenStateStore.
// Used in demo mode and tests.
type TokenStateStore struct {
	mu   sync.Mutex
	data map[string]*domain.TokenStateRecord // keyed by address

	now func() time.Time // injectable clock for tests
}

// NewTokenStateStore creates a new in-memory token state store.
func NewTokenStateStore() *TokenStateStore {
	return &TokenStateStore{
		data: make(map[string]*domain.TokenStateRecord),
		now:  time.Now,
	}
}

// WithClock overrides the clock. Test helper.
func (s *TokenStateStore) WithClock(now func() time.Time) *TokenStateStore {
	s.now = now
	return s
}

// Compile-time interface check.
var _ storage.TokenStateStore = (*TokenStateStore)(nil)

// RegisterBatch upserts NEW-state records for unseen addresses.
func (s *TokenStateStore) RegisterBatch(_ context.Context, addresses []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nowMs := s.now().UnixMilli()
	for _, addr := range addresses {
		if addr == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[addr]; exists {
			continue
		}
		s.data[addr] = &domain.TokenStateRecord{
			Address:   addr,
			State:     domain.StateNew,
			UpdatedAt: nowMs,
		}
	}
	return nil
}

// Get retrieves the state record for an address.
func (s *TokenStateStore) Get(_ context.Context, address string) (*domain.TokenStateRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

// CanTrade reports whether the address is eligible for auto-trading.
func (s *TokenStateStore) CanTrade(_ context.Context, address string, pendingTTL time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[address]
	if !exists {
		return true, nil
	}
	if rec.State.Terminal() {
		return false, nil
	}
	if rec.State == domain.StatePending {
		age := s.now().UnixMilli() - rec.UpdatedAt
		if age < pendingTTL.Milliseconds() {
			return false, nil
		}
	}
	return true, nil
}

// MarkTraded transitions the address to TRADED. No-op if already terminal.
func (s *TokenStateStore) MarkTraded(_ context.Context, address, txHash string) error {
	return s.transition(address, domain.StateTraded, "", txHash)
}

// MarkPending transitions the address to PENDING. No-op if terminal.
func (s *TokenStateStore) MarkPending(_ context.Context, address, reason string) error {
	return s.transition(address, domain.StatePending, reason, "")
}

// MarkRejected transitions the address to REJECTED. No-op if already terminal.
func (s *TokenStateStore) MarkRejected(_ context.Context, address, reason string) error {
	return s.transition(address, domain.StateRejected, reason, "")
}

// MarkTradeable transitions the address to TRADEABLE. No-op if terminal.
func (s *TokenStateStore) MarkTradeable(_ context.Context, address string) error {
	return s.transition(address, domain.StateTradeable, "", "")
}

// transition applies terminal-state-wins semantics under the store lock.
func (s *TokenStateStore) transition(address string, to domain.TokenState, reason, txHash string) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.data[address]
	if exists && rec.State.Terminal() {
		return nil
	}
	if !exists {
		rec = &domain.TokenStateRecord{Address: address}
		s.data[address] = rec
	}
	rec.State = to
	rec.Reason = reason
	if txHash != "" {
		rec.TxHash = txHash
	}
	rec.UpdatedAt = s.now().UnixMilli()
	return nil
}

// CleanupExpiredPending removes PENDING entries older than ttl.
func (s *TokenStateStore) CleanupExpiredPending(_ context.Context, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UnixMilli() - ttl.Milliseconds()
	removed := 0
	for addr, rec := range s.data {
		if rec.State == domain.StatePending && rec.UpdatedAt < cutoff {
			delete(s.data, addr)
			removed++
		}
	}
	return removed, nil
}
