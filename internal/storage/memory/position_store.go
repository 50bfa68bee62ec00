package memory

import (
	"context"
	"sort"
	"sync"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by position_id
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[string]*domain.Position),
	}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
func (s *PositionStore) Insert(_ context.Context, p *domain.Position) error {
	if p == nil || p.PositionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PositionID]; exists {
		return storage.ErrDuplicateKey
	}

	positionCopy := *p
	s.data[p.PositionID] = &positionCopy
	return nil
}

// GetByID retrieves a position. Returns ErrNotFound if not exists.
func (s *PositionStore) GetByID(_ context.Context, positionID string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	positionCopy := *p
	return &positionCopy, nil
}

// GetOpenByWallet retrieves all open positions for a wallet, ordered by open time.
func (s *PositionStore) GetOpenByWallet(_ context.Context, walletAddress string) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for _, p := range s.data {
		if p.WalletAddress == walletAddress && p.ClosedAt == 0 {
			positionCopy := *p
			result = append(result, &positionCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OpenedAt < result[j].OpenedAt
	})
	return result, nil
}

// Close marks a position closed. Returns ErrNotFound if not exists.
func (s *PositionStore) Close(_ context.Context, positionID, exitReason string, pnlSol float64, closedAt int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.data[positionID]
	if !exists {
		return storage.ErrNotFound
	}
	p.ClosedAt = closedAt
	p.ExitReason = exitReason
	p.PnlSol = pnlSol
	return nil
}
