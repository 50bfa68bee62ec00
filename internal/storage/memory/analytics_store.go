package memory

import (
	"context"
	"sync"

	"solana-sniper/internal/storage"
)

// TradeEventStore is an in-memory implementation of storage.TradeEventStore.
type TradeEventStore struct {
	mu     sync.Mutex
	events []*storage.TradeEvent
}

// NewTradeEventStore creates a new in-memory trade event store.
func NewTradeEventStore() *TradeEventStore {
	return &TradeEventStore{}
}

// Compile-time interface check.
var _ storage.TradeEventStore = (*TradeEventStore)(nil)

// Insert appends one trade event.
func (s *TradeEventStore) Insert(_ context.Context, e *storage.TradeEvent) error {
	if e == nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	eventCopy := *e
	s.events = append(s.events, &eventCopy)
	return nil
}

// InsertBulk appends multiple events.
func (s *TradeEventStore) InsertBulk(ctx context.Context, events []*storage.TradeEvent) error {
	for _, e := range events {
		if err := s.Insert(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// All returns a copy of all recorded events. Test helper.
func (s *TradeEventStore) All() []*storage.TradeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*storage.TradeEvent, len(s.events))
	for i, e := range s.events {
		eventCopy := *e
		out[i] = &eventCopy
	}
	return out
}

// CycleStatStore is an in-memory implementation of storage.CycleStatStore.
type CycleStatStore struct {
	mu    sync.Mutex
	stats []*storage.CycleStat
}

// NewCycleStatStore creates a new in-memory cycle stat store.
func NewCycleStatStore() *CycleStatStore {
	return &CycleStatStore{}
}

// Compile-time interface check.
var _ storage.CycleStatStore = (*CycleStatStore)(nil)

// Insert appends one cycle stat row.
func (s *CycleStatStore) Insert(_ context.Context, stat *storage.CycleStat) error {
	if stat == nil {
		return storage.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	statCopy := *stat
	s.stats = append(s.stats, &statCopy)
	return nil
}

// All returns a copy of all recorded stats. Test helper.
func (s *CycleStatStore) All() []*storage.CycleStat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*storage.CycleStat, len(s.stats))
	for i, st := range s.stats {
		statCopy := *st
		out[i] = &statCopy
	}
	return out
}
