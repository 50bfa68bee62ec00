package trade

import (
	"fmt"
	"sync"
)

// sellLocks serializes sell attempts per mint. Acquisition is fail-fast:
// a concurrent sell on a locked mint errors immediately instead of queuing,
// so two retry loops can never run against the same position.
type sellLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newSellLocks() *sellLocks {
	return &sellLocks{held: make(map[string]bool)}
}

// Acquire takes the lock for mint or fails with ErrSellLocked.
func (l *sellLocks) Acquire(mint string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[mint] {
		return fmt.Errorf("%w: %s", ErrSellLocked, mint)
	}
	l.held[mint] = true
	return nil
}

// Release frees the lock for mint.
func (l *sellLocks) Release(mint string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, mint)
}
