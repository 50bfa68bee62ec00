package storage

import (
	"context"
	"time"

	"solana-sniper/internal/domain"
)

// TokenStateStore is the token state registry: the single source of truth for
// "has this token already been acted upon".
//
// Concurrency contract: implementations serialize read-modify-write per
// address. Terminal states (TRADED, REJECTED) are never downgraded; a batch
// registration racing a terminal mark must leave the terminal state intact.
type TokenStateStore interface {
	// RegisterBatch upserts NEW-state records for unseen addresses.
	// Idempotent: already-registered addresses are left untouched.
	RegisterBatch(ctx context.Context, addresses []string) error

	// Get retrieves the state record for an address.
	// Returns ErrNotFound if the address was never registered.
	Get(ctx context.Context, address string) (*domain.TokenStateRecord, error)

	// CanTrade reports whether the address is eligible for auto-trading:
	// not in a terminal state and not pending with an unexpired TTL.
	// Unregistered addresses are tradeable.
	CanTrade(ctx context.Context, address string, pendingTTL time.Duration) (bool, error)

	// MarkTraded transitions the address to TRADED. No-op if already terminal.
	MarkTraded(ctx context.Context, address, txHash string) error

	// MarkPending transitions the address to PENDING with a reason.
	// No-op if the address is in a terminal state.
	MarkPending(ctx context.Context, address, reason string) error

	// MarkRejected transitions the address to REJECTED with a reason.
	// No-op if already terminal.
	MarkRejected(ctx context.Context, address, reason string) error

	// MarkTradeable transitions the address to TRADEABLE.
	// No-op if the address is in a terminal state.
	MarkTradeable(ctx context.Context, address string) error

	// CleanupExpiredPending removes PENDING entries older than ttl and returns
	// the number removed. Absence from the table means re-discoverable.
	CleanupExpiredPending(ctx context.Context, ttl time.Duration) (int, error)
}

// PositionStore provides access to trade positions.
type PositionStore interface {
	// Insert adds a new position. Returns ErrDuplicateKey if position_id exists.
	Insert(ctx context.Context, p *domain.Position) error

	// GetByID retrieves a position. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, positionID string) (*domain.Position, error)

	// GetOpenByWallet retrieves all open positions for a wallet.
	GetOpenByWallet(ctx context.Context, walletAddress string) ([]*domain.Position, error)

	// Close marks a position closed with exit reason and realized PnL.
	// Returns ErrNotFound if not exists.
	Close(ctx context.Context, positionID, exitReason string, pnlSol float64, closedAt int64) error
}

// PaymentStore provides idempotent access to payment records keyed by
// transaction signature.
type PaymentStore interface {
	// InsertPending records a newly seen payment.
	// Returns ErrDuplicateKey if the signature was already recorded.
	InsertPending(ctx context.Context, p *domain.PaymentRecord) error

	// GetBySignature retrieves a record. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.PaymentRecord, error)

	// MarkConfirmed transitions a record to CONFIRMED.
	// No-op (nil error) if the record is already confirmed.
	MarkConfirmed(ctx context.Context, signature string, slot int64, confirmedAt int64) error

	// MarkFailed transitions a record to FAILED with an auditable reason.
	MarkFailed(ctx context.Context, signature, reason string) error
}

// PaymentSettler settles verified payments. The CONFIRMED transition and the
// balance credit are one atomic operation: either both persist or neither
// does, so a crash mid-settle can never strand a confirmed-but-uncredited
// payment.
type PaymentSettler interface {
	// ConfirmAndCredit marks the payment CONFIRMED and credits the user in
	// one step. Returns false without crediting when the record was already
	// confirmed or was never recorded.
	ConfirmAndCredit(ctx context.Context, signature string, slot, confirmedAt int64, userID string, lamports uint64) (bool, error)
}

// BalanceStore provides access to user platform balances.
type BalanceStore interface {
	// Credit atomically adds lamports to a user balance.
	Credit(ctx context.Context, userID string, lamports uint64) error

	// Get retrieves the balance in lamports. Unknown users have zero balance.
	Get(ctx context.Context, userID string) (uint64, error)
}

// TradeEventStore is an append-only audit log of execution attempts.
// Backed by ClickHouse in production; used for post-hoc analytics.
type TradeEventStore interface {
	// Insert appends one trade event.
	Insert(ctx context.Context, e *TradeEvent) error

	// InsertBulk appends multiple events.
	InsertBulk(ctx context.Context, events []*TradeEvent) error
}

// CycleStatStore is an append-only log of discovery/tradability cycle stats.
type CycleStatStore interface {
	// Insert appends one cycle stat row.
	Insert(ctx context.Context, s *CycleStat) error
}

// TradeEvent is one execution attempt record for the analytics log.
type TradeEvent struct {
	Mint        string
	Wallet      string
	Side        string // buy | sell
	AmountSol   float64
	SlippageBps int
	RetryCount  int
	Success     bool
	ErrorCode   string
	Signature   string
	Timestamp   int64 // Unix timestamp in milliseconds
}

// CycleStat is one pipeline cycle accounting row.
type CycleStat struct {
	Stage      string // discovery | tradability | full
	Discovered int
	Tradeable  int
	Pending    int
	Rejected   int
	Filtered   int
	DurationMs int64
	Timestamp  int64 // Unix timestamp in milliseconds
}
