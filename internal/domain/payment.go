package domain

// PaymentStatus is the reconciliation state of one inbound payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// PaymentRecord tracks one inbound SOL payment keyed by transaction signature.
// Corresponds to payment_records table in PostgreSQL.
type PaymentRecord struct {
	Signature   string // PRIMARY KEY, on-chain tx signature
	UserID      string
	PackID      string
	Nonce       string
	Lamports    uint64
	Status      PaymentStatus
	Reason      string // human-readable failure reason, empty on success
	Slot        int64
	CreatedAt   int64 // Unix timestamp in milliseconds
	ConfirmedAt int64 // 0 until confirmed
}
