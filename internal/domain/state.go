package domain

// TokenState is the per-address lifecycle state owned by the state registry.
type TokenState string

const (
	StateNew       TokenState = "NEW"
	StatePending   TokenState = "PENDING"
	StateTradeable TokenState = "TRADEABLE"
	StateTraded    TokenState = "TRADED"
	StateRejected  TokenState = "REJECTED"
)

// Terminal reports whether the state can never be downgraded.
// TRADED and REJECTED are terminal within a session.
func (s TokenState) Terminal() bool {
	return s == StateTraded || s == StateRejected
}

// TokenStateRecord is a registry row for one mint address.
type TokenStateRecord struct {
	Address   string
	State     TokenState
	Reason    string // pending/rejected reason, empty otherwise
	TxHash    string // set on TRADED
	UpdatedAt int64  // Unix timestamp in milliseconds
}
