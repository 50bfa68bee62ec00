package solana

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err          interface{}
	LogMessages  []string
	PreBalances  []uint64
	PostBalances []uint64
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// TokenAccountBalance is one entry from getTokenLargestAccounts.
type TokenAccountBalance struct {
	Address  string
	Amount   uint64
	Decimals int
}

// TokenSupply is the result of getTokenSupply.
type TokenSupply struct {
	Amount   uint64
	Decimals int
}

// SignatureStatus is one entry from getSignatureStatuses.
// Confirmations is nil once the transaction is rooted (finalized).
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int
	ConfirmationStatus string // processed | confirmed | finalized
	Err                interface{}
}

// SignatureInfo is one entry from getSignaturesForAddress, newest first.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix timestamp (seconds), 0 when unavailable
	Err       interface{}
}
