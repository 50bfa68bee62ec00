package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface consumed by the sniper.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns nil if the transaction is not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)

	// GetTokenLargestAccounts retrieves the largest token accounts for a mint.
	GetTokenLargestAccounts(ctx context.Context, mint string) ([]TokenAccountBalance, error)

	// GetTokenSupply retrieves the total supply of a mint.
	GetTokenSupply(ctx context.Context, mint string) (*TokenSupply, error)

	// GetSignatureStatuses retrieves confirmation status for signatures.
	// Entries are nil for unknown signatures.
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*SignatureStatus, error)

	// GetSignaturesForAddress retrieves up to limit transaction signatures
	// involving the address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)

	// GetBalance retrieves the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// SendTransaction broadcasts a signed transaction (base64) and returns its signature.
	SendTransaction(ctx context.Context, signedTxBase64 string) (string, error)
}
