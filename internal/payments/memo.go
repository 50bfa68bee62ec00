// Package payments verifies inbound SOL payments against the on-chain memo
// protocol before crediting user balances. Verification is idempotent on
// transaction signature and never trusts the webhook payload alone.
package payments

import (
	"fmt"
	"strings"
)

// DefaultMemoPrefix tags payment memos produced by the platform checkout.
const DefaultMemoPrefix = "SNIPE"

// Memo is a parsed payment memo: PREFIX-<userId>-<packId>-<nonce>.
type Memo struct {
	UserID string
	PackID string
	Nonce  string
}

// ParseMemo extracts the payment memo from transaction log messages.
// Memo program logs carry the text quoted: Program log: Memo (len N): "...".
func ParseMemo(logs []string, prefix string) (*Memo, error) {
	for _, line := range logs {
		idx := strings.Index(line, prefix+"-")
		if idx < 0 {
			continue
		}
		raw := line[idx:]
		if end := strings.IndexAny(raw, `" `); end >= 0 {
			raw = raw[:end]
		}
		return parseMemoText(raw, prefix)
	}
	return nil, fmt.Errorf("no %s memo in transaction logs", prefix)
}

func parseMemoText(raw, prefix string) (*Memo, error) {
	parts := strings.Split(raw, "-")
	if len(parts) != 4 || parts[0] != prefix {
		return nil, fmt.Errorf("malformed memo %q", raw)
	}
	for _, p := range parts[1:] {
		if p == "" {
			return nil, fmt.Errorf("malformed memo %q", raw)
		}
	}
	return &Memo{UserID: parts[1], PackID: parts[2], Nonce: parts[3]}, nil
}
